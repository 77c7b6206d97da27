//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/loanrisk"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/testhelpers"
)

func TestLoad_CopiesDataset(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	g, err := generators.New("loan_risk", map[string]any{"num_companies": 20}, nil)
	require.NoError(t, err)
	ds, err := g.Generate(ctx, randstream.New(3))
	require.NoError(t, err)

	s, err := New(ctx, config.SinkConfig{
		Type:        Type,
		Host:        testDB.Host,
		Port:        testDB.Port,
		User:        "ekaya",
		Password:    "test_password",
		Database:    "ekaya_datagen_test",
		SSLMode:     "disable",
		Schema:      "synthetic",
		TablePrefix: "lr_",
	}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	n, err := s.Load(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, int64(ds.RowCount()), n)

	for name, want := range ds.Counts() {
		var got int
		err := testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM synthetic."lr_`+name+`"`).Scan(&got)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
