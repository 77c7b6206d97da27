package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
)

func testSpecs() []Spec {
	return []Spec{
		Integer("num_cardholders", "Number of cardholders", 100, 5000, 750),
		Number("approval_rate", "Approval rate (%)", 0, 100, 55),
		Date("start_date", "Start date", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)),
		Choice("state_focus", "State focus", []string{"All States", "West Coast"}, "All States"),
		Bool("include_network", "Include network", true),
	}
}

func TestResolve_Defaults(t *testing.T) {
	v, err := Resolve(testSpecs(), nil)
	require.NoError(t, err)

	assert.Equal(t, 750, v.Int("num_cardholders"))
	assert.Equal(t, 55.0, v.Float("approval_rate"))
	assert.Equal(t, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), v.Date("start_date"))
	assert.Equal(t, "All States", v.String("state_focus"))
	assert.True(t, v.Bool("include_network"))
}

func TestResolve_Overrides(t *testing.T) {
	v, err := Resolve(testSpecs(), map[string]any{
		"num_cardholders": "200",
		"approval_rate":   60,
		"start_date":      "2024-01-15",
		"state_focus":     "West Coast",
		"include_network": "false",
	})
	require.NoError(t, err)

	assert.Equal(t, 200, v.Int("num_cardholders"))
	assert.Equal(t, 60.0, v.Float("approval_rate"))
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), v.Date("start_date"))
	assert.Equal(t, "West Coast", v.String("state_focus"))
	assert.False(t, v.Bool("include_network"))
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		param     string
	}{
		{"unknown parameter", map[string]any{"num_days": 10}, "num_days"},
		{"below minimum", map[string]any{"num_cardholders": 99}, "num_cardholders"},
		{"above maximum", map[string]any{"approval_rate": 100.5}, "approval_rate"},
		{"fractional integer", map[string]any{"num_cardholders": 150.5}, "num_cardholders"},
		{"wrong kind", map[string]any{"approval_rate": true}, "approval_rate"},
		{"bad date", map[string]any{"start_date": "05/01/2023"}, "start_date"},
		{"unknown option", map[string]any{"state_focus": "Pacific"}, "state_focus"},
		{"bad bool", map[string]any{"include_network": "maybe"}, "include_network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(testSpecs(), tt.overrides)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)

			var cfgErr *apperrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.param, cfgErr.Param)
		})
	}
}

func TestResolve_MissingRequired(t *testing.T) {
	specs := []Spec{{Name: "seed_label", Kind: KindChoice, Options: []string{"a"}}}
	_, err := Resolve(specs, nil)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
credit_card:
  approval_rate: 60
  start_date: 2024-01-01
marketing:
  channel_focus: Paid
`), 0o600))

	ov, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 60, ov["credit_card"]["approval_rate"])
	assert.Equal(t, "Paid", ov["marketing"]["channel_focus"])

	v, err := Resolve(testSpecs(), map[string]any{
		"approval_rate": ov["credit_card"]["approval_rate"],
		"start_date":    ov["credit_card"]["start_date"],
	})
	require.NoError(t, err)
	assert.Equal(t, 2024, v.Date("start_date").Year())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type sampleConfig struct {
	Count     int       `param:"num_rows" validate:"min=1,max=10"`
	Rate      float64   `param:"rate" validate:"gte=0,lte=1"`
	StartDate time.Time `param:"start_date" validate:"required"`
	EndDate   time.Time `param:"end_date" validate:"required,gtfield=StartDate"`
}

func TestValidateStruct(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := sampleConfig{Count: 5, Rate: 0.5, StartDate: start, EndDate: start.AddDate(0, 1, 0)}
	require.NoError(t, ValidateStruct(valid))

	tests := []struct {
		name   string
		mutate func(c *sampleConfig)
		param  string
	}{
		{"count too large", func(c *sampleConfig) { c.Count = 11 }, "num_rows"},
		{"rate above one", func(c *sampleConfig) { c.Rate = 1.5 }, "rate"},
		{"end before start", func(c *sampleConfig) { c.EndDate = start.AddDate(0, 0, -1) }, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := ValidateStruct(cfg)

			var cfgErr *apperrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.param, cfgErr.Param)
		})
	}
}
