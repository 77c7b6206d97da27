package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink/all"
	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/all"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBuildRequests(t *testing.T) {
	overrides := params.Overrides{
		"marketing": {"num_campaigns": 5},
		"tax_data":  {"num_filings": 100},
	}

	requests, err := buildRequests([]string{"marketing", " credit_card "}, overrides)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "marketing", requests[0].Generator)
	assert.Equal(t, map[string]any{"num_campaigns": 5}, requests[0].Overrides)
	assert.Equal(t, "credit_card", requests[1].Generator)
	assert.Nil(t, requests[1].Overrides)

	_, err = buildRequests([]string{"marketing", "marketing"}, nil)
	assert.ErrorContains(t, err, "requested twice")

	_, err = buildRequests([]string{" "}, nil)
	assert.ErrorContains(t, err, "no generators")
}

func TestBuildCatalogue(t *testing.T) {
	c, err := buildCatalogue(nil, true)
	require.NoError(t, err)

	var keys []string
	for _, e := range c.Generators {
		keys = append(keys, e.Key)
		assert.NotEmpty(t, e.DisplayName, e.Key)
		assert.NotEmpty(t, e.Parameters, e.Key)
	}
	assert.Equal(t, []string{"credit_card", "financial_statements", "loan_risk", "marketing", "tax_data", "tech_metrics"}, keys)
	assert.Len(t, c.Sinks, 4)

	_, err = buildCatalogue([]string{"weather"}, false)
	assert.ErrorIs(t, err, apperrors.ErrUnknownGenerator)
}

func TestListCommand_PrintsYAML(t *testing.T) {
	out, err := execute(t, "list", "loan_risk")
	require.NoError(t, err)

	var c struct {
		Generators []struct {
			Key        string        `yaml:"key"`
			Parameters []params.Spec `yaml:"parameters"`
		} `yaml:"generators"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &c))
	require.Len(t, c.Generators, 1)
	assert.Equal(t, "loan_risk", c.Generators[0].Key)

	var names []string
	for _, p := range c.Generators[0].Parameters {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "num_companies")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ekaya-datagen dev")
}

func TestGenerateCommand_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	paramsFile := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsFile, []byte("loan_risk:\n  num_companies: 10\n"), 0o644))

	out, err := execute(t, "generate", "loan_risk",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--out", filepath.Join(dir, "out"),
		"--format", "csv,zip",
		"--params", paramsFile,
		"--seed", "7",
		"--sink", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "loan_risk")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "  7  ")
	assert.Contains(t, out, "tasks: 2 total, 2 completed, 0 failed, 0 cancelled")

	zips, err := filepath.Glob(filepath.Join(dir, "out", "loan_risk_data_*.zip"))
	require.NoError(t, err)
	assert.Len(t, zips, 1)

	csvs, err := filepath.Glob(filepath.Join(dir, "out", "loan_risk", "*.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, csvs)
}

func TestGenerateCommand_RejectsBadParameters(t *testing.T) {
	dir := t.TempDir()
	paramsFile := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(paramsFile, []byte("loan_risk:\n  num_companies: 1\n"), 0o644))

	_, err := execute(t, "generate", "loan_risk",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--out", filepath.Join(dir, "out"),
		"--params", paramsFile)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, statErr := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateCommand_InvalidFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "generate", "loan_risk",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--format", "parquet")
	assert.ErrorContains(t, err, "parquet")
}
