package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/causalmr/pkg/logging"
	"github.com/rmax-ai/causalmr/pkg/oracle"
	"github.com/rmax-ai/causalmr/pkg/sampler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "causalmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, oracle.DefaultTests, cfg.Tests)
	assert.Equal(t, sampler.DefaultRange, cfg.Range)
	assert.Equal(t, oracle.FailFast, cfg.ExecutionMode())
	assert.Equal(t, filepath.Join(cwd, "out"), cfg.OutDir)
	assert.Equal(t, filepath.Join(cwd, "out", "causalmr.db"), cfg.DBPath)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, cfg.Levels)
	assert.Equal(t, "program.py", cfg.Mutation.Options().ModulePath)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
seed: 7
generator:
  nodes: 6
  p_edge: 0.5
  p_conditional: 0.2
tests: 20
range: {min: -3, max: 3}
mode: tolerant
dags: 5
out_dir: /tmp/causalmr-out
log:
  level: debug
  format: json
`)
	t.Setenv("CAUSALMR_SEED", "99")
	t.Setenv("CAUSALMR_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 6, cfg.Generator.Nodes)
	assert.Equal(t, 0.2, cfg.Generator.PConditional)
	assert.Equal(t, 20, cfg.OracleOptions(1).Tests)
	assert.Equal(t, sampler.Range{Min: -3, Max: 3}, cfg.Range)
	assert.Equal(t, oracle.Tolerant, cfg.ExecutionMode())
	assert.Equal(t, 5, cfg.DAGs)
	assert.Equal(t, "/tmp/causalmr-out/causalmr.db", cfg.DBPath)

	lc := cfg.Log.Logging("cli")
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.True(t, lc.JSON)
	assert.Equal(t, "cli", lc.Component)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		envVars     map[string]string
		errorSubstr string
	}{
		{
			name:        "zero nodes",
			body:        "generator: {nodes: 0, p_edge: 0.5}\n",
			errorSubstr: "Nodes",
		},
		{
			name:        "edge probability above one",
			body:        "generator: {nodes: 4, p_edge: 1.5}\n",
			errorSubstr: "PEdge",
		},
		{
			name:        "inverted range",
			body:        "range: {min: 5, max: -5}\n",
			errorSubstr: "Max",
		},
		{
			name:        "unknown mode",
			body:        "mode: lenient\n",
			errorSubstr: "oraclemode",
		},
		{
			name:        "bad level",
			body:        "misspecification_levels: [0.5, 0]\n",
			errorSubstr: "Levels",
		},
		{
			name:        "no tests",
			envVars:     map[string]string{"CAUSALMR_TESTS": "0"},
			errorSubstr: "Tests",
		},
		{
			name:        "unparsable seed",
			envVars:     map[string]string{"CAUSALMR_SEED": "abc"},
			errorSubstr: "invalid CAUSALMR_SEED",
		},
		{
			name:        "bad log format",
			envVars:     map[string]string{"CAUSALMR_LOG_FORMAT": "xml"},
			errorSubstr: "Format",
		},
		{
			name:        "malformed yaml",
			body:        "generator: [\n",
			errorSubstr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorSubstr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
