package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `server:
  port: 9191
catalog:
  path: /data/catalog.json
  index: chromem
reranker:
  weights:
    training: 0.6
    lexical: 0.1
    type: 0.1
    duration: 0.1
    embedding: 0.1
embeddings:
  provider: tei
  base_url: http://localhost:8080
  timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/data/catalog.json", cfg.Catalog.Path)
	assert.Equal(t, "chromem", cfg.Catalog.Index)
	assert.Equal(t, 0.6, cfg.Reranker.Weights.Training)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, 3*time.Second, cfg.Embeddings.Timeout)

	// untouched sections fall back to defaults
	assert.Equal(t, 50, cfg.Retrieval.Fanout)
	assert.Equal(t, 100, cfg.Retrieval.MaxFanout)
	assert.Equal(t, 2000, cfg.Fetch.MaxChars)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9191\n")

	t.Setenv("ASSESSD_SERVER_PORT", "7070")
	t.Setenv("ASSESSD_EMBEDDINGS_API_KEY", "sk-test")
	t.Setenv("ASSESSD_RERANKER_DIVERSITY_MARGIN", "0.2")
	t.Setenv("ASSESSD_RERANKER_WEIGHTS_TRAINING", "0.9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, 0.2, cfg.Reranker.DiversityMargin)
	assert.Equal(t, 0.9, cfg.Reranker.Weights.Training)
}

func TestLoad_ExplicitZeroOverridesDefault(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "diversity margin in file",
			yaml: "reranker:\n  diversity_margin: 0\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Reranker.DiversityMargin)
				assert.Equal(t, 0.5, cfg.Reranker.PartialCredit)
			},
		},
		{
			name: "partial credit and tolerance in file",
			yaml: "reranker:\n  partial_credit: 0\n  duration_tolerance: 0\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Reranker.PartialCredit)
				assert.Zero(t, cfg.Reranker.DurationTolerance)
				assert.Equal(t, 0.15, cfg.Reranker.DiversityMargin)
			},
		},
		{
			name: "diversity margin from env",
			yaml: "server:\n  port: 9191\n",
			env:  map[string]string{"ASSESSD_RERANKER_DIVERSITY_MARGIN": "0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Reranker.DiversityMargin)
			},
		},
		{
			name: "single weight keeps the other defaults",
			yaml: "reranker:\n  weights:\n    embedding: 0\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Reranker.Weights.Embedding)
				assert.Equal(t, 0.55, cfg.Reranker.Weights.Training)
				assert.Equal(t, 0.18, cfg.Reranker.Weights.Lexical)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(writeConfig(t, tt.yaml))
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_DefaultPathMissingIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "flat", cfg.Catalog.Index)
}

func TestLoad_RejectsWorldWritable(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9191\n")
	require.NoError(t, os.Chmod(path, 0666))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `reranker:
  weights:
    training: 0.1
    lexical: 0.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training must be strictly the largest")
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ASSESSD_SERVER_PORT", "server.port"},
		{"ASSESSD_EMBEDDINGS_API_KEY", "embeddings.api_key"},
		{"ASSESSD_RERANKER_DIVERSITY_MARGIN", "reranker.diversity_margin"},
		{"ASSESSD_RERANKER_WEIGHTS_EMBEDDING", "reranker.weights.embedding"},
		{"ASSESSD_CATALOG_PATH", "catalog.path"},
		{"ASSESSD_CATALOG_QDRANT_API_KEY", "catalog.qdrant.api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}
