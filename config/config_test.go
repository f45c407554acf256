package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/hybridrank/fusion"
	"github.com/poiesic/hybridrank/query"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Storage.Path = "/var/lib/hybridrank"
	cfg.Fusion.Combination = "arithmetic_mean"
	cfg.Search.TopK = 25
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  path: /tmp/index
fusion:
  weights:
    lexical: 0.8
    chunk_lexical: 0.2
search:
  top_k: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/index", cfg.Storage.Path)
	assert.Equal(t, 0.8, cfg.Fusion.Weights.Lexical)
	assert.Equal(t, 0.2, cfg.Fusion.Weights.ChunkLexical)
	assert.Equal(t, 0.5, cfg.Fusion.Weights.TitleVector, "unset weights keep their defaults")
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, 10, cfg.Search.TimeoutSecs)
	assert.Equal(t, query.DefaultMinCandidates, cfg.Search.MinCandidates)
	assert.Equal(t, query.DefaultTitleBoost, cfg.Search.TitleBoost)
	assert.Equal(t, "weighted_sum", cfg.Fusion.Combination)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/data/index")
	t.Setenv(EnvEmbeddingHost, "http://embed:8080")
	t.Setenv(EnvEmbeddingModel, "bge-small")
	t.Setenv(EnvDimension, "512")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/data/index", cfg.Storage.Path)
	assert.Equal(t, "http://embed:8080", cfg.Embedding.Host)
	assert.Equal(t, "bge-small", cfg.Embedding.Model)
	assert.Equal(t, 512, cfg.Embedding.Dimension)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv(EnvDimension, "wide")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, EnvDimension)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HYBRIDRANK_TEST_TOKEN=secret\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("HYBRIDRANK_TEST_TOKEN") })

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "secret", os.Getenv("HYBRIDRANK_TEST_TOKEN"))

	cfg := Default()
	cfg.Embedding.APITokenEnv = "HYBRIDRANK_TEST_TOKEN"
	assert.Equal(t, "secret", cfg.AIConfig().APIToken)
}

func TestAIConfig(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Dimension = 768
	cfg.Embedding.RequestsPerSecond = 5
	cfg.Embedding.APITokenEnv = "HYBRIDRANK_UNSET_TOKEN"

	aiCfg := cfg.AIConfig()
	assert.Equal(t, cfg.Embedding.Host, aiCfg.EmbeddingHost)
	assert.Equal(t, 768, aiCfg.Dimension)
	assert.Equal(t, 5.0, aiCfg.RequestsPerSecond)
	assert.Equal(t, "none", aiCfg.APIToken, "falls back to the default token")
	assert.NoError(t, aiCfg.Validate())
}

func TestFusionConfig(t *testing.T) {
	t.Run("defaults round trip", func(t *testing.T) {
		got, err := Default().FusionConfig()
		require.NoError(t, err)
		assert.Equal(t, fusion.DefaultConfig(), got)
	})

	t.Run("custom values", func(t *testing.T) {
		cfg := Default()
		cfg.Fusion.Combination = "arithmetic_mean"
		cfg.Fusion.DecayScaleDays = 30
		cfg.Fusion.Weights.ChunkLexical = 0.3

		got, err := cfg.FusionConfig()
		require.NoError(t, err)
		assert.Equal(t, fusion.ArithmeticMean, got.Combination)
		assert.Equal(t, 30*24*time.Hour, got.Decay.Scale)
		assert.Equal(t, 0.3, got.Weights.ChunkLexical)
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Fusion.Combination = "geometric_mean"
		_, err := cfg.FusionConfig()
		assert.ErrorIs(t, err, fusion.ErrInvalidConfig)

		cfg = Default()
		cfg.Fusion.Weights = WeightsConfig{}
		_, err = cfg.FusionConfig()
		assert.ErrorIs(t, err, fusion.ErrInvalidConfig)
	})
}

func TestQueryTimeout(t *testing.T) {
	cfg := Default()
	cfg.Search.TimeoutSecs = 3
	assert.Equal(t, 3*time.Second, cfg.QueryTimeout())
}
