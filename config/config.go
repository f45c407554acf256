// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads the YAML configuration used by the hybridrank
// command line tools and turns it into library configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/hybridrank/ai"
	"github.com/poiesic/hybridrank/fusion"
	"github.com/poiesic/hybridrank/query"
)

// FileName is the config file looked up in the working directory.
const FileName = "hybridrank.yaml"

// Environment variables that override file values.
const (
	EnvDBPath         = "HYBRIDRANK_DB_PATH"
	EnvEmbeddingHost  = "HYBRIDRANK_EMBEDDING_HOST"
	EnvEmbeddingModel = "HYBRIDRANK_EMBEDDING_MODEL"
	EnvDimension      = "HYBRIDRANK_EMBEDDING_DIMENSION"
	EnvLogLevel       = "HYBRIDRANK_LOG_LEVEL"
)

// StorageConfig locates the index.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	APITokenEnv       string  `yaml:"api_token_env"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheSize         int     `yaml:"cache_size"`
}

// WeightsConfig holds one weight per retrieval signal.
type WeightsConfig struct {
	Lexical      float64 `yaml:"lexical"`
	TitleVector  float64 `yaml:"title_vector"`
	ChunkVector  float64 `yaml:"chunk_vector"`
	ChunkLexical float64 `yaml:"chunk_lexical"`
}

// FusionConfig configures score fusion.
type FusionConfig struct {
	Weights           WeightsConfig `yaml:"weights"`
	Combination       string        `yaml:"combination"`
	DecayScaleDays    float64       `yaml:"decay_scale_days"`
	BoostScale        float64       `yaml:"boost_scale"`
	ParallelThreshold int           `yaml:"parallel_threshold"`
}

// SearchConfig configures query execution.
type SearchConfig struct {
	TopK                int     `yaml:"top_k"`
	TimeoutSecs         int     `yaml:"timeout_secs"`
	TitleBoost          float64 `yaml:"title_boost"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
	MinCandidates       int     `yaml:"min_candidates"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	PoolSize       int `yaml:"pool_size"`
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	LogLevel  string          `yaml:"log_level"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Fusion    FusionConfig    `yaml:"fusion"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	f := fusion.DefaultConfig()
	a := ai.DefaultConfig()
	return &AppConfig{
		LogLevel: "info",
		Storage:  StorageConfig{Path: "./hybridrank.db"},
		Embedding: EmbeddingConfig{
			Host:        a.EmbeddingHost,
			Model:       a.EmbeddingModel,
			APITokenEnv: "HYBRIDRANK_API_TOKEN",
			Dimension:   a.Dimension,
			BatchSize:   a.BatchSize,
			CacheSize:   a.CacheSize,
		},
		Fusion: FusionConfig{
			Weights: WeightsConfig{
				Lexical:      f.Weights.Lexical,
				TitleVector:  f.Weights.TitleVector,
				ChunkVector:  f.Weights.ChunkVector,
				ChunkLexical: f.Weights.ChunkLexical,
			},
			Combination:       f.Combination.String(),
			DecayScaleDays:    f.Decay.Scale.Hours() / 24,
			BoostScale:        f.Boost.Scale,
			ParallelThreshold: f.ParallelThreshold,
		},
		Search: SearchConfig{
			TopK:                10,
			TimeoutSecs:         10,
			TitleBoost:          query.DefaultTitleBoost,
			CandidateMultiplier: 1,
			MinCandidates:       query.DefaultMinCandidates,
		},
	}
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored. With no arguments it loads ./.env.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Environment overrides are applied either way.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./hybridrank.yaml first, then
// ~/.config/hybridrank/config.yaml. If neither exists, it writes defaults to
// the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	if _, err := os.Stat(FileName); err == nil {
		cfg, err := Load(FileName)
		return cfg, FileName, err
	}
	userPath, err := DefaultUserPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultUserPath returns ~/.config/hybridrank/config.yaml.
func DefaultUserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hybridrank", "config.yaml"), nil
}

// AIConfig converts the embedding section, reading the API token from the
// configured environment variable.
func (c *AppConfig) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithDimension(c.Embedding.Dimension),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithRequestsPerSecond(c.Embedding.RequestsPerSecond),
		ai.WithCacheSize(c.Embedding.CacheSize),
	}
	if c.Embedding.APITokenEnv != "" {
		if token := os.Getenv(c.Embedding.APITokenEnv); token != "" {
			opts = append(opts, ai.WithAPIToken(token))
		}
	}
	return ai.NewConfig(opts...)
}

// FusionConfig converts the fusion section and validates the result.
func (c *AppConfig) FusionConfig() (fusion.Config, error) {
	cfg := fusion.DefaultConfig()
	combination, err := fusion.ParseCombination(c.Fusion.Combination)
	if err != nil {
		return cfg, err
	}
	cfg.Combination = combination
	cfg.Weights = fusion.Weights{
		Lexical:      c.Fusion.Weights.Lexical,
		TitleVector:  c.Fusion.Weights.TitleVector,
		ChunkVector:  c.Fusion.Weights.ChunkVector,
		ChunkLexical: c.Fusion.Weights.ChunkLexical,
	}
	cfg.Decay.Scale = time.Duration(c.Fusion.DecayScaleDays * float64(24*time.Hour))
	cfg.Boost.Scale = c.Fusion.BoostScale
	cfg.ParallelThreshold = c.Fusion.ParallelThreshold
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// QueryTimeout returns the search timeout.
func (c *AppConfig) QueryTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSecs) * time.Second
}

func applyDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Storage.Path == "" && !cfg.Storage.InMemory {
		cfg.Storage.Path = def.Storage.Path
	}
	if cfg.Embedding.Host == "" {
		cfg.Embedding.Host = def.Embedding.Host
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = def.Embedding.Dimension
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Fusion.Combination == "" {
		cfg.Fusion.Combination = def.Fusion.Combination
	}
	if cfg.Fusion.DecayScaleDays == 0 {
		cfg.Fusion.DecayScaleDays = def.Fusion.DecayScaleDays
	}
	if cfg.Fusion.BoostScale == 0 {
		cfg.Fusion.BoostScale = def.Fusion.BoostScale
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = def.Search.TimeoutSecs
	}
	if cfg.Search.TitleBoost == 0 {
		cfg.Search.TitleBoost = def.Search.TitleBoost
	}
	if cfg.Search.CandidateMultiplier == 0 {
		cfg.Search.CandidateMultiplier = def.Search.CandidateMultiplier
	}
	if cfg.Search.MinCandidates == 0 {
		cfg.Search.MinCandidates = def.Search.MinCandidates
	}
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvEmbeddingHost); v != "" {
		cfg.Embedding.Host = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv(EnvDimension); v != "" {
		dim, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDimension, err)
		}
		cfg.Embedding.Dimension = dim
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}
