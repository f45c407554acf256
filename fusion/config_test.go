package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.4, cfg.Weights.Lexical)
	assert.Equal(t, 0.5, cfg.Weights.TitleVector)
	assert.Equal(t, 1.0, cfg.Weights.ChunkVector)
	assert.Equal(t, 0.0, cfg.Weights.ChunkLexical)
	assert.Equal(t, WeightedSum, cfg.Combination)
	assert.Equal(t, 3.0, cfg.Boost.Scale)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Weights.Lexical = -0.1 }},
		{"all zero weights", func(c *Config) { c.Weights = Weights{} }},
		{"unknown combination", func(c *Config) { c.Combination = Combination(7) }},
		{"zero decay scale", func(c *Config) { c.Decay.Scale = 0 }},
		{"decay at scale of one", func(c *Config) { c.Decay.DecayAtScale = 1 }},
		{"decay at scale of zero", func(c *Config) { c.Decay.DecayAtScale = 0 }},
		{"negative floor", func(c *Config) { c.Decay.Floor = -1 }},
		{"zero boost scale", func(c *Config) { c.Boost.Scale = 0 }},
		{"negative threshold", func(c *Config) { c.ParallelThreshold = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseCombination(t *testing.T) {
	c, err := ParseCombination("arithmetic_mean")
	require.NoError(t, err)
	assert.Equal(t, ArithmeticMean, c)
	assert.Equal(t, "arithmetic_mean", c.String())

	c, err = ParseCombination("")
	require.NoError(t, err)
	assert.Equal(t, WeightedSum, c)

	_, err = ParseCombination("rrf")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
