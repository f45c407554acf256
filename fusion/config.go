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


package fusion

import (
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/hybridrank/core"
)

// Combination selects how normalized signals are merged in Stage 3.
type Combination int

const (
	// WeightedSum adds each normalized signal multiplied by its weight.
	WeightedSum Combination = iota

	// ArithmeticMean divides the weighted sum by the sum of the weights.
	ArithmeticMean
)

func (c Combination) String() string {
	switch c {
	case WeightedSum:
		return "weighted_sum"
	case ArithmeticMean:
		return "arithmetic_mean"
	default:
		return fmt.Sprintf("combination(%d)", int(c))
	}
}

// ParseCombination converts a configuration string into a Combination.
func ParseCombination(s string) (Combination, error) {
	switch s {
	case "", "weighted_sum":
		return WeightedSum, nil
	case "arithmetic_mean":
		return ArithmeticMean, nil
	default:
		return WeightedSum, fmt.Errorf("%w: unknown combination %q", ErrInvalidConfig, s)
	}
}

// Weights holds one non-negative weight per signal. They need not sum to 1.
type Weights struct {
	Lexical      float64
	TitleVector  float64
	ChunkVector  float64
	ChunkLexical float64
}

// For returns the weight of the named signal, 0 for unknown signals.
func (w Weights) For(signal core.SignalName) float64 {
	switch signal {
	case core.SignalLexical:
		return w.Lexical
	case core.SignalTitleVector:
		return w.TitleVector
	case core.SignalChunkVector:
		return w.ChunkVector
	case core.SignalChunkLexical:
		return w.ChunkLexical
	default:
		return 0
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Lexical + w.TitleVector + w.ChunkVector + w.ChunkLexical
}

// DecayConfig shapes the recency modifier:
//
//	Weight * DecayAtScale^((|now - lastUpdated| / Scale)^2) + Floor
//
// Documents with no LastUpdated get MissingWeight + Floor.
type DecayConfig struct {
	Scale         time.Duration
	DecayAtScale  float64
	Weight        float64
	MissingWeight float64
	Floor         float64
}

// BoostConfig shapes the user-feedback modifier.
type BoostConfig struct {
	// Scale divides the boost count inside the sigmoid.
	Scale float64
}

// Config holds fusion engine configuration.
type Config struct {
	Weights     Weights
	Combination Combination
	Decay       DecayConfig
	Boost       BoostConfig

	// ParallelThreshold is the candidate count at which per-document stages
	// fan out across goroutines. Zero disables fan-out.
	ParallelThreshold int
}

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid fusion config")

// DefaultConfig returns the weights and modifier shapes used when nothing
// else is configured.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Lexical:      0.4,
			TitleVector:  0.5,
			ChunkVector:  1.0,
			ChunkLexical: 0,
		},
		Combination: WeightedSum,
		Decay: DecayConfig{
			Scale:         365 * 24 * time.Hour,
			DecayAtScale:  0.5,
			Weight:        0.25,
			MissingWeight: 0.18,
			Floor:         0.75,
		},
		Boost: BoostConfig{
			Scale: 3,
		},
		ParallelThreshold: 512,
	}
}

// Validate checks that the config can produce finite scores.
func (c *Config) Validate() error {
	w := c.Weights
	if w.Lexical < 0 || w.TitleVector < 0 || w.ChunkVector < 0 || w.ChunkLexical < 0 {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
	}
	if w.Sum() == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidConfig)
	}
	if c.Combination != WeightedSum && c.Combination != ArithmeticMean {
		return fmt.Errorf("%w: unknown combination %d", ErrInvalidConfig, int(c.Combination))
	}
	if c.Decay.Scale <= 0 {
		return fmt.Errorf("%w: decay scale must be positive", ErrInvalidConfig)
	}
	if c.Decay.DecayAtScale <= 0 || c.Decay.DecayAtScale >= 1 {
		return fmt.Errorf("%w: decay at scale must be in (0, 1)", ErrInvalidConfig)
	}
	if c.Decay.Weight < 0 || c.Decay.MissingWeight < 0 || c.Decay.Floor < 0 {
		return fmt.Errorf("%w: decay weights must be non-negative", ErrInvalidConfig)
	}
	if c.Boost.Scale <= 0 {
		return fmt.Errorf("%w: boost scale must be positive", ErrInvalidConfig)
	}
	if c.ParallelThreshold < 0 {
		return fmt.Errorf("%w: parallel threshold cannot be negative", ErrInvalidConfig)
	}
	return nil
}
