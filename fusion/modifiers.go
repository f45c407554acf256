package fusion

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/poiesic/hybridrank/core"
)

// MinMax rescales v from [lo, hi] onto [0, 1]. A degenerate range maps
// every value to 0.
func MinMax(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// DecayModifier returns the recency multiplier for a document last updated
// at lastUpdated. Distance is symmetric, so future dates decay the same way
// past ones do.
func DecayModifier(cfg DecayConfig, lastUpdated *time.Time, now time.Time) float64 {
	if lastUpdated == nil {
		return cfg.MissingWeight + cfg.Floor
	}
	age := now.Sub(*lastUpdated)
	if age < 0 {
		age = -age
	}
	x := float64(age) / float64(cfg.Scale)
	return cfg.Weight*math.Pow(cfg.DecayAtScale, x*x) + cfg.Floor
}

// BoostModifier maps a feedback count onto (0.5, 2). Zero maps to exactly 1.
func BoostModifier(boost int, scale float64) float64 {
	b := float64(boost)
	sigmoid := 1 / (1 + math.Exp(-b/scale))
	if boost >= 0 {
		return 2 * sigmoid
	}
	return 0.5 + sigmoid
}

// Sort orders results by final score descending, breaking ties by document
// id ascending.
func Sort(results []*core.FusedResult) {
	slices.SortFunc(results, func(a, b *core.FusedResult) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
}
