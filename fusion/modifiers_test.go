package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/poiesic/hybridrank/core"
	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	assert.Equal(t, 0.0, MinMax(0.2, 0.2, 0.9))
	assert.Equal(t, 1.0, MinMax(0.9, 0.2, 0.9))
	assert.InDelta(t, 0.5, MinMax(0.55, 0.2, 0.9), 1e-9)
	assert.Equal(t, 0.0, MinMax(0.4, 0.4, 0.4), "degenerate range maps to 0")
	assert.InDelta(t, 0.5, MinMax(0, -1, 1), 1e-9)
}

func TestBoostModifier(t *testing.T) {
	assert.Equal(t, 1.0, BoostModifier(0, 3))

	prev := BoostModifier(-31, 3)
	for b := -30; b <= 30; b++ {
		got := BoostModifier(b, 3)
		assert.Greater(t, got, prev, "boost must increase strictly at %d", b)
		assert.Greater(t, got, 0.5)
		assert.Less(t, got, 2.0)
		prev = got
	}

	assert.InDelta(t, 2.0, BoostModifier(1000, 3), 1e-9)
	assert.InDelta(t, 0.5, BoostModifier(-1000, 3), 1e-9)
	assert.InDelta(t, 2/(1+math.Exp(-1.0)), BoostModifier(3, 3), 1e-12)
	assert.InDelta(t, 0.5+1/(1+math.Exp(1.0)), BoostModifier(-3, 3), 1e-12)
}

func TestDecayModifier(t *testing.T) {
	cfg := DefaultConfig().Decay
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 1.0, DecayModifier(cfg, &now, now), 1e-12)
	assert.InDelta(t, 0.93, DecayModifier(cfg, nil, now), 1e-12)

	yearAgo := now.Add(-365 * 24 * time.Hour)
	assert.InDelta(t, 0.875, DecayModifier(cfg, &yearAgo, now), 1e-12)

	yearAhead := now.Add(365 * 24 * time.Hour)
	assert.InDelta(t, 0.875, DecayModifier(cfg, &yearAhead, now), 1e-12, "future dates decay symmetrically")

	ancient := now.Add(-20 * 365 * 24 * time.Hour)
	assert.InDelta(t, 0.75, DecayModifier(cfg, &ancient, now), 1e-9)

	older := now.Add(-2 * 365 * 24 * time.Hour)
	assert.Less(t, DecayModifier(cfg, &older, now), DecayModifier(cfg, &yearAgo, now))
}

func TestSort(t *testing.T) {
	results := []*core.FusedResult{
		{DocumentID: "b", FinalScore: 0.5},
		{DocumentID: "c", FinalScore: 0.9},
		{DocumentID: "a", FinalScore: 0.5},
		{DocumentID: "d", FinalScore: 0.1},
	}
	Sort(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocumentID
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
}
