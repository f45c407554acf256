package fusion

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/hybridrank/core"
)

// Engine fuses raw sub-query scores into a single ranking.
type Engine struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithClock sets the time source used by the decay modifier.
// Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			now = time.Now
		}
		e.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a fusion engine with the given configuration.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

type signalValue struct {
	value float64
	chunk int
}

// aggregate is one document's state as it moves through the stages.
type aggregate struct {
	candidate *core.Candidate
	raw       map[core.SignalName]signalValue
	chunks    map[int]map[core.SignalName]float64
	result    *core.FusedResult
}

// Fuse runs the four fusion stages over the candidate set and returns the
// ranked results. Documents with no valid score are not returned.
func (e *Engine) Fuse(ctx context.Context, candidates []*core.Candidate) ([]*core.FusedResult, error) {
	aggs := e.collect(candidates)
	if len(aggs) == 0 {
		return []*core.FusedResult{}, nil
	}

	// Stage 1
	if err := e.forEach(ctx, aggs, aggregateSignals); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2 needs every document's Stage 1 result.
	normalize(aggs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stages 3 and 4
	now := e.now()
	err := e.forEach(ctx, aggs, func(a *aggregate) {
		e.combine(a)
		e.modify(a, now)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*core.FusedResult, len(aggs))
	for i, a := range aggs {
		results[i] = a.result
	}
	Sort(results)

	e.logger.Debug("fused candidates", "candidates", len(candidates), "results", len(results))
	return results, nil
}

// collect merges candidates by document id and drops malformed scores.
func (e *Engine) collect(candidates []*core.Candidate) []*aggregate {
	byID := make(map[string]*aggregate, len(candidates))
	var aggs []*aggregate
	dropped := 0

	for _, c := range candidates {
		if c == nil || c.DocumentID == "" {
			if c != nil {
				dropped += len(c.Scores)
			}
			continue
		}
		a, ok := byID[c.DocumentID]
		if !ok {
			a = &aggregate{
				candidate: &core.Candidate{
					DocumentID:  c.DocumentID,
					BoostCount:  c.BoostCount,
					LastUpdated: c.LastUpdated,
				},
			}
			byID[c.DocumentID] = a
			aggs = append(aggs, a)
		}
		for _, s := range c.Scores {
			if reason := malformed(c.DocumentID, s); reason != "" {
				dropped++
				e.logger.Warn("dropping malformed score",
					"document", c.DocumentID, "signal", s.Signal, "chunk", s.ChunkIndex,
					"score", s.RawScore, "reason", reason)
				continue
			}
			a.candidate.Scores = append(a.candidate.Scores, s)
		}
	}

	if dropped > 0 {
		e.logger.Debug("dropped malformed scores", "count", dropped)
	}
	return slices.DeleteFunc(aggs, func(a *aggregate) bool {
		return len(a.candidate.Scores) == 0
	})
}

func malformed(documentID string, s core.SubQueryScore) string {
	switch {
	case math.IsNaN(s.RawScore) || math.IsInf(s.RawScore, 0):
		return "non-finite score"
	case !s.Signal.Valid():
		return "unknown signal"
	case s.Signal.ChunkScoped() && s.ChunkIndex < 0:
		return "missing chunk index"
	case s.DocumentID != "" && s.DocumentID != documentID:
		return "document id mismatch"
	}
	return ""
}

// aggregateSignals reduces chunk-scoped signals with MAX and remembers the
// winning chunk. Ties keep the lowest chunk index.
func aggregateSignals(a *aggregate) {
	a.raw = make(map[core.SignalName]signalValue, len(core.Signals))
	a.chunks = make(map[int]map[core.SignalName]float64)

	for _, s := range a.candidate.Scores {
		chunk := core.NoChunk
		if s.Signal.ChunkScoped() {
			chunk = s.ChunkIndex
			scores, ok := a.chunks[chunk]
			if !ok {
				scores = make(map[core.SignalName]float64, 2)
				a.chunks[chunk] = scores
			}
			if prev, ok := scores[s.Signal]; !ok || s.RawScore > prev {
				scores[s.Signal] = s.RawScore
			}
		}

		prev, ok := a.raw[s.Signal]
		if !ok || s.RawScore > prev.value || (s.RawScore == prev.value && chunk < prev.chunk) {
			a.raw[s.Signal] = signalValue{value: s.RawScore, chunk: chunk}
		}
	}
}

// normalize applies min-max per signal across every document that carries
// the signal.
func normalize(aggs []*aggregate) {
	for _, a := range aggs {
		a.result = &core.FusedResult{
			DocumentID: a.candidate.DocumentID,
			Signals:    make(map[core.SignalName]float64, len(a.raw)),
		}
	}

	for _, signal := range core.Signals {
		lo, hi := math.Inf(1), math.Inf(-1)
		seen := false
		for _, a := range aggs {
			if v, ok := a.raw[signal]; ok {
				lo = min(lo, v.value)
				hi = max(hi, v.value)
				seen = true
			}
		}
		if !seen {
			continue
		}
		for _, a := range aggs {
			if v, ok := a.raw[signal]; ok {
				a.result.Signals[signal] = MinMax(v.value, lo, hi)
			}
		}
	}
}

func (e *Engine) combine(a *aggregate) {
	w := e.cfg.Weights
	var fused float64
	for _, signal := range core.Signals {
		fused += w.For(signal) * a.result.Signals[signal]
	}
	if e.cfg.Combination == ArithmeticMean {
		fused /= w.Sum()
	}
	a.result.FusedScore = fused

	if len(a.chunks) == 0 {
		return
	}
	a.result.MatchedChunks = make([]core.ChunkMatch, 0, len(a.chunks))
	for idx, scores := range a.chunks {
		m := core.ChunkMatch{ChunkIndex: idx, Scores: scores}
		for _, signal := range core.Signals {
			if v, ok := a.raw[signal]; ok && signal.ChunkScoped() && v.chunk == idx {
				m.Contributing = append(m.Contributing, signal)
			}
		}
		a.result.MatchedChunks = append(a.result.MatchedChunks, m)
	}
	slices.SortFunc(a.result.MatchedChunks, func(x, y core.ChunkMatch) int {
		return x.ChunkIndex - y.ChunkIndex
	})
}

func (e *Engine) modify(a *aggregate, now time.Time) {
	r := a.result
	r.DecayModifier = DecayModifier(e.cfg.Decay, a.candidate.LastUpdated, now)
	r.BoostModifier = BoostModifier(a.candidate.BoostCount, e.cfg.Boost.Scale)
	r.FinalScore = r.FusedScore * r.DecayModifier * r.BoostModifier
}

// forEach applies fn to every aggregate, fanning out across goroutines once
// the set reaches the configured threshold. Each goroutine owns a disjoint
// slice of aggregates.
func (e *Engine) forEach(ctx context.Context, aggs []*aggregate, fn func(*aggregate)) error {
	if e.cfg.ParallelThreshold == 0 || len(aggs) < e.cfg.ParallelThreshold {
		for _, a := range aggs {
			fn(a)
		}
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	size := (len(aggs) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(aggs); start += size {
		part := aggs[start:min(start+size, len(aggs))]
		g.Go(func() error {
			for _, a := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				fn(a)
			}
			return nil
		})
	}
	return g.Wait()
}
