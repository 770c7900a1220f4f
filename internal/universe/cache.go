package universe

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"quantmind/internal/strategy"
)

type cacheKey struct {
	symbol string
	model  strategy.ModelID
}

func (k cacheKey) String() string { return k.symbol + "\x00" + string(k.model) }

// ScoreCache memoizes score series per (instrument, model) for the lifetime
// of a snapshot. Each key is computed at most once, even under concurrent
// access. Returned slices are shared and must not be modified.
type ScoreCache struct {
	registry *strategy.Registry
	snap     *Snapshot

	mu     sync.RWMutex
	scores map[cacheKey][]float64
	group  singleflight.Group

	computations atomic.Int64
}

// NewScoreCache creates an empty cache over snap using models from registry.
func NewScoreCache(registry *strategy.Registry, snap *Snapshot) *ScoreCache {
	return &ScoreCache{
		registry: registry,
		snap:     snap,
		scores:   make(map[cacheKey][]float64),
	}
}

// Snapshot returns the snapshot the cache scores.
func (c *ScoreCache) Snapshot() *Snapshot { return c.snap }

// Registry returns the model registry the cache scores with.
func (c *ScoreCache) Registry() *strategy.Registry { return c.registry }

// Scores returns the score series of inst under model id, computing it on
// first access.
func (c *ScoreCache) Scores(inst *Instrument, id strategy.ModelID) ([]float64, error) {
	key := cacheKey{symbol: inst.Symbol, model: id}

	c.mu.RLock()
	s, ok := c.scores[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		s, ok := c.scores[key]
		c.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := c.registry.Score(id, inst.Inputs)
		if err != nil {
			return nil, err
		}
		c.computations.Add(1)

		c.mu.Lock()
		c.scores[key] = s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", inst.Symbol, err)
	}
	scores, ok := v.([]float64)
	if !ok {
		return nil, fmt.Errorf("scoring %s: unexpected cache value %T", inst.Symbol, v)
	}
	return scores, nil
}

// Model returns the score series of every instrument under id, indexed by
// Instrument.Index.
func (c *ScoreCache) Model(id strategy.ModelID) ([][]float64, error) {
	out := make([][]float64, c.snap.Len())
	for _, inst := range c.snap.Instruments() {
		s, err := c.Scores(inst, id)
		if err != nil {
			return nil, err
		}
		out[inst.Index] = s
	}
	return out, nil
}

// Warm computes every (instrument, model) pair for ids in parallel using at
// most workers goroutines (GOMAXPROCS when workers <= 0).
func (c *ScoreCache) Warm(ctx context.Context, ids []strategy.ModelID, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, inst := range c.snap.Instruments() {
		for _, id := range ids {
			inst, id := inst, id
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, err := c.Scores(inst, id)
				return err
			})
		}
	}
	return g.Wait()
}

// Computations returns how many score series have been computed.
func (c *ScoreCache) Computations() int64 { return c.computations.Load() }
