// Package sweep re-runs the backtester across models and thresholds over a
// shared snapshot and score cache. Runs are independent and execute on a
// bounded worker pool; results are always reported in a deterministic order.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"quantmind/internal/backtest"
	"quantmind/internal/strategy"
	"quantmind/internal/universe"
)

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantmind_sweep_runs_total",
		Help: "Total simulation runs executed by the optimizer, by mode and result",
	}, []string{"mode", "result"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantmind_sweep_run_duration_seconds",
		Help:    "Duration of a single simulation run in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"mode"})
)

const (
	modeLeaderboard = "leaderboard"
	modeSweep       = "sweep"
)

// Threshold grids.
const (
	OptimizeMin  = 10
	OptimizeMax  = 90
	OptimizeStep = 5

	SweepMin = 1
	SweepMax = 99
)

// ---------------------------------------------------------------------------
// Optimizer
// ---------------------------------------------------------------------------

// Update describes a finished run.
type Update struct {
	Done      int
	Total     int
	Model     strategy.ModelID
	Threshold float64
}

// Progress is invoked after every run. Calls are serialized.
type Progress func(Update)

// Optimizer runs leaderboards and threshold sweeps.
type Optimizer struct {
	cache    *universe.ScoreCache
	bt       *backtest.Backtester
	cfg      backtest.Config
	workers  int
	progress Progress
	logger   *slog.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithWorkers bounds the number of concurrent runs. n <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *Optimizer) { o.workers = n }
}

// WithProgress installs a progress callback.
func WithProgress(p Progress) Option {
	return func(o *Optimizer) { o.progress = p }
}

// WithLogger sets the logger. A nil logger falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// New creates an Optimizer that simulates with cfg over cache's snapshot.
func New(cache *universe.ScoreCache, cfg backtest.Config, opts ...Option) *Optimizer {
	o := &Optimizer{
		cache: cache,
		bt:    backtest.NewBacktester(cache),
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// job is one simulation in a batch.
type job struct {
	model     strategy.ModelID
	threshold float64
}

// runAll executes jobs on the worker pool and returns results indexed like
// jobs. Scores for every model involved are computed before fan-out.
func (o *Optimizer) runAll(ctx context.Context, mode string, jobs []job) ([]*backtest.Result, error) {
	var models []strategy.ModelID
	seen := make(map[strategy.ModelID]bool)
	for _, j := range jobs {
		if !seen[j.model] {
			seen[j.model] = true
			models = append(models, j.model)
		}
	}
	if err := o.cache.Warm(ctx, models, o.workers); err != nil {
		return nil, fmt.Errorf("warming score cache: %w", err)
	}

	results := make([]*backtest.Result, len(jobs))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			start := time.Now()
			res, err := o.bt.Run(gctx, backtest.Params{Model: j.model, Threshold: j.threshold, Config: o.cfg})
			runDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
			if err != nil {
				runsTotal.WithLabelValues(mode, "error").Inc()
				return fmt.Errorf("%s at threshold %v: %w", j.model, j.threshold, err)
			}
			runsTotal.WithLabelValues(mode, "ok").Inc()
			results[i] = res

			mu.Lock()
			done++
			if o.progress != nil {
				o.progress(Update{Done: done, Total: len(jobs), Model: j.model, Threshold: j.threshold})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Leaderboard
// ---------------------------------------------------------------------------

// LeaderboardOptions selects the models and thresholds of a leaderboard.
type LeaderboardOptions struct {
	// Models to rank, in order. Empty means every registered model.
	Models []strategy.ModelID
	// Thresholds overrides a model's default threshold.
	Thresholds map[strategy.ModelID]float64
	// Optimize searches OptimizeMin..OptimizeMax in OptimizeStep steps for
	// the threshold with the highest total return instead of using the
	// configured one.
	Optimize bool
}

// Entry is one leaderboard row.
type Entry struct {
	Rank        int              `json:"rank"`
	Model       strategy.ModelID `json:"model"`
	DisplayName string           `json:"displayName"`
	Threshold   float64          `json:"threshold"`
	Result      *backtest.Result `json:"result"`
}

// Leaderboard runs every selected model once (or once per grid threshold
// when optimizing) and ranks them by total return, highest first. Equal
// returns keep model order.
func (o *Optimizer) Leaderboard(ctx context.Context, opts LeaderboardOptions) ([]Entry, error) {
	reg := o.cache.Registry()
	models := opts.Models
	if len(models) == 0 {
		models = reg.List()
	}

	descs := make([]strategy.Descriptor, len(models))
	var jobs []job
	for i, id := range models {
		m, ok := reg.Get(id)
		if !ok {
			return nil, fmt.Errorf("leaderboard: %q: %w", id, strategy.ErrUnknownModel)
		}
		descs[i] = m.Descriptor
		if opts.Optimize {
			for t := OptimizeMin; t <= OptimizeMax; t += OptimizeStep {
				jobs = append(jobs, job{model: id, threshold: float64(t)})
			}
			continue
		}
		threshold := m.DefaultThreshold
		if v, ok := opts.Thresholds[id]; ok {
			threshold = v
		}
		jobs = append(jobs, job{model: id, threshold: threshold})
	}

	start := time.Now()
	results, err := o.runAll(ctx, modeLeaderboard, jobs)
	if err != nil {
		return nil, err
	}

	perModel := 1
	if opts.Optimize {
		perModel = (OptimizeMax-OptimizeMin)/OptimizeStep + 1
	}
	entries := make([]Entry, len(models))
	for i, d := range descs {
		best := bestOf(results[i*perModel : (i+1)*perModel])
		entries[i] = Entry{
			Model:       d.ID,
			DisplayName: d.DisplayName,
			Threshold:   best.Threshold,
			Result:      best,
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Result.TotalReturnPercent > entries[b].Result.TotalReturnPercent
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	o.logger.Info("leaderboard complete",
		"models", len(models),
		"runs", len(jobs),
		"optimize", opts.Optimize,
		"elapsed", time.Since(start),
	)
	return entries, nil
}

// bestOf returns the first result with the strictly highest total return.
func bestOf(results []*backtest.Result) *backtest.Result {
	best := results[0]
	for _, r := range results[1:] {
		if r.TotalReturnPercent > best.TotalReturnPercent {
			best = r
		}
	}
	return best
}

// ---------------------------------------------------------------------------
// Threshold sweep
// ---------------------------------------------------------------------------

// Point is one threshold of a sensitivity sweep.
type Point struct {
	Threshold     float64 `json:"threshold"`
	ReturnPercent float64 `json:"returnPercent"`
	WinRate       float64 `json:"winRate"`
	Trades        int     `json:"trades"`
}

// ThresholdSweep runs model id at every integer threshold from SweepMin to
// SweepMax and returns one point per threshold in ascending order.
func (o *Optimizer) ThresholdSweep(ctx context.Context, id strategy.ModelID) ([]Point, error) {
	if _, ok := o.cache.Registry().Get(id); !ok {
		return nil, fmt.Errorf("sweep: %q: %w", id, strategy.ErrUnknownModel)
	}
	jobs := make([]job, 0, SweepMax-SweepMin+1)
	for t := SweepMin; t <= SweepMax; t++ {
		jobs = append(jobs, job{model: id, threshold: float64(t)})
	}

	start := time.Now()
	results, err := o.runAll(ctx, modeSweep, jobs)
	if err != nil {
		return nil, err
	}

	points := make([]Point, len(results))
	for i, r := range results {
		points[i] = Point{
			Threshold:     r.Threshold,
			ReturnPercent: r.TotalReturnPercent,
			WinRate:       r.WinRate,
			Trades:        len(r.Trades),
		}
	}
	o.logger.Info("threshold sweep complete", "model", id, "runs", len(jobs), "elapsed", time.Since(start))
	return points, nil
}

// Extremes returns the points with the highest and lowest return. On ties
// best is the earliest point and worst the latest. ok is false when points
// is empty.
func Extremes(points []Point) (best, worst Point, ok bool) {
	if len(points) == 0 {
		return Point{}, Point{}, false
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].ReturnPercent > sorted[b].ReturnPercent })
	return sorted[0], sorted[len(sorted)-1], true
}
