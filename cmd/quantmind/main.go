// Command quantmind runs backtests, leaderboards, threshold sweeps and
// latest-signal scans over stored daily bars.
//
// Usage:
//
//	quantmind backtest|leaderboard|sweep|scan|runs [flags]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"quantmind/internal/backtest"
	"quantmind/internal/config"
	"quantmind/internal/domain"
	"quantmind/internal/store"
	"quantmind/internal/strategy"
	"quantmind/internal/strategy/builtins"
	"quantmind/internal/sweep"
	"quantmind/internal/universe"
	"quantmind/internal/util"
)

type options struct {
	configPath  string
	source      string
	symbols     []string
	model       strategy.ModelID
	threshold   float64
	optimize    bool
	save        bool
	jsonOut     bool
	limit       int
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts    options
		symbols string
		model   string
	)

	root := &cobra.Command{
		Use:          "quantmind",
		Short:        "Backtest and rank technical scoring models over stored daily bars",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", envOr("QUANTMIND_CONFIG", "config/quantmind.yaml"), "path to YAML config; a missing file means defaults")
	pf.StringVar(&opts.source, "source", "parquet", "bar source: parquet or csv")
	pf.StringVar(&symbols, "symbols", "", "comma-separated symbols (default: every stored symbol)")
	pf.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	mode := func(name string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			opts.symbols = splitSymbols(symbols)
			opts.model = strategy.ModelID(model)
			return execute(cmd.Context(), name, opts)
		}
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate one model over the universe",
		Args:  cobra.NoArgs,
		RunE:  mode("backtest"),
	}
	backtestCmd.Flags().StringVar(&model, "model", string(builtins.Master), "model id")
	backtestCmd.Flags().Float64Var(&opts.threshold, "threshold", -1, "entry threshold (default: configured or model default)")
	backtestCmd.Flags().BoolVar(&opts.save, "save", false, "persist the run to SQLite")

	leaderboardCmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Run every model and rank them by total return",
		Args:  cobra.NoArgs,
		RunE:  mode("leaderboard"),
	}
	leaderboardCmd.Flags().BoolVar(&opts.optimize, "optimize", false, "grid-search each model's threshold")
	leaderboardCmd.Flags().BoolVar(&opts.save, "save", false, "persist the leaderboard to SQLite")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one model at every threshold from 1 to 99",
		Args:  cobra.NoArgs,
		RunE:  mode("sweep"),
	}
	sweepCmd.Flags().StringVar(&model, "model", string(builtins.Master), "model id")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Score the latest point of every instrument with every model",
		Args:  cobra.NoArgs,
		RunE:  mode("scan"),
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored backtest runs",
		Args:  cobra.NoArgs,
		RunE:  mode("runs"),
	}
	runsCmd.Flags().IntVar(&opts.limit, "limit", 20, "number of runs to list")

	root.AddCommand(backtestCmd, leaderboardCmd, sweepCmd, scanCmd, runsCmd)
	return root
}

// execute loads configuration, sets up logging and signal handling, then
// runs one mode.
func execute(parent context.Context, mode string, opts options) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	opts.optimize = opts.optimize || cfg.Sweep.OptimizeThresholds

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, logger)
	}
	return run(ctx, mode, cfg, opts, logger, os.Stdout)
}

func run(ctx context.Context, mode string, cfg *config.Config, opts options, logger *slog.Logger, out io.Writer) error {
	if mode == "runs" {
		return listRuns(ctx, cfg, opts, out)
	}

	simCfg, err := cfg.SimulationConfig()
	if err != nil {
		return err
	}
	cache, err := buildCache(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	reg := cache.Registry()

	switch mode {
	case "backtest":
		m, ok := reg.Get(opts.model)
		if !ok {
			return fmt.Errorf("%q: %w", opts.model, strategy.ErrUnknownModel)
		}
		threshold := cfg.Threshold(m.ID, m.DefaultThreshold)
		if opts.threshold >= 0 {
			threshold = opts.threshold
		}
		res, err := backtest.NewBacktester(cache).Run(ctx, backtest.Params{Model: m.ID, Threshold: threshold, Config: simCfg})
		if err != nil {
			return err
		}
		logger.Info("backtest complete", "model", m.ID, "threshold", threshold,
			"return_pct", res.TotalReturnPercent, "trades", res.TotalTrades)
		if opts.save {
			if err := withSQLite(cfg, func(db *store.SQLiteStore) error {
				id, err := db.SaveRun(ctx, res)
				if err == nil {
					logger.Info("run saved", "run_id", id)
				}
				return err
			}); err != nil {
				return err
			}
		}
		if opts.jsonOut {
			return writeJSON(out, res)
		}
		printBacktest(out, m, res)
		return nil

	case "leaderboard":
		opt := sweep.New(cache, simCfg, sweep.WithWorkers(cfg.Sweep.Workers), sweep.WithLogger(logger),
			sweep.WithProgress(progressLogger(logger)))
		entries, err := opt.Leaderboard(ctx, sweep.LeaderboardOptions{
			Thresholds: cfg.ThresholdOverrides(),
			Optimize:   opts.optimize,
		})
		if err != nil {
			return err
		}
		if opts.save {
			if err := withSQLite(cfg, func(db *store.SQLiteStore) error {
				id, err := db.SaveLeaderboard(ctx, entries)
				if err == nil {
					logger.Info("leaderboard saved", "leaderboard_id", id)
				}
				return err
			}); err != nil {
				return err
			}
		}
		if opts.jsonOut {
			return writeJSON(out, entries)
		}
		printLeaderboard(out, entries)
		return nil

	case "sweep":
		opt := sweep.New(cache, simCfg, sweep.WithWorkers(cfg.Sweep.Workers), sweep.WithLogger(logger),
			sweep.WithProgress(progressLogger(logger)))
		points, err := opt.ThresholdSweep(ctx, opts.model)
		if err != nil {
			return err
		}
		if opts.jsonOut {
			return writeJSON(out, points)
		}
		printSweep(out, opts.model, points)
		return nil

	case "scan":
		return scan(out, cache.Snapshot(), reg, opts.jsonOut)

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// ---------------------------------------------------------------------------
// Setup
// ---------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func buildCache(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) (*universe.ScoreCache, error) {
	var bars store.BarStore
	switch opts.source {
	case "parquet":
		bars = store.NewParquetStore(cfg.Storage.DataDir)
	case "csv":
		if cfg.Storage.CSVDir == "" {
			return nil, errors.New("csv source requires storage.csv_dir")
		}
		bars = store.NewCSVStore(cfg.Storage.CSVDir)
	default:
		return nil, fmt.Errorf("unknown source %q", opts.source)
	}

	uopts := cfg.UniverseOptions()
	series, err := store.LoadSeries(ctx, bars, opts.symbols, uopts.Start, uopts.End)
	if err != nil {
		return nil, err
	}
	snap, err := universe.New(series, uopts)
	if err != nil {
		return nil, err
	}
	logger.Info("universe loaded",
		"source", opts.source,
		"instruments", snap.Len(),
		"dates", len(snap.Dates()),
		"skipped", len(snap.Skipped()),
	)
	if skipped := snap.Skipped(); len(skipped) > 0 {
		logger.Debug("skipped instruments with short history", "symbols", skipped)
	}
	return universe.NewScoreCache(builtins.NewRegistry(), snap), nil
}

func withSQLite(cfg *config.Config, fn func(*store.SQLiteStore) error) error {
	if cfg.Storage.SQLitePath == "" {
		return errors.New("storage.sqlite_path is not configured")
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func progressLogger(logger *slog.Logger) sweep.Progress {
	return func(u sweep.Update) {
		if u.Done == u.Total || u.Done%50 == 0 {
			logger.Info("progress", "done", u.Done, "total", u.Total, "model", u.Model, "threshold", u.Threshold)
		}
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func scan(out io.Writer, snap *universe.Snapshot, reg *strategy.Registry, jsonOut bool) error {
	type row struct {
		Symbol  string            `json:"symbol"`
		Date    string            `json:"date"`
		Signals []strategy.Signal `json:"signals"`
	}
	var rows []row
	for _, inst := range snap.Instruments() {
		signals := strategy.Evaluate(reg, inst.Inputs)
		if signals == nil {
			continue
		}
		rows = append(rows, row{
			Symbol:  inst.Symbol,
			Date:    domain.FormatDate(inst.Dates[inst.Len()-1]),
			Signals: signals,
		})
	}
	if jsonOut {
		return writeJSON(out, rows)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tDATE\tMODEL\tSCORE\tSIGNAL")
	for _, r := range rows {
		for _, s := range r.Signals {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n", r.Symbol, r.Date, s.DisplayName, s.Score, s.Label)
		}
	}
	return tw.Flush()
}

func printBacktest(out io.Writer, m strategy.Model, res *backtest.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Model\t%s (%s)\n", m.DisplayName, m.ID)
	fmt.Fprintf(tw, "Threshold\t%.0f\n", res.Threshold)
	fmt.Fprintf(tw, "Final balance\t%.2f\n", res.FinalBalance)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", res.TotalReturnPercent)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", res.MaxDrawdown)
	fmt.Fprintf(tw, "Win rate\t%.2f%%\n", res.WinRate)
	fmt.Fprintf(tw, "Profit factor\t%.2f\n", res.ProfitFactor)
	fmt.Fprintf(tw, "Sharpe ratio\t%.2f\n", res.SharpeRatio)
	fmt.Fprintf(tw, "Trades\t%d (%d closed)\n", res.TotalTrades, res.ClosedTrades)
	tw.Flush()

	if len(res.Trades) == 0 {
		return
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tENTRY\tPRICE\tQTY\tEXIT\tPRICE\tPNL\tPNL%\tREASON")
	for _, t := range res.Trades {
		exit := "-"
		if t.ExitDate != nil {
			exit = domain.FormatDate(*t.ExitDate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
			t.Symbol, domain.FormatDate(t.EntryDate), t.EntryPrice, t.Qty,
			exit, t.ExitPrice, t.PnL, t.PnLPercent, t.Reason)
	}
	tw.Flush()
}

func printLeaderboard(out io.Writer, entries []sweep.Entry) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tMODEL\tTHRESHOLD\tRETURN%\tWIN%\tPF\tSHARPE\tMAXDD%\tTRADES")
	for _, e := range entries {
		r := e.Result
		fmt.Fprintf(tw, "%d\t%s\t%.0f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			e.Rank, e.DisplayName, e.Threshold, r.TotalReturnPercent, r.WinRate,
			r.ProfitFactor, r.SharpeRatio, r.MaxDrawdown, r.TotalTrades)
	}
	tw.Flush()
}

func printSweep(out io.Writer, id strategy.ModelID, points []sweep.Point) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THRESHOLD\tRETURN%\tWIN%\tTRADES")
	for _, p := range points {
		fmt.Fprintf(tw, "%.0f\t%.2f\t%.2f\t%d\n", p.Threshold, p.ReturnPercent, p.WinRate, p.Trades)
	}
	tw.Flush()
	if best, worst, ok := sweep.Extremes(points); ok {
		fmt.Fprintf(out, "\n%s best threshold %.0f (%.2f%%), worst %.0f (%.2f%%)\n",
			id, best.Threshold, best.ReturnPercent, worst.Threshold, worst.ReturnPercent)
	}
}

func listRuns(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	return withSQLite(cfg, func(db *store.SQLiteStore) error {
		runs, err := db.ListRuns(ctx, opts.limit)
		if err != nil {
			return err
		}
		if opts.jsonOut {
			return writeJSON(out, runs)
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tCREATED\tMODEL\tTHRESHOLD\tRETURN%\tTRADES")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.2f\t%d\n",
				r.ID, r.CreatedAt.Format(time.RFC3339), r.Model, r.Threshold, r.TotalReturnPercent, r.TotalTrades)
		}
		return tw.Flush()
	})
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Flag helpers
// ---------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitSymbols parses a comma-separated list into upper-cased symbols,
// dropping blanks and repeats.
func splitSymbols(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
