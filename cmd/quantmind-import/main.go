// One-shot tool: copy daily bars between the CSV directory and the Parquet
// data directory.
//
// Usage:
//
//	quantmind-import [-csv-dir DIR] [-data-dir DIR] [-symbols AAPL,MSFT] [-export]
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quantmind/internal/config"
	"quantmind/internal/store"
	"quantmind/internal/util"
)

func main() {
	cfgPath := flag.String("config", envOr("QUANTMIND_CONFIG", "config/quantmind.yaml"), "path to YAML config; a missing file means defaults")
	csvDir := flag.String("csv-dir", "", "CSV directory (default: storage.csv_dir)")
	dataDir := flag.String("data-dir", "", "Parquet data directory (default: storage.data_dir)")
	symbols := flag.String("symbols", "", "comma-separated symbols (default: every symbol in the source)")
	export := flag.Bool("export", false, "copy Parquet bars out to CSV instead")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *csvDir != "" {
		cfg.Storage.CSVDir = *csvDir
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if cfg.Storage.CSVDir == "" {
		log.Fatal("no CSV directory: set -csv-dir or storage.csv_dir")
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var src, dst store.BarStore = store.NewCSVStore(cfg.Storage.CSVDir), store.NewParquetStore(cfg.Storage.DataDir)
	if *export {
		src, dst = dst, src
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	n, bars, err := copyBars(ctx, src, dst, splitSymbols(*symbols), logger)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	slog.Info("import complete",
		"csv_dir", cfg.Storage.CSVDir,
		"data_dir", cfg.Storage.DataDir,
		"export", *export,
		"symbols", n,
		"bars", bars,
		"elapsed", time.Since(start),
	)
}

// copyBars copies every bar of the given symbols (all of src's when empty)
// from src to dst and returns the number of symbols and bars written.
func copyBars(ctx context.Context, src, dst store.BarStore, symbols []string, logger *slog.Logger) (int, int, error) {
	if len(symbols) == 0 {
		var err error
		if symbols, err = src.ListSymbols(ctx); err != nil {
			return 0, 0, err
		}
	}
	var wrote, total int
	for _, sym := range symbols {
		bars, err := src.ReadBars(ctx, sym, time.Time{}, time.Time{})
		if err != nil {
			return wrote, total, err
		}
		if len(bars) == 0 {
			logger.Warn("no bars", "symbol", sym)
			continue
		}
		if err := dst.WriteBars(ctx, bars); err != nil {
			return wrote, total, err
		}
		wrote++
		total += len(bars)
		logger.Debug("copied", "symbol", sym, "bars", len(bars))
	}
	return wrote, total, nil
}

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
