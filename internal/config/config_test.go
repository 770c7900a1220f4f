package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quantmind/internal/backtest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quantmind.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"QUANTMIND_DATA_DIR", "QUANTMIND_CSV_DIR", "QUANTMIND_SQLITE_PATH", "LOG_LEVEL", "QUANTMIND_WORKERS"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/quantmind/data"
  csv_dir: "/tmp/quantmind/csv"
  sqlite_path: "/tmp/quantmind/runs.db"
logging:
  level: "debug"
  format: "text"
backtest:
  initial_capital: 50000
  max_positions: 3
  stop_loss_pct: 4
  target_profit_pct: 12
  commission_pct: 0
  start_date: "2023-01-01"
  end_date: "2023-12-31"
  min_history: 60
models:
  thresholds:
    rsi: 65
    master: 80
sweep:
  workers: 2
  optimize_thresholds: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/quantmind/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/quantmind/data")
	}
	if cfg.Storage.CSVDir != "/tmp/quantmind/csv" {
		t.Errorf("Storage.CSVDir = %q, want %q", cfg.Storage.CSVDir, "/tmp/quantmind/csv")
	}
	if cfg.Storage.SQLitePath != "/tmp/quantmind/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/quantmind/runs.db")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}

	// -- Sweep --
	if cfg.Sweep.Workers != 2 {
		t.Errorf("Sweep.Workers = %d, want %d", cfg.Sweep.Workers, 2)
	}
	if !cfg.Sweep.OptimizeThresholds {
		t.Error("Sweep.OptimizeThresholds = false, want true")
	}

	// -- Backtest --
	sim, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("SimulationConfig() returned error: %v", err)
	}
	want := backtest.Config{
		InitialCapital:  50000,
		MaxPositions:    3,
		StopLossPct:     4,
		TargetProfitPct: 12,
		CommissionPct:   0,
		Start:           time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	if sim != want {
		t.Errorf("SimulationConfig() = %+v, want %+v", sim, want)
	}

	opts := cfg.UniverseOptions()
	if opts.MinHistory != 60 || !opts.Start.Equal(want.Start) || !opts.End.Equal(want.End) {
		t.Errorf("UniverseOptions() = %+v", opts)
	}

	// -- Models --
	if got := cfg.Threshold("rsi", 70); got != 65 {
		t.Errorf("Threshold(rsi) = %v, want 65", got)
	}
	if got := cfg.Threshold("adx", 70); got != 70 {
		t.Errorf("Threshold(adx) = %v, want fallback 70", got)
	}
	if got := cfg.ThresholdOverrides(); len(got) != 2 || got["master"] != 80 {
		t.Errorf("ThresholdOverrides() = %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "logging:\n  level: warn\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	sim, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("SimulationConfig() returned error: %v", err)
	}
	if sim != backtest.DefaultConfig() {
		t.Errorf("SimulationConfig() = %+v, want defaults %+v", sim, backtest.DefaultConfig())
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Backtest.MinHistory != 50 {
		t.Errorf("Backtest.MinHistory = %d, want 50", cfg.Backtest.MinHistory)
	}
	if cfg.Sweep.Workers <= 0 {
		t.Errorf("Sweep.Workers = %d, want a positive default", cfg.Sweep.Workers)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUANTMIND_DATA_DIR", "/env/data")
	t.Setenv("QUANTMIND_SQLITE_PATH", "/env/runs.db")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("QUANTMIND_WORKERS", "7")

	cfg, err := Load(writeConfig(t, "storage:\n  data_dir: /file/data\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Storage.SQLitePath != "/env/runs.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/env/runs.db")
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "error")
	}
	if cfg.Sweep.Workers != 7 {
		t.Errorf("Sweep.Workers = %d, want 7", cfg.Sweep.Workers)
	}
}

func TestSimulationConfigErrors(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "backtest:\n  start_date: \"01/02/2023\"\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if _, err := cfg.SimulationConfig(); err == nil {
		t.Error("SimulationConfig() accepted a malformed start date")
	}

	cfg, err = Load(writeConfig(t, "backtest:\n  max_positions: -2\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if _, err := cfg.SimulationConfig(); !errors.Is(err, backtest.ErrInvalidConfig) {
		t.Errorf("SimulationConfig() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() returned nil error for a missing file")
	}
}

func TestExampleConfigLoads(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "config", "quantmind.example.yaml"))
	if err != nil {
		t.Fatalf("Load(example) returned error: %v", err)
	}
	sim, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("example SimulationConfig() returned error: %v", err)
	}
	if sim != backtest.DefaultConfig() {
		t.Errorf("example config = %+v, want defaults %+v", sim, backtest.DefaultConfig())
	}
	if got := cfg.Threshold("rsi", 0); got != 70 {
		t.Errorf("Threshold(rsi) = %v, want 70", got)
	}
}
