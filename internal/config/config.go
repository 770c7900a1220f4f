package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"quantmind/internal/backtest"
	"quantmind/internal/domain"
	"quantmind/internal/strategy"
	"quantmind/internal/universe"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for quantmind.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Logging  Logging        `yaml:"logging"`
	Backtest BacktestConfig `yaml:"backtest"`
	Models   ModelsConfig   `yaml:"models"`
	Sweep    SweepConfig    `yaml:"sweep"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	CSVDir     string `yaml:"csv_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BacktestConfig holds simulation parameters. Percentages are in percent.
// A nil MaxPositions or CommissionPct takes the default; 0 is a valid value
// for both.
type BacktestConfig struct {
	InitialCapital  float64  `yaml:"initial_capital"`
	MaxPositions    *int     `yaml:"max_positions"`
	StopLossPct     float64  `yaml:"stop_loss_pct"`
	TargetProfitPct float64  `yaml:"target_profit_pct"`
	CommissionPct   *float64 `yaml:"commission_pct"`
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	MinHistory      int      `yaml:"min_history"`
}

// ModelsConfig holds per-model overrides.
type ModelsConfig struct {
	Thresholds map[string]float64 `yaml:"thresholds"`
}

// SweepConfig controls the optimizer.
type SweepConfig struct {
	Workers            int  `yaml:"workers"`
	OptimizeThresholds bool `yaml:"optimize_thresholds"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a Config holding only defaults and environment overrides.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUANTMIND_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("QUANTMIND_CSV_DIR"); v != "" {
		cfg.Storage.CSVDir = v
	}

	if v := os.Getenv("QUANTMIND_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("QUANTMIND_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sweep.Workers = n
		}
	}
}

func applyDefaults(cfg *Config) {
	def := backtest.DefaultConfig()
	b := &cfg.Backtest
	if b.InitialCapital == 0 {
		b.InitialCapital = def.InitialCapital
	}
	if b.MaxPositions == nil {
		n := def.MaxPositions
		b.MaxPositions = &n
	}
	if b.StopLossPct == 0 {
		b.StopLossPct = def.StopLossPct
	}
	if b.TargetProfitPct == 0 {
		b.TargetProfitPct = def.TargetProfitPct
	}
	if b.CommissionPct == nil {
		c := def.CommissionPct
		b.CommissionPct = &c
	}
	if b.MinHistory == 0 {
		b.MinHistory = universe.DefaultMinHistory
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Sweep.Workers <= 0 {
		cfg.Sweep.Workers = runtime.GOMAXPROCS(0)
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// SimulationConfig converts the backtest section into a validated
// backtest.Config.
func (c *Config) SimulationConfig() (backtest.Config, error) {
	b := c.Backtest
	out := backtest.DefaultConfig()
	out.InitialCapital = b.InitialCapital
	out.StopLossPct = b.StopLossPct
	out.TargetProfitPct = b.TargetProfitPct
	if b.MaxPositions != nil {
		out.MaxPositions = *b.MaxPositions
	}
	if b.CommissionPct != nil {
		out.CommissionPct = *b.CommissionPct
	}

	var err error
	if b.StartDate != "" {
		if out.Start, err = domain.ParseDate(b.StartDate); err != nil {
			return backtest.Config{}, fmt.Errorf("backtest.start_date: %w", err)
		}
	}
	if b.EndDate != "" {
		if out.End, err = domain.ParseDate(b.EndDate); err != nil {
			return backtest.Config{}, fmt.Errorf("backtest.end_date: %w", err)
		}
	}
	if err := out.Validate(); err != nil {
		return backtest.Config{}, err
	}
	return out, nil
}

// UniverseOptions returns the snapshot options implied by the backtest
// section. Dates that fail to parse are left open; SimulationConfig reports
// them.
func (c *Config) UniverseOptions() universe.Options {
	opts := universe.Options{MinHistory: c.Backtest.MinHistory}
	if t, err := domain.ParseDate(c.Backtest.StartDate); err == nil {
		opts.Start = t
	}
	if t, err := domain.ParseDate(c.Backtest.EndDate); err == nil {
		opts.End = t
	}
	return opts
}

// Threshold returns the configured threshold for model id, or fallback when
// none is set.
func (c *Config) Threshold(id strategy.ModelID, fallback float64) float64 {
	if v, ok := c.Models.Thresholds[string(id)]; ok {
		return v
	}
	return fallback
}

// ThresholdOverrides returns every configured threshold keyed by model id.
func (c *Config) ThresholdOverrides() map[strategy.ModelID]float64 {
	out := make(map[strategy.ModelID]float64, len(c.Models.Thresholds))
	for k, v := range c.Models.Thresholds {
		out[strategy.ModelID(k)] = v
	}
	return out
}
