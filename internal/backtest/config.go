// Package backtest replays a universe snapshot day by day through a scoring
// model, simulating entries, stop-loss and target exits, and producing an
// equity curve and trade ledger.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("backtest: invalid config")

// Config holds the simulation parameters. Percentages are expressed in
// percent, e.g. 5 for 5 %.
type Config struct {
	InitialCapital  float64   `json:"initialCapital"`
	MaxPositions    int       `json:"maxPositions"`
	StopLossPct     float64   `json:"stopLossPct"`
	TargetProfitPct float64   `json:"targetProfitPct"`
	CommissionPct   float64   `json:"commissionPct"`
	Start           time.Time `json:"start,omitempty"`
	End             time.Time `json:"end,omitempty"`
}

// DefaultConfig returns the default simulation parameters.
func DefaultConfig() Config {
	return Config{
		InitialCapital:  100000,
		MaxPositions:    5,
		StopLossPct:     5,
		TargetProfitPct: 10,
		CommissionPct:   0.1,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	switch {
	case !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0):
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidConfig, c.InitialCapital)
	case c.MaxPositions < 0:
		return fmt.Errorf("%w: max positions must not be negative, got %d", ErrInvalidConfig, c.MaxPositions)
	case !(c.StopLossPct > 0):
		return fmt.Errorf("%w: stop loss must be positive, got %v", ErrInvalidConfig, c.StopLossPct)
	case !(c.TargetProfitPct > 0):
		return fmt.Errorf("%w: target profit must be positive, got %v", ErrInvalidConfig, c.TargetProfitPct)
	case !(c.CommissionPct >= 0):
		return fmt.Errorf("%w: commission must not be negative, got %v", ErrInvalidConfig, c.CommissionPct)
	case !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start):
		return fmt.Errorf("%w: end date %s before start date %s", ErrInvalidConfig,
			c.End.Format(time.DateOnly), c.Start.Format(time.DateOnly))
	}
	return nil
}
