// Package perf derives performance metrics from a simulation's equity curve
// and trade ledger.
package perf

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"quantmind/internal/domain"
)

// TradingDaysPerYear annualizes the daily Sharpe ratio.
const TradingDaysPerYear = 252

// ProfitFactorCap is reported when there are winning trades but no losses.
const ProfitFactorCap = 99

// Metrics holds the summary metrics of one simulation run.
type Metrics struct {
	FinalBalance       float64 `json:"finalBalance"`
	TotalReturnPercent float64 `json:"totalReturnPercent"`
	MaxDrawdown        float64 `json:"maxDrawdown"` // percent
	WinRate            float64 `json:"winRate"`     // percent
	ProfitFactor       float64 `json:"profitFactor"`
	SharpeRatio        float64 `json:"sharpeRatio"`
	TotalTrades        int     `json:"totalTrades"`
	ClosedTrades       int     `json:"closedTrades"`
}

// Summarize computes Metrics for a run that started with initialCapital.
// An empty curve yields a final balance equal to initialCapital.
func Summarize(initialCapital float64, curve []domain.EquityPoint, trades []domain.Trade) Metrics {
	final := initialCapital
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}

	dd := NewDrawdownTracker(initialCapital)
	for _, p := range curve {
		dd.Observe(p.Equity)
	}

	m := Metrics{
		FinalBalance: final,
		MaxDrawdown:  dd.Max() * 100,
		WinRate:      WinRate(trades),
		ProfitFactor: ProfitFactor(trades),
		SharpeRatio:  Sharpe(curve),
		TotalTrades:  len(trades),
	}
	if initialCapital != 0 {
		m.TotalReturnPercent = (final - initialCapital) / initialCapital * 100
	}
	for _, t := range trades {
		if t.Closed() {
			m.ClosedTrades++
		}
	}
	return m
}

// WinRate returns the percentage of closed trades with positive pnl, or 0
// when no trade has closed. Open trades are ignored.
func WinRate(trades []domain.Trade) float64 {
	var closed, wins int
	for _, t := range trades {
		if !t.Closed() {
			continue
		}
		closed++
		if t.PnL > 0 {
			wins++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(wins) / float64(closed) * 100
}

// ProfitFactor returns gross winning pnl over gross losing pnl of closed
// trades. With wins but no losses it returns ProfitFactorCap; with neither
// it returns 0. Break-even trades count towards neither side.
func ProfitFactor(trades []domain.Trade) float64 {
	var won, lost float64
	for _, t := range trades {
		if !t.Closed() {
			continue
		}
		switch {
		case t.PnL > 0:
			won += t.PnL
		case t.PnL < 0:
			lost -= t.PnL
		}
	}
	switch {
	case lost > 0:
		return won / lost
	case won > 0:
		return ProfitFactorCap
	default:
		return 0
	}
}

// DailyReturns returns the day-over-day fractional change of the curve. A
// day following zero equity contributes a 0 return.
func DailyReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		out[i-1] = (curve[i].Equity - prev) / prev
	}
	return out
}

// Sharpe returns the annualized Sharpe ratio of the curve's daily returns
// using the population standard deviation. It is 0 for fewer than two
// points or a zero standard deviation.
func Sharpe(curve []domain.EquityPoint) float64 {
	returns := DailyReturns(curve)
	if len(returns) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(TradingDaysPerYear)
}

// DrawdownTracker follows the running equity peak and the largest
// fractional decline from it.
type DrawdownTracker struct {
	peak float64
	max  float64
}

// NewDrawdownTracker starts tracking from an initial peak.
func NewDrawdownTracker(initial float64) *DrawdownTracker {
	return &DrawdownTracker{peak: initial}
}

// Observe records an equity value and returns the current drawdown
// fraction.
func (d *DrawdownTracker) Observe(equity float64) float64 {
	if equity > d.peak {
		d.peak = equity
	}
	if d.peak <= 0 {
		return 0
	}
	dd := (d.peak - equity) / d.peak
	if dd > d.max {
		d.max = dd
	}
	return dd
}

// Peak returns the highest equity observed.
func (d *DrawdownTracker) Peak() float64 { return d.peak }

// Max returns the largest drawdown fraction observed.
func (d *DrawdownTracker) Max() float64 { return d.max }
