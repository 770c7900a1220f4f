package perf

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quantmind/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func closedTrade(pnl float64) domain.Trade {
	exit := t0.AddDate(0, 0, 5)
	return domain.Trade{EntryDate: t0, ExitDate: &exit, PnL: pnl, Reason: domain.ExitTarget}
}

func openTrade() domain.Trade {
	return domain.Trade{EntryDate: t0, Reason: domain.ExitOpen, PnL: 500}
}

func curve(values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Date: t0.AddDate(0, 0, i), Equity: v}
	}
	return out
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, WinRate(nil))
	assert.Equal(t, 0.0, WinRate([]domain.Trade{openTrade()}))
	assert.Equal(t, 50.0, WinRate([]domain.Trade{closedTrade(10), closedTrade(-5), openTrade()}))
	assert.InDelta(t, 100.0/3, WinRate([]domain.Trade{closedTrade(10), closedTrade(0), closedTrade(-1)}), 1e-12)
}

func TestProfitFactor(t *testing.T) {
	tests := []struct {
		name   string
		trades []domain.Trade
		want   float64
	}{
		{"no trades", nil, 0},
		{"only open", []domain.Trade{openTrade()}, 0},
		{"wins only", []domain.Trade{closedTrade(10), closedTrade(30)}, 99},
		{"losses only", []domain.Trade{closedTrade(-10)}, 0},
		{"mixed", []domain.Trade{closedTrade(30), closedTrade(-10), closedTrade(-5)}, 2},
		{"break-even only", []domain.Trade{closedTrade(0)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProfitFactor(tt.trades))
		})
	}
}

func TestSharpe(t *testing.T) {
	assert.Equal(t, 0.0, Sharpe(nil))
	assert.Equal(t, 0.0, Sharpe(curve(100)))
	assert.Equal(t, 0.0, Sharpe(curve(100, 100, 100)), "flat curve has zero stdev")

	// returns +10%, -10%: mean 0
	assert.InDelta(t, 0.0, Sharpe(curve(100, 110, 99)), 1e-12)

	c := curve(100, 101, 103, 102, 105)
	r := DailyReturns(c)
	var mean float64
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	var ss float64
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(r)))
	assert.InDelta(t, mean/std*math.Sqrt(252), Sharpe(c), 1e-9)
}

func TestDailyReturns_ZeroEquity(t *testing.T) {
	assert.Equal(t, []float64{-1, 0}, DailyReturns(curve(100, 0, 50)))
}

func TestDrawdownTracker(t *testing.T) {
	dd := NewDrawdownTracker(100)
	assert.Equal(t, 0.0, dd.Observe(100))
	assert.Equal(t, 0.0, dd.Observe(120))
	assert.InDelta(t, 0.25, dd.Observe(90), 1e-12)
	assert.InDelta(t, 0.0, dd.Observe(130), 1e-12)
	assert.InDelta(t, 0.1, dd.Observe(117), 1e-12)
	assert.InDelta(t, 0.25, dd.Max(), 1e-12)
	assert.Equal(t, 130.0, dd.Peak())

	// Equity below the initial capital from the first day is a drawdown.
	low := NewDrawdownTracker(100)
	low.Observe(80)
	assert.InDelta(t, 0.2, low.Max(), 1e-12)
}

func TestSummarize(t *testing.T) {
	m := Summarize(1000, nil, nil)
	assert.Equal(t, 1000.0, m.FinalBalance)
	assert.Equal(t, 0.0, m.TotalReturnPercent)
	assert.Equal(t, 0.0, m.MaxDrawdown)

	trades := []domain.Trade{closedTrade(100), closedTrade(-50), openTrade()}
	m = Summarize(1000, curve(1000, 1100, 990, 1050), trades)
	assert.Equal(t, 1050.0, m.FinalBalance)
	assert.InDelta(t, 5.0, m.TotalReturnPercent, 1e-9)
	assert.InDelta(t, 10.0, m.MaxDrawdown, 1e-9)
	assert.Equal(t, 50.0, m.WinRate)
	assert.Equal(t, 2.0, m.ProfitFactor)
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.ClosedTrades)
	assert.NotZero(t, m.SharpeRatio)
}
