// Package domain defines the core types shared across quantmind: raw price
// history, instrument series, simulated trades, and equity curve points.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date layout used for every date in the
// system.
const DateLayout = "2006-01-02"

// ErrUnorderedHistory is returned when a price history is not strictly
// ascending by date.
var ErrUnorderedHistory = errors.New("price history not strictly ascending")

// ParseDate parses an ISO calendar date (YYYY-MM-DD) into a UTC midnight
// time.Time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate formats t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to UTC midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Price history
// ---------------------------------------------------------------------------

// PricePoint is one daily OHLCV record. Open, High and Low are optional; a
// zero value means "absent" and Normalized fills it with Close.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// Normalized returns a copy of p with missing open/high/low defaulted to the
// close price and a negative volume clamped to zero.
func (p PricePoint) Normalized() PricePoint {
	if p.Open == 0 {
		p.Open = p.Close
	}
	if p.High == 0 {
		p.High = p.Close
	}
	if p.Low == 0 {
		p.Low = p.Close
	}
	if p.Volume < 0 {
		p.Volume = 0
	}
	p.Date = Day(p.Date)
	return p
}

// Series is the ordered price history of a single instrument.
type Series struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"history"`
}

// Validate reports an error if the series' calendar dates are not strictly
// ascending.
func (s Series) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !Day(s.Points[i].Date).After(Day(s.Points[i-1].Date)) {
			return fmt.Errorf("%s at index %d (%s after %s): %w",
				s.Symbol, i,
				FormatDate(s.Points[i].Date), FormatDate(s.Points[i-1].Date),
				ErrUnorderedHistory)
		}
	}
	return nil
}

// Closes returns the close prices index-aligned with Points.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Highs returns the high prices, defaulting to close when absent.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Normalized().High
	}
	return out
}

// Lows returns the low prices, defaulting to close when absent.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Normalized().Low
	}
	return out
}

// Volumes returns the volumes, defaulting to 0 when absent.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Normalized().Volume
	}
	return out
}

// Bar is the storage representation of a daily OHLCV bar.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// PricePoint converts the bar into a normalized PricePoint.
func (b Bar) PricePoint() PricePoint {
	return PricePoint{
		Date:   b.Timestamp,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: float64(b.Volume),
	}.Normalized()
}

// ---------------------------------------------------------------------------
// Simulation output
// ---------------------------------------------------------------------------

// ExitReason describes why a simulated position was closed.
type ExitReason string

const (
	ExitOpen     ExitReason = "OPEN"
	ExitStopLoss ExitReason = "STOP_LOSS"
	ExitTarget   ExitReason = "TARGET"
)

// Trade is a single simulated position. While open, ExitDate is nil, ExitPrice
// and PnL are zero and Reason is ExitOpen.
type Trade struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	EntryDate    time.Time  `json:"entryDate"`
	EntryPrice   float64    `json:"entryPrice"`
	ExitDate     *time.Time `json:"exitDate"`
	ExitPrice    float64    `json:"exitPrice"`
	Qty          int64      `json:"qty"`
	PnL          float64    `json:"pnl"`
	PnLPercent   float64    `json:"pnlPercent"`
	Reason       ExitReason `json:"reason"`
	BalanceAfter float64    `json:"balanceAfter"`
}

// Closed reports whether the trade has been exited.
func (t Trade) Closed() bool {
	return t.ExitDate != nil
}

// EquityPoint is the total portfolio value at the close of a simulated day.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}
