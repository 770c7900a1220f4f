// Package store persists daily bars (Parquet or CSV on disk) and backtest
// runs (SQLite), and assembles stored bars into price series.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"quantmind/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing bars already stored for
	// the same symbol and day.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end] in
	// ascending date order. A zero start or end leaves that side unbounded.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// LoadSeries reads bars for symbols from bs and converts them to price
// series in the given symbol order. An empty symbol list loads every stored
// symbol. Symbols with no bars in range are omitted, and symbols repeated
// in any letter case are loaded once.
func LoadSeries(ctx context.Context, bs BarStore, symbols []string, start, end time.Time) ([]domain.Series, error) {
	if len(symbols) == 0 {
		var err error
		symbols, err = bs.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing symbols: %w", err)
		}
	}

	out := make([]domain.Series, 0, len(symbols))
	loaded := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strings.ToUpper(sym)
		if loaded[key] {
			continue
		}
		loaded[key] = true
		bars, err := bs.ReadBars(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		if len(bars) == 0 {
			continue
		}
		sort.SliceStable(bars, func(i, j int) bool {
			return bars[i].Timestamp.Before(bars[j].Timestamp)
		})
		s := domain.Series{Symbol: key, Points: make([]domain.PricePoint, len(bars))}
		for i, b := range bars {
			s.Points[i] = b.PricePoint()
		}
		out = append(out, s)
	}
	return out, nil
}

// inRange reports whether the calendar day of t lies within [start, end],
// treating a zero bound as open.
func inRange(t, start, end time.Time) bool {
	t = domain.Day(t)
	if !start.IsZero() && t.Before(domain.Day(start)) {
		return false
	}
	if !end.IsZero() && t.After(domain.Day(end)) {
		return false
	}
	return true
}
