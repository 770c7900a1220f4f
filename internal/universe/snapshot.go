// Package universe holds the instruments a simulation runs over: their
// index-aligned price arrays, the union of their trading dates, and an
// explicit score cache shared by repeated runs.
package universe

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"quantmind/internal/domain"
	"quantmind/internal/strategy"
)

// ErrDuplicateSymbol is returned by New when two series share a symbol.
// Scores are cached per symbol, so each symbol may appear only once.
var ErrDuplicateSymbol = errors.New("duplicate symbol")

// DefaultMinHistory is the shortest history an instrument may have to be
// included in a snapshot.
const DefaultMinHistory = 50

// Options controls snapshot construction.
type Options struct {
	// Start and End bound the dates kept, inclusive. Zero values are open.
	Start, End time.Time
	// MinHistory is the minimum number of points an instrument needs after
	// date filtering. 0 means DefaultMinHistory; negative disables the check.
	MinHistory int
}

// Instrument is one symbol with its aligned arrays. Index is its position
// in universe order and is the stable tie-break for equal scores.
type Instrument struct {
	Index  int
	Symbol string
	Dates  []time.Time
	Inputs strategy.Inputs
}

// Len returns the number of points.
func (in *Instrument) Len() int { return len(in.Dates) }

// Snapshot is a read-only view of the universe. It is safe for concurrent
// use once built.
type Snapshot struct {
	instruments []*Instrument
	dates       []time.Time
	skipped     []string
}

// New builds a snapshot from series. Each series must have strictly
// ascending dates. Points outside opts' date range are dropped, and series
// left with fewer than the minimum history are skipped, not rejected.
// Symbols must be unique across series, skipped ones included.
func New(series []domain.Series, opts Options) (*Snapshot, error) {
	minHistory := opts.MinHistory
	if minHistory == 0 {
		minHistory = DefaultMinHistory
	}

	s := &Snapshot{}
	seen := make(map[time.Time]struct{})
	symbols := make(map[string]struct{}, len(series))
	for _, ser := range series {
		if _, dup := symbols[ser.Symbol]; dup {
			return nil, fmt.Errorf("building universe: %s: %w", ser.Symbol, ErrDuplicateSymbol)
		}
		symbols[ser.Symbol] = struct{}{}
		if err := ser.Validate(); err != nil {
			return nil, fmt.Errorf("building universe: %w", err)
		}
		pts := filterRange(ser.Points, opts.Start, opts.End)
		if minHistory > 0 && len(pts) < minHistory {
			s.skipped = append(s.skipped, ser.Symbol)
			continue
		}

		trimmed := domain.Series{Symbol: ser.Symbol, Points: pts}
		inst := &Instrument{
			Index:  len(s.instruments),
			Symbol: ser.Symbol,
			Dates:  make([]time.Time, len(pts)),
			Inputs: strategy.InputsFromSeries(trimmed),
		}
		for i, p := range pts {
			d := domain.Day(p.Date)
			inst.Dates[i] = d
			seen[d] = struct{}{}
		}
		s.instruments = append(s.instruments, inst)
	}

	s.dates = make([]time.Time, 0, len(seen))
	for d := range seen {
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	return s, nil
}

func filterRange(pts []domain.PricePoint, start, end time.Time) []domain.PricePoint {
	if start.IsZero() && end.IsZero() {
		return pts
	}
	start, end = domain.Day(start), domain.Day(end)
	out := make([]domain.PricePoint, 0, len(pts))
	for _, p := range pts {
		d := domain.Day(p.Date)
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Instruments returns the instruments in universe order.
func (s *Snapshot) Instruments() []*Instrument { return s.instruments }

// Len returns the number of instruments.
func (s *Snapshot) Len() int { return len(s.instruments) }

// Dates returns the sorted union of every instrument's dates.
func (s *Snapshot) Dates() []time.Time { return s.dates }

// Skipped returns the symbols dropped for insufficient history.
func (s *Snapshot) Skipped() []string { return s.skipped }

// Lookup returns the instrument for symbol.
func (s *Snapshot) Lookup(symbol string) (*Instrument, bool) {
	for _, inst := range s.instruments {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return nil, false
}
