package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quantmind/internal/domain"
	"quantmind/internal/perf"
	"quantmind/internal/strategy"
	"quantmind/internal/universe"
)

// Params selects the model, threshold and configuration for one run.
type Params struct {
	Model     strategy.ModelID
	Threshold float64
	Config    Config
}

// Result is the immutable output of one run. Trades holds closed and
// still-open trades sorted by entry date, newest first. EquityCurve has one
// point per simulated date, so it is empty when the universe or the date
// range is; FinalBalance is then the initial capital.
type Result struct {
	Model       strategy.ModelID     `json:"model"`
	Threshold   float64              `json:"threshold"`
	EquityCurve []domain.EquityPoint `json:"equityCurve"`
	Trades      []domain.Trade       `json:"trades"`
	perf.Metrics
}

// Backtester runs simulations over the snapshot behind a score cache. A
// Backtester holds no per-run state and may run concurrently.
type Backtester struct {
	cache *universe.ScoreCache
}

// NewBacktester creates a Backtester that reads scores from cache.
func NewBacktester(cache *universe.ScoreCache) *Backtester {
	return &Backtester{cache: cache}
}

// Run simulates p over the snapshot's dates. The walk is strictly
// chronological: on each date pointers advance to the date, exits are
// evaluated, entries are filled by descending score and the book is marked
// to market. The context is checked between dates.
func (bt *Backtester) Run(ctx context.Context, p Params) (*Result, error) {
	cfg := p.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scores, err := bt.cache.Model(p.Model)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", p.Model, err)
	}

	snap := bt.cache.Snapshot()
	insts := snap.Instruments()
	dates := datesInRange(snap.Dates(), cfg.Start, cfg.End)

	rules := NewRiskRules(cfg.StopLossPct, cfg.TargetProfitPct)
	book := newPortfolio(cfg.InitialCapital, cfg.CommissionPct)
	ptr := make([]int, len(insts))
	present := make([]bool, len(insts))
	curve := make([]domain.EquityPoint, 0, len(dates))

	type candidate struct {
		inst  *universe.Instrument
		score float64
	}
	var candidates []candidate

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates = candidates[:0]
		for _, inst := range insts {
			i := inst.Index
			for ptr[i] < inst.Len() && inst.Dates[ptr[i]].Before(date) {
				ptr[i]++
			}
			present[i] = ptr[i] < inst.Len() && inst.Dates[ptr[i]].Equal(date)
			if present[i] {
				candidates = append(candidates, candidate{inst: inst, score: scores[i][ptr[i]]})
			}
		}

		// Exits, newest position first.
		for k := len(book.open) - 1; k >= 0; k-- {
			pos := book.open[k]
			i := pos.inst.Index
			if !present[i] {
				continue
			}
			in := pos.inst.Inputs
			price, reason, ok := rules.CheckExit(pos.trade.EntryPrice, in.Highs[ptr[i]], in.Lows[ptr[i]])
			if ok {
				book.sell(k, date, price, reason)
			}
		}

		// Entries.
		if len(book.open) < cfg.MaxPositions {
			var buyable []candidate
			for _, c := range candidates {
				if c.score >= p.Threshold && !book.holds(c.inst) {
					buyable = append(buyable, c)
				}
			}
			sort.SliceStable(buyable, func(a, b int) bool { return buyable[a].score > buyable[b].score })

			for _, c := range buyable {
				if len(book.open) >= cfg.MaxPositions || book.cash <= 0 {
					break
				}
				price := c.inst.Inputs.Closes[ptr[c.inst.Index]]
				alloc := book.cash / float64(cfg.MaxPositions-len(book.open))
				qty := book.sizeFor(alloc, price)
				book.buy(c.inst, tradeID(c.inst.Symbol, date, p.Model), date, price, qty)
			}
		}

		// Mark to market.
		equity := book.cash
		for _, pos := range book.open {
			i := pos.inst.Index
			mark := pos.trade.EntryPrice
			if present[i] {
				mark = pos.inst.Inputs.Closes[ptr[i]]
			}
			equity += mark * float64(pos.trade.Qty)
		}
		curve = append(curve, domain.EquityPoint{Date: date, Equity: equity})
	}

	trades := book.trades()
	sort.SliceStable(trades, func(a, b int) bool { return trades[a].EntryDate.After(trades[b].EntryDate) })

	return &Result{
		Model:       p.Model,
		Threshold:   p.Threshold,
		EquityCurve: curve,
		Trades:      trades,
		Metrics:     perf.Summarize(cfg.InitialCapital, curve, trades),
	}, nil
}

func tradeID(symbol string, date time.Time, model strategy.ModelID) string {
	return symbol + "-" + domain.FormatDate(date) + "-" + string(model)
}

func datesInRange(dates []time.Time, start, end time.Time) []time.Time {
	if start.IsZero() && end.IsZero() {
		return dates
	}
	start, end = domain.Day(start), domain.Day(end)
	lo := 0
	if !start.IsZero() {
		lo = sort.Search(len(dates), func(i int) bool { return !dates[i].Before(start) })
	}
	hi := len(dates)
	if !end.IsZero() {
		hi = sort.Search(len(dates), func(i int) bool { return dates[i].After(end) })
	}
	if lo >= hi {
		return nil
	}
	return dates[lo:hi]
}
