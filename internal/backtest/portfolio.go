package backtest

import (
	"math"
	"time"

	"quantmind/internal/domain"
	"quantmind/internal/universe"
)

// position is an open trade together with the instrument it belongs to.
type position struct {
	inst  *universe.Instrument
	trade domain.Trade
}

// portfolio tracks cash and positions for a single run in memory. It is
// never shared between runs.
type portfolio struct {
	cash       float64
	commission float64 // fraction
	open       []*position
	held       map[int]bool
	closed     []domain.Trade
}

func newPortfolio(cash, commissionPct float64) *portfolio {
	return &portfolio{
		cash:       cash,
		commission: commissionPct / 100,
		held:       make(map[int]bool),
	}
}

func (p *portfolio) holds(inst *universe.Instrument) bool { return p.held[inst.Index] }

// sizeFor returns the whole-share quantity bought with alloc at price. When
// the entry commission pushes the cost above available cash the quantity
// shrinks until cost plus commission fits.
func (p *portfolio) sizeFor(alloc, price float64) int64 {
	if !(price > 0) || !(alloc > 0) {
		return 0
	}
	qty := math.Floor(alloc / price)
	if cost := qty * price; p.cash < cost+cost*p.commission {
		qty = math.Floor(p.cash / (price * (1 + p.commission)))
	}
	return int64(qty)
}

// buy opens a position of qty at price, paying cost plus commission. It
// reports false when qty is not positive or cash does not cover the fill.
func (p *portfolio) buy(inst *universe.Instrument, id string, date time.Time, price float64, qty int64) bool {
	if qty <= 0 {
		return false
	}
	cost := float64(qty) * price
	fee := cost * p.commission
	if p.cash < cost+fee {
		return false
	}
	p.cash -= cost + fee
	p.open = append(p.open, &position{
		inst: inst,
		trade: domain.Trade{
			ID:           id,
			Symbol:       inst.Symbol,
			EntryDate:    date,
			EntryPrice:   price,
			Qty:          qty,
			Reason:       domain.ExitOpen,
			BalanceAfter: p.cash,
		},
	})
	p.held[inst.Index] = true
	return true
}

// sell closes the open position at index i. Realized pnl is the exit
// proceeds net of exit commission minus the entry cost; the entry
// commission was already paid from cash.
func (p *portfolio) sell(i int, date time.Time, price float64, reason domain.ExitReason) {
	pos := p.open[i]
	t := pos.trade
	proceeds := price * float64(t.Qty)
	net := proceeds - proceeds*p.commission
	basis := t.EntryPrice * float64(t.Qty)

	p.cash += net
	exit := date
	t.ExitDate = &exit
	t.ExitPrice = price
	t.PnL = net - basis
	t.PnLPercent = t.PnL / basis * 100
	t.Reason = reason
	t.BalanceAfter = p.cash

	p.closed = append(p.closed, t)
	p.open = append(p.open[:i], p.open[i+1:]...)
	delete(p.held, pos.inst.Index)
}

// trades returns closed and still-open trades.
func (p *portfolio) trades() []domain.Trade {
	out := make([]domain.Trade, 0, len(p.closed)+len(p.open))
	out = append(out, p.closed...)
	for _, pos := range p.open {
		out = append(out, pos.trade)
	}
	return out
}
