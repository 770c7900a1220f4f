package backtest

import "quantmind/internal/domain"

// RiskRules decides when an open position exits. The stop is checked before
// the target, so a bar that breaches both closes at the stop price.
type RiskRules struct {
	stopLossPct     float64
	targetProfitPct float64
}

// NewRiskRules creates RiskRules with the given thresholds in percent.
//
//   - stopLossPct: loss from the entry price that triggers an exit
//     (e.g. 5 for 5%).
//   - targetProfitPct: gain from the entry price that triggers an exit
//     (e.g. 10 for 10%).
func NewRiskRules(stopLossPct, targetProfitPct float64) RiskRules {
	return RiskRules{
		stopLossPct:     stopLossPct,
		targetProfitPct: targetProfitPct,
	}
}

// StopPrice returns the stop-loss price for an entry.
func (r RiskRules) StopPrice(entry float64) float64 {
	return entry * (1 - r.stopLossPct/100)
}

// TargetPrice returns the profit-target price for an entry.
func (r RiskRules) TargetPrice(entry float64) float64 {
	return entry * (1 + r.targetProfitPct/100)
}

// CheckExit evaluates a bar's range against an entry price. It returns the
// exit price and reason, and false when the position stays open.
func (r RiskRules) CheckExit(entry, high, low float64) (float64, domain.ExitReason, bool) {
	if stop := r.StopPrice(entry); low <= stop {
		return stop, domain.ExitStopLoss, true
	}
	if target := r.TargetPrice(entry); high >= target {
		return target, domain.ExitTarget, true
	}
	return 0, domain.ExitOpen, false
}
