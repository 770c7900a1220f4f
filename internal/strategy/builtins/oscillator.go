package builtins

import (
	"quantmind/internal/indicator"
	"quantmind/internal/strategy"
)

// scoreRSI rewards oversold readings in an uptrend (price above its 200-day
// average) and discounts counter-trend ones; otherwise it scales 100 - RSI.
func scoreRSI(in strategy.Inputs) []float64 {
	return oversold(in, indicator.RSI(in.Closes, 14), 30)
}

func scoreStoch(in strategy.Inputs) []float64 {
	st := indicator.Stochastic(in.Highs, in.Lows, in.Closes, 14, 3)
	return oversold(in, st.K, 20)
}

func oversold(in strategy.Inputs, osc []float64, floor float64) []float64 {
	sma200 := indicator.SMA(in.Closes, 200)
	out := make([]float64, in.Len())
	for i := range out {
		trendUp := in.Closes[i] > sma200[i]
		switch {
		case osc[i] < floor && trendUp:
			out[i] = 85
		case osc[i] < floor:
			out[i] = 40
		default:
			out[i] = 100 - osc[i]
		}
	}
	return out
}

// scoreBollinger scores (1 - %B) * 100, so a close at the lower band scores
// 100. A zero-width band scores 50.
func scoreBollinger(in strategy.Inputs) []float64 {
	pb := indicator.PercentB(in.Closes, indicator.Bollinger(in.Closes, 20, 2))
	out := series(in.Len(), 50)
	for i := 20; i < len(out); i++ {
		out[i] = (1 - pb[i]) * 100
	}
	return out
}

func scoreOBV(in strategy.Inputs) []float64 {
	obv := indicator.OBV(in.Closes, in.Volumes)
	avg := indicator.SMA(obv, 20)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = pick(obv[i] > avg[i], 75, 25)
	}
	return out
}

func scoreCMF(in strategy.Inputs) []float64 {
	cmf := indicator.CMF(in.Highs, in.Lows, in.Closes, in.Volumes, 20)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = 50 + cmf[i]*100
	}
	return out
}

func scoreUltimate(in strategy.Inputs) []float64 {
	uo := indicator.UltimateOscillator(in.Highs, in.Lows, in.Closes, 7, 14, 28)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = 100 - uo[i]
	}
	return out
}
