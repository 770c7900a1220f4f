package builtins

import (
	"quantmind/internal/indicator"
	"quantmind/internal/strategy"
)

// masterWarmup is the number of leading points the composite model scores 0.
const masterWarmup = 50

// scoreMaster aggregates RSI, MACD, moving-average trend and the OBV,
// squeeze and TEMA sub-scores into one composite score.
func scoreMaster(in strategy.Inputs) []float64 {
	p := in.Closes
	rsi := indicator.RSI(p, 14)
	sma50 := indicator.SMA(p, 50)
	sma200 := indicator.SMA(p, 200)
	macd := indicator.MACD(p, 12, 26, 9)
	obv := scoreOBV(in)
	sqz := scoreSqueeze(in)
	tema := scoreTEMA(in)

	out := make([]float64, len(p))
	for i := masterWarmup; i < len(p); i++ {
		out[i] = technicalScore(technicalInputs{
			rsi:    rsi[i],
			macd:   macd.MACD[i],
			signal: macd.Signal[i],
			price:  p[i],
			sma50:  sma50[i],
			sma200: sma200[i],
			obv:    obv[i],
			sqz:    sqz[i],
			tema:   tema[i],
		})
	}
	return out
}

type technicalInputs struct {
	rsi, macd, signal    float64
	price, sma50, sma200 float64
	obv, sqz, tema       float64
}

// technicalScore starts at 50 and applies fixed deltas per component. Any
// comparison against an undefined value is false.
func technicalScore(t technicalInputs) float64 {
	score := 50.0
	switch {
	case t.rsi < 30:
		score += 15
	case t.rsi > 70:
		score -= 15
	case t.rsi > 50:
		score += 5
	default:
		score -= 5
	}
	score += pick(t.macd > t.signal, 10, -10)
	score += pick(t.price > t.sma50, 10, -10)
	score += pick(t.price > t.sma200, 15, -15)
	if t.sma50 > t.sma200 {
		score += 10
	}
	score += band(t.obv, 10)
	score += band(t.sqz, 15)
	score += band(t.tema, 10)
	return strategy.Clamp(score)
}

// band maps a sub-score to +w above 60, -w below 40 and 0 otherwise.
func band(sub, w float64) float64 {
	switch {
	case sub > 60:
		return w
	case sub < 40:
		return -w
	}
	return 0
}
