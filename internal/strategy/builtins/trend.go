package builtins

import (
	"math"

	"quantmind/internal/indicator"
	"quantmind/internal/strategy"
)

func scoreGoldenCross(in strategy.Inputs) []float64 {
	sma50 := indicator.SMA(in.Closes, 50)
	sma200 := indicator.SMA(in.Closes, 200)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = pick(sma50[i] > sma200[i], 85, 15)
	}
	return out
}

func scoreTEMA(in strategy.Inputs) []float64 {
	short := indicator.TEMA(in.Closes, 10)
	long := indicator.TEMA(in.Closes, 30)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = pick(short[i] > long[i], 85, 15)
	}
	return out
}

// scoreADX centres on 50 and moves by trend strength (ADX capped at 50) in
// the direction of the dominant directional indicator.
func scoreADX(in strategy.Inputs) []float64 {
	adx := indicator.ADX(in.Highs, in.Lows, in.Closes, 14)
	out := make([]float64, in.Len())
	for i := range out {
		strength := math.Min(adx.ADX[i], 50)
		out[i] = pick(adx.PlusDI[i] > adx.MinusDI[i], 50+strength, 50-strength)
	}
	return out
}

func scoreVWMA(in strategy.Inputs) []float64 {
	vwma := indicator.VWMA(in.Closes, in.Volumes, 20)
	out := series(in.Len(), 50)
	for i := 20; i < len(out); i++ {
		if vwma[i] == 0 {
			continue
		}
		diff := (in.Closes[i] - vwma[i]) / vwma[i]
		out[i] = 50 + diff*100*5
	}
	return out
}

func scorePSAR(in strategy.Inputs) []float64 {
	sar := indicator.PSAR(in.Highs, in.Lows, 0.02, 0.2)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = pick(in.Closes[i] > sar[i], 80, 20)
	}
	return out
}

func scoreIchimoku(in strategy.Inputs) []float64 {
	ichi := indicator.Ichimoku(in.Highs, in.Lows, 9, 26)
	out := series(in.Len(), 50)
	for i := 26; i < len(out); i++ {
		p, t, k := in.Closes[i], ichi.Tenkan[i], ichi.Kijun[i]
		switch {
		case p > t && t > k:
			out[i] = 80
		case p < t && t < k:
			out[i] = 20
		}
	}
	return out
}

func scoreAroon(in strategy.Inputs) []float64 {
	aroon := indicator.Aroon(in.Highs, in.Lows, 25)
	out := make([]float64, in.Len())
	for i := range out {
		out[i] = 50 + aroon.Oscillator[i]/2
	}
	return out
}
