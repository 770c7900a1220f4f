package builtins

import (
	"quantmind/internal/indicator"
	"quantmind/internal/strategy"
)

// scoreVolumeBreakout scores 90 when the close clears the previous bar's
// 20-day high on more than twice the 20-day average volume.
func scoreVolumeBreakout(in strategy.Inputs) []float64 {
	don := indicator.Donchian(in.Highs, in.Lows, 20)
	volAvg := indicator.SMA(in.Volumes, 20)
	out := series(in.Len(), 50)
	for i := 20; i < len(out); i++ {
		breakout := in.Closes[i] > don.Upper[i-1]
		surge := in.Volumes[i] > volAvg[i]*2
		out[i] = pick(breakout && surge, 90, 40)
	}
	return out
}

// scoreSqueeze is neutral while the squeeze is on and follows momentum once
// it releases.
func scoreSqueeze(in strategy.Inputs) []float64 {
	sqz := indicator.Squeeze(in.Highs, in.Lows, in.Closes, 20, 2, 1.5)
	out := make([]float64, in.Len())
	for i := range out {
		if sqz.On[i] {
			out[i] = 50
			continue
		}
		out[i] = pick(sqz.Momentum[i] > 0, 80, 20)
	}
	return out
}

func scoreDonchian(in strategy.Inputs) []float64 {
	don := indicator.Donchian(in.Highs, in.Lows, 20)
	out := series(in.Len(), 50)
	for i := 20; i < len(out); i++ {
		switch p := in.Closes[i]; {
		case p > don.Upper[i-1]:
			out[i] = 90
		case p < don.Lower[i-1]:
			out[i] = 10
		}
	}
	return out
}

func scoreKeltner(in strategy.Inputs) []float64 {
	kel := indicator.Keltner(in.Highs, in.Lows, in.Closes, 20, 10, 2)
	out := series(in.Len(), 50)
	for i := 20; i < len(out); i++ {
		switch p := in.Closes[i]; {
		case p > kel.Upper[i]:
			out[i] = 80
		case p < kel.Lower[i]:
			out[i] = 20
		}
	}
	return out
}
