package indicator

import "gonum.org/v1/gonum/floats"

// OBV returns On-Balance Volume: a running total that adds the day's volume
// on up closes and subtracts it on down closes. It has no warm-up.
func OBV(close, volume []float64) []float64 {
	out := undefined(len(close))
	n := span(close, volume)
	if n == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < n; i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + volume[i]
		case close[i] < close[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// CMF returns Chaikin Money Flow: the rolling sum of close-location-weighted
// volume over the rolling sum of volume. Zero-range bars contribute no flow;
// a window with no volume yields 0.
func CMF(high, low, close, volume []float64, period int) []float64 {
	out := undefined(len(close))
	n := span(high, low, close, volume)
	if period <= 0 {
		return out
	}
	mfv := make([]float64, n)
	for i := 0; i < n; i++ {
		if rng := high[i] - low[i]; rng != 0 {
			mfv[i] = ((close[i] - low[i]) - (high[i] - close[i])) / rng * volume[i]
		}
	}
	for i := period - 1; i < n; i++ {
		sumVol := floats.Sum(window(volume, i, period))
		if sumVol == 0 {
			out[i] = 0
			continue
		}
		out[i] = floats.Sum(window(mfv, i, period)) / sumVol
	}
	return out
}

// ForceIndex returns the period EMA of (close - previous close) * volume.
func ForceIndex(close, volume []float64, period int) []float64 {
	raw := undefined(len(close))
	n := span(close, volume)
	for i := 1; i < n; i++ {
		raw[i] = (close[i] - close[i-1]) * volume[i]
	}
	return EMA(raw, period)
}
