package indicator

import "gonum.org/v1/gonum/floats"

// SMA returns the simple moving average of x over period values. An index is
// defined only when its whole window is defined, so SMA can be chained onto
// other indicators that carry a warm-up prefix.
func SMA(x []float64, period int) []float64 {
	out := undefined(len(x))
	if period <= 0 {
		return out
	}
	if period == 1 {
		copy(out, x)
		return out
	}

	var sum float64
	missing := 0
	for i, v := range x {
		if IsSet(v) {
			sum += v
		} else {
			missing++
		}
		if i >= period {
			if old := x[i-period]; IsSet(old) {
				sum -= old
			} else {
				missing--
			}
		}
		if i >= period-1 && missing == 0 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average of x with smoothing factor
// 2/(period+1). The average is seeded with the SMA of the first full window
// of defined values and restarts after any undefined input.
func EMA(x []float64, period int) []float64 {
	out := undefined(len(x))
	if period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)

	var sum float64
	run := 0
	prev := Sentinel
	for i, v := range x {
		if !IsSet(v) {
			sum, run, prev = 0, 0, Sentinel
			continue
		}
		if IsSet(prev) {
			prev = v*k + prev*(1-k)
			out[i] = prev
			continue
		}
		sum += v
		run++
		if run == period {
			prev = sum / float64(period)
			out[i] = prev
		}
	}
	return out
}

// TEMA returns the triple exponential moving average
// 3*EMA1 - 3*EMA2(EMA1) + EMA3(EMA2). Its warm-up spans 3*period-2 values.
func TEMA(x []float64, period int) []float64 {
	e1 := EMA(x, period)
	e2 := EMA(e1, period)
	e3 := EMA(e2, period)

	out := undefined(len(x))
	for i := range out {
		if IsSet(e1[i]) && IsSet(e2[i]) && IsSet(e3[i]) {
			out[i] = 3*e1[i] - 3*e2[i] + e3[i]
		}
	}
	return out
}

// VWMA returns the volume-weighted moving average of close. A window with
// zero total volume falls back to the plain average of its closes.
func VWMA(close, volume []float64, period int) []float64 {
	out := undefined(len(close))
	n := span(close, volume)
	if period <= 0 {
		return out
	}
	for i := period - 1; i < n; i++ {
		cw, vw := window(close, i, period), window(volume, i, period)
		vSum := floats.Sum(vw)
		if vSum == 0 {
			out[i] = floats.Sum(cw) / float64(period)
			continue
		}
		out[i] = floats.Dot(cw, vw) / vSum
	}
	return out
}

// wilder applies Wilder's recursive smoothing to src. The seed at index
// start+period-1 is the mean of src[start : start+period]; every later value
// is (prev*(period-1) + src[i]) / period.
func wilder(src []float64, start, period int) []float64 {
	out := undefined(len(src))
	seed := start + period - 1
	if period <= 0 || start < 0 || seed >= len(src) {
		return out
	}
	out[seed] = floats.Sum(src[start:seed+1]) / float64(period)
	for i := seed + 1; i < len(src); i++ {
		out[i] = (out[i-1]*float64(period-1) + src[i]) / float64(period)
	}
	return out
}
