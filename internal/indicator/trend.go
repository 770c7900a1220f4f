package indicator

import "math"

// ADXResult holds the Average Directional Index and the directional
// indicators.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// ADX returns Wilder's Average Directional Index with +DI and -DI. True range
// and directional movement are Wilder-smoothed from index period; the first
// ADX value, at index 2*period-1, is the mean of the first period DX values.
// Where the smoothed true range is 0 both DIs and DX are neutral (0).
func ADX(high, low, close []float64, period int) ADXResult {
	res := ADXResult{
		ADX:     undefined(len(close)),
		PlusDI:  undefined(len(close)),
		MinusDI: undefined(len(close)),
	}
	n := span(high, low, close)
	if period <= 0 || n <= period {
		return res
	}

	tr := trueRanges(high, low, close, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	trS := wilder(tr, 1, period)
	plusS := wilder(plusDM, 1, period)
	minusS := wilder(minusDM, 1, period)

	dx := undefined(n)
	for i := period; i < n; i++ {
		if trS[i] == 0 {
			res.PlusDI[i], res.MinusDI[i], dx[i] = 0, 0, 0
			continue
		}
		p := plusS[i] / trS[i] * 100
		m := minusS[i] / trS[i] * 100
		res.PlusDI[i], res.MinusDI[i] = p, m
		if sum := p + m; sum != 0 {
			dx[i] = math.Abs(p-m) / sum * 100
		} else {
			dx[i] = 0
		}
	}

	copy(res.ADX, wilder(dx, period, period))
	return res
}

// PSAR returns the Parabolic Stop and Reverse. The acceleration factor starts
// at step, grows by step on each new extreme point up to maxStep, and resets
// when price crosses the SAR and the trend flips. Index 0 is undefined.
func PSAR(high, low []float64, step, maxStep float64) []float64 {
	out := undefined(len(high))
	n := span(high, low)
	if n < 2 {
		return out
	}

	up := high[1] > high[0]
	sar, ep := high[0], low[1]
	if up {
		sar, ep = low[0], high[1]
	}
	af := step
	out[1] = sar

	for i := 2; i < n; i++ {
		next := out[i-1] + af*(ep-out[i-1])
		if up {
			next = math.Min(next, math.Min(low[i-1], low[i-2]))
			if low[i] < next {
				up, next, ep, af = false, ep, low[i], step
			} else if high[i] > ep {
				ep, af = high[i], math.Min(af+step, maxStep)
			}
		} else {
			next = math.Max(next, math.Max(high[i-1], high[i-2]))
			if high[i] > next {
				up, next, ep, af = true, ep, high[i], step
			} else if low[i] < ep {
				ep, af = low[i], math.Min(af+step, maxStep)
			}
		}
		out[i] = next
	}
	return out
}

// IchimokuResult holds the Tenkan-sen and Kijun-sen lines.
type IchimokuResult struct {
	Tenkan []float64
	Kijun  []float64
}

// Ichimoku returns the midpoints of the rolling high/low range over the
// tenkan (conventionally 9) and kijun (26) periods.
func Ichimoku(high, low []float64, tenkan, kijun int) IchimokuResult {
	return IchimokuResult{
		Tenkan: Donchian(high, low, tenkan).Middle,
		Kijun:  Donchian(high, low, kijun).Middle,
	}
}

// Pivots holds classic floor-trader pivot levels.
type Pivots struct {
	P, R1, S1, R2, S2, R3, S3 float64
}

// PivotPoints computes classic pivot levels from one bar.
func PivotPoints(high, low, close float64) Pivots {
	p := (high + low + close) / 3
	return Pivots{
		P:  p,
		R1: 2*p - low,
		S1: 2*p - high,
		R2: p + (high - low),
		S2: p - (high - low),
		R3: high + 2*(p-low),
		S3: low - 2*(high-p),
	}
}
