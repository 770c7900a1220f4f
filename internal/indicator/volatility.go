package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Bands is an upper/middle/lower channel.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

func undefinedBands(n int) Bands {
	return Bands{Upper: undefined(n), Middle: undefined(n), Lower: undefined(n)}
}

// Bollinger returns Bollinger Bands: the period SMA plus and minus mult times
// the rolling population standard deviation. For every defined index
// Upper >= Middle >= Lower; a negative mult is treated as its magnitude.
func Bollinger(x []float64, period int, mult float64) Bands {
	b := undefinedBands(len(x))
	if period <= 0 {
		return b
	}
	mult = math.Abs(mult)
	for i := period - 1; i < len(x); i++ {
		w := window(x, i, period)
		if !allSet(w) {
			continue
		}
		mean, std := stat.PopMeanStdDev(w, nil)
		b.Middle[i] = mean
		b.Upper[i] = mean + mult*std
		b.Lower[i] = mean - mult*std
	}
	return b
}

// PercentB returns the position of x within the bands, 0 at the lower band
// and 1 at the upper band. A zero-width band yields the neutral value 0.5.
func PercentB(x []float64, b Bands) []float64 {
	out := undefined(len(x))
	n := span(x, b.Upper, b.Lower)
	for i := 0; i < n; i++ {
		if !IsSet(b.Upper[i]) || !IsSet(b.Lower[i]) {
			continue
		}
		width := b.Upper[i] - b.Lower[i]
		if width == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = (x[i] - b.Lower[i]) / width
	}
	return out
}

// Bandwidth returns (upper - lower) / middle, or 0 when middle is 0.
func Bandwidth(b Bands) []float64 {
	out := undefined(len(b.Middle))
	n := span(b.Upper, b.Middle, b.Lower)
	for i := 0; i < n; i++ {
		if !IsSet(b.Middle[i]) {
			continue
		}
		if b.Middle[i] == 0 {
			out[i] = 0
			continue
		}
		out[i] = (b.Upper[i] - b.Lower[i]) / b.Middle[i]
	}
	return out
}

// TrueRange returns the true range of each bar.
func TrueRange(high, low, close []float64) []float64 {
	out := undefined(len(close))
	copy(out, trueRanges(high, low, close, span(high, low, close)))
	return out
}

// ATR returns the Average True Range. The seed at index period is the mean of
// the first period true ranges; later values use Wilder smoothing.
func ATR(high, low, close []float64, period int) []float64 {
	out := undefined(len(close))
	n := span(high, low, close)
	if period <= 0 || n <= period {
		return out
	}
	tr := trueRanges(high, low, close, n)
	var seed float64
	for i := 0; i < period; i++ {
		seed += tr[i]
	}
	out[period] = seed / float64(period)
	for i := period + 1; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// SuperTrendResult holds the SuperTrend line and its direction: 1 for an
// uptrend, -1 for a downtrend and 0 during warm-up.
type SuperTrendResult struct {
	Line      []float64
	Direction []int
}

// SuperTrend returns ATR-scaled bands around the bar midpoint. The final
// upper band only moves down and the final lower band only moves up, unless
// the previous close broke through them. The trend flips only when the
// close crosses the opposite band.
func SuperTrend(high, low, close []float64, period int, mult float64) SuperTrendResult {
	res := SuperTrendResult{Line: undefined(len(close)), Direction: make([]int, len(close))}
	atr := ATR(high, low, close, period)
	n := span(high, low, close)

	trend := 1
	seeded := false
	var upper, lower float64
	for i := 0; i < n; i++ {
		if !IsSet(atr[i]) {
			continue
		}
		mid := (high[i] + low[i]) / 2
		basicUpper := mid + mult*atr[i]
		basicLower := mid - mult*atr[i]

		if !seeded {
			upper, lower = basicUpper, basicLower
			seeded = true
		} else {
			prevClose := close[i-1]
			if basicUpper < upper || prevClose > upper {
				upper = basicUpper
			}
			if basicLower > lower || prevClose < lower {
				lower = basicLower
			}
		}

		if trend == 1 && close[i] <= lower {
			trend = -1
		} else if trend == -1 && close[i] >= upper {
			trend = 1
		}

		if trend == 1 {
			res.Line[i] = lower
		} else {
			res.Line[i] = upper
		}
		res.Direction[i] = trend
	}
	return res
}

// Donchian returns the rolling highest high, lowest low and their midpoint.
func Donchian(high, low []float64, period int) Bands {
	b := undefinedBands(len(high))
	n := span(high, low)
	if period <= 0 {
		return b
	}
	for i := period - 1; i < n; i++ {
		hh, ll := highestLowest(high, low, i, period)
		b.Upper[i], b.Lower[i], b.Middle[i] = hh, ll, (hh+ll)/2
	}
	return b
}

// Keltner returns a channel of EMA(close, emaPeriod) plus and minus mult
// times ATR(atrPeriod).
func Keltner(high, low, close []float64, emaPeriod, atrPeriod int, mult float64) Bands {
	b := undefinedBands(len(close))
	ema := EMA(close, emaPeriod)
	atr := ATR(high, low, close, atrPeriod)
	for i := range b.Middle {
		if !IsSet(ema[i]) || !IsSet(atr[i]) {
			continue
		}
		b.Middle[i] = ema[i]
		b.Upper[i] = ema[i] + mult*atr[i]
		b.Lower[i] = ema[i] - mult*atr[i]
	}
	return b
}

// SqueezeResult holds the squeeze state and a momentum proxy per bar.
type SqueezeResult struct {
	On       []bool
	Momentum []float64
}

// Squeeze detects volatility contraction: On is true when the Bollinger band
// (period, bbMult) lies strictly inside the Keltner channel (period EMA,
// 10-bar ATR, kcMult). Momentum is close minus its period SMA and is defined
// wherever both channels are.
func Squeeze(high, low, close []float64, period int, bbMult, kcMult float64) SqueezeResult {
	res := SqueezeResult{On: make([]bool, len(close)), Momentum: undefined(len(close))}
	bb := Bollinger(close, period, bbMult)
	kc := Keltner(high, low, close, period, 10, kcMult)
	sma := SMA(close, period)
	for i := range close {
		if !IsSet(bb.Upper[i]) || !IsSet(kc.Upper[i]) {
			continue
		}
		res.On[i] = bb.Upper[i] < kc.Upper[i] && bb.Lower[i] > kc.Lower[i]
		res.Momentum[i] = close[i] - sma[i]
	}
	return res
}
