package indicator

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RSI returns Wilder's Relative Strength Index. The first value is at index
// period; average gains and losses are smoothed recursively after that. A
// window with no losses yields 100, a completely flat window yields 50.
func RSI(x []float64, period int) []float64 {
	out := undefined(len(x))
	if period <= 0 || len(x) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		if ch := x[i] - x[i-1]; ch > 0 {
			avgGain += ch
		} else {
			avgLoss -= ch
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(x); i++ {
		ch := x[i] - x[i-1]
		gain, loss := 0.0, 0.0
		if ch > 0 {
			gain = ch
		} else {
			loss = -ch
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACDResult holds the three MACD lines.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD returns EMA(fast) - EMA(slow), its signal EMA and the histogram.
func MACD(x []float64, fast, slow, signal int) MACDResult {
	ef, es := EMA(x, fast), EMA(x, slow)
	line := make([]float64, len(x))
	for i := range line {
		line[i] = ef[i] - es[i]
	}
	sig := EMA(line, signal)
	hist := make([]float64, len(x))
	for i := range hist {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// StochResult holds the stochastic %K and %D lines.
type StochResult struct {
	K []float64
	D []float64
}

// Stochastic returns %K, the position of close within the rolling high/low
// range over period bars, and %D, its dPeriod SMA. A flat range yields 50.
func Stochastic(high, low, close []float64, period, dPeriod int) StochResult {
	k := undefined(len(close))
	n := span(high, low, close)
	if period > 0 {
		for i := period - 1; i < n; i++ {
			hh, ll := highestLowest(high, low, i, period)
			if hh == ll {
				k[i] = 50
				continue
			}
			k[i] = (close[i] - ll) / (hh - ll) * 100
		}
	}
	return StochResult{K: k, D: SMA(k, dPeriod)}
}

// WilliamsR returns Williams %R in [-100, 0]. A flat range yields -50.
func WilliamsR(high, low, close []float64, period int) []float64 {
	out := undefined(len(close))
	n := span(high, low, close)
	if period <= 0 {
		return out
	}
	for i := period - 1; i < n; i++ {
		hh, ll := highestLowest(high, low, i, period)
		if hh == ll {
			out[i] = -50
			continue
		}
		out[i] = (hh - close[i]) / (hh - ll) * -100
	}
	return out
}

// CCI returns the Commodity Channel Index: the deviation of the typical price
// from its SMA divided by 0.015 times the mean absolute deviation. A window
// with zero deviation yields 0.
func CCI(high, low, close []float64, period int) []float64 {
	n := span(high, low, close)
	tp := typicalPrices(high, low, close, n)
	sma := SMA(tp, period)

	out := undefined(len(close))
	for i := 0; i < n; i++ {
		if !IsSet(sma[i]) {
			continue
		}
		var md float64
		for _, v := range window(tp, i, period) {
			md += math.Abs(v - sma[i])
		}
		md /= float64(period)
		if md == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - sma[i]) / (0.015 * md)
	}
	return out
}

// ROC returns the percentage rate of change over period bars. A zero base
// price yields 0.
func ROC(x []float64, period int) []float64 {
	out := undefined(len(x))
	if period <= 0 {
		return out
	}
	for i := period; i < len(x); i++ {
		base := x[i-period]
		if base == 0 {
			out[i] = 0
			continue
		}
		out[i] = (x[i] - base) / base * 100
	}
	return out
}

// MFI returns the Money Flow Index, a volume-weighted RSI over typical
// prices. No negative flow yields 100 (or 50 when there is no flow at all).
func MFI(high, low, close, volume []float64, period int) []float64 {
	out := undefined(len(close))
	n := span(high, low, close, volume)
	if period <= 0 || n <= period {
		return out
	}
	tp := typicalPrices(high, low, close, n)
	pos := make([]float64, n)
	neg := make([]float64, n)
	for i := 1; i < n; i++ {
		flow := tp[i] * volume[i]
		switch {
		case tp[i] > tp[i-1]:
			pos[i] = flow
		case tp[i] < tp[i-1]:
			neg[i] = flow
		}
	}
	for i := period; i < n; i++ {
		sumPos := floats.Sum(pos[i-period+1 : i+1])
		sumNeg := floats.Sum(neg[i-period+1 : i+1])
		switch {
		case sumNeg == 0 && sumPos == 0:
			out[i] = 50
		case sumNeg == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+sumPos/sumNeg)
		}
	}
	return out
}

// AroonResult holds Aroon Up, Aroon Down and their difference.
type AroonResult struct {
	Up         []float64
	Down       []float64
	Oscillator []float64
}

// Aroon measures how recently, in bars, the highest high and lowest low of
// the last period+1 bars occurred. The most recent extreme wins ties.
func Aroon(high, low []float64, period int) AroonResult {
	res := AroonResult{
		Up:         undefined(len(high)),
		Down:       undefined(len(high)),
		Oscillator: undefined(len(high)),
	}
	n := span(high, low)
	if period <= 0 {
		return res
	}
	for i := period; i < n; i++ {
		maxH, minL := math.Inf(-1), math.Inf(1)
		sinceHigh, sinceLow := 0, 0
		for j := 0; j <= period; j++ {
			if h := high[i-j]; h > maxH {
				maxH, sinceHigh = h, j
			}
			if l := low[i-j]; l < minL {
				minL, sinceLow = l, j
			}
		}
		up := float64(period-sinceHigh) / float64(period) * 100
		down := float64(period-sinceLow) / float64(period) * 100
		res.Up[i], res.Down[i], res.Oscillator[i] = up, down, up-down
	}
	return res
}

// UltimateOscillator combines buying-pressure to true-range ratios over three
// periods, weighted 4:2:1 and normalized by 7.
func UltimateOscillator(high, low, close []float64, p1, p2, p3 int) []float64 {
	out := undefined(len(close))
	n := span(high, low, close)
	longest := max(p1, p2, p3)
	if min(p1, p2, p3) <= 0 {
		return out
	}
	bp := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		prev := close[i-1]
		floor := math.Min(low[i], prev)
		bp[i] = close[i] - floor
		tr[i] = math.Max(high[i], prev) - floor
	}
	avg := func(i, p int) float64 {
		sTR := floats.Sum(window(tr, i, p))
		if sTR == 0 {
			return 0
		}
		return floats.Sum(window(bp, i, p)) / sTR
	}
	for i := longest; i < n; i++ {
		out[i] = 100 * (4*avg(i, p1) + 2*avg(i, p2) + avg(i, p3)) / 7
	}
	return out
}

func typicalPrices(high, low, close []float64, n int) []float64 {
	tp := make([]float64, n)
	for i := range tp {
		tp[i] = (high[i] + low[i] + close[i]) / 3
	}
	return tp
}
