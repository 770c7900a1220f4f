// Package indicator provides pure technical-analysis functions over daily
// price and volume arrays.
//
// Every function returns a slice with the same length as its primary input.
// Indices inside an indicator's warm-up window hold the sentinel value NaN;
// use IsSet to test for it. Functions never panic for finite-length input:
// inputs shorter than the lookback period, non-positive periods and
// mismatched array lengths all produce sentinels instead of errors.
package indicator

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sentinel is the value stored at indices where an indicator is undefined.
var Sentinel = math.NaN()

// IsSet reports whether v is a defined indicator value.
func IsSet(v float64) bool {
	return !math.IsNaN(v)
}

// Last returns the final value of x, or the sentinel when x is empty.
func Last(x []float64) float64 {
	if len(x) == 0 {
		return Sentinel
	}
	return x[len(x)-1]
}

// undefined returns a slice of length n filled with the sentinel.
func undefined(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Sentinel
	}
	return out
}

// span returns the shortest length among xs. Multi-input indicators only
// compute over the common prefix.
func span(xs ...[]float64) int {
	if len(xs) == 0 {
		return 0
	}
	n := len(xs[0])
	for _, x := range xs[1:] {
		if len(x) < n {
			n = len(x)
		}
	}
	return n
}

// window returns x[i-p+1 : i+1].
func window(x []float64, i, p int) []float64 {
	return x[i-p+1 : i+1]
}

// allSet reports whether every value in w is defined.
func allSet(w []float64) bool {
	for _, v := range w {
		if !IsSet(v) {
			return false
		}
	}
	return true
}

// highestLowest returns the maximum of high and the minimum of low over the
// p values ending at index i.
func highestLowest(high, low []float64, i, p int) (float64, float64) {
	return floats.Max(window(high, i, p)), floats.Min(window(low, i, p))
}

// trueRanges returns the true range of each bar. The first bar has no
// previous close and uses high minus low.
func trueRanges(high, low, close []float64, n int) []float64 {
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := high[i] - low[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}
