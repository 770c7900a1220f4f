// Package builtins provides the scoring models that ship with quantmind.
package builtins

import (
	"fmt"

	"quantmind/internal/strategy"
)

// Model ids.
const (
	Master         strategy.ModelID = "master"
	GoldenCross    strategy.ModelID = "golden_cross"
	VolumeBreakout strategy.ModelID = "volume_breakout"
	Squeeze        strategy.ModelID = "squeeze"
	OBV            strategy.ModelID = "obv"
	TEMA           strategy.ModelID = "tema"
	RSI            strategy.ModelID = "rsi"
	Bollinger      strategy.ModelID = "bollinger"
	Stoch          strategy.ModelID = "stoch"
	ADX            strategy.ModelID = "adx"
	VWMA           strategy.ModelID = "vwma"
	PSAR           strategy.ModelID = "psar"
	Donchian       strategy.ModelID = "donchian"
	Keltner        strategy.ModelID = "keltner"
	Ichimoku       strategy.ModelID = "ichimoku"
	Aroon          strategy.ModelID = "aroon"
	CMF            strategy.ModelID = "cmf"
	Ultimate       strategy.ModelID = "ultimate"
)

// descriptors lists every built-in model in registry order.
var descriptors = []strategy.Descriptor{
	{ID: Master, DisplayName: "Technical Score (Master)", DefaultThreshold: 75, Description: "Aggregated score of 17 indicators"},
	{ID: GoldenCross, DisplayName: "Golden Cross Trend", DefaultThreshold: 60, Description: "Buy when SMA 50 > SMA 200 (Long Term Bull)"},
	{ID: VolumeBreakout, DisplayName: "Volume Breakout", DefaultThreshold: 70, Description: "Buy when Price > 20d High AND Vol > 2x Avg"},
	{ID: Squeeze, DisplayName: "TTM Squeeze", DefaultThreshold: 70, Description: "Buy on Volatility Breakout (Squeeze Release)"},
	{ID: OBV, DisplayName: "OBV Trend", DefaultThreshold: 60, Description: "Buy when OBV > SMA(20)"},
	{ID: TEMA, DisplayName: "TEMA Crossover", DefaultThreshold: 60, Description: "Buy when Short TEMA > Long TEMA"},
	{ID: RSI, DisplayName: "Smart RSI Pullback", DefaultThreshold: 70, Description: "Buy when RSI < 30 & Price > SMA 200"},
	{ID: Bollinger, DisplayName: "Bollinger Band Dip", DefaultThreshold: 80, Description: "Buy when price touches lower band"},
	{ID: Stoch, DisplayName: "Stochastic Trend", DefaultThreshold: 80, Description: "Buy when %K < 20 & Price > SMA 200"},
	{ID: ADX, DisplayName: "ADX Trend Strength", DefaultThreshold: 70, Description: "Buy when Trend is Strong & Bullish"},
	{ID: VWMA, DisplayName: "VWMA Trend", DefaultThreshold: 60, Description: "Buy when Price > Volume Weighted MA"},
	{ID: PSAR, DisplayName: "Parabolic SAR", DefaultThreshold: 70, Description: "Buy when Price > SAR"},
	{ID: Donchian, DisplayName: "Donchian Breakout", DefaultThreshold: 80, Description: "Buy on 20-day High Breakout"},
	{ID: Keltner, DisplayName: "Keltner Channel", DefaultThreshold: 70, Description: "Buy on Upper Channel Breakout"},
	{ID: Ichimoku, DisplayName: "Ichimoku Cloud", DefaultThreshold: 70, Description: "Buy when Price > Cloud & Tenkan > Kijun"},
	{ID: Aroon, DisplayName: "Aroon Oscillator", DefaultThreshold: 60, Description: "Buy when Aroon Up > Down"},
	{ID: CMF, DisplayName: "Chaikin Money Flow", DefaultThreshold: 60, Description: "Buy when Accumulation > 0"},
	{ID: Ultimate, DisplayName: "Ultimate Oscillator", DefaultThreshold: 70, Description: "Buy when Oversold (Low Value)"},
}

// scorers is the dispatch table from model id to scoring function. It must
// hold exactly one entry per descriptor.
var scorers = map[strategy.ModelID]strategy.ScoreFunc{
	Master:         scoreMaster,
	GoldenCross:    scoreGoldenCross,
	VolumeBreakout: scoreVolumeBreakout,
	Squeeze:        scoreSqueeze,
	OBV:            scoreOBV,
	TEMA:           scoreTEMA,
	RSI:            scoreRSI,
	Bollinger:      scoreBollinger,
	Stoch:          scoreStoch,
	ADX:            scoreADX,
	VWMA:           scoreVWMA,
	PSAR:           scorePSAR,
	Donchian:       scoreDonchian,
	Keltner:        scoreKeltner,
	Ichimoku:       scoreIchimoku,
	Aroon:          scoreAroon,
	CMF:            scoreCMF,
	Ultimate:       scoreUltimate,
}

// Descriptors returns the built-in model descriptors in registry order.
func Descriptors() []strategy.Descriptor {
	out := make([]strategy.Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// NewRegistry returns a registry holding every built-in model. It panics if
// the descriptor list and the dispatch table disagree.
func NewRegistry() *strategy.Registry {
	if len(scorers) != len(descriptors) {
		panic(fmt.Sprintf("builtins: %d scorers for %d descriptors", len(scorers), len(descriptors)))
	}
	r := strategy.NewRegistry()
	for _, d := range descriptors {
		fn, ok := scorers[d.ID]
		if !ok {
			panic(fmt.Sprintf("builtins: no scorer for model %q", d.ID))
		}
		r.MustRegister(strategy.Model{Descriptor: d, Score: fn})
	}
	return r
}

// series returns a score slice of length n filled with v.
func series(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// pick returns a when cond holds, otherwise b.
func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
