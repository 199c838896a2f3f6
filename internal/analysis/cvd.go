package analysis

import (
	"fmt"
	"math"

	"futures-trading-bot/internal/market"
)

// Buy-volume fractions assigned per candle direction. Real bid/ask volume
// is not available from bar data, so volume is split with a fixed heuristic.
const (
	bullishBuyFraction = 0.52
	bearishBuyFraction = 0.48
	dojiBuyFraction    = 0.50
)

// CVDCalculator computes and analyzes Cumulative Volume Delta for trade
// confirmation. CVD tracks estimated cumulative buy volume vs sell volume
// over a candle series.
type CVDCalculator struct {
	values []float64
}

// NewCVDCalculator creates a new CVD calculator with empty state.
func NewCVDCalculator() *CVDCalculator {
	return &CVDCalculator{}
}

// Calculate computes the cumulative volume delta series for the given
// candles, replacing any prior state. The result has one value per candle
// and is a pure function of the input series.
func (c *CVDCalculator) Calculate(candles []market.Candle) []float64 {
	values := make([]float64, 0, len(candles))
	cumulative := 0.0

	for _, candle := range candles {
		cumulative += volumeDelta(candle)
		values = append(values, cumulative)
	}

	c.values = values
	return values
}

// volumeDelta estimates the buy-minus-sell volume of a single candle.
func volumeDelta(c market.Candle) float64 {
	var buyFraction float64
	switch {
	case c.IsBullish():
		buyFraction = bullishBuyFraction
	case c.IsBearish():
		buyFraction = bearishBuyFraction
	default:
		buyFraction = dojiBuyFraction
	}

	buy := c.Volume * buyFraction
	sell := c.Volume - buy
	return buy - sell
}

// Values returns the most recently computed CVD series.
func (c *CVDCalculator) Values() []float64 {
	return c.values
}

// Current returns the latest cumulative value, or 0 with no data.
func (c *CVDCalculator) Current() float64 {
	if len(c.values) == 0 {
		return 0
	}
	return c.values[len(c.values)-1]
}

// CheckDivergence compares the price trend against the CVD trend over the
// last lookback candles. Trend is the sign of last-minus-first over the
// window; divergence is flagged when the two disagree.
func (c *CVDCalculator) CheckDivergence(candles []market.Candle, lookback int) (bool, string) {
	if len(candles) < lookback || len(c.values) < lookback {
		return false, "insufficient data"
	}

	recentCandles := candles[len(candles)-lookback:]
	recentCVD := c.values[len(c.values)-lookback:]

	priceUp := recentCandles[len(recentCandles)-1].Close > recentCandles[0].Close
	cvdUp := recentCVD[len(recentCVD)-1] > recentCVD[0]

	switch {
	case priceUp && !cvdUp:
		return true, "bearish divergence: price up, CVD down"
	case !priceUp && cvdUp:
		return true, "bullish divergence: price down, CVD up"
	default:
		return false, fmt.Sprintf("no divergence: price %s, CVD %s", trendWord(priceUp), trendWord(cvdUp))
	}
}

func trendWord(up bool) string {
	if up {
		return "UP"
	}
	return "DOWN"
}

// ValidateIndication checks CVD behavior at the indication candle: the
// delta change at that candle must point in the same direction as the
// candle's price move.
func (c *CVDCalculator) ValidateIndication(candles []market.Candle, idx int) (bool, string) {
	return c.validateAlignment(candles, idx, "indication")
}

// ValidateContinuation checks CVD behavior at the continuation candle:
// the delta change must resume in the direction of the price move.
func (c *CVDCalculator) ValidateContinuation(candles []market.Candle, idx int) (bool, string) {
	return c.validateAlignment(candles, idx, "continuation")
}

func (c *CVDCalculator) validateAlignment(candles []market.Candle, idx int, phase string) (bool, string) {
	if idx < 0 || idx >= len(candles) || idx >= len(c.values) {
		return false, fmt.Sprintf("invalid %s candle index", phase)
	}

	priceUp := candles[idx].Close > candles[idx].Open

	var before float64
	if idx > 0 {
		before = c.values[idx-1]
	}
	cvdUp := c.values[idx]-before > 0

	if priceUp == cvdUp {
		return true, fmt.Sprintf("valid %s: price %s, CVD %s", phase, trendWord(priceUp), trendWord(cvdUp))
	}
	return false, fmt.Sprintf("invalid %s: price %s, CVD %s", phase, trendWord(priceUp), trendWord(cvdUp))
}

// correctionNeutralizationRatio is the fraction of the preceding CVD move
// below which the correction-phase CVD change counts as neutralizing.
const correctionNeutralizationRatio = 0.6

// ValidateCorrection checks CVD behavior across the correction range:
// the magnitude of the CVD change must shrink below 60% of the magnitude
// measured over the five candles preceding the correction.
func (c *CVDCalculator) ValidateCorrection(start, end int) (bool, string) {
	if start >= end || end >= len(c.values) {
		return false, "invalid correction range"
	}

	change := math.Abs(c.values[end] - c.values[start])

	if start > 0 {
		refStart := start - 5
		if refStart < 0 {
			refStart = 0
		}
		prevChange := math.Abs(c.values[start] - c.values[refStart])

		if change < prevChange*correctionNeutralizationRatio {
			return true, "valid correction: CVD neutralizing"
		}
		return false, "invalid correction: CVD still strong"
	}

	return true, "correction CVD valid"
}

// Slope returns the linear-regression slope of the last lookback CVD
// values, a rough trend-strength measure. Returns 0 with too little data.
func (c *CVDCalculator) Slope(lookback int) float64 {
	if len(c.values) < lookback || lookback <= 0 {
		return 0
	}

	recent := c.values[len(c.values)-lookback:]
	n := float64(len(recent))

	var xSum, ySum, xySum, x2Sum float64
	for i, y := range recent {
		x := float64(i)
		xSum += x
		ySum += y
		xySum += x * y
		x2Sum += x * x
	}

	denom := n*x2Sum - xSum*xSum
	if denom == 0 {
		return 0
	}
	return (n*xySum - xSum*ySum) / denom
}

// Reset clears the CVD history.
func (c *CVDCalculator) Reset() {
	c.values = nil
}
