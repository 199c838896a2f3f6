package market

import (
	"math"
	"time"
)

// Candle represents a single OHLCV bar for an instrument.
// Candles are append-only; the only field attached after creation is
// PrevClose, which gap arithmetic needs and which is filled in from the
// preceding bar when a series is assembled.
type Candle struct {
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	Instrument string    `json:"instrument"`
	PrevClose  float64   `json:"prev_close,omitempty"`
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute body size of the candle.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// LinkPrevCloses fills in the PrevClose hint on each candle from the
// preceding candle's close. The first candle is left untouched.
func LinkPrevCloses(candles []Candle) {
	for i := 1; i < len(candles); i++ {
		candles[i].PrevClose = candles[i-1].Close
	}
}

// TrueRange returns the true range of a candle given the previous close:
// the largest of high-low, |high-prevClose| and |low-prevClose|.
func TrueRange(c Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if v := math.Abs(c.High - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(c.Low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// ATR calculates the Average True Range as a simple moving average of the
// last period true ranges. Returns 0 if there are fewer than period+1
// candles.
func ATR(candles []Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trueRanges = append(trueRanges, TrueRange(candles[i], candles[i-1].Close))
	}

	sum := 0.0
	for _, tr := range trueRanges[len(trueRanges)-period:] {
		sum += tr
	}
	return sum / float64(period)
}

// SwingLow returns the lowest low across the given candles.
// Returns 0, false when fewer than 3 candles are available.
func SwingLow(candles []Candle) (float64, bool) {
	if len(candles) < 3 {
		return 0, false
	}
	low := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low, true
}

// SwingHigh returns the highest high across the given candles.
// Returns 0, false when fewer than 3 candles are available.
func SwingHigh(candles []Candle) (float64, bool) {
	if len(candles) < 3 {
		return 0, false
	}
	high := candles[0].High
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
	}
	return high, true
}
