package analysis

import (
	"testing"
	"time"

	"futures-trading-bot/internal/market"
)

func candle(open, high, low, close, volume float64) market.Candle {
	return market.Candle{
		Timestamp: time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

func TestCalculateSeriesLength(t *testing.T) {
	calc := NewCVDCalculator()
	candles := []market.Candle{
		candle(100, 102, 99, 101, 1000),
		candle(101, 102, 99, 100, 1000),
		candle(100, 101, 99, 100, 1000),
	}

	values := calc.Calculate(candles)
	if len(values) != len(candles) {
		t.Fatalf("expected %d values, got %d", len(candles), len(values))
	}
}

func TestCalculateDeltaSplits(t *testing.T) {
	calc := NewCVDCalculator()
	candles := []market.Candle{
		candle(100, 102, 99, 101, 1000), // bullish: +0.04 * 1000
		candle(101, 102, 99, 100, 1000), // bearish: -0.04 * 1000
		candle(100, 101, 99, 100, 1000), // doji: 0
	}

	values := calc.Calculate(candles)
	want := []float64{40, 0, 0}
	for i, v := range values {
		if diff := v - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("value[%d] = %f, want %f", i, v, want[i])
		}
	}
}

func TestCalculateIdempotent(t *testing.T) {
	candles := make([]market.Candle, 0, 50)
	price := 100.0
	for i := 0; i < 50; i++ {
		close := price + float64(i%3-1)
		candles = append(candles, candle(price, price+2, price-2, close, 1000+float64(i)))
		price = close
	}

	first := NewCVDCalculator().Calculate(candles)
	second := NewCVDCalculator().Calculate(candles)

	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("value[%d] differs: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestCheckDivergence(t *testing.T) {
	calc := NewCVDCalculator()

	// Closes rise while every candle is bearish, so CVD falls.
	candles := []market.Candle{
		candle(105, 106, 100, 101, 1000),
		candle(107, 108, 102, 103, 1000),
		candle(109, 110, 104, 105, 1000),
		candle(111, 112, 106, 107, 1000),
		candle(113, 114, 108, 109, 1000),
	}
	calc.Calculate(candles)

	diverged, reason := calc.CheckDivergence(candles, 5)
	if !diverged {
		t.Errorf("expected divergence, got none (%s)", reason)
	}
}

func TestCheckDivergenceInsufficientData(t *testing.T) {
	calc := NewCVDCalculator()
	candles := []market.Candle{candle(100, 101, 99, 100.5, 1000)}
	calc.Calculate(candles)

	if diverged, _ := calc.CheckDivergence(candles, 5); diverged {
		t.Errorf("expected no divergence on insufficient data")
	}
}

func TestValidateCorrectionNeutralization(t *testing.T) {
	calc := NewCVDCalculator()

	// Strong buying, then a low-volume pullback: the delta change over
	// the correction should be a fraction of the preceding move.
	candles := []market.Candle{
		candle(100, 102, 99, 101, 5000),
		candle(101, 103, 100, 102, 5000),
		candle(102, 104, 101, 103, 5000),
		candle(103, 105, 102, 104, 5000),
		candle(104, 106, 103, 105, 5000),
		candle(105, 106, 103, 104, 100), // correction start
		candle(104, 105, 102, 103, 100),
		candle(103, 104, 101, 102, 100), // correction end
	}
	calc.Calculate(candles)

	if ok, reason := calc.ValidateCorrection(5, 7); !ok {
		t.Errorf("expected neutralizing correction, got: %s", reason)
	}
}

func TestValidateCorrectionStillStrong(t *testing.T) {
	calc := NewCVDCalculator()

	// Correction volume matches the prior move, so no neutralization.
	candles := []market.Candle{
		candle(100, 102, 99, 101, 1000),
		candle(101, 103, 100, 102, 1000),
		candle(102, 104, 101, 103, 1000),
		candle(103, 104, 101, 102, 2000),
		candle(102, 103, 100, 101, 2000),
		candle(101, 102, 99, 100, 2000),
	}
	calc.Calculate(candles)

	if ok, _ := calc.ValidateCorrection(3, 5); ok {
		t.Errorf("expected correction to fail neutralization check")
	}
}

func TestValidateIndicationAlignment(t *testing.T) {
	calc := NewCVDCalculator()
	candles := []market.Candle{
		candle(100, 102, 99, 101, 1000),
		candle(101, 105, 100, 104, 3000), // bullish with positive delta
	}
	calc.Calculate(candles)

	if ok, reason := calc.ValidateIndication(candles, 1); !ok {
		t.Errorf("expected aligned indication, got: %s", reason)
	}
	if ok, _ := calc.ValidateIndication(candles, 5); ok {
		t.Errorf("expected invalid index to fail")
	}
}

func TestSlope(t *testing.T) {
	calc := NewCVDCalculator()
	candles := make([]market.Candle, 10)
	for i := range candles {
		candles[i] = candle(100, 102, 99, 101, 1000) // constant +40 delta
	}
	calc.Calculate(candles)

	slope := calc.Slope(5)
	if diff := slope - 40; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected slope 40 on linear series, got %f", slope)
	}

	if s := calc.Slope(100); s != 0 {
		t.Errorf("expected 0 slope with too little data, got %f", s)
	}
}
