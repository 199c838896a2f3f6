package market

import (
	"math"
	"testing"
	"time"
)

func makeCandle(open, high, low, close float64) Candle {
	return Candle{
		Timestamp: time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

func TestCandleDirection(t *testing.T) {
	bull := makeCandle(100, 103, 99, 102)
	if !bull.IsBullish() || bull.IsBearish() {
		t.Errorf("expected bullish candle")
	}
	if bull.Body() != 2 {
		t.Errorf("expected body 2, got %f", bull.Body())
	}

	doji := makeCandle(100, 101, 99, 100)
	if doji.IsBullish() || doji.IsBearish() {
		t.Errorf("doji should be neither bullish nor bearish")
	}
}

func TestTrueRange(t *testing.T) {
	c := makeCandle(100, 105, 98, 103)

	// Plain range dominates when the previous close is inside it.
	if tr := TrueRange(c, 100); tr != 7 {
		t.Errorf("expected true range 7, got %f", tr)
	}

	// Gap above: distance from previous close to the low dominates.
	if tr := TrueRange(c, 90); tr != 15 {
		t.Errorf("expected true range 15, got %f", tr)
	}

	// Gap below: distance from previous close to the high dominates.
	if tr := TrueRange(c, 110); tr != 12 {
		t.Errorf("expected true range 12, got %f", tr)
	}
}

func TestATRInsufficientData(t *testing.T) {
	candles := []Candle{
		makeCandle(100, 101, 99, 100),
		makeCandle(100, 101, 99, 100),
	}
	if atr := ATR(candles, 14); atr != 0 {
		t.Errorf("expected 0 ATR with insufficient data, got %f", atr)
	}
}

func TestATRFlatSeries(t *testing.T) {
	candles := make([]Candle, 16)
	for i := range candles {
		candles[i] = makeCandle(100, 102, 98, 100)
	}
	if atr := ATR(candles, 14); math.Abs(atr-4) > 1e-9 {
		t.Errorf("expected ATR 4 on constant-range series, got %f", atr)
	}
}

func TestSwingExtremes(t *testing.T) {
	candles := []Candle{
		makeCandle(100, 104, 97, 101),
		makeCandle(101, 106, 99, 103),
		makeCandle(103, 105, 95, 100),
	}

	low, ok := SwingLow(candles)
	if !ok || low != 95 {
		t.Errorf("expected swing low 95, got %f ok=%v", low, ok)
	}
	high, ok := SwingHigh(candles)
	if !ok || high != 106 {
		t.Errorf("expected swing high 106, got %f ok=%v", high, ok)
	}

	if _, ok := SwingLow(candles[:2]); ok {
		t.Errorf("expected no swing with fewer than 3 candles")
	}
}

func TestLinkPrevCloses(t *testing.T) {
	candles := []Candle{
		makeCandle(100, 101, 99, 100.5),
		makeCandle(100.5, 102, 100, 101),
		makeCandle(101, 103, 100, 102),
	}
	LinkPrevCloses(candles)

	if candles[0].PrevClose != 0 {
		t.Errorf("first candle should keep zero prev close")
	}
	if candles[1].PrevClose != 100.5 || candles[2].PrevClose != 101 {
		t.Errorf("prev closes not linked: %f %f", candles[1].PrevClose, candles[2].PrevClose)
	}
}
