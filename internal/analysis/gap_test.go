package analysis

import (
	"testing"

	"futures-trading-bot/internal/market"
)

func flatCandle(price float64) market.Candle {
	return candle(price, price+0.5, price-0.5, price, 1000)
}

func TestGapFormation(t *testing.T) {
	tracker := NewGapTracker("MNQ", 0.25, 4, 50)

	_, formed := tracker.ProcessCandle(flatCandle(100), 0)
	if formed != nil {
		t.Errorf("no gap expected without a previous close")
	}

	// Open jumps 2 points above the previous close: 8 ticks, over the
	// 4-tick minimum.
	up := candle(102, 103, 101.5, 102.5, 1000)
	_, formed = tracker.ProcessCandle(up, 100)
	if formed == nil {
		t.Fatal("expected an UP gap")
	}
	if formed.Direction != GapUp {
		t.Errorf("expected UP direction, got %s", formed.Direction)
	}
	if formed.LowEdge != 100 || formed.HighEdge != 102 {
		t.Errorf("expected edges 100-102, got %f-%f", formed.LowEdge, formed.HighEdge)
	}

	// A 2-tick jump stays under the minimum.
	small := candle(103, 103.5, 102.5, 103, 1000)
	_, formed = tracker.ProcessCandle(small, 102.5)
	if formed != nil {
		t.Errorf("gap under the minimum tick distance should be ignored")
	}
}

func TestGapDownFormation(t *testing.T) {
	tracker := NewGapTracker("MNQ", 0.25, 4, 50)
	tracker.ProcessCandle(flatCandle(100), 0)

	down := candle(98, 98.5, 97, 97.5, 1000)
	_, formed := tracker.ProcessCandle(down, 100)
	if formed == nil || formed.Direction != GapDown {
		t.Fatal("expected a DOWN gap")
	}
	if formed.LowEdge != 98 || formed.HighEdge != 100 {
		t.Errorf("expected edges 98-100, got %f-%f", formed.LowEdge, formed.HighEdge)
	}
}

func TestGapFillAndInversion(t *testing.T) {
	tracker := NewGapTracker("MNQ", 0.25, 4, 50)
	tracker.ProcessCandle(flatCandle(100), 0)

	_, gap := tracker.ProcessCandle(candle(102, 103, 101.5, 102.5, 1000), 100)
	if gap == nil {
		t.Fatal("expected gap")
	}

	// Price dips into the range but closes above the low edge: filled,
	// not inverted.
	inverted, _ := tracker.ProcessCandle(candle(102.5, 103, 101, 102, 1000), 102.5)
	if inverted != nil {
		t.Fatal("fill alone must not invert")
	}
	if !gap.Filled {
		t.Errorf("expected gap marked filled after range re-entry")
	}

	// Close below the low edge inverts the UP gap.
	inverted, _ = tracker.ProcessCandle(candle(101, 101.5, 99, 99.5, 1000), 102)
	if inverted == nil {
		t.Fatal("expected inversion when close crosses the far edge")
	}
	if !inverted.Inverted {
		t.Errorf("inverted flag not set")
	}
}

func TestGapExpiry(t *testing.T) {
	tracker := NewGapTracker("MNQ", 0.25, 4, 3)
	tracker.ProcessCandle(flatCandle(100), 0)
	tracker.ProcessCandle(candle(102, 103, 101.5, 102.5, 1000), 100)

	if len(tracker.ActiveGaps()) != 1 {
		t.Fatal("expected one active gap")
	}

	// Age the gap past the 3-candle maximum without touching it.
	for i := 0; i < 4; i++ {
		tracker.ProcessCandle(candle(103, 103.5, 102.5, 103, 1000), 103)
	}

	if len(tracker.ActiveGaps()) != 0 {
		t.Errorf("expected expired gap to be dropped, %d remain", len(tracker.ActiveGaps()))
	}
}

func TestRecentInversionWindow(t *testing.T) {
	tracker := NewGapTracker("MNQ", 0.25, 4, 50)
	tracker.ProcessCandle(flatCandle(100), 0)
	tracker.ProcessCandle(candle(102, 103, 101.5, 102.5, 1000), 100)

	inverted, _ := tracker.ProcessCandle(candle(101, 101.5, 99, 99.5, 1000), 102.5)
	if inverted == nil {
		t.Fatal("expected inversion")
	}

	if tracker.RecentInversion() == nil {
		t.Errorf("inversion should be recent immediately after the close")
	}

	// Six more candles put the inversion outside the window.
	for i := 0; i < 6; i++ {
		tracker.ProcessCandle(flatCandle(99.5), 99.5)
	}

	if tracker.RecentInversion() != nil {
		t.Errorf("inversion older than the window should not be reported")
	}
}

func TestGapReset(t *testing.T) {
	tracker := NewGapTracker("MNQ", 0.25, 4, 50)
	tracker.ProcessCandle(flatCandle(100), 0)
	tracker.ProcessCandle(candle(102, 103, 101.5, 102.5, 1000), 100)

	tracker.Reset()
	if tracker.CandleCount() != 0 || len(tracker.ActiveGaps()) != 0 {
		t.Errorf("reset should clear state")
	}
}
