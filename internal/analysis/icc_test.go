package analysis

import (
	"testing"

	"futures-trading-bot/internal/market"
)

// displacementSeries builds a quiet base, a 90-point bullish
// displacement, a 5-candle low-volume pullback, and a bullish
// resumption candle.
func displacementSeries() []market.Candle {
	candles := make([]market.Candle, 0, 37)

	// 30 quiet candles around 20000.
	for i := 0; i < 30; i++ {
		candles = append(candles, candle(20000, 20003, 19999, 20002, 1000))
	}

	// Displacement: 90-point bullish body on heavy volume.
	candles = append(candles, candle(20002, 20095, 20000, 20092, 5000))

	// Pullback: five bearish candles on thin volume.
	closes := []float64{20082, 20074, 20066, 20058, 20050}
	open := 20090.0
	for _, close := range closes {
		candles = append(candles, candle(open, open+2, close-2, close, 100))
		open = close
	}

	// Resumption: bullish candle closing above the recent closes.
	candles = append(candles, candle(20050, 20082, 20048, 20080, 2000))

	return candles
}

func TestDetectStructureCompleteLong(t *testing.T) {
	detector := NewICCDetector(1.5, 3.0)
	candles := displacementSeries()

	structure := detector.DetectStructure(candles, true)
	if structure == nil {
		t.Fatal("expected a complete structure, got none")
	}
	if !structure.Complete {
		t.Fatal("expected structure marked complete")
	}

	if structure.Indication.Direction != Long {
		t.Errorf("expected LONG direction, got %s", structure.Indication.Direction)
	}
	if structure.Indication.Index != 30 {
		t.Errorf("expected indication at index 30, got %d", structure.Indication.Index)
	}
	if structure.Correction.StartIndex != 31 || structure.Correction.EndIndex != 35 {
		t.Errorf("expected correction bounding the pullback (31-35), got %d-%d",
			structure.Correction.StartIndex, structure.Correction.EndIndex)
	}
	if structure.Continuation.Index != 36 {
		t.Errorf("expected continuation at index 36, got %d", structure.Continuation.Index)
	}

	// Phase ordering invariant.
	if !(structure.Indication.Index < structure.Correction.StartIndex &&
		structure.Correction.StartIndex <= structure.Correction.EndIndex &&
		structure.Correction.EndIndex < structure.Continuation.Index) {
		t.Errorf("phase indices out of order: %d %d %d %d",
			structure.Indication.Index, structure.Correction.StartIndex,
			structure.Correction.EndIndex, structure.Continuation.Index)
	}
}

func TestDetectStructureInsufficientData(t *testing.T) {
	detector := NewICCDetector(1.5, 3.0)
	candles := displacementSeries()[:10]

	if s := detector.DetectStructure(candles, true); s != nil {
		t.Errorf("expected nil structure on short series")
	}
}

func TestDetectStructureNoDisplacement(t *testing.T) {
	detector := NewICCDetector(1.5, 3.0)
	candles := make([]market.Candle, 0, 40)
	for i := 0; i < 40; i++ {
		candles = append(candles, candle(20000, 20003, 19999, 20002, 1000))
	}

	if s := detector.DetectStructure(candles, true); s != nil {
		t.Errorf("expected nil structure on a quiet series")
	}
}

func TestDetectStructurePartial(t *testing.T) {
	detector := NewICCDetector(1.5, 3.0)

	// Displacement with no pullback after it.
	candles := displacementSeries()[:31]

	if s := detector.DetectStructure(candles, true); s != nil {
		t.Errorf("expected nil when all phases required")
	}

	partial := detector.DetectStructure(candles, false)
	if partial == nil {
		t.Fatal("expected partial structure when not requiring all phases")
	}
	if partial.Complete {
		t.Errorf("partial structure should not be complete")
	}
	if partial.Indication == nil || partial.Indication.Index != 30 {
		t.Errorf("expected indication at 30 in partial structure")
	}
}

func TestValidateSetup(t *testing.T) {
	detector := NewICCDetector(1.5, 3.0)
	candles := displacementSeries()

	structure := detector.DetectStructure(candles, true)
	if structure == nil {
		t.Fatal("expected structure")
	}

	violations := detector.ValidateSetup(candles, structure)
	if len(violations) != 0 {
		t.Errorf("expected valid setup, got violations: %v", violations)
	}

	if v := detector.ValidateSetup(candles, nil); len(v) == 0 {
		t.Errorf("expected violation for nil structure")
	}
}

func TestDeriveTradeLevels(t *testing.T) {
	detector := NewICCDetector(1.5, 3.0)
	candles := displacementSeries()

	structure := detector.DetectStructure(candles, true)
	if structure == nil {
		t.Fatal("expected structure")
	}

	levels := detector.DeriveTradeLevels(candles, structure)
	if levels == nil {
		t.Fatal("expected trade levels")
	}

	if levels.Entry != 20080 {
		t.Errorf("entry should be the continuation close, got %f", levels.Entry)
	}
	if levels.Stop >= 20048 {
		t.Errorf("stop should sit below the correction low with a buffer, got %f", levels.Stop)
	}
	if levels.RMultiple < 3.0 {
		t.Errorf("reward multiple should be at least the preferred 3.0, got %f", levels.RMultiple)
	}

	risk := levels.Entry - levels.Stop
	wantTarget := levels.Entry + risk*levels.RMultiple
	if diff := levels.Target - wantTarget; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("target %f does not match entry + risk*R = %f", levels.Target, wantTarget)
	}

	if incomplete := detector.DeriveTradeLevels(candles, &PhaseStructure{}); incomplete != nil {
		t.Errorf("expected nil levels for incomplete structure")
	}
}
