package broker

import (
	"testing"
	"time"
)

func TestSyntheticDeterministic(t *testing.T) {
	gen := NewSyntheticGenerator(0)

	a := gen.Candles("MNQ", 5*time.Minute, 100)
	b := gen.Candles("MNQ", 5*time.Minute, 100)

	if len(a) != 100 || len(b) != 100 {
		t.Fatalf("expected 100 candles, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("candle %d differs between identical calls", i)
		}
	}
}

func TestSyntheticInstrumentsDiffer(t *testing.T) {
	gen := NewSyntheticGenerator(0)

	mnq := gen.Candles("MNQ", 5*time.Minute, 50)
	mes := gen.Candles("MES", 5*time.Minute, 50)

	same := true
	for i := range mnq {
		if mnq[i].Close != mes[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Errorf("different instruments should walk different paths")
	}
}

func TestSyntheticCandleShape(t *testing.T) {
	gen := NewSyntheticGenerator(7)
	candles := gen.Candles("MNQ", time.Minute, 200)

	for i, c := range candles {
		if c.High < c.Open || c.High < c.Close {
			t.Fatalf("candle %d: high below open/close", i)
		}
		if c.Low > c.Open || c.Low > c.Close {
			t.Fatalf("candle %d: low above open/close", i)
		}
		if c.Volume <= 0 {
			t.Fatalf("candle %d: non-positive volume", i)
		}
		if i > 0 {
			if c.PrevClose != candles[i-1].Close {
				t.Fatalf("candle %d: prev_close not linked", i)
			}
			if c.Open != candles[i-1].Close {
				t.Fatalf("candle %d: open should continue the walk", i)
			}
			if got := c.Timestamp.Sub(candles[i-1].Timestamp); got != time.Minute {
				t.Fatalf("candle %d: interval %s, want 1m", i, got)
			}
		}
	}
}

func TestSyntheticEmpty(t *testing.T) {
	gen := NewSyntheticGenerator(0)
	if got := gen.Candles("MNQ", time.Minute, 0); got != nil {
		t.Errorf("zero count should yield nil, got %d candles", len(got))
	}
}
