package signal

import (
	"math"
	"testing"
)

func TestNewBuySignal(t *testing.T) {
	sig, err := New("ICC", "MNQ", Buy, 18500, 18490, []float64{18530}, 750, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sig.SignalID == "" {
		t.Errorf("expected non-empty signal id")
	}
	if sig.StopDistance() != 10 {
		t.Errorf("expected stop distance 10, got %f", sig.StopDistance())
	}
	if sig.CreatedAt.IsZero() {
		t.Errorf("expected created_at to be set")
	}
}

func TestNewRejectsWrongSideStop(t *testing.T) {
	if _, err := New("ICC", "MNQ", Buy, 18500, 18510, []float64{18530}, 750, ""); err == nil {
		t.Errorf("BUY with stop above entry should fail")
	}
	if _, err := New("ICC", "MNQ", Sell, 18500, 18490, []float64{18470}, 750, ""); err == nil {
		t.Errorf("SELL with stop below entry should fail")
	}
}

func TestNewRejectsWrongSideTakeProfit(t *testing.T) {
	if _, err := New("GAP", "MNQ", Buy, 18500, 18490, []float64{18480}, 750, ""); err == nil {
		t.Errorf("BUY with take-profit below entry should fail")
	}
	if _, err := New("GAP", "MNQ", Sell, 18500, 18510, []float64{18520}, 750, ""); err == nil {
		t.Errorf("SELL with take-profit above entry should fail")
	}
}

func TestNewRejectsEmptyTakeProfits(t *testing.T) {
	if _, err := New("ICC", "MNQ", Buy, 18500, 18490, nil, 750, ""); err == nil {
		t.Errorf("empty take-profit list should fail")
	}
}

func TestNewRejectsBadDirection(t *testing.T) {
	if _, err := New("ICC", "MNQ", Direction("HOLD"), 18500, 18490, []float64{18530}, 750, ""); err == nil {
		t.Errorf("unknown direction should fail")
	}
}

func TestRMultiples(t *testing.T) {
	sig, err := New("GAP", "MNQ", Sell, 18500, 18510, []float64{18485, 18475}, 750, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	multiples := sig.RMultiples()
	want := []float64{1.5, 2.5}
	for i, r := range multiples {
		if math.Abs(r-want[i]) > 1e-9 {
			t.Errorf("r_multiple[%d] = %f, want %f", i, r, want[i])
		}
	}
	if worst := sig.WorstRMultiple(); math.Abs(worst-1.5) > 1e-9 {
		t.Errorf("worst r_multiple = %f, want 1.5", worst)
	}
}

func TestSignalIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sig, err := New("ICC", "MNQ", Buy, 18500, 18490, []float64{18530}, 750, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[sig.SignalID] {
			t.Fatalf("duplicate signal id %s", sig.SignalID)
		}
		seen[sig.SignalID] = true
	}
}
