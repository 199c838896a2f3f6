package risk

import (
	"errors"
	"math"
	"testing"

	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/signal"
)

func testManager() *Manager {
	return NewManager(Config{
		AccountSize:    100000,
		MaxRiskUSD:     1000,
		DailyLossLimit: 2000,
		MinRMultiple:   1.5,
		Whitelist:      []string{"MNQ", "NQ"},
		InstrumentSpecs: map[string]market.InstrumentSpec{
			"MNQ": {Symbol: "MNQ", TickSize: 0.25, TickValue: 0.5},
			"NQ":  {Symbol: "NQ", TickSize: 0.25, TickValue: 5.0},
		},
	})
}

func mustSignal(t *testing.T, instrument string, entry, stop float64, tps []float64, maxLoss float64) *signal.TradeSignal {
	t.Helper()
	dir := signal.Buy
	if stop > entry {
		dir = signal.Sell
	}
	sig, err := signal.New("ICC", instrument, dir, entry, stop, tps, maxLoss, "")
	if err != nil {
		t.Fatalf("building signal: %v", err)
	}
	return sig
}

func TestEvaluateSizing(t *testing.T) {
	m := testManager()
	// 10 points = 40 ticks; $20 risk per contract; floor(750/20) = 37.
	sig := mustSignal(t, "MNQ", 18500, 18490, []float64{18530}, 750)

	details, err := m.Evaluate(sig, State{})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	if details.StopDistanceTicks != 40 {
		t.Errorf("stop distance = %f ticks, want 40", details.StopDistanceTicks)
	}
	if details.PositionSize != 37 {
		t.Errorf("position size = %d, want 37", details.PositionSize)
	}
	wantRisk := float64(details.PositionSize) * details.StopDistanceTicks * 0.5
	if math.Abs(details.ActualRiskUSD-wantRisk) > 1e-9 {
		t.Errorf("actual risk %f != size*ticks*tick_value %f", details.ActualRiskUSD, wantRisk)
	}
	if math.Abs(details.ActualRiskPct-0.74) > 1e-9 {
		t.Errorf("risk pct = %f, want 0.74", details.ActualRiskPct)
	}
}

func TestEvaluateMinimumOneContract(t *testing.T) {
	m := testManager()
	// Wide stop on NQ: 100 points = 400 ticks = $2000 per contract.
	// The budget only covers a fraction, so sizing floors at 1, and
	// the resulting risk busts the cap.
	sig := mustSignal(t, "NQ", 18500, 18400, []float64{18700}, 750)

	_, err := m.Evaluate(sig, State{})
	if !errors.Is(err, ErrRiskOverCap) {
		t.Fatalf("expected risk cap rejection, got %v", err)
	}

	if size := CalculatePositionSize(750, 2000); size != 1 {
		t.Errorf("position size should floor at 1, got %d", size)
	}
}

func TestEvaluateWhitelist(t *testing.T) {
	m := testManager()
	sig := mustSignal(t, "BTC", 60000, 59000, []float64{63000}, 750)

	_, err := m.Evaluate(sig, State{})
	if !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected whitelist rejection for BTC, got %v", err)
	}
}

func TestEvaluateDailyLimitExact(t *testing.T) {
	m := testManager()
	sig := mustSignal(t, "MNQ", 18500, 18490, []float64{18530}, 750)

	// Loss exactly at the limit already blocks the next signal.
	state := State{}.RecordLoss(2000)
	_, err := m.Evaluate(sig, state)
	if !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected daily limit rejection, got %v", err)
	}

	// Below the limit it passes.
	if _, err := m.Evaluate(sig, State{}.RecordLoss(1999.99)); err != nil {
		t.Errorf("expected acceptance below the limit, got %v", err)
	}
}

func TestEvaluateZeroStopDistance(t *testing.T) {
	m := testManager()
	sig := &signal.TradeSignal{
		StrategyID: "ICC", SignalID: "x", Instrument: "MNQ",
		Direction: signal.Buy, EntryPrice: 18500, StopPrice: 18500,
		TakeProfits: []float64{18530}, MaxLossUSD: 750,
	}

	_, err := m.Evaluate(sig, State{})
	if !errors.Is(err, ErrZeroStop) {
		t.Fatalf("expected zero-stop rejection, got %v", err)
	}
}

func TestEvaluateWorstRMultiple(t *testing.T) {
	m := testManager()
	// Second target pays 3R but the first only 1R; the worst target
	// governs.
	sig := mustSignal(t, "MNQ", 18500, 18490, []float64{18510, 18530}, 750)

	_, err := m.Evaluate(sig, State{})
	if !errors.Is(err, ErrRMultipleTooLow) {
		t.Fatalf("expected r-multiple rejection, got %v", err)
	}
}

func TestEvaluateUnknownSpec(t *testing.T) {
	m := NewManager(Config{
		AccountSize: 100000, MaxRiskUSD: 1000, DailyLossLimit: 2000,
		Whitelist:       []string{"MNQ", "YM"},
		InstrumentSpecs: map[string]market.InstrumentSpec{"MNQ": {Symbol: "MNQ", TickSize: 0.25, TickValue: 0.5}},
	})
	sig := mustSignal(t, "YM", 40000, 39950, []float64{40150}, 750)

	_, err := m.Evaluate(sig, State{})
	if !errors.Is(err, ErrUnknownSpec) {
		t.Fatalf("expected unknown-spec rejection, got %v", err)
	}
}

func TestStateTransitions(t *testing.T) {
	state := State{}
	state = state.RecordLoss(500)
	state = state.RecordTrade()

	if state.DailyRealizedLoss != 500 || state.DailyTradeCount != 2 {
		t.Errorf("unexpected state: %+v", state)
	}

	reset := state.ResetDaily()
	if reset.DailyRealizedLoss != 0 || reset.DailyTradeCount != 0 {
		t.Errorf("reset should zero the state: %+v", reset)
	}
	if state.DailyRealizedLoss != 500 {
		t.Errorf("reset must not mutate the original value")
	}
}
