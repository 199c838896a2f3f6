package risk

import (
	"errors"
	"fmt"
	"math"

	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/signal"
)

// Rejection reasons, testable with errors.Is.
var (
	ErrNotWhitelisted  = errors.New("instrument not whitelisted")
	ErrDailyLimit      = errors.New("daily loss limit reached")
	ErrZeroStop        = errors.New("stop distance is zero ticks")
	ErrRiskOverCap     = errors.New("risk exceeds per-trade cap")
	ErrRMultipleTooLow = errors.New("take-profit R-multiple below minimum")
	ErrUnknownSpec     = errors.New("no instrument spec configured")
)

// Details is the full sizing record returned for an approved signal.
type Details struct {
	Spec                  market.InstrumentSpec `json:"spec"`
	StopDistanceTicks     float64               `json:"stop_distance_ticks"`
	DollarRiskPerContract float64               `json:"dollar_risk_per_contract"`
	PositionSize          int                   `json:"position_size"`
	ActualRiskUSD         float64               `json:"actual_risk_usd"`
	ActualRiskPct         float64               `json:"actual_risk_pct"`
	RMultiples            []float64             `json:"r_multiples"`
}

// State carries the account's realized daily results. It is an explicit
// value passed into Evaluate and transitioned by the caller; the manager
// keeps no hidden counters.
type State struct {
	DailyRealizedLoss float64
	DailyTradeCount   int
}

// RecordLoss returns the state after realizing a loss of the given
// positive dollar amount.
func (s State) RecordLoss(amount float64) State {
	s.DailyRealizedLoss += amount
	s.DailyTradeCount++
	return s
}

// RecordTrade returns the state after a non-losing trade.
func (s State) RecordTrade() State {
	s.DailyTradeCount++
	return s
}

// ResetDaily returns the zero state for a new trading day.
func (s State) ResetDaily() State {
	return State{}
}

// Config holds the account-level risk limits.
type Config struct {
	AccountSize     float64
	MaxRiskUSD      float64
	DailyLossLimit  float64
	MinRMultiple    float64
	Whitelist       []string
	InstrumentSpecs map[string]market.InstrumentSpec
}

// riskCapTolerance lets sizing overshoot the per-trade cap slightly,
// since the 1-contract floor can exceed an exact cap.
const riskCapTolerance = 1.1

// Manager validates and sizes trade signals against account limits.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager. A nil spec table falls back to the
// default futures specs.
func NewManager(cfg Config) *Manager {
	if cfg.InstrumentSpecs == nil {
		cfg.InstrumentSpecs = market.DefaultInstrumentSpecs()
	}
	if cfg.MinRMultiple <= 0 {
		cfg.MinRMultiple = 1.5
	}
	return &Manager{cfg: cfg}
}

// CalculatePositionSize returns the contract count for a given max loss
// and per-contract dollar risk, floored to a minimum of one contract.
func CalculatePositionSize(maxLossUSD, dollarRiskPerContract float64) int {
	if dollarRiskPerContract <= 0 {
		return 1
	}
	size := int(math.Floor(maxLossUSD / dollarRiskPerContract))
	if size < 1 {
		size = 1
	}
	return size
}

// Evaluate validates and sizes a signal against the account state.
// Checks run in a fixed order and the first failure wins; the returned
// error wraps one of the package sentinel errors.
func (m *Manager) Evaluate(sig *signal.TradeSignal, state State) (*Details, error) {
	if !m.whitelisted(sig.Instrument) {
		return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, sig.Instrument)
	}

	if m.cfg.DailyLossLimit > 0 && state.DailyRealizedLoss >= m.cfg.DailyLossLimit {
		return nil, fmt.Errorf("%w: realized $%.2f of $%.2f", ErrDailyLimit, state.DailyRealizedLoss, m.cfg.DailyLossLimit)
	}

	spec, ok := m.cfg.InstrumentSpecs[sig.Instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpec, sig.Instrument)
	}

	stopTicks := sig.StopDistance() / spec.TickSize
	if stopTicks <= 0 {
		return nil, fmt.Errorf("%w: entry %.4f stop %.4f", ErrZeroStop, sig.EntryPrice, sig.StopPrice)
	}

	dollarRisk := stopTicks * spec.TickValue
	size := CalculatePositionSize(sig.MaxLossUSD, dollarRisk)
	actualRisk := float64(size) * dollarRisk

	if m.cfg.MaxRiskUSD > 0 && actualRisk > m.cfg.MaxRiskUSD*riskCapTolerance {
		return nil, fmt.Errorf("%w: $%.2f over cap $%.2f", ErrRiskOverCap, actualRisk, m.cfg.MaxRiskUSD)
	}

	multiples := sig.RMultiples()
	if worst := sig.WorstRMultiple(); worst < m.cfg.MinRMultiple {
		return nil, fmt.Errorf("%w: worst %.2fR, minimum %.2fR", ErrRMultipleTooLow, worst, m.cfg.MinRMultiple)
	}

	riskPct := 0.0
	if m.cfg.AccountSize > 0 {
		riskPct = actualRisk / m.cfg.AccountSize * 100
	}

	return &Details{
		Spec:                  spec,
		StopDistanceTicks:     stopTicks,
		DollarRiskPerContract: dollarRisk,
		PositionSize:          size,
		ActualRiskUSD:         actualRisk,
		ActualRiskPct:         riskPct,
		RMultiples:            multiples,
	}, nil
}

func (m *Manager) whitelisted(instrument string) bool {
	for _, w := range m.cfg.Whitelist {
		if w == instrument {
			return true
		}
	}
	return false
}

// Summary reports the configured limits and the given state, for the
// status API.
func (m *Manager) Summary(state State) map[string]interface{} {
	return map[string]interface{}{
		"account_size":        m.cfg.AccountSize,
		"max_risk_usd":        m.cfg.MaxRiskUSD,
		"daily_loss_limit":    m.cfg.DailyLossLimit,
		"min_r_multiple":      m.cfg.MinRMultiple,
		"whitelist":           m.cfg.Whitelist,
		"daily_realized_loss": state.DailyRealizedLoss,
		"daily_trade_count":   state.DailyTradeCount,
	}
}
