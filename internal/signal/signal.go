package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Direction of a trade signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// TradeSignal is a validated trade proposal produced by a strategy.
// Construct through New; a signal that passed construction always has its
// stop on the loss side of entry and every take-profit on the profit side.
type TradeSignal struct {
	StrategyID  string    `json:"strategy_id"`
	SignalID    string    `json:"signal_id"`
	Instrument  string    `json:"instrument"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopPrice   float64   `json:"stop_price"`
	TakeProfits []float64 `json:"take_profits"`
	MaxLossUSD  float64   `json:"max_loss_usd"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// New builds a TradeSignal, assigning a unique time-derived signal ID and
// rejecting price-side violations with a descriptive error.
func New(strategyID, instrument string, direction Direction, entry, stop float64, takeProfits []float64, maxLossUSD float64, notes string) (*TradeSignal, error) {
	now := time.Now()
	s := &TradeSignal{
		StrategyID:  strategyID,
		SignalID:    newSignalID(strategyID, now),
		Instrument:  instrument,
		Direction:   direction,
		EntryPrice:  entry,
		StopPrice:   stop,
		TakeProfits: append([]float64(nil), takeProfits...),
		MaxLossUSD:  maxLossUSD,
		Notes:       notes,
		CreatedAt:   now,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// newSignalID derives a unique ID from the creation time plus a UUID
// fragment, so IDs sort roughly by time but never collide.
func newSignalID(strategyID string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%s", strategyID, t.Format("20060102T150405"), uuid.NewString()[:8])
}

func (s *TradeSignal) validate() error {
	if s.Direction != Buy && s.Direction != Sell {
		return fmt.Errorf("invalid direction %q", s.Direction)
	}
	if s.Instrument == "" {
		return fmt.Errorf("instrument is required")
	}
	if len(s.TakeProfits) == 0 {
		return fmt.Errorf("at least one take-profit is required")
	}

	switch s.Direction {
	case Buy:
		if s.StopPrice >= s.EntryPrice {
			return fmt.Errorf("BUY stop %.4f must be below entry %.4f", s.StopPrice, s.EntryPrice)
		}
		for _, tp := range s.TakeProfits {
			if tp <= s.EntryPrice {
				return fmt.Errorf("BUY take-profit %.4f must be above entry %.4f", tp, s.EntryPrice)
			}
		}
	case Sell:
		if s.StopPrice <= s.EntryPrice {
			return fmt.Errorf("SELL stop %.4f must be above entry %.4f", s.StopPrice, s.EntryPrice)
		}
		for _, tp := range s.TakeProfits {
			if tp >= s.EntryPrice {
				return fmt.Errorf("SELL take-profit %.4f must be below entry %.4f", tp, s.EntryPrice)
			}
		}
	}
	return nil
}

// StopDistance returns the absolute price distance from entry to stop.
func (s *TradeSignal) StopDistance() float64 {
	return math.Abs(s.EntryPrice - s.StopPrice)
}

// RMultiples returns the reward multiple of each take-profit relative to
// the stop distance, in take-profit order.
func (s *TradeSignal) RMultiples() []float64 {
	risk := s.StopDistance()
	multiples := make([]float64, len(s.TakeProfits))
	if risk == 0 {
		return multiples
	}
	for i, tp := range s.TakeProfits {
		multiples[i] = math.Abs(tp-s.EntryPrice) / risk
	}
	return multiples
}

// WorstRMultiple returns the smallest take-profit reward multiple.
func (s *TradeSignal) WorstRMultiple() float64 {
	multiples := s.RMultiples()
	if len(multiples) == 0 {
		return 0
	}
	worst := multiples[0]
	for _, r := range multiples[1:] {
		if r < worst {
			worst = r
		}
	}
	return worst
}

// Summary returns the single-line text form used for alerts and logs.
func (s *TradeSignal) Summary() string {
	return fmt.Sprintf("[%s] %s %s @ %.2f SL %.2f TP %v risk $%.0f",
		s.StrategyID, s.Direction, s.Instrument, s.EntryPrice, s.StopPrice, s.TakeProfits, s.MaxLossUSD)
}
