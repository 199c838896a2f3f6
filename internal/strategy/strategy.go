// Package strategy wraps the pattern detectors into signal-producing
// strategies behind a common interface.
package strategy

import (
	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/signal"
)

// Strategy IDs used in signal attribution and arbiter priority.
const (
	ICCStrategyID = "ICC"
	GapStrategyID = "GAP"
)

// Strategy evaluates a candle series and produces at most one trade
// signal per call. A nil signal with a nil error means no setup.
type Strategy interface {
	ID() string
	Evaluate(candles []market.Candle) (*signal.TradeSignal, error)
}
