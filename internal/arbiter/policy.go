package arbiter

import (
	"math"
	"time"

	"futures-trading-bot/internal/signal"
)

// MergePolicy combines two same-direction signals for one instrument into
// a single signal and position size. pendingSize is the contract count
// already computed for the pending signal.
type MergePolicy func(pending, incoming *signal.TradeSignal, pendingSize int) (*signal.TradeSignal, int, error)

// PriorityPolicy picks the winner between an opposite-direction pending
// and incoming signal. Returns true when the incoming signal wins.
type PriorityPolicy func(now time.Time, pending, incoming *signal.TradeSignal) (incomingWins bool, reason string)

// DefaultMergePolicy scales the pending position by the multiplier,
// takes the more favorable entry and the tighter stop, and unions the
// take-profit lists.
func DefaultMergePolicy(multiplier float64) MergePolicy {
	if multiplier <= 0 {
		multiplier = 1.5
	}
	return func(pending, incoming *signal.TradeSignal, pendingSize int) (*signal.TradeSignal, int, error) {
		entry := pending.EntryPrice
		stop := pending.StopPrice

		if pending.Direction == signal.Buy {
			if incoming.EntryPrice < entry {
				entry = incoming.EntryPrice
			}
			if incoming.StopPrice > stop {
				stop = incoming.StopPrice
			}
		} else {
			if incoming.EntryPrice > entry {
				entry = incoming.EntryPrice
			}
			if incoming.StopPrice < stop {
				stop = incoming.StopPrice
			}
		}

		tps := unionPrices(pending.TakeProfits, incoming.TakeProfits)

		maxLoss := pending.MaxLossUSD
		if incoming.MaxLossUSD > maxLoss {
			maxLoss = incoming.MaxLossUSD
		}

		merged, err := signal.New(
			pending.StrategyID+"+"+incoming.StrategyID,
			pending.Instrument,
			pending.Direction,
			entry, stop, tps, maxLoss,
			"merged: "+pending.SignalID+" + "+incoming.SignalID,
		)
		if err != nil {
			return nil, 0, err
		}

		size := int(math.Floor(float64(pendingSize) * multiplier))
		if size < 1 {
			size = 1
		}
		return merged, size, nil
	}
}

func unionPrices(a, b []float64) []float64 {
	out := append([]float64(nil), a...)
	for _, p := range b {
		seen := false
		for _, q := range out {
			if q == p {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, p)
		}
	}
	return out
}

// ClockWindow is an inclusive-start, exclusive-end range of clock hours.
type ClockWindow struct {
	StartHour int
	EndHour   int
}

// Contains reports whether the given time's hour falls in the window.
func (w ClockWindow) Contains(t time.Time) bool {
	h := t.Hour()
	if w.StartHour == w.EndHour {
		return false
	}
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

// WindowPriorityPolicy resolves opposite-direction conflicts by time of
// day: the primary strategy wins inside the continuation window, the
// secondary inside the reversal window, and first-arrived otherwise.
func WindowPriorityPolicy(primaryID, secondaryID string, continuation, reversal ClockWindow) PriorityPolicy {
	return func(now time.Time, pending, incoming *signal.TradeSignal) (bool, string) {
		switch {
		case continuation.Contains(now):
			if incoming.StrategyID == primaryID && pending.StrategyID != primaryID {
				return true, "continuation window favors " + primaryID
			}
			return false, "continuation window favors " + primaryID
		case reversal.Contains(now):
			if incoming.StrategyID == secondaryID && pending.StrategyID != secondaryID {
				return true, "reversal window favors " + secondaryID
			}
			return false, "reversal window favors " + secondaryID
		default:
			return false, "outside priority windows, first signal wins"
		}
	}
}
