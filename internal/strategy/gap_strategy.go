package strategy

import (
	"fmt"

	"github.com/rs/zerolog"

	"futures-trading-bot/internal/analysis"
	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/signal"
)

const (
	maxGapHistory = 200

	stopBufferTicks   = 5
	fallbackStopTicks = 20

	firstTargetMultiple  = 1.5
	secondTargetMultiple = 2.5
)

// GapStrategy is the secondary strategy: it trades reversals off gap
// inversions. An UP gap whose range gets closed through from above
// yields a SELL, a DOWN gap closed through from below yields a BUY.
type GapStrategy struct {
	instrument string
	tickSize   float64
	tracker    *analysis.GapTracker
	maxLossUSD float64
	logger     zerolog.Logger

	history  []market.Candle
	lastSeen int64
}

// NewGapStrategy builds the strategy for one instrument.
func NewGapStrategy(instrument string, tickSize float64, minGapTicks, maxGapAge int, maxLossUSD float64, logger zerolog.Logger) *GapStrategy {
	return &GapStrategy{
		instrument: instrument,
		tickSize:   tickSize,
		tracker:    analysis.NewGapTracker(instrument, tickSize, minGapTicks, maxGapAge),
		maxLossUSD: maxLossUSD,
		logger:     logger,
	}
}

func (s *GapStrategy) ID() string {
	return GapStrategyID
}

// Evaluate feeds any unseen candles through the gap tracker and emits a
// reversal signal when the latest candle leaves a recent inversion and
// the probe filter agrees.
func (s *GapStrategy) Evaluate(candles []market.Candle) (*signal.TradeSignal, error) {
	if len(candles) == 0 {
		return nil, nil
	}

	for _, c := range candles {
		if c.Timestamp.UnixNano() <= s.lastSeen {
			continue
		}
		s.ingest(c)
	}

	gap := s.tracker.RecentInversion()
	if gap == nil {
		return nil, nil
	}

	current := s.history[len(s.history)-1]

	dir := signal.Buy
	if gap.Direction == analysis.GapUp {
		dir = signal.Sell
	}

	if !s.hasRecentOppositeProbe(dir) {
		s.logger.Debug().
			Str("instrument", s.instrument).
			Str("gap_id", gap.ID).
			Str("direction", string(dir)).
			Msg("inversion filtered, no opposite probe")
		return nil, nil
	}

	entry := current.Close
	stop := s.calculateStop(current, dir)
	stopDistance := entry - stop
	if dir == signal.Sell {
		stopDistance = stop - entry
	}
	if stopDistance <= 0 {
		return nil, nil
	}

	var tps []float64
	if dir == signal.Buy {
		tps = []float64{entry + stopDistance*firstTargetMultiple, entry + stopDistance*secondTargetMultiple}
	} else {
		tps = []float64{entry - stopDistance*firstTargetMultiple, entry - stopDistance*secondTargetMultiple}
	}

	sig, err := signal.New(s.ID(), s.instrument, dir, entry, stop, tps, s.maxLossUSD,
		fmt.Sprintf("gap inversion reversal, gap %s", gap.ID))
	if err != nil {
		return nil, fmt.Errorf("building signal: %w", err)
	}

	s.logger.Info().
		Str("instrument", s.instrument).
		Str("gap_id", gap.ID).
		Str("direction", string(dir)).
		Float64("entry", entry).
		Float64("stop", stop).
		Msg("gap inversion signal")

	return sig, nil
}

func (s *GapStrategy) ingest(c market.Candle) {
	prevClose := c.PrevClose
	if prevClose == 0 && len(s.history) > 0 {
		prevClose = s.history[len(s.history)-1].Close
	}

	s.history = append(s.history, c)
	if len(s.history) > maxGapHistory {
		s.history = s.history[len(s.history)-maxGapHistory:]
	}
	s.lastSeen = c.Timestamp.UnixNano()

	s.tracker.ProcessCandle(c, prevClose)
}

// hasRecentOppositeProbe checks that price recently pierced a swing
// extreme against the new signal's direction and was rejected. The swing
// level comes from candles aged 10 to 20 back; the probe must appear in
// the candles since then, excluding the current one. Short histories
// split in half instead.
func (s *GapStrategy) hasRecentOppositeProbe(dir signal.Direction) bool {
	if len(s.history) < 6 {
		return false
	}

	var swingPeriod, probePeriod []market.Candle
	if len(s.history) >= 20 {
		swingPeriod = s.history[len(s.history)-20 : len(s.history)-10]
		probePeriod = s.history[len(s.history)-10 : len(s.history)-1]
	} else {
		mid := len(s.history) / 2
		swingPeriod = s.history[:mid]
		probePeriod = s.history[mid : len(s.history)-1]
	}

	if dir == signal.Buy {
		swingLow, ok := market.SwingLow(swingPeriod)
		if !ok {
			return false
		}
		for _, c := range probePeriod {
			if c.Low < swingLow {
				return true
			}
		}
		return false
	}

	swingHigh, ok := market.SwingHigh(swingPeriod)
	if !ok {
		return false
	}
	for _, c := range probePeriod {
		if c.High > swingHigh {
			return true
		}
	}
	return false
}

// calculateStop places the stop beyond the nearest opposing swing
// extreme over the last 20 candles with a 5-tick buffer, falling back to
// a fixed 20-tick offset from the current candle when history is short.
func (s *GapStrategy) calculateStop(current market.Candle, dir signal.Direction) float64 {
	if len(s.history) >= 10 {
		recent := s.history
		if len(recent) > 20 {
			recent = recent[len(recent)-20:]
		}
		if dir == signal.Buy {
			if swing, ok := market.SwingLow(recent); ok {
				return swing - s.tickSize*stopBufferTicks
			}
		} else {
			if swing, ok := market.SwingHigh(recent); ok {
				return swing + s.tickSize*stopBufferTicks
			}
		}
	}

	if dir == signal.Buy {
		return current.Low - s.tickSize*fallbackStopTicks
	}
	return current.High + s.tickSize*fallbackStopTicks
}

// Reset clears all candle and gap state between backtest runs.
func (s *GapStrategy) Reset() {
	s.history = nil
	s.lastSeen = 0
	s.tracker.Reset()
}
