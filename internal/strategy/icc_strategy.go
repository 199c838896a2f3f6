package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"futures-trading-bot/internal/analysis"
	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/signal"
)

// ICCStrategy is the primary strategy: a three-phase displacement
// structure confirmed by volume delta, traded in the displacement
// direction with a single ATR-projected target.
type ICCStrategy struct {
	instrument string
	detector   *analysis.ICCDetector
	maxLossUSD float64
	logger     zerolog.Logger
}

// NewICCStrategy builds the strategy for one instrument. maxLossUSD is
// the per-trade budget attached to generated signals.
func NewICCStrategy(instrument string, displacementMultiplier, preferredR, maxLossUSD float64, logger zerolog.Logger) *ICCStrategy {
	return &ICCStrategy{
		instrument: instrument,
		detector:   analysis.NewICCDetector(displacementMultiplier, preferredR),
		maxLossUSD: maxLossUSD,
		logger:     logger,
	}
}

func (s *ICCStrategy) ID() string {
	return ICCStrategyID
}

// Detector exposes the underlying detector, used by the backtester to
// share structure detection with the live path.
func (s *ICCStrategy) Detector() *analysis.ICCDetector {
	return s.detector
}

// Evaluate scans the candle series for a complete, validated structure
// and converts it into a single-target signal.
func (s *ICCStrategy) Evaluate(candles []market.Candle) (*signal.TradeSignal, error) {
	structure := s.detector.DetectStructure(candles, true)
	if structure == nil {
		return nil, nil
	}

	if violations := s.detector.ValidateSetup(candles, structure); len(violations) > 0 {
		s.logger.Debug().
			Str("instrument", s.instrument).
			Strs("violations", violations).
			Msg("structure failed validation")
		return nil, nil
	}

	levels := s.detector.DeriveTradeLevels(candles, structure)
	if levels == nil {
		return nil, nil
	}

	dir := signal.Buy
	if structure.Indication.Direction == analysis.Short {
		dir = signal.Sell
	}

	notes := fmt.Sprintf("three-phase structure: indication %d, correction %d-%d, continuation %d, %.1fR",
		structure.Indication.Index, structure.Correction.StartIndex,
		structure.Correction.EndIndex, structure.Continuation.Index, levels.RMultiple)

	sig, err := signal.New(s.ID(), s.instrument, dir, levels.Entry, levels.Stop,
		[]float64{levels.Target}, s.maxLossUSD, notes)
	if err != nil {
		return nil, fmt.Errorf("building signal: %w", err)
	}

	s.logger.Info().
		Str("instrument", s.instrument).
		Str("direction", string(dir)).
		Float64("entry", levels.Entry).
		Float64("stop", levels.Stop).
		Float64("target", levels.Target).
		Msg(strings.ToLower(string(dir)) + " structure signal")

	return sig, nil
}

// Reset clears detector state between backtest runs.
func (s *ICCStrategy) Reset() {
	s.detector.Reset()
}
