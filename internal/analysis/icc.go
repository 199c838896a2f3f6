package analysis

import (
	"fmt"
	"math"

	"futures-trading-bot/internal/market"
)

// Direction of a detected structure.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Phase marks a single candle belonging to a detected structure.
type Phase struct {
	Index     int
	Direction Direction
	Candle    market.Candle
}

// CorrectionRange marks the retracement span of a structure.
type CorrectionRange struct {
	StartIndex int
	EndIndex   int
}

// PhaseStructure is the result of a three-phase scan. Correction and
// Continuation are nil until found; Complete is true only when all three
// phases are present.
type PhaseStructure struct {
	Indication   *Phase
	Correction   *CorrectionRange
	Continuation *Phase
	Complete     bool
}

// TradeLevels holds the derived entry/stop/target prices for a structure.
type TradeLevels struct {
	Entry     float64
	Stop      float64
	Target    float64
	RMultiple float64
}

const (
	defaultDisplacementMultiplier = 1.5
	defaultPreferredR             = 3.0

	atrPeriod           = 14
	indicationLookback  = 20
	correctionScanLimit = 20
	stopBufferFraction  = 0.001
)

// ICCDetector finds indication-correction-continuation structures:
// a displacement candle, a retracement against it, and a resumption
// candle, each confirmed against the volume-delta series.
type ICCDetector struct {
	cvd                    *CVDCalculator
	displacementMultiplier float64
	preferredR             float64

	last *PhaseStructure
}

// NewICCDetector creates a detector with the given displacement multiplier
// and preferred reward multiple. Non-positive values fall back to the
// defaults (1.5 and 3.0).
func NewICCDetector(displacementMultiplier, preferredR float64) *ICCDetector {
	if displacementMultiplier <= 0 {
		displacementMultiplier = defaultDisplacementMultiplier
	}
	if preferredR <= 0 {
		preferredR = defaultPreferredR
	}
	return &ICCDetector{
		cvd:                    NewCVDCalculator(),
		displacementMultiplier: displacementMultiplier,
		preferredR:             preferredR,
	}
}

// CVD exposes the detector's volume-delta calculator, recomputed on each
// DetectStructure call.
func (d *ICCDetector) CVD() *CVDCalculator {
	return d.cvd
}

// LastStructure returns the structure found by the most recent
// DetectStructure call, for diagnostics. Nil if none was found.
func (d *ICCDetector) LastStructure() *PhaseStructure {
	return d.last
}

// DetectStructure scans the candle series for a three-phase structure.
// The scan is stateless: each call recomputes the delta series and
// re-evaluates from scratch. When requireAllPhases is true only complete
// structures are returned; otherwise a partial structure (indication
// found, later phases missing) is returned as-is. Returns nil when no
// indication is found or the series is too short.
func (d *ICCDetector) DetectStructure(candles []market.Candle, requireAllPhases bool) *PhaseStructure {
	if len(candles) < atrPeriod+2 {
		return nil
	}

	d.cvd.Calculate(candles)

	indication := d.findIndication(candles)
	if indication == nil {
		d.last = nil
		return nil
	}

	structure := &PhaseStructure{Indication: indication}

	if correction := d.findCorrection(candles, indication); correction != nil {
		structure.Correction = correction

		if continuation := d.findContinuation(candles, indication, correction); continuation != nil {
			structure.Continuation = continuation
			structure.Complete = true
		}
	}

	d.last = structure

	if requireAllPhases && !structure.Complete {
		return nil
	}
	return structure
}

// findIndication scans the trailing lookback window for the first candle
// whose body exceeds the displacement threshold and whose delta change
// agrees with its direction.
func (d *ICCDetector) findIndication(candles []market.Candle) *Phase {
	atr := market.ATR(candles, atrPeriod)
	if atr == 0 {
		return nil
	}
	threshold := d.displacementMultiplier * atr

	start := len(candles) - indicationLookback
	if start < 1 {
		start = 1
	}

	for i := start; i < len(candles); i++ {
		c := candles[i]
		if c.Body() < threshold {
			continue
		}
		if ok, _ := d.cvd.ValidateIndication(candles, i); !ok {
			continue
		}

		dir := Long
		if c.IsBearish() {
			dir = Short
		}
		return &Phase{Index: i, Direction: dir, Candle: c}
	}
	return nil
}

// findCorrection scans forward from the indication for the first candle
// moving against it, then the first candle resuming its direction. The
// delta change across the span must be neutralizing.
func (d *ICCDetector) findCorrection(candles []market.Candle, indication *Phase) *CorrectionRange {
	start := -1
	end := -1
	limit := indication.Index + correctionScanLimit
	if limit > len(candles)-1 {
		limit = len(candles) - 1
	}

	for i := indication.Index + 1; i <= limit; i++ {
		c := candles[i]
		against := (indication.Direction == Long && c.IsBearish()) ||
			(indication.Direction == Short && c.IsBullish())
		with := (indication.Direction == Long && c.IsBullish()) ||
			(indication.Direction == Short && c.IsBearish())

		if start == -1 {
			if against {
				start = i
			}
			continue
		}
		if with {
			end = i - 1
			break
		}
	}

	if start == -1 {
		return nil
	}
	if end == -1 {
		end = limit
	}
	if end < start {
		end = start
	}

	if ok, _ := d.cvd.ValidateCorrection(start, end); !ok {
		return nil
	}
	return &CorrectionRange{StartIndex: start, EndIndex: end}
}

// findContinuation checks the candle immediately after the correction:
// it must resume the indication direction with an aligned delta change.
func (d *ICCDetector) findContinuation(candles []market.Candle, indication *Phase, correction *CorrectionRange) *Phase {
	idx := correction.EndIndex + 1
	if idx >= len(candles) {
		return nil
	}

	c := candles[idx]
	resuming := (indication.Direction == Long && c.IsBullish()) ||
		(indication.Direction == Short && c.IsBearish())
	if !resuming {
		return nil
	}
	if ok, _ := d.cvd.ValidateContinuation(candles, idx); !ok {
		return nil
	}

	return &Phase{Index: idx, Direction: indication.Direction, Candle: c}
}

// ValidateSetup checks a detected structure for tradability and returns
// the list of violations. An empty list means the setup is valid.
func (d *ICCDetector) ValidateSetup(candles []market.Candle, structure *PhaseStructure) []string {
	var violations []string

	if structure == nil || structure.Indication == nil {
		return []string{"no structure detected"}
	}
	if structure.Correction == nil {
		violations = append(violations, "no correction phase found")
	}
	if structure.Continuation == nil {
		violations = append(violations, "no continuation phase found")
	} else if ok, reason := d.cvd.ValidateContinuation(candles, structure.Continuation.Index); !ok {
		violations = append(violations, fmt.Sprintf("continuation CVD check failed: %s", reason))
	}
	if diverged, reason := d.cvd.CheckDivergence(candles, 5); diverged {
		violations = append(violations, fmt.Sprintf("CVD divergence present: %s", reason))
	}

	return violations
}

// DeriveTradeLevels computes entry, stop and target prices for a complete
// structure. Entry is the continuation close; the stop sits beyond the
// correction extreme with a 0.1%-of-entry buffer; the reward multiple is
// the larger of the preferred R and an ATR-scaled projection. Returns nil
// for incomplete structures or degenerate risk distance.
func (d *ICCDetector) DeriveTradeLevels(candles []market.Candle, structure *PhaseStructure) *TradeLevels {
	if structure == nil || !structure.Complete {
		return nil
	}

	entry := structure.Continuation.Candle.Close
	buffer := entry * stopBufferFraction

	var stop float64
	if structure.Indication.Direction == Long {
		low := math.Inf(1)
		for i := structure.Correction.StartIndex; i <= structure.Correction.EndIndex; i++ {
			if candles[i].Low < low {
				low = candles[i].Low
			}
		}
		stop = low - buffer
	} else {
		high := math.Inf(-1)
		for i := structure.Correction.StartIndex; i <= structure.Correction.EndIndex; i++ {
			if candles[i].High > high {
				high = candles[i].High
			}
		}
		stop = high + buffer
	}

	risk := math.Abs(entry - stop)
	if risk == 0 {
		return nil
	}

	rMultiple := d.preferredR
	trailing := candles
	if len(trailing) > 20 {
		trailing = trailing[len(trailing)-20:]
	}
	if atr := market.ATR(trailing, atrPeriod); atr > 0 {
		if scaled := atr * d.preferredR / risk; scaled > rMultiple {
			rMultiple = scaled
		}
	}

	var target float64
	if structure.Indication.Direction == Long {
		target = entry + risk*rMultiple
	} else {
		target = entry - risk*rMultiple
	}

	return &TradeLevels{Entry: entry, Stop: stop, Target: target, RMultiple: rMultiple}
}

// Reset clears retained diagnostics and CVD state.
func (d *ICCDetector) Reset() {
	d.cvd.Reset()
	d.last = nil
}
