package analysis

import (
	"fmt"
	"math"

	"futures-trading-bot/internal/market"
)

// GapDirection indicates which way price gapped at formation.
type GapDirection string

const (
	GapUp   GapDirection = "UP"
	GapDown GapDirection = "DOWN"
)

// Gap is a price gap between one candle's close and the next candle's
// open. Edges are immutable after creation; only the filled/inverted
// flags change as later candles interact with the range.
type Gap struct {
	ID              string
	Instrument      string
	HighEdge        float64
	LowEdge         float64
	FormedAtIndex   int
	Direction       GapDirection
	Filled          bool
	Inverted        bool
	InvertedAtIndex int
}

// Size returns the gap height in price units.
func (g *Gap) Size() float64 {
	return g.HighEdge - g.LowEdge
}

const (
	defaultGapMinTicks = 10
	defaultGapMaxAge   = 100

	recentInversionWindow = 5
)

// GapTracker maintains the open gap list for one instrument and flags
// fills and inversions as candles arrive.
type GapTracker struct {
	instrument string
	tickSize   float64
	minTicks   int
	maxAge     int

	gaps    []*Gap
	counter int
	nextID  int
}

// NewGapTracker creates a tracker for one instrument. minTicks and maxAge
// fall back to 10 and 100 when non-positive; tickSize must be positive.
func NewGapTracker(instrument string, tickSize float64, minTicks, maxAge int) *GapTracker {
	if minTicks <= 0 {
		minTicks = defaultGapMinTicks
	}
	if maxAge <= 0 {
		maxAge = defaultGapMaxAge
	}
	return &GapTracker{
		instrument: instrument,
		tickSize:   tickSize,
		minTicks:   minTicks,
		maxAge:     maxAge,
	}
}

// ProcessCandle advances the tracker by one candle: expires stale gaps,
// updates fill/inversion flags against the candle, and detects a new gap
// from the open versus the previous close. Returns the gap inverted by
// this candle, if any, and the newly formed gap, if any.
func (t *GapTracker) ProcessCandle(c market.Candle, prevClose float64) (inverted, formed *Gap) {
	t.counter++

	t.expire()

	for _, g := range t.gaps {
		if g.Inverted {
			continue
		}
		t.updateGap(g, c)
		if g.Inverted && g.InvertedAtIndex == t.counter {
			inverted = g
		}
	}

	if prevClose > 0 {
		formed = t.detect(c, prevClose)
	}
	return inverted, formed
}

// expire drops gaps older than the max age that were never inverted.
func (t *GapTracker) expire() {
	kept := t.gaps[:0]
	for _, g := range t.gaps {
		if !g.Inverted && t.counter-g.FormedAtIndex > t.maxAge {
			continue
		}
		kept = append(kept, g)
	}
	t.gaps = kept
}

// updateGap marks a gap filled when price re-enters its range and
// inverted when the close crosses fully through the far edge.
func (t *GapTracker) updateGap(g *Gap, c market.Candle) {
	if !g.Filled && c.Low <= g.HighEdge && c.High >= g.LowEdge {
		g.Filled = true
	}

	switch g.Direction {
	case GapUp:
		if c.Close < g.LowEdge {
			g.Inverted = true
			g.InvertedAtIndex = t.counter
		}
	case GapDown:
		if c.Close > g.HighEdge {
			g.Inverted = true
			g.InvertedAtIndex = t.counter
		}
	}
}

// detect records a new gap when the open jumps at least minTicks away
// from the previous close.
func (t *GapTracker) detect(c market.Candle, prevClose float64) *Gap {
	diff := c.Open - prevClose
	if math.Abs(diff) < float64(t.minTicks)*t.tickSize {
		return nil
	}

	g := &Gap{
		ID:            fmt.Sprintf("%s-gap-%d", t.instrument, t.nextID),
		Instrument:    t.instrument,
		FormedAtIndex: t.counter,
	}
	t.nextID++

	if diff > 0 {
		g.Direction = GapUp
		g.LowEdge = prevClose
		g.HighEdge = c.Open
	} else {
		g.Direction = GapDown
		g.LowEdge = c.Open
		g.HighEdge = prevClose
	}

	t.gaps = append(t.gaps, g)
	return g
}

// RecentInversion returns the most recently inverted gap if the inversion
// happened within the last 5 candles, else nil.
func (t *GapTracker) RecentInversion() *Gap {
	var latest *Gap
	for _, g := range t.gaps {
		if !g.Inverted {
			continue
		}
		if t.counter-g.InvertedAtIndex > recentInversionWindow {
			continue
		}
		if latest == nil || g.InvertedAtIndex > latest.InvertedAtIndex {
			latest = g
		}
	}
	return latest
}

// ActiveGaps returns the open, non-inverted gaps.
func (t *GapTracker) ActiveGaps() []*Gap {
	var active []*Gap
	for _, g := range t.gaps {
		if !g.Inverted {
			active = append(active, g)
		}
	}
	return active
}

// CandleCount returns how many candles have been processed.
func (t *GapTracker) CandleCount() int {
	return t.counter
}

// Reset clears all tracked gaps and the candle counter.
func (t *GapTracker) Reset() {
	t.gaps = nil
	t.counter = 0
	t.nextID = 0
}
