package broker

import (
	"math"
	"math/rand"
	"time"

	"futures-trading-bot/internal/market"
)

// syntheticBasePrices seed the generator per instrument so fallback data
// looks like the real contract.
var syntheticBasePrices = map[string]float64{
	"MNQ": 18500,
	"NQ":  18500,
	"MES": 5300,
	"ES":  5300,
}

// SyntheticGenerator produces deterministic candle series for offline
// and fallback operation. The same instrument, interval, and count
// always yield the same candles.
type SyntheticGenerator struct {
	seed int64
}

// NewSyntheticGenerator creates a generator. A zero seed picks a fixed
// default so fallback data stays reproducible across restarts.
func NewSyntheticGenerator(seed int64) *SyntheticGenerator {
	if seed == 0 {
		seed = 42
	}
	return &SyntheticGenerator{seed: seed}
}

// Candles generates count bars ending at the most recent whole interval.
// The walk is seeded from the instrument name and the configured seed,
// never the wall clock, so repeated calls replay identically.
func (g *SyntheticGenerator) Candles(instrument string, interval time.Duration, count int) []market.Candle {
	if count <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	rng := rand.New(rand.NewSource(g.seed + int64(hashInstrument(instrument))))

	base, ok := syntheticBasePrices[instrument]
	if !ok {
		base = 10000
	}

	start := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	price := base
	candles := make([]market.Candle, 0, count)

	for i := 0; i < count; i++ {
		drift := (rng.Float64() - 0.5) * base * 0.002
		open := price
		close := price + drift

		high := math.Max(open, close) + rng.Float64()*base*0.0005
		low := math.Min(open, close) - rng.Float64()*base*0.0005
		volume := 500 + rng.Float64()*2000

		c := market.Candle{
			Timestamp:  start.Add(time.Duration(i) * interval),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     volume,
			Instrument: instrument,
		}
		if i > 0 {
			c.PrevClose = candles[i-1].Close
		}
		candles = append(candles, c)
		price = close
	}

	return candles
}

func hashInstrument(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
