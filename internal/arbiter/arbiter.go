package arbiter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"futures-trading-bot/internal/risk"
	"futures-trading-bot/internal/signal"
)

// Status of an arbiter decision.
type Status string

const (
	Accepted Status = "ACCEPTED"
	Rejected Status = "REJECTED"
	Merged   Status = "MERGED"
)

// Decision is the arbiter's verdict on one submitted signal.
type Decision struct {
	Status  Status
	Reason  string
	Signal  *signal.TradeSignal
	Details *risk.Details
	Size    int
}

// OpenPosition is the arbiter's record of a live position.
type OpenPosition struct {
	Signal   *signal.TradeSignal
	Size     int
	OpenedAt time.Time
}

// Stats counts decisions since startup.
type Stats struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Merged   int `json:"merged"`
}

type pendingSignal struct {
	sig       *signal.TradeSignal
	details   *risk.Details
	size      int
	arrivedAt time.Time
}

const pendingWindow = 5 * time.Second

// Arbiter serializes signal decisions per instrument and guarantees at
// most one open position per instrument. Conflict resolution between
// near-simultaneous signals is delegated to the policy functions.
type Arbiter struct {
	riskMgr      *risk.Manager
	merge        MergePolicy
	priority     PriorityPolicy
	mergeEnabled bool
	logger       zerolog.Logger

	// now is the clock used for window checks, replaceable in tests.
	now func() time.Time

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	positions map[string]*OpenPosition
	pending   map[string]*pendingSignal

	statsMu sync.Mutex
	stats   Stats
}

// New creates an arbiter. Nil policies fall back to the defaults
// (1.5x merge, first-arrived priority with empty windows).
func New(riskMgr *risk.Manager, merge MergePolicy, priority PriorityPolicy, mergeEnabled bool, logger zerolog.Logger) *Arbiter {
	if merge == nil {
		merge = DefaultMergePolicy(1.5)
	}
	if priority == nil {
		priority = WindowPriorityPolicy("", "", ClockWindow{}, ClockWindow{})
	}
	return &Arbiter{
		riskMgr:      riskMgr,
		merge:        merge,
		priority:     priority,
		mergeEnabled: mergeEnabled,
		logger:       logger,
		now:          time.Now,
		locks:        make(map[string]*sync.Mutex),
		positions:    make(map[string]*OpenPosition),
		pending:      make(map[string]*pendingSignal),
	}
}

// instrumentLock returns the mutex for an instrument, creating it on
// first use.
func (a *Arbiter) instrumentLock(instrument string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[instrument]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[instrument] = lock
	}
	return lock
}

// Submit runs the full decision algorithm for one signal under the
// instrument's exclusive section. state is the caller-owned daily risk
// state used for validation.
func (a *Arbiter) Submit(sig *signal.TradeSignal, state risk.State) *Decision {
	lock := a.instrumentLock(sig.Instrument)
	lock.Lock()
	defer lock.Unlock()

	a.count(func(s *Stats) { s.Total++ })

	// A pending signal inside the window is still negotiable even though
	// acceptance already recorded its position: merging or a priority win
	// replaces that position. Only a settled position blocks outright.
	now := a.now()
	if p := a.getPending(sig.Instrument); p != nil && now.Sub(p.arrivedAt) <= pendingWindow {
		if p.sig.Direction == sig.Direction {
			return a.resolveSameDirection(p, sig, now)
		}
		return a.resolveOpposite(p, sig, state, now)
	}

	if _, open := a.getPosition(sig.Instrument); open {
		return a.reject(sig, "position already open for "+sig.Instrument)
	}

	return a.accept(sig, nil, 0, state, now)
}

func (a *Arbiter) resolveSameDirection(p *pendingSignal, sig *signal.TradeSignal, now time.Time) *Decision {
	if !a.mergeEnabled {
		return a.reject(sig, "pending signal exists for "+sig.Instrument+", merging disabled")
	}

	merged, size, err := a.merge(p.sig, sig, p.size)
	if err != nil {
		return a.reject(sig, "merge failed: "+err.Error())
	}

	a.setPosition(merged.Instrument, &OpenPosition{Signal: merged, Size: size, OpenedAt: now})
	a.setPending(merged.Instrument, &pendingSignal{sig: merged, details: p.details, size: size, arrivedAt: now})
	a.count(func(s *Stats) { s.Merged++; s.Accepted++ })

	a.logger.Info().
		Str("instrument", merged.Instrument).
		Str("signal_id", merged.SignalID).
		Int("size", size).
		Msg("merged pending signals")

	return &Decision{Status: Merged, Reason: "merged with pending " + p.sig.SignalID, Signal: merged, Details: p.details, Size: size}
}

func (a *Arbiter) resolveOpposite(p *pendingSignal, sig *signal.TradeSignal, state risk.State, now time.Time) *Decision {
	incomingWins, reason := a.priority(now, p.sig, sig)
	if !incomingWins {
		return a.reject(sig, "lost priority to pending "+p.sig.SignalID+": "+reason)
	}

	a.clearPending(sig.Instrument)
	return a.accept(sig, nil, 0, state, now)
}

// accept re-validates with the risk manager when no details were carried
// in, then records the open position and the pending entry.
func (a *Arbiter) accept(sig *signal.TradeSignal, details *risk.Details, size int, state risk.State, now time.Time) *Decision {
	if details == nil {
		var err error
		details, err = a.riskMgr.Evaluate(sig, state)
		if err != nil {
			return a.reject(sig, "risk validation failed: "+err.Error())
		}
		size = details.PositionSize
	}

	a.setPosition(sig.Instrument, &OpenPosition{Signal: sig, Size: size, OpenedAt: now})
	a.setPending(sig.Instrument, &pendingSignal{sig: sig, details: details, size: size, arrivedAt: now})
	a.count(func(s *Stats) { s.Accepted++ })

	a.logger.Info().
		Str("instrument", sig.Instrument).
		Str("signal_id", sig.SignalID).
		Str("direction", string(sig.Direction)).
		Int("size", size).
		Float64("risk_usd", details.ActualRiskUSD).
		Msg("signal accepted")

	return &Decision{Status: Accepted, Reason: "accepted", Signal: sig, Details: details, Size: size}
}

func (a *Arbiter) reject(sig *signal.TradeSignal, reason string) *Decision {
	a.count(func(s *Stats) { s.Rejected++ })
	a.logger.Debug().
		Str("instrument", sig.Instrument).
		Str("signal_id", sig.SignalID).
		Str("reason", reason).
		Msg("signal rejected")
	return &Decision{Status: Rejected, Reason: reason, Signal: sig}
}

// ClosePosition removes the open position for an instrument, typically
// on an external close notification. Returns the removed position.
func (a *Arbiter) ClosePosition(instrument string) *OpenPosition {
	lock := a.instrumentLock(instrument)
	lock.Lock()
	defer lock.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	pos := a.positions[instrument]
	delete(a.positions, instrument)
	delete(a.pending, instrument)
	return pos
}

// Positions returns a snapshot of the open positions keyed by instrument.
func (a *Arbiter) Positions() map[string]OpenPosition {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]OpenPosition, len(a.positions))
	for k, v := range a.positions {
		out[k] = *v
	}
	return out
}

// Stats returns a copy of the decision counters.
func (a *Arbiter) Stats() Stats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}

func (a *Arbiter) count(fn func(*Stats)) {
	a.statsMu.Lock()
	fn(&a.stats)
	a.statsMu.Unlock()
}

func (a *Arbiter) getPosition(instrument string) (*OpenPosition, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.positions[instrument]
	return p, ok
}

func (a *Arbiter) setPosition(instrument string, p *OpenPosition) {
	a.mu.Lock()
	a.positions[instrument] = p
	a.mu.Unlock()
}

func (a *Arbiter) getPending(instrument string) *pendingSignal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[instrument]
}

func (a *Arbiter) setPending(instrument string, p *pendingSignal) {
	a.mu.Lock()
	a.pending[instrument] = p
	a.mu.Unlock()
}

func (a *Arbiter) clearPending(instrument string) {
	a.mu.Lock()
	delete(a.pending, instrument)
	a.mu.Unlock()
}
