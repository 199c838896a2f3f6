// Package bot runs the live monitoring loop: one goroutine per
// instrument polling the broker, running both strategies, and feeding
// signals through the arbiter.
package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"futures-trading-bot/config"
	"futures-trading-bot/internal/arbiter"
	"futures-trading-bot/internal/broker"
	"futures-trading-bot/internal/events"
	"futures-trading-bot/internal/logging"
	"futures-trading-bot/internal/notification"
	"futures-trading-bot/internal/push"
	"futures-trading-bot/internal/risk"
	"futures-trading-bot/internal/signal"
	"futures-trading-bot/internal/strategy"
	"futures-trading-bot/internal/tradelog"
)

// Bot owns the per-instrument monitors and the shared daily risk state.
type Bot struct {
	cfg      *config.Config
	client   *broker.Client
	arb      *arbiter.Arbiter
	bus      *events.EventBus
	gateway  *push.Gateway
	notifier *notification.Manager
	trades   *tradelog.Logger
	logger   zerolog.Logger

	stateMu sync.Mutex
	state   risk.State

	startedAt time.Time
}

// New wires the bot together. Strategies are created per instrument
// inside Run so each monitor owns its own detector state.
func New(cfg *config.Config, client *broker.Client, arb *arbiter.Arbiter, bus *events.EventBus,
	gateway *push.Gateway, notifier *notification.Manager, trades *tradelog.Logger, logger zerolog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		client:   client,
		arb:      arb,
		bus:      bus,
		gateway:  gateway,
		notifier: notifier,
		trades:   trades,
		logger:   logging.Component(logger, "bot"),
	}
}

// Run starts one monitor per configured instrument and blocks until the
// context is canceled.
func (b *Bot) Run(ctx context.Context) {
	b.startedAt = time.Now()
	b.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
		"instruments": b.cfg.Monitor.Instruments,
	}})

	var wg sync.WaitGroup
	for _, instrument := range b.cfg.Monitor.Instruments {
		wg.Add(1)
		go func(inst string) {
			defer wg.Done()
			b.monitor(ctx, inst)
		}(instrument)
	}
	wg.Wait()

	b.bus.Publish(events.Event{Type: events.EventBotStopped})
}

// monitor polls one instrument. A panic in one iteration is recovered
// and logged; other instruments keep running.
func (b *Bot) monitor(ctx context.Context, instrument string) {
	logger := b.logger.With().Str("instrument", instrument).Logger()
	spec := b.cfg.Specs[instrument]

	iccStrat := strategy.NewICCStrategy(instrument,
		b.cfg.ICC.DisplacementMultiplier, b.cfg.ICC.PreferredR,
		b.cfg.Risk.MaxLossPerTrade, logger)
	gapStrat := strategy.NewGapStrategy(instrument, spec.TickSize,
		b.cfg.Gap.MinSizeTicks, b.cfg.Gap.MaxAgeCandles,
		b.cfg.Risk.MaxLossPerTrade, logger)

	strategies := []strategy.Strategy{iccStrat, gapStrat}

	ticker := time.NewTicker(b.cfg.Monitor.PollInterval)
	defer ticker.Stop()

	logger.Info().Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("monitor stopped")
			return
		case <-ticker.C:
			b.step(instrument, strategies, logger)
		}
	}
}

func (b *Bot) step(instrument string, strategies []strategy.Strategy, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("monitor iteration panicked")
			b.bus.Publish(events.Event{Type: events.EventError, Data: map[string]interface{}{
				"instrument": instrument,
				"panic":      r,
			}})
		}
	}()

	candles, err := b.client.GetHistoricalCandles(instrument, b.cfg.Monitor.Interval, b.cfg.Monitor.CandleCount)
	if err != nil {
		logger.Warn().Err(err).Msg("candle fetch failed")
		return
	}
	if len(candles) == 0 {
		return
	}

	for _, strat := range strategies {
		sig, err := strat.Evaluate(candles)
		if err != nil {
			logger.Warn().Err(err).Str("strategy", strat.ID()).Msg("strategy evaluation failed")
			continue
		}
		if sig == nil {
			continue
		}
		b.handleSignal(sig, logger)
	}
}

func (b *Bot) handleSignal(sig *signal.TradeSignal, logger zerolog.Logger) {
	if err := b.trades.LogSignal(sig); err != nil {
		logger.Warn().Err(err).Msg("signal log write failed")
	}
	b.bus.Publish(events.Event{Type: events.EventSignalGenerated, Data: map[string]interface{}{
		"signal_id":  sig.SignalID,
		"strategy":   sig.StrategyID,
		"instrument": sig.Instrument,
		"direction":  string(sig.Direction),
	}})

	decision := b.arb.Submit(sig, b.RiskState())

	switch decision.Status {
	case arbiter.Accepted, arbiter.Merged:
		b.onAccepted(decision, logger)
	default:
		if err := b.trades.LogExecution(sig, "REJECTED", nil, decision.Reason); err != nil {
			logger.Warn().Err(err).Msg("execution log write failed")
		}
		b.bus.Publish(events.Event{Type: events.EventSignalRejected, Data: map[string]interface{}{
			"signal_id": sig.SignalID,
			"reason":    decision.Reason,
		}})
	}
}

func (b *Bot) onAccepted(decision *arbiter.Decision, logger zerolog.Logger) {
	sig := decision.Signal

	if err := b.trades.LogExecution(sig, "ACCEPTED", decision.Details, decision.Reason); err != nil {
		logger.Warn().Err(err).Msg("execution log write failed")
	}

	eventType := events.EventSignalAccepted
	if decision.Status == arbiter.Merged {
		eventType = events.EventSignalsMerged
	}
	b.bus.Publish(events.Event{Type: eventType, Data: map[string]interface{}{
		"signal_id":  sig.SignalID,
		"instrument": sig.Instrument,
		"size":       decision.Size,
	}})

	mode := "live"
	if b.client.UsingSyntheticData() {
		mode = "synthetic"
	}
	b.gateway.Publish(push.EventNewPosition, push.NewPositionEvent{
		Symbol:      sig.Instrument,
		Side:        string(sig.Direction),
		EntryPrice:  sig.EntryPrice,
		Size:        decision.Size,
		InitialStop: sig.StopPrice,
		TPs:         push.BuildTPLadder(sig.TakeProfits, decision.Size),
		Mode:        mode,
		Timestamp:   time.Now().UTC(),
	})

	if err := b.notifier.SendSignalAlert(sig.Summary()); err != nil {
		logger.Warn().Err(err).Msg("alert delivery failed")
	}
}

// ClosePosition handles an external close notification: the arbiter
// forgets the position and clients are told to flatten.
func (b *Bot) ClosePosition(instrument, reason string) {
	pos := b.arb.ClosePosition(instrument)
	if pos == nil {
		return
	}
	b.gateway.Publish(push.EventCloseTrade, push.CloseTradeEvent{
		Symbol: instrument,
		Action: "CLOSE",
		Reason: reason,
	})
	b.bus.Publish(events.Event{Type: events.EventPositionClosed, Data: map[string]interface{}{
		"instrument": instrument,
		"reason":     reason,
	}})
}

// RecordLoss transitions the shared daily risk state after a realized
// loss.
func (b *Bot) RecordLoss(amount float64) {
	b.stateMu.Lock()
	b.state = b.state.RecordLoss(amount)
	b.stateMu.Unlock()
}

// ResetDaily zeroes the daily risk state at the session boundary.
func (b *Bot) ResetDaily() {
	b.stateMu.Lock()
	b.state = b.state.ResetDaily()
	b.stateMu.Unlock()
}

// RiskState returns a copy of the current daily risk state.
func (b *Bot) RiskState() risk.State {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.state
}

// Status reports runtime status for the API.
func (b *Bot) Status() map[string]interface{} {
	return map[string]interface{}{
		"instruments":    b.cfg.Monitor.Instruments,
		"poll_interval":  b.cfg.Monitor.PollInterval.String(),
		"synthetic_data": b.client.UsingSyntheticData(),
		"started_at":     b.startedAt,
		"uptime":         time.Since(b.startedAt).String(),
	}
}
