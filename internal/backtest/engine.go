// Package backtest replays candle history through a strategy and the
// risk manager, simulates fills, and scores the results.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/risk"
	"futures-trading-bot/internal/signal"
	"futures-trading-bot/internal/strategy"
)

const (
	defaultMinLookback = 50
	defaultLookahead   = 200
	defaultStartEquity = 100000
)

// Config controls one backtest run.
type Config struct {
	StartEquity float64
	// MinLookback is the first index evaluated; earlier candles only
	// feed the detectors.
	MinLookback int
	// Lookahead bounds the forward scan when simulating an open trade.
	Lookahead int
	// MinRMultiple rejects setups whose worst take-profit pays less
	// than this many R. Zero disables the floor.
	MinRMultiple float64
}

// Trade is one simulated trade, appended once and never mutated.
type Trade struct {
	Timestamp    time.Time `json:"timestamp"`
	Index        int       `json:"index"`
	Instrument   string    `json:"instrument"`
	StrategyID   string    `json:"strategy_id"`
	Direction    string    `json:"direction"`
	Entry        float64   `json:"entry"`
	Stop         float64   `json:"stop"`
	TakeProfits  []float64 `json:"take_profits"`
	PositionSize int       `json:"position_size"`
	RiskUSD      float64   `json:"risk_usd"`
	PnL          float64   `json:"pnl"`
	RAchieved    float64   `json:"r_achieved"`
	ExitLabel    string    `json:"exit_label"`
	Win          bool      `json:"win"`
}

// EquityPoint is one step of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Index     int       `json:"index"`
	Equity    float64   `json:"equity"`
}

// Result bundles the trades, curve, and terminal metrics of one run.
type Result struct {
	Instrument  string        `json:"instrument"`
	StrategyID  string        `json:"strategy_id"`
	StartEquity float64       `json:"start_equity"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Metrics     Metrics       `json:"metrics"`
}

// resettable lets the engine clear strategy state before a run.
type resettable interface {
	Reset()
}

// Engine replays history through one strategy. A fresh engine (or at
// least a Reset strategy) should be used per run so results stay
// deterministic.
type Engine struct {
	cfg     Config
	riskMgr *risk.Manager
	logger  zerolog.Logger
}

// NewEngine creates a backtest engine. Zero config fields fall back to
// 50 lookback, 200 lookahead, and 100k starting equity.
func NewEngine(cfg Config, riskMgr *risk.Manager, logger zerolog.Logger) *Engine {
	if cfg.MinLookback <= 0 {
		cfg.MinLookback = defaultMinLookback
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = defaultLookahead
	}
	if cfg.StartEquity <= 0 {
		cfg.StartEquity = defaultStartEquity
	}
	return &Engine{cfg: cfg, riskMgr: riskMgr, logger: logger}
}

// Run replays the candle series through the strategy. The pass is fully
// deterministic: no wall clock, no shared state, trades simulated from
// the candle following the signal.
func (e *Engine) Run(instrument string, candles []market.Candle, strat strategy.Strategy) (*Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles to backtest")
	}

	if r, ok := strat.(resettable); ok {
		r.Reset()
	}

	result := &Result{
		Instrument:  instrument,
		StrategyID:  strat.ID(),
		StartEquity: e.cfg.StartEquity,
		EquityCurve: []EquityPoint{{Timestamp: candles[0].Timestamp, Index: 0, Equity: e.cfg.StartEquity}},
	}

	equity := e.cfg.StartEquity
	peak := equity
	maxDrawdown := 0.0
	maxDrawdownPct := 0.0
	state := risk.State{}

	for i := e.cfg.MinLookback; i < len(candles); i++ {
		history := candles[: i+1 : i+1]

		sig, err := strat.Evaluate(history)
		if err != nil {
			e.logger.Warn().Err(err).Int("index", i).Msg("strategy error during replay")
			continue
		}
		if sig == nil {
			continue
		}

		if e.cfg.MinRMultiple > 0 && sig.WorstRMultiple() < e.cfg.MinRMultiple {
			continue
		}

		details, err := e.riskMgr.Evaluate(sig, state)
		if err != nil {
			continue
		}

		outcome := e.simulate(sig, details, candles, i+1)

		trade := Trade{
			Timestamp:    candles[i].Timestamp,
			Index:        i,
			Instrument:   instrument,
			StrategyID:   sig.StrategyID,
			Direction:    string(sig.Direction),
			Entry:        sig.EntryPrice,
			Stop:         sig.StopPrice,
			TakeProfits:  sig.TakeProfits,
			PositionSize: details.PositionSize,
			RiskUSD:      details.ActualRiskUSD,
			PnL:          outcome.pnl,
			RAchieved:    outcome.rAchieved,
			ExitLabel:    outcome.label,
			Win:          outcome.pnl > 0,
		}
		result.Trades = append(result.Trades, trade)

		if outcome.pnl < 0 {
			state = state.RecordLoss(-outcome.pnl)
		} else {
			state = state.RecordTrade()
		}

		equity += outcome.pnl
		ts := candles[i].Timestamp
		if i+1 < len(candles) {
			ts = candles[i+1].Timestamp
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: ts, Index: i, Equity: equity})

		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if ddPct := (peak - equity) / peak * 100; ddPct > maxDrawdownPct {
				maxDrawdownPct = ddPct
				maxDrawdown = peak - equity
			}
		}
	}

	result.Metrics = computeMetrics(result.Trades, result.EquityCurve, e.cfg.StartEquity, equity, maxDrawdown, maxDrawdownPct)
	return result, nil
}

type outcome struct {
	pnl       float64
	rAchieved float64
	label     string
}

// simulate scans forward for stop and take-profit hits. Multi-target
// signals pre-allocate one contract per level with the remainder on the
// final level; a stop closes whatever remains at that point.
func (e *Engine) simulate(sig *signal.TradeSignal, details *risk.Details, candles []market.Candle, startIdx int) outcome {
	if startIdx >= len(candles) {
		return outcome{label: "NONE"}
	}

	riskPerContract := details.DollarRiskPerContract
	size := details.PositionSize
	allocation := allocateContracts(size, len(sig.TakeProfits))

	if len(sig.TakeProfits) > 1 && size != len(sig.TakeProfits) {
		e.logger.Warn().
			Str("signal_id", sig.SignalID).
			Int("position_size", size).
			Int("tp_levels", len(sig.TakeProfits)).
			Msg("position size does not match take-profit count, remainder on last level")
	}

	remaining := size
	totalPnL := 0.0
	label := ""

	tickProfit := func(price float64) float64 {
		ticks := (price - sig.EntryPrice) / details.Spec.TickSize
		if sig.Direction == signal.Sell {
			ticks = -ticks
		}
		return ticks * details.Spec.TickValue
	}

	end := startIdx + e.cfg.Lookahead
	if end > len(candles) {
		end = len(candles)
	}

	for i := startIdx; i < end; i++ {
		c := candles[i]

		stopHit := (sig.Direction == signal.Buy && c.Low <= sig.StopPrice) ||
			(sig.Direction == signal.Sell && c.High >= sig.StopPrice)
		if stopHit {
			totalPnL += tickProfit(sig.StopPrice) * float64(remaining)
			if remaining == size {
				return outcome{pnl: totalPnL, rAchieved: -1.0, label: "STOP"}
			}
			// Partial targets already banked; score the blended result.
			r := 0.0
			if totalRisk := riskPerContract * float64(size); totalRisk > 0 {
				r = totalPnL / totalRisk
			}
			return outcome{pnl: totalPnL, rAchieved: r, label: label + "+STOP"}
		}

		for tpIdx, tp := range sig.TakeProfits {
			if allocation[tpIdx] == 0 {
				continue
			}
			tpHit := (sig.Direction == signal.Buy && c.High >= tp) ||
				(sig.Direction == signal.Sell && c.Low <= tp)
			if !tpHit {
				continue
			}

			totalPnL += tickProfit(tp) * float64(allocation[tpIdx])
			remaining -= allocation[tpIdx]
			allocation[tpIdx] = 0

			if label == "" {
				label = fmt.Sprintf("TP%d", tpIdx+1)
			} else {
				label += fmt.Sprintf("+TP%d", tpIdx+1)
			}

			if remaining <= 0 {
				r := 0.0
				if totalRisk := riskPerContract * float64(size); totalRisk > 0 {
					r = totalPnL / totalRisk
				}
				return outcome{pnl: totalPnL, rAchieved: r, label: label}
			}
		}
	}

	// Lookahead exhausted; open remainder contributes nothing.
	if remaining < size {
		filled := size - remaining
		r := 0.0
		if totalRisk := riskPerContract * float64(filled); totalRisk > 0 {
			r = totalPnL / totalRisk
		}
		return outcome{pnl: totalPnL, rAchieved: r, label: label + "+OPEN"}
	}
	return outcome{label: "NONE"}
}

// allocateContracts gives one contract to each take-profit level in
// order, attaching any remainder to the final level. Sizes smaller than
// the level count leave later levels empty.
func allocateContracts(size, levels int) []int {
	alloc := make([]int, levels)
	if levels == 0 {
		return alloc
	}
	remaining := size
	for i := 0; i < levels && remaining > 0; i++ {
		alloc[i] = 1
		remaining--
	}
	alloc[levels-1] += remaining
	return alloc
}
