// Command backtest replays synthetic or broker history through one of
// the strategies and writes the metrics and equity curve to disk.
package main

import (
	"flag"
	"fmt"
	"os"

	"futures-trading-bot/config"
	"futures-trading-bot/internal/backtest"
	"futures-trading-bot/internal/broker"
	"futures-trading-bot/internal/logging"
	"futures-trading-bot/internal/risk"
	"futures-trading-bot/internal/strategy"
)

func main() {
	var (
		instrument = flag.String("instrument", "MNQ", "instrument to backtest")
		stratName  = flag.String("strategy", strategy.ICCStrategyID, "strategy to run (ICC or GAP)")
		candles    = flag.Int("candles", 2000, "number of candles to replay")
		metricsOut = flag.String("metrics", "backtest_metrics.json", "metrics output path")
		curveOut   = flag.String("equity", "equity_curve.csv", "equity curve output path")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	client := broker.NewClient(broker.Config{
		BaseURL:       cfg.Broker.BaseURL,
		Username:      cfg.Broker.Username,
		Password:      cfg.Broker.Password,
		APIKey:        cfg.Broker.APIKey,
		SyntheticSeed: cfg.Broker.SyntheticSeed,
	}, logging.Component(logger, "broker"))
	client.Authenticate()

	history, err := client.GetHistoricalCandles(*instrument, cfg.Monitor.Interval, *candles)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to fetch candles")
	}

	riskMgr := risk.NewManager(risk.Config{
		AccountSize:     cfg.Account.Size,
		MaxRiskUSD:      cfg.Risk.MaxRiskUSD,
		DailyLossLimit:  cfg.Risk.DailyLossLimit,
		MinRMultiple:    cfg.Risk.MinRMultiple,
		Whitelist:       cfg.Risk.Whitelist,
		InstrumentSpecs: cfg.Specs,
	})

	spec := cfg.Specs[*instrument]
	engineCfg := backtest.Config{StartEquity: cfg.Account.Size}

	var strat strategy.Strategy
	switch *stratName {
	case strategy.ICCStrategyID:
		// The primary strategy only takes setups paying at least 2R.
		engineCfg.MinRMultiple = 2.0
		engineCfg.Lookahead = 100
		strat = strategy.NewICCStrategy(*instrument,
			cfg.ICC.DisplacementMultiplier, cfg.ICC.PreferredR,
			cfg.Risk.MaxLossPerTrade, logger)
	case strategy.GapStrategyID:
		strat = strategy.NewGapStrategy(*instrument, spec.TickSize,
			cfg.Gap.MinSizeTicks, cfg.Gap.MaxAgeCandles,
			cfg.Risk.MaxLossPerTrade, logger)
	default:
		logger.Fatal().Str("strategy", *stratName).Msg("unknown strategy")
	}

	engine := backtest.NewEngine(engineCfg, riskMgr, logging.Component(logger, "backtest"))

	result, err := engine.Run(*instrument, history, strat)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	m := result.Metrics
	logger.Info().
		Int("trades", m.TotalTrades).
		Float64("win_rate", m.WinRate).
		Float64("net_pnl", m.NetPnL).
		Float64("profit_factor", m.ProfitFactor).
		Float64("sharpe", m.SharpeRatio).
		Float64("max_drawdown_pct", m.MaxDrawdownPct).
		Float64("final_equity", m.FinalEquity).
		Msg("backtest complete")

	if err := backtest.ExportMetrics(result, *metricsOut); err != nil {
		logger.Error().Err(err).Msg("failed to export metrics")
	}
	if err := backtest.ExportEquityCurve(result, *curveOut); err != nil {
		logger.Error().Err(err).Msg("failed to export equity curve")
	}
}
