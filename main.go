package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"futures-trading-bot/config"
	"futures-trading-bot/internal/api"
	"futures-trading-bot/internal/arbiter"
	"futures-trading-bot/internal/bot"
	"futures-trading-bot/internal/broker"
	"futures-trading-bot/internal/events"
	"futures-trading-bot/internal/logging"
	"futures-trading-bot/internal/notification"
	"futures-trading-bot/internal/push"
	"futures-trading-bot/internal/risk"
	"futures-trading-bot/internal/strategy"
	"futures-trading-bot/internal/tradelog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Strs("instruments", cfg.Monitor.Instruments).Msg("starting trading bot")

	client := broker.NewClient(broker.Config{
		BaseURL:       cfg.Broker.BaseURL,
		Username:      cfg.Broker.Username,
		Password:      cfg.Broker.Password,
		APIKey:        cfg.Broker.APIKey,
		SyntheticSeed: cfg.Broker.SyntheticSeed,
	}, logging.Component(logger, "broker"))

	if !client.Authenticate() {
		logger.Warn().Msg("broker authentication failed, running on synthetic data")
	}

	riskMgr := risk.NewManager(risk.Config{
		AccountSize:     cfg.Account.Size,
		MaxRiskUSD:      cfg.Risk.MaxRiskUSD,
		DailyLossLimit:  cfg.Risk.DailyLossLimit,
		MinRMultiple:    cfg.Risk.MinRMultiple,
		Whitelist:       cfg.Risk.Whitelist,
		InstrumentSpecs: cfg.Specs,
	})

	arb := arbiter.New(
		riskMgr,
		arbiter.DefaultMergePolicy(cfg.Arbiter.MergeMultiplier),
		arbiter.WindowPriorityPolicy(
			strategy.ICCStrategyID, strategy.GapStrategyID,
			arbiter.ClockWindow{StartHour: cfg.Arbiter.ContinuationStartHour, EndHour: cfg.Arbiter.ContinuationEndHour},
			arbiter.ClockWindow{StartHour: cfg.Arbiter.ReversalStartHour, EndHour: cfg.Arbiter.ReversalEndHour},
		),
		cfg.Arbiter.MergeEnabled,
		logging.Component(logger, "arbiter"),
	)

	bus := events.NewEventBus()

	gateway := push.NewGateway(logging.Component(logger, "push"))
	go gateway.Run()
	defer gateway.Stop()

	notifier := notification.NewManager()
	notifier.AddNotifier(notification.NewTelegramNotifier(cfg.Telegram))

	eventLog := logging.Component(logger, "events")
	bus.SubscribeAll(func(e events.Event) {
		eventLog.Debug().Str("type", string(e.Type)).Fields(e.Data).Msg("event")
	})
	bus.Subscribe(events.EventError, func(e events.Event) {
		if err := notifier.SendError("Bot Error", fmt.Sprintf("%v", e.Data)); err != nil {
			eventLog.Warn().Err(err).Msg("error alert delivery failed")
		}
	})

	trades, err := tradelog.NewLogger(cfg.LogDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open trade logs")
	}

	b := bot.New(cfg, client, arb, bus, gateway, notifier, trades, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.API.Enabled {
		server := api.NewServer(cfg.API.Addr, b, arb, riskMgr, gateway, logging.Component(logger, "api"))
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("api server stopped")
			}
		}()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	b.Run(ctx)
	logger.Info().Msg("trading bot stopped")
}
