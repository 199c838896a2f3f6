// Package config loads the strongly typed application configuration
// from JSON with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"futures-trading-bot/internal/logging"
	"futures-trading-bot/internal/market"
	"futures-trading-bot/internal/notification"
)

// Config is the full application configuration. It is constructed once
// at startup, validated, and passed by pointer; core logic never
// mutates it.
type Config struct {
	Account  AccountConfig                    `json:"account"`
	Risk     RiskConfig                       `json:"risk"`
	ICC      ICCConfig                        `json:"icc"`
	Gap      GapConfig                        `json:"gap"`
	Arbiter  ArbiterConfig                    `json:"arbiter"`
	Broker   BrokerConfig                     `json:"broker"`
	Monitor  MonitorConfig                    `json:"monitor"`
	API      APIConfig                        `json:"api"`
	Telegram notification.TelegramConfig      `json:"telegram"`
	Logging  logging.Config                   `json:"logging"`
	Specs    map[string]market.InstrumentSpec `json:"instrument_specs"`
	LogDir   string                           `json:"log_dir"`
}

type AccountConfig struct {
	Size float64 `json:"size"`
}

type RiskConfig struct {
	MaxRiskUSD      float64  `json:"max_risk_usd"`
	MaxRiskPct      float64  `json:"max_risk_pct"`
	DailyLossLimit  float64  `json:"daily_loss_limit"`
	MinRMultiple    float64  `json:"min_r_multiple"`
	Whitelist       []string `json:"whitelist"`
	MaxLossPerTrade float64  `json:"max_loss_per_trade"`
}

type ICCConfig struct {
	DisplacementMultiplier float64 `json:"displacement_multiplier"`
	PreferredR             float64 `json:"preferred_r"`
}

type GapConfig struct {
	MinSizeTicks  int `json:"min_size_ticks"`
	MaxAgeCandles int `json:"max_age_candles"`
}

type ArbiterConfig struct {
	MergeEnabled          bool    `json:"merge_enabled"`
	MergeMultiplier       float64 `json:"merge_multiplier"`
	ContinuationStartHour int     `json:"continuation_start_hour"`
	ContinuationEndHour   int     `json:"continuation_end_hour"`
	ReversalStartHour     int     `json:"reversal_start_hour"`
	ReversalEndHour       int     `json:"reversal_end_hour"`
}

type BrokerConfig struct {
	BaseURL       string `json:"base_url"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	APIKey        string `json:"api_key"`
	SyntheticSeed int64  `json:"synthetic_seed"`
}

type MonitorConfig struct {
	Instruments  []string      `json:"instruments"`
	Interval     string        `json:"interval"`
	PollInterval time.Duration `json:"poll_interval"`
	CandleCount  int           `json:"candle_count"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Load reads the configuration file (default config.json, overridable
// with CONFIG_FILE), applies environment overrides, fills defaults,
// and validates.
func Load() (*Config, error) {
	path := getEnvOrDefault("CONFIG_FILE", "config.json")

	cfg := defaultConfig()
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Account: AccountConfig{Size: 100000},
		Risk: RiskConfig{
			MaxRiskUSD:      1000,
			MaxRiskPct:      1.0,
			DailyLossLimit:  2000,
			MinRMultiple:    1.5,
			Whitelist:       []string{"MNQ", "NQ", "MES", "ES"},
			MaxLossPerTrade: 750,
		},
		ICC: ICCConfig{DisplacementMultiplier: 1.5, PreferredR: 3.0},
		Gap: GapConfig{MinSizeTicks: 10, MaxAgeCandles: 100},
		Arbiter: ArbiterConfig{
			MergeEnabled:          true,
			MergeMultiplier:       1.5,
			ContinuationStartHour: 9,
			ContinuationEndHour:   11,
			ReversalStartHour:     14,
			ReversalEndHour:       16,
		},
		Monitor: MonitorConfig{
			Instruments:  []string{"MNQ"},
			Interval:     "5m",
			PollInterval: 5 * time.Second,
			CandleCount:  200,
		},
		API:     APIConfig{Enabled: true, Addr: ":8080"},
		Logging: logging.Config{Level: "info", Format: "console"},
		Specs:   market.DefaultInstrumentSpecs(),
		LogDir:  "logs",
	}
}

func (c *Config) applyDefaults() {
	if c.Specs == nil {
		c.Specs = market.DefaultInstrumentSpecs()
	}
	if c.Monitor.PollInterval <= 0 {
		c.Monitor.PollInterval = 5 * time.Second
	}
	if c.Monitor.CandleCount <= 0 {
		c.Monitor.CandleCount = 200
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Broker.BaseURL = getEnvOrDefault("BROKER_BASE_URL", cfg.Broker.BaseURL)
	cfg.Broker.Username = getEnvOrDefault("BROKER_USERNAME", cfg.Broker.Username)
	cfg.Broker.Password = getEnvOrDefault("BROKER_PASSWORD", cfg.Broker.Password)
	cfg.Broker.APIKey = getEnvOrDefault("BROKER_API_KEY", cfg.Broker.APIKey)
	cfg.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Telegram.ChatID)
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.API.Addr = getEnvOrDefault("API_ADDR", cfg.API.Addr)
	cfg.Account.Size = getEnvFloatOrDefault("ACCOUNT_SIZE", cfg.Account.Size)
	cfg.Risk.DailyLossLimit = getEnvFloatOrDefault("DAILY_LOSS_LIMIT", cfg.Risk.DailyLossLimit)
}

// Validate checks for configuration mistakes that would make the system
// misbehave silently.
func (c *Config) Validate() error {
	if c.Account.Size <= 0 {
		return fmt.Errorf("account size must be positive")
	}
	if c.Risk.MaxRiskUSD <= 0 {
		return fmt.Errorf("max risk per trade must be positive")
	}
	if c.Risk.DailyLossLimit <= 0 {
		return fmt.Errorf("daily loss limit must be positive")
	}
	if len(c.Risk.Whitelist) == 0 {
		return fmt.Errorf("instrument whitelist must not be empty")
	}
	if len(c.Monitor.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be monitored")
	}
	for _, inst := range c.Monitor.Instruments {
		spec, ok := c.Specs[inst]
		if !ok {
			return fmt.Errorf("no instrument spec for %s", inst)
		}
		if spec.TickSize <= 0 || spec.TickValue <= 0 {
			return fmt.Errorf("instrument spec for %s must have positive tick size and value", inst)
		}
	}
	if err := validateHour(c.Arbiter.ContinuationStartHour); err != nil {
		return err
	}
	if err := validateHour(c.Arbiter.ContinuationEndHour); err != nil {
		return err
	}
	if err := validateHour(c.Arbiter.ReversalStartHour); err != nil {
		return err
	}
	if err := validateHour(c.Arbiter.ReversalEndHour); err != nil {
		return err
	}
	return nil
}

func validateHour(h int) error {
	if h < 0 || h > 23 {
		return fmt.Errorf("clock hour %d out of range", h)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
