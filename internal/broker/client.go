// Package broker talks to the futures broker's REST API and degrades to
// deterministic synthetic data when the API is unavailable.
package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"futures-trading-bot/internal/market"
)

// Config holds broker connection settings.
type Config struct {
	BaseURL  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
	APIKey   string `json:"api_key"`
	// SyntheticSeed seeds the fallback generator.
	SyntheticSeed int64 `json:"synthetic_seed"`
}

// OrderRequest describes an order to place.
type OrderRequest struct {
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	StopPrice  float64 `json:"stop_price"`
	ClientID   string  `json:"client_id"`
}

// OrderResult is the broker's acknowledgement of an order.
type OrderResult struct {
	OrderID    string    `json:"order_id"`
	Instrument string    `json:"instrument"`
	Status     string    `json:"status"`
	FilledAt   time.Time `json:"filled_at"`
}

// maxConsecutiveFailures is the request-failure count that trips the
// synthetic fallback.
const maxConsecutiveFailures = 3

// Client is the REST broker client. After authentication failure or
// repeated request failures it serves synthetic candles instead, and
// UsingSyntheticData reports which mode it is in.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
	synthetic  *SyntheticGenerator

	mu           sync.Mutex
	accessToken  string
	useSynthetic bool
	failures     int
}

// NewClient creates a broker client. An empty base URL puts the client
// in synthetic mode immediately.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		synthetic:  NewSyntheticGenerator(cfg.SyntheticSeed),
	}
	if cfg.BaseURL == "" {
		c.useSynthetic = true
	}
	return c
}

// Authenticate obtains an access token. On failure the client switches
// to synthetic data and returns false.
func (c *Client) Authenticate() bool {
	c.mu.Lock()
	if c.useSynthetic {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	body, _ := json.Marshal(map[string]string{
		"name":     c.cfg.Username,
		"password": c.cfg.Password,
		"cid":      c.cfg.APIKey,
	})

	resp, err := c.httpClient.Post(c.cfg.BaseURL+"/auth/accesstokenrequest", "application/json", bytes.NewReader(body))
	if err != nil {
		c.fallback("authentication request failed", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.fallback(fmt.Sprintf("authentication returned status %d", resp.StatusCode), nil)
		return false
	}

	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.AccessToken == "" {
		c.fallback("authentication response unreadable", err)
		return false
	}

	c.mu.Lock()
	c.accessToken = result.AccessToken
	c.failures = 0
	c.mu.Unlock()

	c.logger.Info().Msg("broker authenticated")
	return true
}

// GetHistoricalCandles fetches the last count bars for an instrument.
// In synthetic mode, or after repeated failures, it returns generated
// candles instead of an error.
func (c *Client) GetHistoricalCandles(instrument, interval string, count int) ([]market.Candle, error) {
	dur := parseInterval(interval)

	if c.UsingSyntheticData() {
		return c.synthetic.Candles(instrument, dur, count), nil
	}

	url := fmt.Sprintf("%s/md/getchart?symbol=%s&interval=%s&count=%d", c.cfg.BaseURL, instrument, interval, count)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure("candle request failed", err)
		return c.synthetic.Candles(instrument, dur, count), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure(fmt.Sprintf("candle request returned status %d", resp.StatusCode), nil)
		return c.synthetic.Candles(instrument, dur, count), nil
	}

	var raw []struct {
		Timestamp int64   `json:"timestamp"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
		Volume    float64 `json:"volume"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.recordFailure("candle response unreadable", err)
		return c.synthetic.Candles(instrument, dur, count), nil
	}

	c.resetFailures()

	candles := make([]market.Candle, 0, len(raw))
	for _, r := range raw {
		candles = append(candles, market.Candle{
			Timestamp:  time.Unix(r.Timestamp, 0).UTC(),
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     r.Volume,
			Instrument: instrument,
		})
	}
	market.LinkPrevCloses(candles)
	return candles, nil
}

// PlaceOrder submits an order. Synthetic mode acknowledges immediately
// without any network traffic.
func (c *Client) PlaceOrder(req OrderRequest) (*OrderResult, error) {
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	if c.UsingSyntheticData() {
		c.logger.Info().
			Str("instrument", req.Instrument).
			Str("side", req.Side).
			Int("quantity", req.Quantity).
			Msg("synthetic order acknowledged")
		return &OrderResult{
			OrderID:    "sim-" + req.ClientID,
			Instrument: req.Instrument,
			Status:     "SIMULATED",
			FilledAt:   time.Now().UTC(),
		}, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/order/placeorder", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure("order request failed", err)
		return nil, fmt.Errorf("placing order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order rejected with status %d", resp.StatusCode)
	}

	var result OrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding order result: %w", err)
	}
	c.resetFailures()
	return &result, nil
}

// UsingSyntheticData reports whether the client serves generated data.
func (c *Client) UsingSyntheticData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useSynthetic
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) fallback(reason string, err error) {
	c.mu.Lock()
	c.useSynthetic = true
	c.mu.Unlock()
	c.logger.Warn().Err(err).Str("reason", reason).Msg("switching to synthetic data")
}

func (c *Client) recordFailure(reason string, err error) {
	c.mu.Lock()
	c.failures++
	trip := c.failures >= maxConsecutiveFailures
	c.mu.Unlock()

	c.logger.Warn().Err(err).Str("reason", reason).Msg("broker request failed")
	if trip {
		c.fallback("repeated request failures", nil)
	}
}

func (c *Client) resetFailures() {
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
}

func parseInterval(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
