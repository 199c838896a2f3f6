// Package notification delivers signal alerts to external messengers.
// Delivery failure is logged by callers and never affects trading
// decisions.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notification is one outbound alert.
type Notification struct {
	Title     string
	Message   string
	Timestamp time.Time
}

// Notifier is a single delivery channel.
type Notifier interface {
	Send(n *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans a notification out to every enabled provider.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates an empty notification manager.
func NewManager() *Manager {
	return &Manager{}
}

// AddNotifier registers a delivery channel.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers to all enabled providers, returning the last error.
func (m *Manager) Send(n *Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	var lastErr error
	for _, notifier := range m.notifiers {
		if !notifier.IsEnabled() {
			continue
		}
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SendSignalAlert delivers the pre-formatted single-line summary of an
// accepted signal.
func (m *Manager) SendSignalAlert(summary string) error {
	return m.Send(&Notification{Title: "Signal Accepted", Message: summary})
}

// SendError delivers an error alert.
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{Title: title, Message: message})
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

// TelegramNotifier delivers alerts through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier. It disables itself
// when the token or chat ID is missing.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(n *Notification) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", n.Title, n.Message),
		"parse_mode": "Markdown",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
