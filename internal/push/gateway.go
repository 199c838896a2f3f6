// Package push broadcasts position lifecycle events to subscribed
// execution clients over WebSocket.
package push

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event types emitted to execution clients.
const (
	EventNewPosition = "NEW_POSITION"
	EventTPFilled    = "TP_FILLED"
	EventStopUpdate  = "STOP_UPDATE"
	EventCloseTrade  = "CLOSE_TRADE"
)

// TPLevel is one rung of a take-profit ladder.
type TPLevel struct {
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

// NewPositionEvent announces an accepted position.
type NewPositionEvent struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Size        int       `json:"size"`
	InitialStop float64   `json:"initial_stop"`
	TPs         []TPLevel `json:"tps"`
	Mode        string    `json:"mode"`
	Timestamp   time.Time `json:"timestamp"`
}

// StopUpdateDetails describes a stop adjustment.
type StopUpdateDetails struct {
	Price  float64 `json:"price"`
	Qty    int     `json:"qty"`
	Action string  `json:"action,omitempty"`
	Reason string  `json:"reason"`
	Method string  `json:"method,omitempty"`
}

// TPFilledEvent reports a filled take-profit level and the stop change
// that goes with it.
type TPFilledEvent struct {
	Symbol        string             `json:"symbol"`
	TPLevel       int                `json:"tp_level"`
	RemainingSize int                `json:"remaining_size"`
	StopUpdate    *StopUpdateDetails `json:"stop_update,omitempty"`
}

// StopUpdateEvent reports a standalone stop change.
type StopUpdateEvent struct {
	Symbol  string            `json:"symbol"`
	Details StopUpdateDetails `json:"details"`
}

// CloseTradeEvent instructs clients to flatten a position.
type CloseTradeEvent struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Gateway is the WebSocket hub. Clients register through Handler;
// events fan out to every connected client, dropping slow ones.
type Gateway struct {
	logger zerolog.Logger

	mu         sync.RWMutex
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

// NewGateway creates the hub; call Run in a goroutine to start it.
func NewGateway(logger zerolog.Logger) *Gateway {
	return &Gateway{
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run processes registration and broadcast traffic until Stop.
func (g *Gateway) Run() {
	for {
		select {
		case c := <-g.register:
			g.mu.Lock()
			g.clients[c] = true
			g.mu.Unlock()

		case c := <-g.unregister:
			g.mu.Lock()
			if _, ok := g.clients[c]; ok {
				delete(g.clients, c)
				close(c.send)
			}
			g.mu.Unlock()

		case msg := <-g.broadcast:
			g.mu.Lock()
			for c := range g.clients {
				select {
				case c.send <- msg:
				default:
					delete(g.clients, c)
					close(c.send)
				}
			}
			g.mu.Unlock()

		case <-g.done:
			g.mu.Lock()
			for c := range g.clients {
				delete(g.clients, c)
				close(c.send)
			}
			g.mu.Unlock()
			return
		}
	}
}

// Stop shuts down the hub and disconnects all clients.
func (g *Gateway) Stop() {
	close(g.done)
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Handler upgrades an HTTP request to a WebSocket subscription.
func (g *Gateway) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	g.register <- c

	go c.writeLoop()
	go c.readLoop(g)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *client) readLoop(g *Gateway) {
	defer func() {
		g.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish serializes and broadcasts one event. Marshaling failures are
// logged and dropped; delivery never blocks the caller.
func (g *Gateway) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(envelope{Type: eventType, Payload: payload})
	if err != nil {
		g.logger.Error().Err(err).Str("type", eventType).Msg("failed to encode push event")
		return
	}
	select {
	case g.broadcast <- data:
	default:
		g.logger.Warn().Str("type", eventType).Msg("push broadcast buffer full, event dropped")
	}
}

// BuildTPLadder allocates one contract per take-profit level, capping
// the ladder at the position size.
func BuildTPLadder(takeProfits []float64, size int) []TPLevel {
	ladder := make([]TPLevel, 0, len(takeProfits))
	remaining := size
	for i, tp := range takeProfits {
		if remaining <= 0 {
			break
		}
		qty := 1
		if i == len(takeProfits)-1 {
			qty = remaining
		}
		ladder = append(ladder, TPLevel{Price: tp, Qty: qty})
		remaining -= qty
	}
	return ladder
}
