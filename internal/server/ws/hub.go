// Package ws streams market events from the signal bus to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/donatemarket/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// allMarkets is the subscription every client starts with.
const allMarkets = "*"

// Config carries the metadata sent to clients in the hello frame.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// Hub fans events received on the market channels out to connected clients,
// filtered by the market ids each client subscribed to.
type Hub struct {
	bus      domain.SignalBus
	logger   *slog.Logger
	cfg      Config
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	stopped bool
}

// NewHub creates a hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	return &Hub{
		bus:     bus,
		logger:  logger.With(slog.String("component", "ws_hub")),
		cfg:     cfg,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS and auth middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run subscribes to every market channel and broadcasts until ctx is done.
// The hub stops accepting clients when Run returns.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	events, err := h.bus.Subscribe(ctx, domain.MarketChannelAll)
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "subscribed", slog.String("channel", domain.MarketChannelAll))

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				h.logger.WarnContext(ctx, "subscription closed")
				return nil
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	var ev struct {
		MarketID string `json:"market_id"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		h.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev.MarketID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping event for slow client", slog.String("market_id", ev.MarketID))
		}
	}
}

// HandleWS upgrades the request and starts the client's pumps. Once Run has
// returned, requests are refused with 503.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.isStopped() {
		writeUnavailable(w)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		markets: map[string]bool{allMarkets: true},
	}
	c.send <- h.hello()
	if !h.register(c) {
		// The hub stopped between the check above and the upgrade.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream stopped"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "event stream stopped"})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) isStopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// register adds c unless the hub has stopped.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", slog.Int("clients", n))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Info("client disconnected", slog.Int("clients", n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) hello() []byte {
	msg, _ := json.Marshal(map[string]any{
		"type": "hello",
		"payload": map[string]any{
			"mode":           h.cfg.Mode,
			"uptime_seconds": int64(time.Since(h.cfg.StartedAt).Seconds()),
			"markets":        []string{allMarkets},
		},
	})
	return msg
}

// subscribeMsg changes which markets a client receives. "*" means all.
//
//	{"action":"subscribe","markets":["m1"]}
type subscribeMsg struct {
	Action  string   `json:"action"`
	Markets []string `json:"markets"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	markets map[string]bool
}

func (c *client) wants(marketID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markets[allMarkets] || c.markets[marketID]
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Action {
	case "subscribe":
		// Narrowing to specific markets drops the implicit wildcard.
		if len(msg.Markets) > 0 && !contains(msg.Markets, allMarkets) {
			delete(c.markets, allMarkets)
		}
		for _, m := range msg.Markets {
			c.markets[m] = true
		}
	case "unsubscribe":
		for _, m := range msg.Markets {
			delete(c.markets, m)
		}
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(data, &msg); err == nil && msg.Action != "" {
			c.apply(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
