// Package ws bridges the signal bus to WebSocket clients so dashboards can
// watch vault events in real time.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omnivault/omnivault/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay under pongWait
	maxMessageSize = 4096
	sendBufferSize = 256
)

// defaultChannels are the signal bus channels the hub subscribes to and the
// initial subscription set for every client.
var defaultChannels = []string{
	domain.ChannelDeposits,
	domain.ChannelWithdrawals,
	domain.ChannelDeploys,
	domain.ChannelYield,
	domain.ChannelRebalance,
	domain.ChannelEmergency,
	domain.ChannelHealth,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens in the CORS middleware; the upgrade itself
	// accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// event is one bus payload tagged with its source channel for routing.
type event struct {
	channel string
	data    []byte
}

// subRequest is the JSON frame a client sends to adjust its subscriptions.
type subRequest struct {
	Action   string   `json:"action"` // subscribe | unsubscribe
	Channels []string `json:"channels"`
}

// client is one WebSocket connection with its private send queue and
// subscription set.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	subs map[string]bool
}

// Config carries the metadata included in the status frame pushed to clients
// on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// Hub fans signal bus events out to connected WebSocket clients.
type Hub struct {
	bus    domain.SignalBus
	logger *slog.Logger

	events     chan event
	register   chan *client
	unregister chan *client

	mu      sync.RWMutex
	clients map[*client]bool

	mode      string
	startedAt time.Time
}

// NewHub creates a hub over the given bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.TrimSpace(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		bus:        bus,
		logger:     logger,
		events:     make(chan event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
		mode:       mode,
		startedAt:  startedAt,
	}
}

// Run drives registration and event fan-out until the context is cancelled.
// Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range defaultChannels {
		go h.pumpChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case ev := <-h.events:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(ev.channel) {
					continue
				}
				select {
				case c.send <- ev.data:
				default:
					// Slow consumer: drop rather than stall the fan-out.
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// pumpChannel forwards one bus subscription into the hub's event stream.
func (h *Hub) pumpChannel(ctx context.Context, channel string) {
	in, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: subscribed", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-in:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			h.events <- event{channel: channel, data: data}
		}
	}
}

// HandleWS upgrades the request and starts the client's pumps.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(defaultChannels)),
	}
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	h.register <- c
	c.pushStatus()

	go c.writePump()
	go c.readPump()
}

// readPump consumes client frames, which only ever carry subscription
// changes, and keeps the pong deadline fresh.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var req subRequest
		if err := json.Unmarshal(frame, &req); err == nil && (req.Action != "" || len(req.Channels) > 0) {
			c.applySubRequest(req)
		}
	}
}

func (c *client) applySubRequest(req subRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch req.Action {
	case "subscribe":
		for _, ch := range req.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range req.Channels {
			delete(c.subs, ch)
		}
	}
}

// pushStatus sends a node status frame so clients can mark the connection
// healthy before any vault event flows.
func (c *client) pushStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	frame, err := json.Marshal(map[string]any{
		"type": "node_status",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"ws_connected":   true,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// wants reports whether the client subscribed to the channel, honoring
// trailing-star wildcards ("vault:*").
func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if strings.HasSuffix(sub, "*") && strings.HasPrefix(channel, strings.TrimSuffix(sub, "*")) {
			return true
		}
	}
	return false
}

// writePump drains the send queue to the connection and keeps the peer alive
// with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
