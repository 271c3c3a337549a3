// Package ws pushes applied events to WebSocket clients. The hub subscribes
// to the signal bus and forwards every message to connected clients;
// clients may ask for the backlog since a stream id when they connect.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Clients only send control frames.
	maxInboundSize = 1024
	sendQueueSize  = 256
	maxReplay      = 500
)

// Config describes what the hub forwards.
type Config struct {
	// Channel is the pub/sub channel relayed to clients.
	Channel string
	// Stream is the durable stream used to replay missed events. Empty
	// disables replay.
	Stream string
	Mode   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CORS middleware already vetted the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

var errHubStopped = errors.New("ws: hub stopped")

// Hub tracks connected clients and relays bus messages to them.
type Hub struct {
	cfg     Config
	bus     domain.SignalBus
	metrics *metrics.Metrics
	logger  *slog.Logger
	started time.Time

	mu      sync.RWMutex
	clients map[*client]struct{}
	stopped bool
}

func NewHub(bus domain.SignalBus, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		bus:     bus,
		metrics: m,
		logger:  logger.With(slog.String("component", "ws")),
		started: time.Now(),
		clients: make(map[*client]struct{}),
	}
}

// Run relays bus messages until ctx is cancelled, then disconnects every
// client. It returns ctx.Err() on shutdown.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stop()

	msgs, err := h.bus.Subscribe(ctx, h.cfg.Channel)
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "relaying events", slog.String("channel", h.cfg.Channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-msgs:
			if !ok {
				// Keep serving replay and Broadcast; live events stop.
				h.logger.WarnContext(ctx, "subscription closed", slog.String("channel", h.cfg.Channel))
				msgs = nil
				continue
			}
			h.Broadcast(data)
		}
	}
}

// Broadcast queues data for every connected client. A client whose queue is
// full misses the message.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.enqueue(data) {
			h.logger.Warn("slow client, message dropped", slog.String("remote", c.remote))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return errHubStopped
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.WSClients(n)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.WSClients(n)
	}
}

func (h *Hub) stop() {
	h.mu.Lock()
	h.stopped = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.metrics.WSClients(0)
}

// HandleWS upgrades the connection and registers the client. With
// ?since=<stream id> the events appended after that id are sent first.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		h.logger.WarnContext(r.Context(), "upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize), remote: r.RemoteAddr}
	c.enqueue(h.hello())
	if since := r.URL.Query().Get("since"); since != "" && h.cfg.Stream != "" {
		h.replay(r.Context(), c, since)
	}

	if err := h.add(c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go c.writeLoop()
	go func() {
		c.readLoop(h.logger)
		h.remove(c)
	}()
}

type helloMessage struct {
	Type    string       `json:"type"`
	Payload helloPayload `json:"payload"`
}

type helloPayload struct {
	Mode          string `json:"mode"`
	Channel       string `json:"channel"`
	Replay        bool   `json:"replay"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (h *Hub) hello() []byte {
	data, _ := json.Marshal(helloMessage{
		Type: "hello",
		Payload: helloPayload{
			Mode:          h.cfg.Mode,
			Channel:       h.cfg.Channel,
			Replay:        h.cfg.Stream != "",
			UptimeSeconds: int64(time.Since(h.started) / time.Second),
		},
	})
	return data
}

func (h *Hub) replay(ctx context.Context, c *client, since string) {
	backlog, err := h.bus.StreamRead(ctx, h.cfg.Stream, since, maxReplay)
	if err != nil {
		h.logger.WarnContext(ctx, "replay failed",
			slog.String("since", since),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, m := range backlog {
		c.enqueue(m.Payload)
	}
	h.logger.DebugContext(ctx, "replayed backlog", slog.String("since", since), slog.Int("count", len(backlog)))
}

// client is one WebSocket connection. send is closed by the hub when the
// client is removed, which ends writeLoop.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readLoop drains inbound frames so pongs and close frames are processed.
// It returns when the connection fails or closes.
func (c *client) readLoop(logger *slog.Logger) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("client went away", slog.String("remote", c.remote), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
