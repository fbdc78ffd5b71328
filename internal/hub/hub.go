// Package hub tracks the WebSocket connections over which registered
// traders receive their callback messages.
//
// Each trader holds at most one attached connection; a new attachment
// under the same name replaces the old one. The hub implements the
// dispatcher's Sink: delivering to a trader with no attached connection
// is an error, which the dispatcher logs and swallows.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the JSON message pushed to an attached trader.
type Frame struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Config holds hub timing settings.
type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
		PingInterval: 15 * time.Second,
	}
}

// Stats contains hub counters.
type Stats struct {
	Attached  int   `json:"attached"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Hub is the connection registry.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     map[string]*traderConn
	delivered int64
	failed    int64
	closed    bool
}

type traderConn struct {
	trader string
	ws     *websocket.Conn

	writeMu  sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a hub.
func New(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]*traderConn),
	}
}

// Attach upgrades the request to a WebSocket and registers it as the
// trader's callback sink, replacing any previous connection.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, trader string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade callback connection: %w", err)
	}

	conn := &traderConn{
		trader: trader,
		ws:     ws,
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return fmt.Errorf("hub is shut down")
	}
	if old, ok := h.conns[trader]; ok {
		old.stop()
	}
	h.conns[trader] = conn
	h.mu.Unlock()

	h.logger.Info("trader attached", "trader", trader, "remote", ws.RemoteAddr())

	go h.readLoop(conn)
	go h.pingLoop(conn)
	return nil
}

// Detach removes and closes the trader's connection, if any.
func (h *Hub) Detach(trader string) {
	h.mu.Lock()
	conn, ok := h.conns[trader]
	if ok {
		delete(h.conns, trader)
	}
	h.mu.Unlock()

	if ok {
		conn.stop()
		h.logger.Info("trader detached", "trader", trader)
	}
}

// Deliver sends a callback frame to the trader's attached connection.
// Implements notify.Sink.
func (h *Hub) Deliver(trader string, message string) error {
	h.mu.Lock()
	conn, ok := h.conns[trader]
	h.mu.Unlock()

	if !ok {
		h.countFailure()
		return fmt.Errorf("trader %s has no attached callback connection", trader)
	}

	frame := Frame{Type: "callback", Message: message, SentAt: time.Now().UTC()}

	conn.writeMu.Lock()
	conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	err := conn.ws.WriteJSON(frame)
	conn.writeMu.Unlock()

	if err != nil {
		h.countFailure()
		h.drop(conn)
		return fmt.Errorf("write callback to %s: %w", trader, err)
	}

	h.mu.Lock()
	h.delivered++
	h.mu.Unlock()
	return nil
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Attached:  len(h.conns),
		Delivered: h.delivered,
		Failed:    h.failed,
	}
}

// Stop closes every attached connection.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*traderConn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*traderConn)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.stop()
	}
	h.logger.Info("callback hub stopped", "connections_closed", len(conns))
	return nil
}

func (h *Hub) countFailure() {
	h.mu.Lock()
	h.failed++
	h.mu.Unlock()
}

// drop removes a connection after a write failure, unless it has already
// been replaced by a newer attachment.
func (h *Hub) drop(conn *traderConn) {
	h.mu.Lock()
	if current, ok := h.conns[conn.trader]; ok && current == conn {
		delete(h.conns, conn.trader)
	}
	h.mu.Unlock()
	conn.stop()
}

// readLoop consumes inbound frames so control messages are processed and
// peer closes are noticed. Traders never send data frames.
func (h *Hub) readLoop(conn *traderConn) {
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) pingLoop(conn *traderConn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			conn.writeMu.Lock()
			err := conn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout))
			conn.writeMu.Unlock()
			if err != nil {
				h.drop(conn)
				return
			}
		}
	}
}

func (c *traderConn) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
