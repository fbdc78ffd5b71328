package trader

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oskarlind/tradingpost/internal/hub"
)

// ListenerConfig holds callback listener settings.
type ListenerConfig struct {
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	HandshakeTimeout   time.Duration
}

// DefaultListenerConfig returns production defaults.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		HandshakeTimeout:   10 * time.Second,
	}
}

// Listener keeps a trader's callback WebSocket attached to the market,
// reconnecting with exponential backoff when the connection drops.
type Listener struct {
	cfg     ListenerConfig
	url     string
	handler func(hub.Frame)
	logger  *slog.Logger
}

// NewListener creates a listener for the given callback URL. The
// handler runs on the read goroutine, one frame at a time.
func NewListener(cfg ListenerConfig, url string, handler func(hub.Frame), logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = DefaultListenerConfig().ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = DefaultListenerConfig().ReconnectMaxDelay
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultListenerConfig().HandshakeTimeout
	}
	return &Listener{cfg: cfg, url: url, handler: handler, logger: logger}
}

// Run connects and reads frames until the context is canceled. Each
// disconnect triggers a reconnect attempt with exponential backoff;
// backoff resets after a successful connection.
func (l *Listener) Run(ctx context.Context) error {
	wait := l.cfg.ReconnectBaseDelay

	for {
		conn, err := l.connect(ctx)
		if err != nil {
			l.logger.Warn("callback connection failed", "url", l.url, "retry_in", wait, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > l.cfg.ReconnectMaxDelay {
				wait = l.cfg.ReconnectMaxDelay
			}
			continue
		}

		l.logger.Info("callback connection established", "url", l.url)
		wait = l.cfg.ReconnectBaseDelay

		if err := l.readFrames(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("callback connection lost", "error", err)
		}
	}
}

func (l *Listener) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: l.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, l.url, nil)
	return conn, err
}

func (l *Listener) readFrames(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	// Unblock ReadMessage when the context is canceled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame hub.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			l.logger.Warn("malformed callback frame", "error", err)
			continue
		}
		l.handler(frame)
	}
}
