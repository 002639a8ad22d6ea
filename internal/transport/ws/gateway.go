package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Subscription is a live stream of location payloads for one driver.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Subscriber opens a dedicated subscription per tracking connection.
type Subscriber interface {
	Subscribe(ctx context.Context, driverID string) (Subscription, error)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, driverID string) (Subscription, error)

func (f SubscriberFunc) Subscribe(ctx context.Context, driverID string) (Subscription, error) {
	return f(ctx, driverID)
}

// Gateway bridges per-driver pub/sub channels to live websocket
// connections. Every tracker gets its own subscription; a transport error
// tears down that one connection and releases its subscription without
// touching the others.
type Gateway struct {
	subscriber Subscriber
	upgrader   websocket.Upgrader
	trackers   prometheus.Gauge
}

// option is a function that configures the Gateway.
type option func(*Gateway)

// NewGateway creates a new tracking gateway.
func NewGateway(subscriber Subscriber, opts ...option) *Gateway {
	g := &Gateway{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithActiveTrackersGauge publishes the live connection count.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithActiveTrackersGauge(gauge prometheus.Gauge) option {
	return func(g *Gateway) {
		g.trackers = gauge
	}
}

// ServeHTTP upgrades the connection and serves it until disconnect.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)

		return
	}

	g.serve(conn, r.URL.Path)
}

// parseTrackPath extracts the driver id from the expected two-segment
// scheme /track/{driver_id}.
func parseTrackPath(path string) (string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "" || parts[1] != "track" || parts[2] == "" {
		return "", false
	}

	return parts[2], true
}

func (g *Gateway) serve(conn *websocket.Conn, path string) {
	defer conn.Close()

	driverID, ok := parseTrackPath(path)
	if !ok {
		slog.Warn("Rejecting tracking connection with malformed path", "path", path)
		g.closeWith(conn, websocket.ClosePolicyViolation, "invalid tracking path")

		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := g.subscriber.Subscribe(ctx, driverID)
	if err != nil {
		slog.Error("Failed to subscribe to driver channel", "driver_id", driverID, "error", err)
		g.closeWith(conn, websocket.CloseInternalServerErr, "subscription failed")

		return
	}
	// Release on every exit path: normal close, forward error, ping failure.
	defer func() {
		if err := sub.Close(); err != nil {
			slog.Error("Failed to release subscription", "driver_id", driverID, "error", err)
		}
	}()

	if g.trackers != nil {
		g.trackers.Inc()
		defer g.trackers.Dec()
	}

	slog.Info("Tracker connected", "driver_id", driverID)

	// The client sends nothing after the handshake; the read loop exists to
	// detect the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Info("Tracker disconnected", "driver_id", driverID)

			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("Failed to forward location update", "driver_id", driverID, "error", err)

				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Warn("Ping failed", "driver_id", driverID, "error", err)

				return
			}
		}
	}
}

func (g *Gateway) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
