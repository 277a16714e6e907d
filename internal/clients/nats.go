package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"github.com/zxb7500644/m3u8-mcp/internal/config"
	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

const natsClientName = "m3u8-mcp-launcher"

// flushTimeout bounds how long a single event may hold up the launcher.
const flushTimeout = 2 * time.Second

// natsPublisher is the subset of *nats.Conn used for event delivery. Defining
// an interface here allows test doubles to be injected without a live NATS
// server.
type natsPublisher interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSNotifier publishes launch events as JSON on a single subject. The
// connection is opened lazily on the first event and reused afterwards.
type NATSNotifier struct {
	url     string
	subject string
	cb      *gobreaker.CircuitBreaker
	connect func(url string) (natsPublisher, error)

	mu   sync.Mutex
	conn natsPublisher
}

// NewNATSNotifier constructs a NATSNotifier. No connection is made at
// construction time.
func NewNATSNotifier(cfg config.NotifyConfig, cb *gobreaker.CircuitBreaker) *NATSNotifier {
	return &NATSNotifier{
		url:     cfg.NATSURL,
		subject: cfg.Subject,
		cb:      cb,
		connect: realConnect,
	}
}

// Notify publishes ev and logs delivery failures. It satisfies
// orchestrator.Notifier.
func (n *NATSNotifier) Notify(ctx context.Context, ev orchestrator.LaunchEvent) {
	if err := n.Publish(ctx, ev); err != nil {
		slog.DebugContext(ctx, "launch event not delivered", "type", ev.Type, "err", err)
	}
}

// Publish sends ev through the circuit breaker. After three consecutive
// failures the breaker opens and events are rejected without dialing.
func (n *NATSNotifier) Publish(ctx context.Context, ev orchestrator.LaunchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", ev.Type, err)
	}

	_, err = n.cb.Execute(func() (any, error) {
		conn, err := n.connection()
		if err != nil {
			return nil, err
		}
		if err := conn.Publish(n.subject, data); err != nil {
			n.reset()
			return nil, fmt.Errorf("publishing to %s: %w", n.subject, err)
		}
		if err := conn.FlushTimeout(flushTimeout); err != nil {
			n.reset()
			return nil, fmt.Errorf("flushing %s: %w", n.subject, err)
		}
		return nil, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// Close releases the NATS connection, if one was opened.
func (n *NATSNotifier) Close() {
	n.reset()
}

func (n *NATSNotifier) connection() (natsPublisher, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return n.conn, nil
	}
	conn, err := n.connect(n.url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	n.conn = conn
	return conn, nil
}

func (n *NATSNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

// realConnect opens a NATS connection without reconnect buffering; the
// launcher is short-lived and drops events it cannot deliver.
func realConnect(url string) (natsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(natsClientName),
		nats.Timeout(flushTimeout),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
