// Package eventbus wraps a NATS connection used internally, within this
// one process, to decouple the admin notify handlers from the lobby
// subscriber fan-out. It is not a cross-process message bus: multi-node
// scale-out is explicitly out of scope for this hub.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/outpoot/editmash-hub/internal/metrics"
)

const (
	SubjectLobbiesUpdated = "editmash.lobbies.updated"
	SubjectMatchStatus    = "editmash.match.status"
)

type Client struct {
	conn    *nats.Conn
	metrics *metrics.Metrics
	logger  *log.Logger

	subsMutex sync.Mutex
	subs      map[string]*nats.Subscription
}

type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

func NewClient(cfg Config, m *metrics.Metrics, logger *log.Logger) (*Client, error) {
	c := &Client{metrics: m, logger: logger, subs: make(map[string]*nats.Subscription)}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ConnectHandler(func(conn *nats.Conn) {
			logger.Printf("eventbus: connected to %s", conn.ConnectedUrl())
			m.SetEventBusConnected(true)
		}),
		nats.DisconnectErrHandler(func(conn *nats.Conn, err error) {
			logger.Printf("eventbus: disconnected: %v", err)
			m.SetEventBusConnected(false)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Printf("eventbus: reconnected to %s", conn.ConnectedUrl())
			m.SetEventBusConnected(true)
		}),
		nats.ErrorHandler(func(conn *nats.Conn, sub *nats.Subscription, err error) {
			logger.Printf("eventbus: error: %v", err)
			m.RecordError("eventbus")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to %s: %w", cfg.URL, err)
	}
	c.conn = conn
	m.SetEventBusConnected(true)
	return c, nil
}

func (c *Client) Subscribe(subject string, handler func([]byte)) error {
	c.subsMutex.Lock()
	defer c.subsMutex.Unlock()

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) { handler(msg.Data) })
	if err != nil {
		return fmt.Errorf("eventbus: subscribe to %s: %w", subject, err)
	}
	c.subs[subject] = sub
	return nil
}

func (c *Client) PublishJSON(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal payload for %s: %w", subject, err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.metrics.RecordError("eventbus_publish")
		return fmt.Errorf("eventbus: publish to %s: %w", subject, err)
	}
	return nil
}

func (c *Client) IsConnected() bool { return c.conn != nil && c.conn.IsConnected() }

func (c *Client) Close() {
	c.subsMutex.Lock()
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subsMutex.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}
