// Package transport wraps a single upgraded WebSocket connection with the
// read/write pump pair the hub dispatches envelopes through.
package transport

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/outpoot/editmash-hub/internal/authn"
	"github.com/outpoot/editmash-hub/internal/metrics"
	"github.com/outpoot/editmash-hub/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Dispatcher routes a decoded envelope from a connection into room/lobby
// logic, and is notified when a connection goes away.
type Dispatcher interface {
	Dispatch(c *Client, env wire.Envelope)
	HandleDisconnect(c *Client)
}

// Client is one upgraded WebSocket connection. It implements registry.Conn.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	logger *log.Logger
	metrics *metrics.Metrics

	dispatcher Dispatcher

	id          string
	userID      string
	username    string
	connectedAt time.Time

	idleTimeout time.Duration
	pingPeriod  time.Duration
	maxMessage  int64

	closeOnce sync.Once
	mu        sync.RWMutex
	claims    *authn.Claims
}

// Options configures a new Client; zero values fall back to sane defaults.
type Options struct {
	IdleTimeout time.Duration
	PingPeriod  time.Duration
	MaxMessage  int64
}

func NewClient(conn *websocket.Conn, d Dispatcher, m *metrics.Metrics, logger *log.Logger, opts Options) *Client {
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 120 * time.Second
	}
	if opts.PingPeriod == 0 {
		opts.PingPeriod = 30 * time.Second
	}
	if opts.MaxMessage == 0 {
		opts.MaxMessage = 1 << 20
	}
	return &Client{
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		logger:      logger,
		metrics:     m,
		dispatcher:  d,
		id:          uuid.NewString(),
		connectedAt: time.Now(),
		idleTimeout: opts.IdleTimeout,
		pingPeriod:  opts.PingPeriod,
		maxMessage:  opts.MaxMessage,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// BindUser is called once JoinMatch identifies the user, so the registry
// can key multi-tab eviction by application user rather than connection.
func (c *Client) BindUser(userID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.username = username
}

func (c *Client) Claims() *authn.Claims {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.claims
}

func (c *Client) SetClaims(claims *authn.Claims) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims = claims
}

// EvictForReconnect satisfies registry.Conn: a newer connection for the
// same user has just been registered, so this one must close.
func (c *Client) EvictForReconnect() {
	c.SendEnvelope(wire.EncodeError(wire.ErrNotAuthenticated, "replaced by a newer connection"))
	c.Close()
}

// SendEnvelope enqueues a pre-encoded frame, dropping it if the send
// buffer is saturated rather than blocking the hub's dispatch path.
func (c *Client) SendEnvelope(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.logger.Printf("client %s: send buffer full, dropping frame", c.id)
		c.metrics.RecordError("send_buffer_full")
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump decodes binary frames and dispatches them until the connection
// errors or closes. Must run in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.dispatcher.HandleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Printf("client %s: read error: %v", c.id, err)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			c.SendEnvelope(wire.EncodeError(wire.ErrInvalidMessage, "text frames are not accepted, send binary frames"))
			continue
		}

		c.metrics.IncrementMessagesReceived(len(message))

		env, err := wire.Decode(message)
		if err != nil {
			c.SendEnvelope(wire.EncodeError(wire.ErrInvalidMessage, err.Error()))
			continue
		}

		if env.Type == wire.TypePing {
			c.SendEnvelope(mustEncodePong())
			continue
		}

		c.dispatcher.Dispatch(c, env)
	}
}

// WritePump drains the send channel onto the wire and keeps the connection
// alive with server-initiated pings. Must run in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
			c.metrics.IncrementMessagesSent()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustEncodePong() []byte {
	b, _ := wire.Encode(wire.TypePong, nil)
	return b
}

// Upgrader builds a gorilla upgrader honoring the configured CheckOrigin
// policy; the hub server owns the one instance used for every request.
func Upgrader(readBuf, writeBuf int, checkOrigin bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  readBuf,
		WriteBufferSize: writeBuf,
		CheckOrigin: func(r *http.Request) bool {
			if !checkOrigin {
				return true
			}
			return r.Header.Get("Origin") != ""
		},
	}
}
