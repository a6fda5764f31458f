// Package bridge connects the engines to a browser over a WebSocket. The
// server asks, the browser answers: every request carries an id and the
// browser replies with a "reply" message holding the same id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message types
const (
	TypeDialog   = "dialog"
	TypeChoice   = "choice"
	TypeAnnounce = "announce"
	TypeMiniGame = "minigame"
	TypeEnding   = "ending"
	TypeStage    = "stage"
	TypeEvent    = "event"
	TypeResult   = "result"
	TypeError    = "error"
	TypeReply    = "reply"
	TypeCommand  = "command"
	TypeSkip     = "skip"
	TypeSession  = "session"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	inboundSize  = 64
)

// ErrClosed is returned for requests that cannot complete because the
// browser went away
var ErrClosed = errors.New("connection closed")

// Upgrader accepts browser connections
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope sent in both directions
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conn multiplexes requests, replies and unsolicited browser messages over
// one socket. Writes are serialized; ReadLoop must run in its own goroutine.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Message

	inbound   chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn wraps an upgraded socket
func NewConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		ws:      ws,
		logger:  logger,
		pending: make(map[string]chan Message),
		inbound: make(chan Message, inboundSize),
		closed:  make(chan struct{}),
	}
}

// Done is closed when the connection is gone
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Inbound delivers browser messages that are not replies
func (c *Conn) Inbound() <-chan Message {
	return c.inbound
}

// Close shuts the socket down. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}

// ReadLoop reads until the socket fails, routing replies to their waiting
// requests. It closes the connection when it returns.
func (c *Conn) ReadLoop() error {
	defer c.Close()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.heartbeat()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket closed unexpectedly", "error", err)
			}
			return err
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping malformed message", "error", err)
			continue
		}
		if msg.Type == TypeReply {
			c.deliver(msg)
			continue
		}
		select {
		case c.inbound <- msg:
		default:
			c.logger.Warn("Inbound queue full, message dropped", "type", msg.Type)
		}
	}
}

func (c *Conn) deliver(msg Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("Reply without a request", "id", msg.ID)
		return
	}
	ch <- msg
}

func (c *Conn) heartbeat() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

// Send writes a message that expects no reply
func (c *Conn) Send(typ string, payload any) error {
	return c.write(Message{Type: typ}, payload)
}

func (c *Conn) write(msg Message, payload any) error {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", msg.Type, err)
		}
		msg.Payload = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// Request sends a message and blocks until the browser replies, the
// connection closes or ctx is done. The reply payload is decoded into out
// when out is not nil.
func (c *Conn) Request(ctx context.Context, typ string, payload any, out any) error {
	id := uuid.New().String()
	ch := make(chan Message, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Message{Type: typ, ID: id}, payload); err != nil {
		return err
	}

	select {
	case reply := <-ch:
		if out == nil || len(reply.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(reply.Payload, out); err != nil {
			return fmt.Errorf("invalid %s reply: %w", typ, err)
		}
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
