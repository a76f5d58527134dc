package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// envelope frames every message on the wire, both directions. AckID lets a
// client correlate an async ack with the envelope that triggered it.
type envelope struct {
	Type    string          `json:"type"`
	AckID   string          `json:"ackId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outFrame struct {
	Type    string `json:"type"`
	AckID   string `json:"ackId,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Conn is one authenticated websocket session.
type Conn struct {
	ID     string
	UserID string

	ws     *websocket.Conn
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(id, userID string, wsc *websocket.Conn) *Conn {
	return &Conn{
		ID:     id,
		UserID: userID,
		ws:     wsc,
		send:   make(chan []byte, 256),
	}
}

// Enqueue marshals the event and queues it for the write pump. Non-blocking:
// a full queue or a closed connection drops the event and reports false.
func (c *Conn) Enqueue(event string, payload any) bool {
	b, err := json.Marshal(outFrame{Type: event, Payload: payload})
	if err != nil {
		return false
	}
	return c.push(b)
}

func (c *Conn) enqueueAck(ackID string, payload any) {
	b, err := json.Marshal(outFrame{Type: "ack", AckID: ackID, Payload: payload})
	if err != nil {
		return
	}
	c.push(b)
}

// push hands a frame to the write pump. The mutex orders it against Close so
// a publisher that resolved this connection before teardown can never send on
// the closed channel.
func (c *Conn) push(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close shuts the send queue down, which ends the write pump and closes the
// socket. Safe to call more than once; concurrent Enqueue calls drop instead
// of panicking.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings. onPing runs after each successful ping write; the gateway
// uses it to renew the presence entry's TTL.
func (c *Conn) writePump(pingInterval, writeDeadline time.Duration, onPing func()) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
			if onPing != nil {
				onPing()
			}
		}
	}
}
