package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/euOvictin/messaging-service/internal/auth"
	"github.com/euOvictin/messaging-service/internal/config"
	"github.com/euOvictin/messaging-service/internal/domain"
	"github.com/euOvictin/messaging-service/internal/service"
)

const identityKey = "identity"

// Presence is the registry the gateway maintains for the connection's
// lifetime.
type Presence interface {
	Set(ctx context.Context, userID, connID string) error
	Remove(ctx context.Context, userID, connID string) error
	Touch(ctx context.Context, userID, connID string) error
}

// Gateway accepts websocket connections, authenticates them at handshake,
// keeps the presence registry in sync with their lifecycle and routes inbound
// envelopes into the delivery pipeline.
type Gateway struct {
	hub      *Hub
	verifier *auth.Verifier
	presence Presence
	delivery *service.Delivery
	cfg      config.Websocket
	log      *zap.SugaredLogger
}

func NewGateway(hub *Hub, verifier *auth.Verifier, presence Presence, delivery *service.Delivery, cfg config.Websocket, log *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: hub, verifier: verifier, presence: presence, delivery: delivery, cfg: cfg, log: log}
}

// Upgrade authenticates the handshake before the protocol switch. The token
// is accepted from the Authorization header or a token query parameter; a
// missing or invalid credential rejects the attempt outright, no anonymous
// session is ever established.
func (g *Gateway) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			if t, err := auth.ParseBearer(c.Get(fiber.HeaderAuthorization)); err == nil {
				token = t
			}
		}

		ident, err := g.verifier.Verify(token)
		if err != nil {
			g.log.Warnw("websocket authentication failed", "ip", c.IP())
			return fiber.NewError(fiber.StatusUnauthorized, "authentication failed")
		}

		c.Locals(identityKey, ident)
		return c.Next()
	}
}

// Handle runs one authenticated connection until it drops.
func (g *Gateway) Handle() func(*websocket.Conn) {
	return func(wsc *websocket.Conn) {
		ident, ok := wsc.Locals(identityKey).(*auth.Identity)
		if !ok {
			_ = wsc.Close()
			return
		}

		conn := newConn(uuid.NewString(), ident.UserID, wsc)
		g.log.Infow("websocket client connected", "userId", conn.UserID, "connId", conn.ID)

		if prev := g.hub.Register(conn); prev != nil {
			// Last-connected-wins: the displaced session is torn down.
			prev.Close()
		}
		if err := g.presence.Set(context.Background(), conn.UserID, conn.ID); err != nil {
			g.log.Errorw("registering presence", "error", err, "userId", conn.UserID)
		}

		go conn.writePump(g.cfg.PingInterval(), g.cfg.WriteDeadline(), func() {
			_ = g.presence.Touch(context.Background(), conn.UserID, conn.ID)
		})

		g.readLoop(conn)

		// The hub removal and the registry removal are both conditional on
		// this exact connection, so a teardown that races a reconnect cannot
		// drop the fresher session.
		g.hub.Unregister(conn)
		if err := g.presence.Remove(context.Background(), conn.UserID, conn.ID); err != nil {
			g.log.Errorw("removing presence", "error", err, "userId", conn.UserID)
		}
		conn.Close()
		g.log.Infow("websocket client disconnected", "userId", conn.UserID, "connId", conn.ID)
	}
}

// readLoop processes inbound envelopes in arrival order, one at a time, so a
// single connection's events keep their submission order.
func (g *Gateway) readLoop(conn *Conn) {
	conn.ws.SetReadLimit(g.cfg.ReadLimit)
	readWait := g.cfg.PingInterval() * 2
	_ = conn.ws.SetReadDeadline(time.Now().Add(readWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.log.Debugw("dropping malformed envelope", "userId", conn.UserID)
			continue
		}

		switch env.Type {
		case "send_message":
			g.handleSend(conn, env)
		case "mark_as_read":
			g.handleMarkRead(conn, env)
		default:
			g.log.Debugw("ignoring unknown envelope type", "type", env.Type, "userId", conn.UserID)
		}
	}
}

type sendPayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	MediaURL   string `json:"mediaUrl,omitempty"`
}

type markReadPayload struct {
	MessageID string `json:"messageId"`
}

type ackResult struct {
	Success     bool          `json:"success"`
	MessageID   string        `json:"messageId,omitempty"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
	DeliveredAt *time.Time    `json:"deliveredAt,omitempty"`
	Status      string        `json:"status,omitempty"`
	AlreadyRead bool          `json:"alreadyRead,omitempty"`
	ReadAt      *time.Time    `json:"readAt,omitempty"`
	Error       *domain.Error `json:"error,omitempty"`
}

func (g *Gateway) handleSend(conn *Conn, env envelope) {
	var p sendPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			g.ack(conn, env.AckID, ackResult{Success: false, Error: domain.NewError(domain.CodeInvalidData, "malformed payload")})
			return
		}
	}

	res, err := g.delivery.Send(context.Background(), conn.UserID, service.SendInput{
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		MediaURL:   p.MediaURL,
	})
	if err != nil {
		g.ack(conn, env.AckID, ackResult{Success: false, Error: asDomainError(err)})
		return
	}
	g.ack(conn, env.AckID, ackResult{
		Success:     true,
		MessageID:   res.MessageID,
		CreatedAt:   &res.CreatedAt,
		DeliveredAt: res.DeliveredAt,
		Status:      res.Status,
	})
}

func (g *Gateway) handleMarkRead(conn *Conn, env envelope) {
	var p markReadPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			g.ack(conn, env.AckID, ackResult{Success: false, Error: domain.NewError(domain.CodeInvalidData, "malformed payload")})
			return
		}
	}

	res, err := g.delivery.MarkRead(context.Background(), conn.UserID, p.MessageID)
	if err != nil {
		g.ack(conn, env.AckID, ackResult{Success: false, Error: asDomainError(err)})
		return
	}
	g.ack(conn, env.AckID, ackResult{Success: true, AlreadyRead: res.AlreadyRead, ReadAt: res.ReadAt})
}

// ack answers an envelope that asked for one. Envelopes without an ackId rely
// on the independently pushed server events instead.
func (g *Gateway) ack(conn *Conn, ackID string, res ackResult) {
	if ackID == "" {
		return
	}
	conn.enqueueAck(ackID, res)
}

func asDomainError(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.ErrInternal()
}
