package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/euOvictin/messaging-service/internal/domain"
	"github.com/euOvictin/messaging-service/internal/repository"
)

const (
	minContentLen = 1
	maxContentLen = 5000
)

// MessageStore is the durable ledger the pipeline writes to.
type MessageStore interface {
	Insert(ctx context.Context, m *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
	History(ctx context.Context, userID, otherUserID string, skip, limit int64) ([]domain.Message, int64, error)
	Conversations(ctx context.Context, userID string) ([]domain.Conversation, error)
}

// Registry is the shared presence registry consulted for recipient
// reachability.
type Registry interface {
	Get(ctx context.Context, userID string) (string, error)
	Remove(ctx context.Context, userID, connID string) error
}

// Notifier publishes server events on a user's channel. SendToUser reports
// whether anything was actually enqueued; IsConnected probes whether a
// presence entry's connection is still live here.
type Notifier interface {
	SendToUser(userID, event string, payload any) bool
	IsConnected(userID, connID string) bool
}

// EventPublisher feeds the platform event stream. Best-effort everywhere it
// is used; a publish failure never fails the operation that produced it.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// SendInput is a validated-on-entry send request.
type SendInput struct {
	ReceiverID string
	Content    string
	MediaURL   string
}

// SendResult is the synchronous outcome of a send, distinct from the events
// pushed on channels.
type SendResult struct {
	MessageID   string     `json:"messageId"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	Status      string     `json:"status"`
}

// ReadResult is the synchronous outcome of a mark-read.
type ReadResult struct {
	AlreadyRead bool       `json:"alreadyRead,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// Delivery validates, persists and routes direct messages. All collaborators
// arrive through the constructor so tests can substitute doubles.
type Delivery struct {
	store    MessageStore
	registry Registry
	notifier Notifier
	events   EventPublisher
	log      *zap.SugaredLogger
}

func NewDelivery(store MessageStore, registry Registry, notifier Notifier, events EventPublisher, log *zap.SugaredLogger) *Delivery {
	return &Delivery{store: store, registry: registry, notifier: notifier, events: events, log: log}
}

// Send persists the message, delivers it live when the receiver is reachable
// and acknowledges the sender on their own channel either way.
func (d *Delivery) Send(ctx context.Context, senderID string, in SendInput) (*SendResult, error) {
	if in.ReceiverID == "" {
		return nil, domain.NewError(domain.CodeInvalidData, "receiverId is required")
	}
	if n := len([]rune(in.Content)); n < minContentLen || n > maxContentLen {
		return nil, domain.NewError(domain.CodeMessageTooLong, "content must be between 1 and 5000 characters")
	}
	if in.ReceiverID == senderID {
		return nil, domain.NewError(domain.CodeInvalidReceiver, "cannot send a message to yourself")
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		MediaURL:   in.MediaURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.store.Insert(ctx, msg); err != nil {
		d.log.Errorw("persisting message", "error", err, "senderId", senderID)
		return nil, domain.ErrInternal()
	}

	status := domain.StatusStored
	if d.receiverReachable(ctx, in.ReceiverID) {
		at := time.Now().UTC()
		if err := d.store.MarkDelivered(ctx, msg.ID, at); err != nil {
			// The message is durably stored; report it as such.
			d.log.Errorw("recording delivery", "error", err, "messageId", msg.ID)
		} else {
			msg.DeliveredAt = &at
			status = domain.StatusDelivered
			d.notifier.SendToUser(in.ReceiverID, domain.EventMessageReceived, domain.MessageReceivedEvent{
				MessageID:   msg.ID,
				SenderID:    msg.SenderID,
				ReceiverID:  msg.ReceiverID,
				Content:     msg.Content,
				MediaURL:    msg.MediaURL,
				CreatedAt:   msg.CreatedAt,
				DeliveredAt: msg.DeliveredAt,
			})
		}
	}

	// The sender may be listening for the event rather than the synchronous
	// result, so this ack goes out regardless.
	d.notifier.SendToUser(senderID, domain.EventMessageDelivered, domain.MessageDeliveredEvent{
		MessageID:   msg.ID,
		Status:      status,
		DeliveredAt: msg.DeliveredAt,
	})

	if status == domain.StatusDelivered {
		d.publish(ctx, msg.ID, map[string]any{
			"event":      "message.delivered",
			"messageId":  msg.ID,
			"senderId":   msg.SenderID,
			"receiverId": msg.ReceiverID,
		})
	}

	return &SendResult{
		MessageID:   msg.ID,
		CreatedAt:   msg.CreatedAt,
		DeliveredAt: msg.DeliveredAt,
		Status:      status,
	}, nil
}

// receiverReachable resolves the receiver's presence entry and verifies the
// connection behind it is still live. A stale entry is removed on discovery.
// Registry failure degrades to unreachable rather than failing the send.
func (d *Delivery) receiverReachable(ctx context.Context, receiverID string) bool {
	connID, err := d.registry.Get(ctx, receiverID)
	if err != nil {
		d.log.Warnw("presence lookup failed, treating receiver as offline", "error", err, "receiverId", receiverID)
		return false
	}
	if connID == "" {
		return false
	}
	if !d.notifier.IsConnected(receiverID, connID) {
		if err := d.registry.Remove(ctx, receiverID, connID); err != nil {
			d.log.Warnw("removing stale presence entry", "error", err, "receiverId", receiverID)
		}
		return false
	}
	return true
}

// MarkRead records that the receiver read the message. Idempotent: a second
// call reports alreadyRead without mutating anything. The sender is notified
// best-effort when online.
func (d *Delivery) MarkRead(ctx context.Context, readerID, messageID string) (*ReadResult, error) {
	if messageID == "" {
		return nil, domain.NewError(domain.CodeInvalidData, "messageId is required")
	}

	msg, err := d.store.FindByID(ctx, messageID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInvalidID):
			return nil, domain.NewError(domain.CodeInvalidData, "invalid messageId")
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NewError(domain.CodeNotFound, "message not found")
		default:
			d.log.Errorw("loading message", "error", err, "messageId", messageID)
			return nil, domain.ErrInternal()
		}
	}

	if msg.ReceiverID != readerID {
		return nil, domain.NewError(domain.CodeForbidden, "only the receiver may mark a message as read")
	}
	if msg.IsRead {
		return &ReadResult{AlreadyRead: true, ReadAt: msg.ReadAt}, nil
	}

	at := time.Now().UTC()
	updated, err := d.store.MarkRead(ctx, messageID, at)
	if err != nil {
		d.log.Errorw("recording read", "error", err, "messageId", messageID)
		return nil, domain.ErrInternal()
	}
	if !updated {
		// Lost a concurrent mark-read race; the other call did the mutation.
		cur, err := d.store.FindByID(ctx, messageID)
		if err != nil {
			return &ReadResult{AlreadyRead: true}, nil
		}
		return &ReadResult{AlreadyRead: true, ReadAt: cur.ReadAt}, nil
	}

	d.notifier.SendToUser(msg.SenderID, domain.EventMessageRead, domain.MessageReadEvent{
		MessageID: messageID,
		ReadBy:    readerID,
		ReadAt:    at,
	})

	d.publish(ctx, messageID, map[string]any{
		"event":     "message.read",
		"messageId": messageID,
		"readBy":    readerID,
	})

	return &ReadResult{ReadAt: &at}, nil
}

func (d *Delivery) publish(ctx context.Context, key string, value any) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, key, value); err != nil {
		d.log.Warnw("publishing platform event", "error", err, "key", key)
	}
}
