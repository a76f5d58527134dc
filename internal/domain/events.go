package domain

import "time"

// Server-pushed event names.
const (
	EventMessageReceived  = "message_received"
	EventMessageDelivered = "message_delivered"
	EventMessageRead      = "message_read"
)

// MessageReceivedEvent is pushed to the receiver's channel when a message is
// delivered live.
type MessageReceivedEvent struct {
	MessageID   string     `json:"messageId"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	Content     string     `json:"content"`
	MediaURL    string     `json:"mediaUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`
}

// MessageDeliveredEvent is the sender-side acknowledgement, pushed whether or
// not the receiver was reachable.
type MessageDeliveredEvent struct {
	MessageID   string     `json:"messageId"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"deliveredAt"`
}

// MessageReadEvent notifies the original sender that the receiver read the
// message. Best-effort: an offline sender simply misses it.
type MessageReadEvent struct {
	MessageID string    `json:"messageId"`
	ReadBy    string    `json:"readBy"`
	ReadAt    time.Time `json:"readAt"`
}
