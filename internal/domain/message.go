package domain

import "time"

// Delivery status of a sent message, reported back to the sender.
const (
	StatusDelivered = "delivered"
	StatusStored    = "stored"
)

// Message is a single direct message in the ledger. DeliveredAt and ReadAt
// are set at most once each and never revert to nil. ReadAt may be set while
// DeliveredAt is still nil: a receiver can read via history without ever
// getting a live delivery event.
type Message struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	Content     string     `json:"content"`
	MediaURL    string     `json:"mediaUrl,omitempty"`
	IsRead      bool       `json:"isRead"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Conversation is a materialized-on-read summary per counterpart: the most
// recent message exchanged with them and how many of their messages the
// requesting user has not read yet.
type Conversation struct {
	OtherUserID string  `json:"otherUserId"`
	LastMessage Message `json:"lastMessage"`
	UnreadCount int64   `json:"unreadCount"`
}

// Pagination describes one page of a conversation history.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}
