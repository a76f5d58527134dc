package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/euOvictin/messaging-service/internal/domain"
)

// Hard ceiling on the page size regardless of what the client asks for.
const maxPageLimit = 50

// HistoryResult is one page of a two-party conversation, oldest-first.
type HistoryResult struct {
	Messages   []domain.Message  `json:"messages"`
	Pagination domain.Pagination `json:"pagination"`
}

// History serves paginated conversation history and the per-user conversation
// list.
type History struct {
	store MessageStore
	log   *zap.SugaredLogger
}

func NewHistory(store MessageStore, log *zap.SugaredLogger) *History {
	return &History{store: store, log: log}
}

// History pages through all messages between userID and otherUserID in either
// direction. Pagination runs newest-first; each page is returned in
// chronological order.
func (h *History) History(ctx context.Context, userID, otherUserID string, page, limit int) (*HistoryResult, error) {
	if otherUserID == "" {
		return nil, domain.NewError(domain.CodeInvalidData, "otherUserId is required")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	skip := int64(page-1) * int64(limit)
	msgs, total, err := h.store.History(ctx, userID, otherUserID, skip, int64(limit))
	if err != nil {
		h.log.Errorw("fetching history", "error", err, "userId", userID, "otherUserId", otherUserID)
		return nil, domain.ErrInternal()
	}

	// Store order is newest-first for pagination; the caller reads a page
	// oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &HistoryResult{
		Messages: msgs,
		Pagination: domain.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Conversations lists the user's conversations, most recently active first.
func (h *History) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	convs, err := h.store.Conversations(ctx, userID)
	if err != nil {
		h.log.Errorw("fetching conversations", "error", err, "userId", userID)
		return nil, domain.ErrInternal()
	}
	return convs, nil
}
