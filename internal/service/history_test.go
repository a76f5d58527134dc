package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/euOvictin/messaging-service/internal/domain"
)

func seedConversation(t *testing.T, store *fakeStore, a, b string, n int) []string {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sender, receiver := a, b
		if i%2 == 1 {
			sender, receiver = b, a
		}
		m := &domain.Message{
			SenderID:   sender,
			ReceiverID: receiver,
			Content:    fmt.Sprintf("message %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Insert(context.Background(), m))
		ids = append(ids, m.ID)
	}
	return ids
}

func TestHistoryPaginatesBothDirections(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	h := NewHistory(store, zap.NewNop().Sugar())

	seedConversation(t, store, "alice", "bob", 7)
	// Noise from an unrelated pair must not leak into the count.
	seedConversation(t, store, "alice", "carol", 3)

	res, err := h.History(context.Background(), "alice", "bob", 1, 3)
	req.NoError(err)
	req.Len(res.Messages, 3)
	req.Equal(int64(7), res.Pagination.Total)
	req.Equal(int64(3), res.Pagination.TotalPages)
	req.Equal(1, res.Pagination.Page)
	req.Equal(3, res.Pagination.Limit)

	// First page holds the newest messages, returned oldest-first.
	req.Equal("message 4", res.Messages[0].Content)
	req.Equal("message 5", res.Messages[1].Content)
	req.Equal("message 6", res.Messages[2].Content)

	last, err := h.History(context.Background(), "alice", "bob", 3, 3)
	req.NoError(err)
	req.Len(last.Messages, 1)
	req.Equal("message 0", last.Messages[0].Content)
	req.Equal(int64(7), last.Pagination.Total)
}

func TestHistoryTotalIndependentOfPage(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	h := NewHistory(store, zap.NewNop().Sugar())
	seedConversation(t, store, "alice", "bob", 5)

	for page := 1; page <= 4; page++ {
		res, err := h.History(context.Background(), "alice", "bob", page, 2)
		req.NoError(err)
		req.Equal(int64(5), res.Pagination.Total)
		req.LessOrEqual(len(res.Messages), 2)
	}
}

func TestHistoryLimitCeiling(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	h := NewHistory(store, zap.NewNop().Sugar())
	seedConversation(t, store, "alice", "bob", 2)

	res, err := h.History(context.Background(), "alice", "bob", 1, 500)
	req.NoError(err)
	req.Equal(50, res.Pagination.Limit)

	res, err = h.History(context.Background(), "alice", "bob", 0, 0)
	req.NoError(err)
	req.Equal(50, res.Pagination.Limit)
	req.Equal(1, res.Pagination.Page)
}

func TestHistoryRequiresOtherUserID(t *testing.T) {
	req := require.New(t)
	h := NewHistory(newFakeStore(), zap.NewNop().Sugar())

	_, err := h.History(context.Background(), "alice", "", 1, 10)
	req.Equal(domain.CodeInvalidData, errCode(t, err))
}

func TestStoredMessageRetrievableViaHistory(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	notifier := newFakeNotifier()
	d := NewDelivery(store, newFakeRegistry(), notifier, nil, zap.NewNop().Sugar())
	h := NewHistory(store, zap.NewNop().Sugar())

	sent, err := d.Send(context.Background(), "alice", SendInput{ReceiverID: "bob", Content: "hello"})
	req.NoError(err)
	req.Equal(domain.StatusStored, sent.Status)

	res, err := h.History(context.Background(), "bob", "alice", 1, 50)
	req.NoError(err)
	req.Len(res.Messages, 1)
	req.Equal(sent.MessageID, res.Messages[0].ID)
	req.Nil(res.Messages[0].DeliveredAt)
}

func TestConversations(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.convs = []domain.Conversation{
		{OtherUserID: "bob", UnreadCount: 2},
		{OtherUserID: "carol", UnreadCount: 0},
	}
	h := NewHistory(store, zap.NewNop().Sugar())

	convs, err := h.Conversations(context.Background(), "alice")
	req.NoError(err)
	req.Len(convs, 2)
	req.Equal("bob", convs[0].OtherUserID)
	req.Equal(int64(2), convs[0].UnreadCount)
}
