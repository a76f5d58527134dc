package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/euOvictin/messaging-service/internal/domain"
	"github.com/euOvictin/messaging-service/internal/repository"
)

type fakeStore struct {
	mu      sync.Mutex
	seq     int
	msgs    map[string]*domain.Message
	convs   []domain.Conversation
	failure error
}

func newFakeStore() *fakeStore {
	return &fakeStore{msgs: map[string]*domain.Message{}}
}

func (s *fakeStore) Insert(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.seq++
	m.ID = fmt.Sprintf("msg-%03d", s.seq)
	cp := *m
	s.msgs[m.ID] = &cp
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	if !strings.HasPrefix(id, "msg-") {
		return nil, repository.ErrInvalidID
	}
	m, ok := s.msgs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) MarkDelivered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	if m, ok := s.msgs[id]; ok && m.DeliveredAt == nil {
		m.DeliveredAt = &at
	}
	return nil
}

func (s *fakeStore) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	m, ok := s.msgs[id]
	if !ok || m.IsRead {
		return false, nil
	}
	m.IsRead = true
	m.ReadAt = &at
	return true, nil
}

func (s *fakeStore) History(_ context.Context, userID, otherUserID string, skip, limit int64) ([]domain.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, 0, s.failure
	}
	matched := []domain.Message{}
	for _, m := range s.msgs {
		if (m.SenderID == userID && m.ReceiverID == otherUserID) ||
			(m.SenderID == otherUserID && m.ReceiverID == userID) {
			matched = append(matched, *m)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if skip >= total {
		return []domain.Message{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return matched[skip:end], total, nil
}

func (s *fakeStore) Conversations(_ context.Context, _ string) ([]domain.Conversation, error) {
	if s.failure != nil {
		return nil, s.failure
	}
	return s.convs, nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	entries map[string]string
	removed []string
	failure error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: map[string]string{}}
}

func (r *fakeRegistry) Get(_ context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != nil {
		return "", r.failure
	}
	return r.entries[userID], nil
}

func (r *fakeRegistry) Remove(_ context.Context, userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[userID] == connID {
		delete(r.entries, userID)
	}
	r.removed = append(r.removed, userID+"/"+connID)
	return nil
}

type sentEvent struct {
	UserID  string
	Event   string
	Payload any
}

// fakeNotifier records events only for users with a live connection, mirroring
// how the hub drops publishes to absent users.
type fakeNotifier struct {
	mu   sync.Mutex
	live map[string]string
	sent []sentEvent
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{live: map[string]string{}}
}

func (n *fakeNotifier) connect(userID, connID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.live[userID] = connID
}

func (n *fakeNotifier) SendToUser(userID, event string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.live[userID]; !ok {
		return false
	}
	n.sent = append(n.sent, sentEvent{UserID: userID, Event: event, Payload: payload})
	return true
}

func (n *fakeNotifier) IsConnected(userID, connID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.live[userID] == connID
}

func (n *fakeNotifier) eventsFor(userID, event string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []sentEvent{}
	for _, e := range n.sent {
		if e.UserID == userID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeEvents struct {
	mu        sync.Mutex
	published []any
}

func (f *fakeEvents) Publish(_ context.Context, _ string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, value)
	return nil
}
