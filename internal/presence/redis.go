package presence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ws:session:"

// Compare-and-delete / compare-and-expire run server-side so a late
// disconnect can never erase a fresher session's entry.
var (
	removeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	touchScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Store maps a user id to the id of their currently active connection. One
// entry per user; a newer connection for the same user overwrites the old one.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(userID string) string { return keyPrefix + userID }

// Set registers connID as the user's active connection, last-connected-wins.
func (s *Store) Set(ctx context.Context, userID, connID string) error {
	return s.rdb.Set(ctx, key(userID), connID, s.ttl).Err()
}

// Get returns the active connection id for the user, or "" when the user has
// no presence entry.
func (s *Store) Get(ctx context.Context, userID string) (string, error) {
	v, err := s.rdb.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Remove deletes the user's entry only if it still points at connID. A
// no-op when a newer connection already overwrote the entry.
func (s *Store) Remove(ctx context.Context, userID, connID string) error {
	return removeScript.Run(ctx, s.rdb, []string{key(userID)}, connID).Err()
}

// Touch renews the entry's TTL if it still belongs to connID. Called from the
// connection's liveness cycle so an entry never outlives its connection by
// more than the TTL.
func (s *Store) Touch(ctx context.Context, userID, connID string) error {
	return touchScript.Run(ctx, s.rdb, []string{key(userID)}, connID, s.ttl.Milliseconds()).Err()
}

// Ping reports registry reachability for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
