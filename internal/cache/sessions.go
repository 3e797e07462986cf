package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore tracks which issued session ids are still live, so a
// logout can revoke a token before it expires.
type SessionStore interface {
	Save(ctx context.Context, id string, userID int64, ttl time.Duration) error
	Exists(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) error
}

func sessionKey(id string) string {
	return "session:" + id
}

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, id string, userID int64, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(id), userID, ttl).Err()
}

func (s *RedisSessionStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}

// NopSessionStore accepts every token; sessions then live until the JWT
// expires.
type NopSessionStore struct{}

func (NopSessionStore) Save(context.Context, string, int64, time.Duration) error { return nil }
func (NopSessionStore) Exists(context.Context, string) (bool, error)             { return true, nil }
func (NopSessionStore) Revoke(context.Context, string) error                     { return nil }
