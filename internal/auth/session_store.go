package auth

import (
	"context"
	"time"

	rediskey "shopkeep/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// SessionStore 服务端会话记录。
type SessionStore interface {
	Save(ctx context.Context, s rediskey.SessionState, ttl time.Duration) error
	Get(ctx context.Context, tokenID string) (rediskey.SessionState, bool, error)
	Delete(ctx context.Context, tokenID, username string) error
}

// RedisSessionStore 会话保存在 Redis hash 中，TTL 与新鲜度窗口一致。
type RedisSessionStore struct {
	rdb *rd.Client
}

func NewRedisSessionStore(rdb *rd.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Save(ctx context.Context, st rediskey.SessionState, ttl time.Duration) error {
	return rediskey.PutSession(ctx, s.rdb, st, ttl)
}

func (s *RedisSessionStore) Get(ctx context.Context, tokenID string) (rediskey.SessionState, bool, error) {
	return rediskey.GetSession(ctx, s.rdb, tokenID)
}

func (s *RedisSessionStore) Delete(ctx context.Context, tokenID, username string) error {
	_, err := rediskey.DeleteSessionIfOwner(ctx, s.rdb, tokenID, username)
	return err
}
