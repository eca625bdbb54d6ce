package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// SessionState 对应 Redis 内的会话 hash。
type SessionState struct {
	TokenID   string
	Username  string
	LoginAt   time.Time
	ExpiresAt time.Time
}

// luaDeleteSessionIfOwner 仅当会话属于该用户时才删除，避免用别人的 jti 注销。
const luaDeleteSessionIfOwner = `
local key = KEYS[1]
local username = ARGV[1]
if redis.call('HGET', key, 'username') == username then
  return redis.call('DEL', key)
end
return 0
`

// PutSession 写入会话并设置 TTL，TTL 到期即失效，不续期。
func PutSession(ctx context.Context, rdb rd.Cmdable, s SessionState, ttl time.Duration) error {
	key := SessionKey(s.TokenID)
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"username", s.Username,
		"login_at", s.LoginAt.UnixMilli(),
		"expires_at", s.ExpiresAt.UnixMilli(),
	)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// GetSession 查询会话。found=false 表示 key 不存在（已注销或过期）。
func GetSession(ctx context.Context, rdb rd.Cmdable, tokenID string) (SessionState, bool, error) {
	m, err := rdb.HGetAll(ctx, SessionKey(tokenID)).Result()
	if err != nil {
		return SessionState{}, false, err
	}
	if len(m) == 0 {
		return SessionState{}, false, nil
	}
	out := SessionState{TokenID: tokenID, Username: m["username"]}
	if ms, err := strconv.ParseInt(m["login_at"], 10, 64); err == nil {
		out.LoginAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(m["expires_at"], 10, 64); err == nil {
		out.ExpiresAt = time.UnixMilli(ms)
	}
	return out, true, nil
}

// DeleteSessionIfOwner 安全删除会话，返回是否真的删除了。
func DeleteSessionIfOwner(ctx context.Context, rdb rd.Scripter, tokenID, username string) (bool, error) {
	n, err := rdb.Eval(ctx, luaDeleteSessionIfOwner, []string{SessionKey(tokenID)}, username).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
