package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	rediskey "shopkeep/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳(ms)，ARGV[2]=窗口开始时间戳(ms)，ARGV[3]=窗口秒数
// ARGV[4]=本次请求 member，ARGV[5]=窗口内上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的旧记录
redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// Limiter 判断 key 在当前窗口内是否还能放行。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisWindowLimiter 基于 ZSET 的滑动窗口，多实例共享计数。
type RedisWindowLimiter struct {
	rdb    rd.Scripter
	limit  int
	window time.Duration
}

func NewRedisWindowLimiter(rdb rd.Scripter, limit int, window time.Duration) *RedisWindowLimiter {
	return &RedisWindowLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowSec := int64(l.window.Seconds())
	if windowSec < 1 {
		windowSec = 1
	}
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()
	member := fmt.Sprintf("%d-%d", nowMs, now.UnixNano())

	res, err := l.rdb.Eval(ctx, luaRateLimit, []string{key},
		nowMs, windowStart, windowSec, member, l.limit).Int()
	if err != nil {
		return false, err
	}
	return res >= 0, nil
}

// LoginRateLimit 登录限流：按“用户名 + 来源 IP”计数，解析不到用户名时只按 IP。
// 其他来源的失败尝试不会把管理员锁在门外。Redis 出错时放行。
func LoginRateLimit(limiter Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if username := extractUsername(c); username != "" {
			subject = "user:" + username + ":" + subject
		}

		ok, err := limiter.Allow(c.Request.Context(), rediskey.LoginRateLimitKey(subject))
		if err != nil {
			log.Warn("login rate limit unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "too many login attempts, try again later",
			})
			return
		}
		c.Next()
	}
}

// extractUsername 从 JSON 或表单 body 中取 username（不消耗 body，可重复读）
func extractUsername(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(bodyBytes))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(form.Get("username"))
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Username)
}
