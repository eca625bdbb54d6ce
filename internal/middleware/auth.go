package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"shopkeep/internal/apperr"
	"shopkeep/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// SessionCookie 页面路由使用的会话 cookie。
const SessionCookie = "shopkeep_session"

const sessionCtxKey = "shopkeep.session"

// SessionValidator 校验令牌，auth.Service 满足该接口。
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Session, error)
}

// TokenFromRequest 优先取 Authorization: Bearer，其次取 cookie。
func TokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token, err := c.Cookie(SessionCookie); err == nil {
		return token
	}
	return ""
}

func SetSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(ttl.Seconds()), "/", "", false, true)
}

func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
}

// CurrentSession 取门禁写入上下文的会话。
func CurrentSession(c *gin.Context) (*auth.Session, bool) {
	v, ok := c.Get(sessionCtxKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*auth.Session)
	return sess, ok
}

// AuthRequired API 门禁：未登录或过期返回 401 JSON。
func AuthRequired(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := v.Validate(c.Request.Context(), TokenFromRequest(c))
		if err != nil {
			if errors.Is(err, apperr.ErrSessionExpired) {
				ClearSessionCookie(c)
			}
			if isAuthError(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": errors.Cause(err).Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": "session check failed"})
			return
		}
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

// PageGate 页面门禁：会话缺失、无效或过期时 302 到 /login，不输出页面数据。
func PageGate(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := v.Validate(c.Request.Context(), TokenFromRequest(c))
		if err != nil {
			if !isAuthError(err) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": "session check failed"})
				return
			}
			ClearSessionCookie(c)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, apperr.ErrUnauthenticated) || errors.Is(err, apperr.ErrSessionExpired)
}
