package router

import (
	"net/http"

	"shopkeep/internal/apperr"
	"shopkeep/internal/auth"
	"shopkeep/internal/middleware"

	"github.com/gin-gonic/gin"
)

// login 校验用户名密码，返回令牌并写入会话 cookie。
func login(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" form:"username"`
			Password string `json:"password" form:"password"`
		}
		if err := c.ShouldBind(&req); err != nil {
			fail(c, d.Log, apperr.Validation("invalid login payload"))
			return
		}
		sess, err := d.Auth.Login(c.Request.Context(), req.Username, req.Password, auth.LoginMeta{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		middleware.SetSessionCookie(c, sess.Token, d.Auth.TTL())
		ok(c, sess)
	}
}

// logout 无条件成功。
func logout(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.Auth.Logout(c.Request.Context(), middleware.TokenFromRequest(c))
		middleware.ClearSessionCookie(c)
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "logged out"})
	}
}

func currentSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, _ := middleware.CurrentSession(c)
		ok(c, sess)
	}
}
