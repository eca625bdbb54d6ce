package router

import (
	"net/http"
	"strconv"

	"shopkeep/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

// statusOf 业务错误到 HTTP 状态码。
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrUnauthenticated),
		errors.Is(err, apperr.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail 4xx 返回具体原因；5xx 只返回错误类别，详情写日志。
func fail(c *gin.Context, log *zap.Logger, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = errors.Cause(err).Error()
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"code": status, "msg": msg})
}

func parseID(c *gin.Context) (uint, error) {
	// 32 bit 十进制
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid product id %q", c.Param("id"))
	}
	return uint(id), nil
}
