package router

import (
	"bytes"
	"fmt"
	"net/http"

	"shopkeep/internal/apperr"
	"shopkeep/internal/report"
	"shopkeep/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func monthlyReport(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := d.Reports.Monthly(c.Request.Context(), c.Query("month"))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, r)
	}
}

func exportReport(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := d.Reports.Monthly(c.Request.Context(), c.Query("month"))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, r); err != nil {
			fail(c, d.Log, errors.Wrap(apperr.ErrFetchFailed, err.Error()))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="sales-report-%s.xlsx"`, r.Month))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

// listAlerts 最近的低库存提醒，limit 默认 50，最大 500。
func listAlerts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			n, err := cast.ToIntE(v)
			if err != nil || n <= 0 {
				fail(c, d.Log, apperr.Validation("limit must be a positive integer"))
				return
			}
			limit = min(n, 500)
		}
		alerts, err := d.Alerts.List(c.Request.Context(), limit)
		if err != nil {
			fail(c, d.Log, errors.Wrap(apperr.ErrFetchFailed, err.Error()))
			return
		}
		ok(c, alerts)
	}
}

// serveObject 公开读取图片对象。
func serveObject(images ObjectReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if len(key) > 0 && key[0] == '/' {
			key = key[1:]
		}
		data, obj, err := images.Download(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "msg": "object not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": "read object failed"})
			return
		}
		contentType := obj.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, contentType, data)
	}
}
