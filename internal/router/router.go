package router

import (
	"context"
	"net/http"
	"time"

	"shopkeep/internal/auth"
	"shopkeep/internal/config"
	"shopkeep/internal/inventory"
	"shopkeep/internal/middleware"
	"shopkeep/internal/model"
	"shopkeep/internal/report"
	"shopkeep/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AlertLister 低库存提醒查询。
type AlertLister interface {
	List(ctx context.Context, limit int) ([]model.StockAlert, error)
}

// ObjectReader 图片对象读取。
type ObjectReader interface {
	Download(ctx context.Context, key string) ([]byte, storage.Object, error)
}

// Deps 路由依赖；Limiter 为空时登录不限流，Alerts/Images 为空时不注册对应路由。
type Deps struct {
	Auth      *auth.Service
	Inventory *inventory.Service
	Reports   *report.Service
	Alerts    AlertLister
	Images    ObjectReader
	Limiter   middleware.Limiter
	Cfg       config.AppConfig
	Log       *zap.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if len(d.Cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.Cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// 页面（JSON 视图数据），未登录 302 到 /login
	r.GET("/login", loginView(d))
	pages := r.Group("/", middleware.PageGate(d.Auth))
	pages.GET("/", dashboardView(d))
	pages.GET("/products", productsView(d))
	pages.GET("/reports", reportsView(d))
	pages.GET("/upload-items", uploadItemsView(d))

	// 公开接口
	loginChain := []gin.HandlerFunc{}
	if d.Limiter != nil {
		loginChain = append(loginChain, middleware.LoginRateLimit(d.Limiter, d.Log))
	}
	loginChain = append(loginChain, login(d))
	r.POST("/api/login", loginChain...)
	r.POST("/api/logout", logout(d))
	if d.Images != nil {
		r.GET("/storage/"+storage.ProductImages+"/*key", serveObject(d.Images))
	}

	// 需要会话的接口
	api := r.Group("/api", middleware.AuthRequired(d.Auth))
	api.GET("/session", currentSession())
	api.GET("/dashboard", dashboard(d))

	api.GET("/categories", listCategories(d))
	api.GET("/products", listProducts(d))
	api.POST("/products", createProduct(d))
	api.GET("/products/export.csv", exportProducts(d))
	api.GET("/products/:id", getProduct(d))
	api.PUT("/products/:id", updateProduct(d))
	api.DELETE("/products/:id", deleteProduct(d))
	api.POST("/products/:id/sale", recordSale(d))
	api.GET("/products/:id/history", saleHistory(d))

	api.GET("/reports", monthlyReport(d))
	api.GET("/reports/export.xlsx", exportReport(d))
	if d.Alerts != nil {
		api.GET("/alerts", listAlerts(d))
	}
}
