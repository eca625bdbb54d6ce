package router

import (
	"net/http"

	"shopkeep/internal/inventory"
	"shopkeep/internal/metrics"
	"shopkeep/internal/middleware"

	"github.com/gin-gonic/gin"
)

// 页面路由返回视图所需的数据，由前端渲染。

func loginView(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"view":   "login",
			"action": "/api/login",
		}})
	}
}

// dashboardView 指标按全部商品计算；分类标签下的商品列表按 ?category= 筛选。
func dashboardView(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		products, err := d.Inventory.List(ctx)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		categories, err := d.Inventory.Categories(ctx)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		category := c.Query("category")
		shown := products
		if category != "" {
			if shown, err = d.Inventory.ListByCategory(ctx, category); err != nil {
				fail(c, d.Log, err)
				return
			}
		}
		sess, _ := middleware.CurrentSession(c)
		ok(c, gin.H{
			"view":       "dashboard",
			"session":    sess,
			"dashboard":  metrics.Compute(products),
			"categories": categories,
			"category":   category,
			"products":   inventory.Rows(shown),
		})
	}
}

func productsView(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := d.Inventory.List(c.Request.Context())
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, gin.H{
			"view":                "products",
			"highlight_threshold": metrics.ListHighlightThreshold,
			"products":            inventory.Rows(products),
		})
	}
}

func reportsView(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := d.Reports.Monthly(c.Request.Context(), c.Query("month"))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, gin.H{"view": "reports", "report": r})
	}
}

func uploadItemsView(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, gin.H{
			"view":                  "upload-items",
			"action":                "/api/products",
			"fields":                []string{"title", "product_category", "stock", "whole_price", "sale_price", "image"},
			"placeholder_image_url": d.Cfg.PlaceholderImageURL,
		})
	}
}
