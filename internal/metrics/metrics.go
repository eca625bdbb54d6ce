// Package metrics 计算仪表盘汇总指标，全部是对商品列表的纯函数。
package metrics

import (
	"shopkeep/internal/model"

	"github.com/shopspring/decimal"
)

const (
	// DashboardLowStockThreshold 仪表盘“低库存”卡片：stock <= 1。
	DashboardLowStockThreshold int64 = 1
	// ListHighlightThreshold 商品列表行高亮：stock <= 10。
	// 与仪表盘阈值是两条独立规则，不要合并。
	ListHighlightThreshold int64 = 10
	// MonthlySalesPlaceholder 本月销售额暂未实现，固定展示占位文案。
	MonthlySalesPlaceholder = "Coming Soon"
)

// Dashboard 仪表盘卡片数据。
type Dashboard struct {
	TotalProducts     int             `json:"total_products"`
	TotalStockValue   decimal.Decimal `json:"total_stock_value"`
	LowStockCount     int             `json:"low_stock_count"`
	LowStockThreshold int64           `json:"low_stock_threshold"`
	MonthlySales      string          `json:"monthly_sales"`
}

// Compute 每次全量扫描，不做缓存与增量维护。
func Compute(products []model.Product) Dashboard {
	d := Dashboard{
		TotalProducts:     len(products),
		TotalStockValue:   decimal.Zero,
		LowStockThreshold: DashboardLowStockThreshold,
		MonthlySales:      MonthlySalesPlaceholder,
	}
	for _, p := range products {
		d.TotalStockValue = d.TotalStockValue.Add(StockValue(p))
		if IsLowStock(p.Stock) {
			d.LowStockCount++
		}
	}
	return d
}

// StockValue 单个商品库存价值 = 进货价 × 库存。
func StockValue(p model.Product) decimal.Decimal {
	return p.WholePrice.Mul(decimal.NewFromInt(p.Stock))
}

// IsLowStock 仪表盘低库存判断。
func IsLowStock(stock int64) bool {
	return stock <= DashboardLowStockThreshold
}

// IsHighlighted 列表行是否标红。
func IsHighlighted(stock int64) bool {
	return stock <= ListHighlightThreshold
}
