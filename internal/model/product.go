package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 库存商品：名称、分类、库存、进货价、售价、图片与累计售出。
// 没有软删除与版本号，删除即物理删除。
type Product struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title    string `gorm:"size:255;not null" json:"title"`
	Category string `gorm:"column:product_category;size:128;not null" json:"product_category"`
	// Stock 只通过条件更新扣减，永远不会小于 0。
	Stock      int64           `gorm:"not null;default:0" json:"stock"`
	WholePrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"whole_price"` // 进货单价
	SalePrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"sale_price"`
	ImageURL   string          `gorm:"size:512" json:"image_url"`
	// Sold 沿用原表列名 sale_stock。
	Sold int64 `gorm:"column:sale_stock;not null;default:0" json:"sold"`
}

func (Product) TableName() string { return "Products" }
