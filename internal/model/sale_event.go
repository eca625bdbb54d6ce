package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleEvent 售出流水，只追加不修改（Relayed 标记除外）。
// 商品删除后流水保留，因此冗余了商品名称与价格快照。
type SaleEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	EventID      string          `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	ProductID    uint            `gorm:"not null;index" json:"product_id"`
	ProductTitle string          `gorm:"size:255;not null" json:"product_title"`
	Quantity     int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	WholePrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"whole_price"`
	StockAfter   int64           `gorm:"not null" json:"stock_after"`
	SoldAfter    int64           `gorm:"not null" json:"sold_after"`
	Actor        string          `gorm:"size:64" json:"actor"`
	// Relayed 表示已写入 Redis Stream outbox，补偿任务只扫描 false 的记录。
	Relayed bool `gorm:"not null;default:false;index" json:"-"`
}

func (SaleEvent) TableName() string { return "sale_events" }

// Total 本次售出金额 = 售价 × 数量。
func (e SaleEvent) Total() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// StockAlert 由 Kafka 消费者根据售出事件生成的低库存提醒。
type StockAlert struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	EventID      string    `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	ProductID    uint      `gorm:"not null;index" json:"product_id"`
	ProductTitle string    `gorm:"size:255;not null" json:"product_title"`
	StockAfter   int64     `gorm:"not null" json:"stock_after"`
}

func (StockAlert) TableName() string { return "stock_alerts" }
