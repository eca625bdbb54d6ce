package queue

import (
	"fmt"

	"shopkeep/internal/model"

	"github.com/shopspring/decimal"
)

// SaleMessage 是写入 Redis Stream / Kafka 的售出事件。
type SaleMessage struct {
	EventID      string `json:"event_id"`
	ProductID    uint   `json:"product_id"`
	ProductTitle string `json:"product_title"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	StockAfter   int64  `json:"stock_after"`
	SoldAt       int64  `json:"sold_at"` // 毫秒
}

// FromSaleEvent 由已提交的流水构造消息。
func FromSaleEvent(e model.SaleEvent) SaleMessage {
	return SaleMessage{
		EventID:      e.EventID,
		ProductID:    e.ProductID,
		ProductTitle: e.ProductTitle,
		Quantity:     e.Quantity,
		UnitPrice:    e.UnitPrice.String(),
		StockAfter:   e.StockAfter,
		SoldAt:       e.CreatedAt.UnixMilli(),
	}
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m SaleMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.ProductID == 0 {
		return fmt.Errorf("product_id is required")
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0")
	}
	if m.StockAfter < 0 {
		return fmt.Errorf("stock_after must be >= 0")
	}
	if _, err := decimal.NewFromString(m.UnitPrice); err != nil {
		return fmt.Errorf("invalid unit_price %q", m.UnitPrice)
	}
	return nil
}

// streamValues 转成 XADD 的字段表。
func (m SaleMessage) streamValues() map[string]any {
	return map[string]any{
		"event_id":      m.EventID,
		"product_id":    m.ProductID,
		"product_title": m.ProductTitle,
		"quantity":      m.Quantity,
		"unit_price":    m.UnitPrice,
		"stock_after":   m.StockAfter,
		"sold_at":       m.SoldAt,
	}
}
