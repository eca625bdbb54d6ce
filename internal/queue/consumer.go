package queue

import (
	"context"
	"encoding/json"
	"time"

	"shopkeep/internal/metrics"
	"shopkeep/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AlertWriter 写入低库存提醒，重复 event_id 需幂等。
type AlertWriter interface {
	Create(ctx context.Context, a *model.StockAlert) error
}

// Consumer 消费售出事件，库存降到仪表盘低库存阈值时生成提醒。
type Consumer struct {
	r      *kafka.Reader
	alerts AlertWriter
	log    *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, alerts AlertWriter, log *zap.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
			MaxWait:  time.Second,
		}),
		alerts: alerts,
		log:    log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 自动提交 offset；处理失败只记日志，提醒可以从流水重建。
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg SaleMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.log.Warn("consumer unmarshal", zap.Error(err))
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			c.log.Warn("consumer handle", zap.String("event_id", msg.EventID), zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg SaleMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if !metrics.IsLowStock(msg.StockAfter) {
		return nil
	}
	err := c.alerts.Create(ctx, &model.StockAlert{
		CreatedAt:    time.UnixMilli(msg.SoldAt).UTC(),
		EventID:      msg.EventID,
		ProductID:    msg.ProductID,
		ProductTitle: msg.ProductTitle,
		StockAfter:   msg.StockAfter,
	})
	if err != nil {
		return err
	}
	c.log.Info("low stock alert", zap.Uint("product_id", msg.ProductID), zap.Int64("stock_after", msg.StockAfter))
	return nil
}
