package queue

import (
	"context"
	"time"

	"shopkeep/internal/model"

	"github.com/pkg/errors"
	rd "github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// RelayMarker 标记流水已进入 outbox。
type RelayMarker interface {
	MarkRelayed(ctx context.Context, eventID string) error
}

// UnrelayedLister 列出尚未进入 outbox 的流水。
type UnrelayedLister interface {
	ListUnrelayed(ctx context.Context, before time.Time, limit int) ([]model.SaleEvent, error)
}

// Outbox 售出事件先 XADD 到 Redis Stream，由 Relay 异步转发 Kafka。
// XADD 成功后把流水标记为 relayed；失败的由 Redeliver 定时重投。
type Outbox struct {
	rdb    rd.Cmdable
	stream string
	marker RelayMarker
	log    *zap.Logger
}

func NewOutbox(rdb rd.Cmdable, stream string, marker RelayMarker, log *zap.Logger) *Outbox {
	return &Outbox{rdb: rdb, stream: stream, marker: marker, log: log}
}

// PublishSale 实现 inventory.EventPublisher。
func (o *Outbox) PublishSale(ctx context.Context, e model.SaleEvent) error {
	msg := FromSaleEvent(e)
	if err := msg.Validate(); err != nil {
		return errors.Wrap(err, "invalid sale event")
	}
	err := o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		MaxLen: 100000,
		Approx: true,
		Values: msg.streamValues(),
	}).Err()
	if err != nil {
		return errors.Wrap(err, "xadd sale event")
	}
	return o.marker.MarkRelayed(ctx, e.EventID)
}

// Redeliver 重投 before 之前仍未进入 outbox 的流水，返回成功数量。
// 重复投递由消费者按 event_id 去重。
func (o *Outbox) Redeliver(ctx context.Context, lister UnrelayedLister, before time.Time) (int, error) {
	events, err := lister.ListUnrelayed(ctx, before, 200)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range events {
		if err := o.PublishSale(ctx, e); err != nil {
			o.log.Warn("redeliver sale event", zap.String("event_id", e.EventID), zap.Error(err))
			continue
		}
		n++
	}
	if n > 0 {
		o.log.Info("sale events redelivered", zap.Int("count", n))
	}
	return n, nil
}

func partitionKey(productID uint) string {
	return cast.ToString(productID)
}
