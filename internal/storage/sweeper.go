package storage

import (
	"context"
	"time"

	"shopkeep/internal/pkg/clock"

	"go.uber.org/zap"
)

// ReferenceLister 返回当前仍被商品引用的图片地址。
type ReferenceLister interface {
	ImageURLs(ctx context.Context) ([]string, error)
}

// Sweeper 清理孤儿对象：超过宽限期且没有任何商品引用的图片会被删除。
// 宽限期覆盖“已上传、事务尚未提交”的窗口。
type Sweeper struct {
	bucket *Bucket
	refs   ReferenceLister
	grace  time.Duration
	clock  clock.Clock
	log    *zap.Logger
}

func NewSweeper(bucket *Bucket, refs ReferenceLister, grace time.Duration, clk clock.Clock, log *zap.Logger) *Sweeper {
	return &Sweeper{bucket: bucket, refs: refs, grace: grace, clock: clk, log: log}
}

// Sweep 执行一次清理，返回删除数量。
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	urls, err := s.refs.ImageURLs(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := s.bucket.KeyFromURL(u); ok {
			referenced[key] = struct{}{}
		}
	}

	objects, err := s.bucket.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.clock.Now().Add(-s.grace)
	removed := 0
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.bucket.Remove(ctx, obj.Key); err != nil {
			s.log.Warn("remove orphan image", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("orphan images removed", zap.Int("count", removed))
	}
	return removed, nil
}
