package worker

import (
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// NewPool 后台任务池：登录历史、图片删除等不阻塞请求的写操作。
// 任务 panic 时只记录日志。
func NewPool(size int, log *zap.Logger) (*ants.Pool, error) {
	if size <= 0 {
		size = 16
	}
	return ants.NewPool(size,
		ants.WithNonblocking(false),
		ants.WithPanicHandler(func(p any) {
			log.Error("worker task panic", zap.Any("panic", p))
		}),
	)
}
