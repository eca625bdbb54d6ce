package inventory

import (
	"context"

	"shopkeep/internal/model"
)

// Repository 商品表存取。未找到返回 apperr.ErrProductNotFound，
// DecrementStock 在库存为 0 时返回 apperr.ErrInsufficientStock。
type Repository interface {
	// List category 为空时返回全部商品，否则按分类精确匹配。
	List(ctx context.Context, category string) ([]model.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id uint) (*model.Product, error)
	Insert(ctx context.Context, p *model.Product) error
	// Patch 只更新 fields 中的列，库存与售出数不在其中时保持数据库当前值。
	Patch(ctx context.Context, id uint, fields map[string]any) error
	SetImageURL(ctx context.Context, id uint, url string) error
	Delete(ctx context.Context, id uint) error
	// DecrementStock 单条条件更新 stock-1 / sold+1，返回更新后的商品。
	DecrementStock(ctx context.Context, id uint) (*model.Product, error)
	AppendSale(ctx context.Context, e *model.SaleEvent) error
	History(ctx context.Context, productID uint) ([]model.SaleEvent, error)
	ImageURLs(ctx context.Context) ([]string, error)
	// WithTx 在同一事务中执行 fn，fn 返回错误即回滚。
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// ImageStore 图片对象存储。
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Remove(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// EventPublisher 把已提交的售出事件投递到事件管道。
type EventPublisher interface {
	PublishSale(ctx context.Context, e model.SaleEvent) error
}

// Submitter 异步任务执行器，ants.Pool 满足该接口。
type Submitter interface {
	Submit(task func()) error
}
