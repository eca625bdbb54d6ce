package repository

import (
	"context"

	"shopkeep/internal/apperr"
	"shopkeep/internal/inventory"
	"shopkeep/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormRepository 基于 gorm 的商品仓储。
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// List 按 id 升序返回商品，无数据时返回空切片。
func (r *GormRepository) List(ctx context.Context, category string) ([]model.Product, error) {
	products := make([]model.Product, 0)
	q := r.db.WithContext(ctx).Order("id ASC")
	if category != "" {
		q = q.Where("product_category = ?", category)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// Categories 去重后的分类，按名称升序。
func (r *GormRepository) Categories(ctx context.Context) ([]string, error) {
	categories := make([]string, 0)
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Distinct("product_category").
		Order("product_category ASC").
		Pluck("product_category", &categories).Error
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

func (r *GormRepository) Get(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

func (r *GormRepository) Insert(ctx context.Context, p *model.Product) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(p).Error, "insert product")
}

func (r *GormRepository) Patch(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
	return errors.Wrapf(err, "patch product %d", id)
}

func (r *GormRepository) SetImageURL(ctx context.Context, id uint, url string) error {
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Update("image_url", url).Error
	return errors.Wrapf(err, "set image url of product %d", id)
}

func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete product %d", id)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrProductNotFound
	}
	return nil
}

// DecrementStock 关键：扣减条件 stock > 0 与更新在同一条 SQL 里由数据库原子判断，
// 并发售出不会把库存扣成负数。
func (r *GormRepository) DecrementStock(ctx context.Context, id uint) (*model.Product, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Product{}).
		Where("id = ? AND stock > 0", id).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", 1),
			"sale_stock": gorm.Expr("sale_stock + ?", 1),
		})
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "decrement stock of product %d", id)
	}
	if res.RowsAffected == 0 {
		// 区分“商品不存在”和“库存不足”
		var n int64
		if err := db.Model(&model.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return nil, errors.Wrapf(err, "count product %d", id)
		}
		if n == 0 {
			return nil, apperr.ErrProductNotFound
		}
		return nil, apperr.ErrInsufficientStock
	}
	return r.Get(ctx, id)
}

func (r *GormRepository) AppendSale(ctx context.Context, e *model.SaleEvent) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(e).Error, "append sale event")
}

// History 商品售出流水，最新在前。
func (r *GormRepository) History(ctx context.Context, productID uint) ([]model.SaleEvent, error) {
	events := make([]model.SaleEvent, 0)
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrapf(err, "history of product %d", productID)
	}
	return events, nil
}

// ImageURLs 当前被商品引用的全部图片地址，供孤儿清理使用。
func (r *GormRepository) ImageURLs(ctx context.Context) ([]string, error) {
	urls := make([]string, 0)
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Pluck("image_url", &urls).Error; err != nil {
		return nil, errors.Wrap(err, "list image urls")
	}
	return urls, nil
}

func (r *GormRepository) WithTx(ctx context.Context, fn func(tx inventory.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}
