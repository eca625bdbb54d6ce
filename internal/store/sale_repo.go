package store

import (
	"context"
	"strings"
	"time"

	"shopkeep/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SaleRepository 查询售出流水，供报表、outbox 补偿与低库存提醒使用。
// 流水本身在商品扣减的同一事务里写入，见 inventory/repository。
type SaleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// ListBetween 返回 [from, to) 区间内的流水，按时间倒序。
func (r *SaleRepository) ListBetween(ctx context.Context, from, to time.Time) ([]model.SaleEvent, error) {
	events := make([]model.SaleEvent, 0)
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at DESC, id DESC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "list sale events")
	}
	return events, nil
}

// ListUnrelayed 返回早于 before 且尚未写入 outbox 的流水。
func (r *SaleRepository) ListUnrelayed(ctx context.Context, before time.Time, limit int) ([]model.SaleEvent, error) {
	events := make([]model.SaleEvent, 0)
	err := r.db.WithContext(ctx).
		Where("relayed = ? AND created_at < ?", false, before).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "list unrelayed sale events")
	}
	return events, nil
}

func (r *SaleRepository) MarkRelayed(ctx context.Context, eventID string) error {
	err := r.db.WithContext(ctx).Model(&model.SaleEvent{}).
		Where("event_id = ?", eventID).
		Update("relayed", true).Error
	return errors.Wrap(err, "mark sale event relayed")
}

// AlertRepository 读写低库存提醒。
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create 幂等写入：重复 event_id 触发唯一约束时视为成功。
func (r *AlertRepository) Create(ctx context.Context, a *model.StockAlert) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil && !IsUniqueViolation(err) {
		return errors.Wrap(err, "create stock alert")
	}
	return nil
}

func (r *AlertRepository) List(ctx context.Context, limit int) ([]model.StockAlert, error) {
	alerts := make([]model.StockAlert, 0)
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list stock alerts")
	}
	return alerts, nil
}

// IsUniqueViolation 粗略识别各驱动的唯一约束冲突。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "duplicate")
}
