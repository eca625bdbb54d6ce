package store

import (
	"context"

	"shopkeep/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AdminRepository 读写 admins 与 login_histories。
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByUsername 精确匹配用户名；不存在时返回 (nil, nil)。
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find admin")
	}
	return &admin, nil
}

func (r *AdminRepository) RecordLogin(ctx context.Context, h *model.LoginHistory) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(h).Error, "record login")
}
