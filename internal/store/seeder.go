package store

import (
	"context"

	"shopkeep/internal/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedAdmin 确保 admins 表中存在配置的管理员；已存在时不改密码。
func SeedAdmin(ctx context.Context, db *gorm.DB, username, password string, log *zap.Logger) error {
	var admin model.Admin
	err := db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "lookup admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	admin = model.Admin{Username: username, PasswordHash: string(hash)}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return errors.Wrap(err, "create admin")
	}
	if log != nil {
		log.Info("admin user seeded", zap.String("username", username))
	}
	return nil
}
