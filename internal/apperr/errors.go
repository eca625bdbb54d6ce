// Package apperr 定义跨层共享的业务错误。
// 存储层与服务层用 pkg/errors 包装附加上下文，调用方通过 errors.Is 判断类别。
package apperr

import "github.com/pkg/errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSessionExpired     = errors.New("session expired")

	ErrValidationFailed  = errors.New("validation failed")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrFetchFailed       = errors.New("fetch failed")
	ErrStoreWriteFailed  = errors.New("store write failed")
	ErrImageUploadFailed = errors.New("image upload failed")
)

// Validation 构造带字段说明的 ErrValidationFailed。
func Validation(format string, args ...any) error {
	return errors.Wrapf(ErrValidationFailed, format, args...)
}
