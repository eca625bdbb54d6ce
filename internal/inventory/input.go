package inventory

import (
	"strings"

	"shopkeep/internal/apperr"
	"shopkeep/internal/model"

	"github.com/shopspring/decimal"
)

// ProductInput 新建或编辑商品的入参；nil 字段表示未提供。
// 新建时全部必填，编辑时未提供的字段保持原值。
type ProductInput struct {
	Title      *string          `json:"title"`
	Category   *string          `json:"product_category"`
	Stock      *int64           `json:"stock"`
	WholePrice *decimal.Decimal `json:"whole_price"`
	SalePrice  *decimal.Decimal `json:"sale_price"`
}

// ImageFile 上传的图片。
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (in ProductInput) validateCreate() error {
	switch {
	case in.Title == nil:
		return apperr.Validation("title is required")
	case in.Category == nil:
		return apperr.Validation("product_category is required")
	case in.Stock == nil:
		return apperr.Validation("stock is required")
	case in.WholePrice == nil:
		return apperr.Validation("whole_price is required")
	case in.SalePrice == nil:
		return apperr.Validation("sale_price is required")
	}
	return in.validatePatch()
}

func (in ProductInput) validatePatch() error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return apperr.Validation("title must not be empty")
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return apperr.Validation("product_category must not be empty")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return apperr.Validation("stock must be >= 0")
	}
	if in.WholePrice != nil && in.WholePrice.IsNegative() {
		return apperr.Validation("whole_price must be >= 0")
	}
	if in.SalePrice != nil && in.SalePrice.IsNegative() {
		return apperr.Validation("sale_price must be >= 0")
	}
	return nil
}

// columns 已提供字段对应的列，供部分更新使用。
func (in ProductInput) columns() map[string]any {
	fields := map[string]any{}
	if in.Title != nil {
		fields["title"] = *in.Title
	}
	if in.Category != nil {
		fields["product_category"] = *in.Category
	}
	if in.Stock != nil {
		fields["stock"] = *in.Stock
	}
	if in.WholePrice != nil {
		fields["whole_price"] = *in.WholePrice
	}
	if in.SalePrice != nil {
		fields["sale_price"] = *in.SalePrice
	}
	return fields
}

// apply 把已提供的字段写到 p 上。
func (in ProductInput) apply(p *model.Product) {
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.WholePrice != nil {
		p.WholePrice = *in.WholePrice
	}
	if in.SalePrice != nil {
		p.SalePrice = *in.SalePrice
	}
}
