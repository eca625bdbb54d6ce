package inventory

import (
	"io"

	"shopkeep/internal/metrics"
	"shopkeep/internal/model"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// ProductRow 列表行：商品本身加上库存价值与高亮标记。
type ProductRow struct {
	model.Product
	StockValue decimal.Decimal `json:"stock_value"`
	LowStock   bool            `json:"low_stock"`
}

func Rows(products []model.Product) []ProductRow {
	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, ProductRow{
			Product:    p,
			StockValue: metrics.StockValue(p),
			LowStock:   metrics.IsHighlighted(p.Stock),
		})
	}
	return rows
}

type csvRow struct {
	ID         uint   `csv:"id"`
	Title      string `csv:"title"`
	Category   string `csv:"product_category"`
	Stock      int64  `csv:"stock"`
	WholePrice string `csv:"whole_price"`
	SalePrice  string `csv:"sale_price"`
	Sold       int64  `csv:"sold"`
	StockValue string `csv:"stock_value"`
	ImageURL   string `csv:"image_url"`
}

// WriteCSV 导出商品列表。
func WriteCSV(w io.Writer, products []model.Product) error {
	rows := make([]*csvRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, &csvRow{
			ID:         p.ID,
			Title:      p.Title,
			Category:   p.Category,
			Stock:      p.Stock,
			WholePrice: p.WholePrice.StringFixed(2),
			SalePrice:  p.SalePrice.StringFixed(2),
			Sold:       p.Sold,
			StockValue: metrics.StockValue(p).StringFixed(2),
			ImageURL:   p.ImageURL,
		})
	}
	return gocsv.Marshal(&rows, w)
}
