package report

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"
)

const sheet = "Sheet1"

// WriteXLSX 导出月报：汇总、按日销售额、交易明细依次排列在同一工作表。
func WriteXLSX(w io.Writer, r Monthly) error {
	f := excelize.NewFile()

	f.SetCellValue(sheet, "A1", "Month")
	f.SetCellValue(sheet, "B1", r.Month)
	f.SetCellValue(sheet, "A2", "Total Revenue")
	f.SetCellValue(sheet, "B2", r.TotalRevenue.StringFixed(2))
	f.SetCellValue(sheet, "A3", "Items Sold")
	f.SetCellValue(sheet, "B3", r.TotalItemsSold)

	row := 5
	f.SetCellValue(sheet, cell("A", row), "Date")
	f.SetCellValue(sheet, cell("B", row), "Sales")
	for _, d := range r.Daily {
		row++
		f.SetCellValue(sheet, cell("A", row), d.Date)
		f.SetCellValue(sheet, cell("B", row), d.Sales.StringFixed(2))
	}

	row += 2
	for i, h := range []string{"ID", "Sale Date", "Product", "Quantity", "Total Price"} {
		f.SetCellValue(sheet, cell(string(rune('A'+i)), row), h)
	}
	for _, l := range r.Transactions {
		row++
		f.SetCellValue(sheet, cell("A", row), l.ID)
		f.SetCellValue(sheet, cell("B", row), l.SaleDate.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, cell("C", row), l.ProductName)
		f.SetCellValue(sheet, cell("D", row), l.Quantity)
		f.SetCellValue(sheet, cell("E", row), l.TotalPrice.StringFixed(2))
	}

	return f.Write(w)
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
