// Package report 按月汇总售出流水：总收入、售出件数、按日销售额与交易明细。
package report

import (
	"context"
	"sort"
	"time"

	"shopkeep/internal/apperr"
	"shopkeep/internal/model"
	"shopkeep/internal/pkg/clock"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

// Line 交易明细一行。
type Line struct {
	ID          uint            `json:"id"`
	SaleDate    time.Time       `json:"sale_date"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// DailySales 图表数据点。
type DailySales struct {
	Date  string          `json:"date"`
	Sales decimal.Decimal `json:"sales"`
}

// Monthly 月报。
type Monthly struct {
	Month          string          `json:"month"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalItemsSold int             `json:"total_items_sold"`
	Daily          []DailySales    `json:"daily"`
	Transactions   []Line          `json:"transactions"`
}

// ParseMonth 解析 YYYY-MM，空串取 now 所在月份；返回该月第一天 00:00 UTC。
func ParseMonth(s string, now time.Time) (time.Time, error) {
	if s == "" {
		now = now.UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("month must be YYYY-MM, got %q", s)
	}
	return t, nil
}

// Build 汇总 month 当月的流水；不属于该月的流水被忽略。
func Build(month time.Time, events []model.SaleEvent) Monthly {
	from := month
	to := month.AddDate(0, 1, 0)

	r := Monthly{
		Month:        month.Format(monthLayout),
		TotalRevenue: decimal.Zero,
		Daily:        make([]DailySales, 0),
		Transactions: make([]Line, 0, len(events)),
	}
	byDay := map[string]decimal.Decimal{}
	for _, e := range events {
		at := e.CreatedAt.UTC()
		if at.Before(from) || !at.Before(to) {
			continue
		}
		total := e.Total()
		r.TotalRevenue = r.TotalRevenue.Add(total)
		r.TotalItemsSold += e.Quantity

		day := at.Format("2006-01-02")
		byDay[day] = byDay[day].Add(total)

		r.Transactions = append(r.Transactions, Line{
			ID:          e.ID,
			SaleDate:    at,
			ProductName: e.ProductTitle,
			Quantity:    e.Quantity,
			TotalPrice:  total,
		})
	}

	for day, sales := range byDay {
		r.Daily = append(r.Daily, DailySales{Date: day, Sales: sales})
	}
	sort.Slice(r.Daily, func(i, j int) bool { return r.Daily[i].Date < r.Daily[j].Date })
	sort.SliceStable(r.Transactions, func(i, j int) bool {
		if r.Transactions[i].SaleDate.Equal(r.Transactions[j].SaleDate) {
			return r.Transactions[i].ID > r.Transactions[j].ID
		}
		return r.Transactions[i].SaleDate.After(r.Transactions[j].SaleDate)
	})
	return r
}

// SaleLister 按时间区间查询流水。
type SaleLister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]model.SaleEvent, error)
}

type Service struct {
	sales SaleLister
	clock clock.Clock
}

func NewService(sales SaleLister, clk clock.Clock) *Service {
	return &Service{sales: sales, clock: clk}
}

// Monthly 生成月报，month 为空时取当前月份。
func (s *Service) Monthly(ctx context.Context, month string) (Monthly, error) {
	start, err := ParseMonth(month, s.clock.Now())
	if err != nil {
		return Monthly{}, err
	}
	events, err := s.sales.ListBetween(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return Monthly{}, errors.Wrap(apperr.ErrFetchFailed, err.Error())
	}
	return Build(start, events), nil
}
