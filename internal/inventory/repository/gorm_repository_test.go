package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"shopkeep/internal/apperr"
	"shopkeep/internal/model"
	"shopkeep/internal/store"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openDB 打开允许多连接的 sqlite（WAL + busy_timeout），让并发扣减真正落在不同连接上。
func openDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "repo.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := store.Open("sqlite", dsn, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func insertProduct(t *testing.T, r *GormRepository, stock int64) *model.Product {
	t.Helper()
	p := &model.Product{
		Title:      "Car Toy",
		Category:   "Toys",
		Stock:      stock,
		WholePrice: decimal.NewFromInt(100),
		SalePrice:  decimal.NewFromInt(150),
	}
	require.NoError(t, r.Insert(context.Background(), p))
	return p
}

func TestDecrementStock_ZeroStockLeavesRowUntouched(t *testing.T) {
	ctx := context.Background()
	r := NewGormRepository(openDB(t, 1))
	p := insertProduct(t, r, 0)

	_, err := r.DecrementStock(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	cur, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur.Stock)
	assert.Equal(t, int64(0), cur.Sold)

	_, err = r.DecrementStock(ctx, p.ID+100)
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestDecrementStock_StaleReadCannotGoNegative(t *testing.T) {
	ctx := context.Background()
	r := NewGormRepository(openDB(t, 2))
	p := insertProduct(t, r, 1)

	// 调用方读到 stock=1，随后另一笔售出先提交
	stale, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stale.Stock)

	after, err := r.DecrementStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Stock)

	// 依据旧读数再扣一次，条件在 SQL 中判断，直接拒绝
	_, err = r.DecrementStock(ctx, stale.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	cur, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur.Stock)
	assert.Equal(t, int64(1), cur.Sold)
}

func TestDecrementStock_ConcurrentConnections(t *testing.T) {
	ctx := context.Background()
	r := NewGormRepository(openDB(t, 8))
	p := insertProduct(t, r, 5)

	const buyers = 24
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.DecrementStock(ctx, p.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, buyers-5, rejected)

	cur, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur.Stock)
	assert.Equal(t, int64(5), cur.Sold)
}

func TestPatch_OnlyWritesGivenColumns(t *testing.T) {
	ctx := context.Background()
	r := NewGormRepository(openDB(t, 1))
	p := insertProduct(t, r, 5)

	_, err := r.DecrementStock(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, r.Patch(ctx, p.ID, map[string]any{"title": "Racing Car"}))
	require.NoError(t, r.Patch(ctx, p.ID, nil))

	cur, err := r.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Racing Car", cur.Title)
	assert.Equal(t, int64(4), cur.Stock)
	assert.Equal(t, int64(1), cur.Sold)
}

func TestListAndCategories(t *testing.T) {
	ctx := context.Background()
	r := NewGormRepository(openDB(t, 1))
	insertProduct(t, r, 1)
	lamp := &model.Product{Title: "Lamp", Category: "Home", Stock: 2}
	require.NoError(t, r.Insert(ctx, lamp))

	cats, err := r.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Home", "Toys"}, cats)

	home, err := r.List(ctx, "Home")
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "Lamp", home[0].Title)

	all, err := r.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
