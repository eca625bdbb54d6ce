package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"shopkeep/internal/auth"
	"shopkeep/internal/config"
	"shopkeep/internal/inventory"
	"shopkeep/internal/inventory/repository"
	"shopkeep/internal/middleware"
	"shopkeep/internal/pkg/clock"
	"shopkeep/internal/report"
	"shopkeep/internal/storage"
	"shopkeep/internal/store"
	rediskey "shopkeep/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const placeholder = "https://picsum.photos/seed/placeholder/400/300"

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]rediskey.SessionState
}

func (m *memorySessions) Save(_ context.Context, s rediskey.SessionState, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.TokenID] = s
	return nil
}

func (m *memorySessions) Get(_ context.Context, id string) (rediskey.SessionState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, found := m.sessions[id]
	return s, found, nil
}

func (m *memorySessions) Delete(_ context.Context, id, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, found := m.sessions[id]; found && s.Username == username {
		delete(m.sessions, id)
	}
	return nil
}

type testApp struct {
	engine *gin.Engine
	clock  *clock.MockClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := zap.NewNop()

	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "shopkeep.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, store.SeedAdmin(ctx, db, "admin", "secret", log))

	bucket, err := storage.OpenBucket(filepath.Join(t.TempDir(), "images.db"), storage.ProductImages, "http://localhost:8080")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })

	clk := clock.NewMockClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.AppConfig{PlaceholderImageURL: placeholder}

	authSvc := auth.NewService(store.NewAdminRepository(db),
		&memorySessions{sessions: map[string]rediskey.SessionState{}},
		auth.NewTokenIssuer("test-secret"), clk, 24*time.Hour, nil, log)
	inv := inventory.NewService(inventory.Options{
		Repo:           repository.NewGormRepository(db),
		Images:         bucket,
		Clock:          clk,
		PlaceholderURL: placeholder,
		Logger:         log,
	})

	r := gin.New()
	Setup(r, Deps{
		Auth:      authSvc,
		Inventory: inv,
		Reports:   report.NewService(store.NewSaleRepository(db), clk),
		Alerts:    store.NewAlertRepository(db),
		Images:    bucket,
		Cfg:       cfg,
		Log:       log,
	})
	return &testApp{engine: r, clock: clk}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = b
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *testApp) login(t *testing.T) string {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sess struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(t, sess.Token)
	assert.Equal(t, "admin", sess.Username)
	assert.Contains(t, w.Header().Get("Set-Cookie"), middleware.SessionCookie+"=")
	return sess.Token
}

func TestScenario_LoginCreateListSell(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w, env := app.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		TotalProducts int    `json:"total_products"`
		MonthlySales  string `json:"monthly_sales"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, 0, dash.TotalProducts)
	assert.Equal(t, "Coming Soon", dash.MonthlySales)

	w, env = app.do(t, http.MethodPost, "/api/products", token, gin.H{
		"title":            "Car Toy",
		"product_category": "Toys",
		"stock":            5,
		"whole_price":      100,
		"sale_price":       150,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID       uint   `json:"id"`
		ImageURL string `json:"image_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, placeholder, created.ImageURL)

	w, env = app.do(t, http.MethodGet, "/api/products", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []struct {
		Title      string          `json:"title"`
		StockValue decimal.Decimal `json:"stock_value"`
		LowStock   bool            `json:"low_stock"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Car Toy", rows[0].Title)
	assert.True(t, decimal.NewFromInt(500).Equal(rows[0].StockValue))
	assert.True(t, rows[0].LowStock)

	salePath := "/api/products/" + itoa(created.ID) + "/sale"
	for i := 0; i < 5; i++ {
		w, _ = app.do(t, http.MethodPost, salePath, token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w, _ = app.do(t, http.MethodPost, salePath, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = app.do(t, http.MethodGet, "/api/reports?month=2025-02", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rep struct {
		TotalItemsSold int             `json:"total_items_sold"`
		TotalRevenue   decimal.Decimal `json:"total_revenue"`
		Transactions   []struct {
			ProductName string `json:"product_name"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, 5, rep.TotalItemsSold)
	assert.True(t, decimal.NewFromInt(750).Equal(rep.TotalRevenue))
	require.Len(t, rep.Transactions, 5)
	assert.Equal(t, "Car Toy", rep.Transactions[0].ProductName)

	w, _ = app.do(t, http.MethodGet, "/api/reports?month=Feb", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodDelete, "/api/products/"+itoa(created.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(t, http.MethodDelete, "/api/products/"+itoa(created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 商品删除后流水仍可查
	w, env = app.do(t, http.MethodGet, "/api/products/"+itoa(created.ID)+"/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 5)
}

func TestCreateProduct_Validation(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w, _ := app.do(t, http.MethodPost, "/api/products", token, gin.H{
		"product_category": "Toys", "stock": 1, "whole_price": 1, "sale_price": 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodPost, "/api/products", token, gin.H{
		"title": "Car Toy", "product_category": "Toys", "stock": -1, "whole_price": 1, "sale_price": 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, http.MethodGet, "/api/products/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProduct_MultipartWithImage(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"title": "Bike Toy", "product_category": "Toys", "stock": "3", "whole_price": "10.50", "sale_price": "15",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("image", "bike.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var p struct {
		ImageURL   string          `json:"image_url"`
		WholePrice decimal.Decimal `json:"whole_price"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.True(t, decimal.RequireFromString("10.5").Equal(p.WholePrice))
	require.True(t, strings.HasPrefix(p.ImageURL, "http://localhost:8080/storage/product-images/public/"))
	assert.True(t, strings.HasSuffix(p.ImageURL, ".png"))

	// 图片公开可读，无需会话
	w = httptest.NewRecorder()
	app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(p.ImageURL, "http://localhost:8080"), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = httptest.NewRecorder()
	app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/storage/product-images/public/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPages_RedirectWithoutSession(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/", "/products", "/reports", "/upload-items"} {
		w := httptest.NewRecorder()
		app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}

	token := app.login(t)
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"view":"products"`)

	w = httptest.NewRecorder()
	app.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSession_ExpiresAfterWindow(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	app.clock.Advance(24*time.Hour + time.Millisecond)

	w, _ := app.do(t, http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dashboard")
}

func TestLoginLogout(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(t, http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := app.login(t)
	w, env := app.do(t, http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"username":"admin"`)

	w, _ = app.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 重复注销依然成功
	w, _ = app.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExports(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	w, _ := app.do(t, http.MethodPost, "/api/products", token, gin.H{
		"title": "Car Toy", "product_category": "Toys", "stock": 5, "whole_price": 100, "sale_price": 150,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = app.do(t, http.MethodGet, "/api/products/export.csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Car Toy")

	w, _ = app.do(t, http.MethodGet, "/api/reports/export.xlsx?month=2025-02", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w, env := app.do(t, http.MethodGet, "/api/alerts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(env.Data))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestCategories_TabsAndFilter(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t)

	for _, p := range []gin.H{
		{"title": "Car Toy", "product_category": "Toys", "stock": 5, "whole_price": 100, "sale_price": 150},
		{"title": "Lamp", "product_category": "Home", "stock": 2, "whole_price": 20, "sale_price": 30},
	} {
		w, _ := app.do(t, http.MethodPost, "/api/products", token, p)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w, env := app.do(t, http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cats []string
	require.NoError(t, json.Unmarshal(env.Data, &cats))
	assert.Equal(t, []string{"Home", "Toys"}, cats)

	w, env = app.do(t, http.MethodGet, "/api/products?category=Home", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Lamp", rows[0].Title)

	req := httptest.NewRequest(http.MethodGet, "/?category=Toys", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var page envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	var view struct {
		Categories []string `json:"categories"`
		Products   []struct {
			Title string `json:"title"`
		} `json:"products"`
		Dashboard struct {
			TotalProducts int `json:"total_products"`
		} `json:"dashboard"`
	}
	require.NoError(t, json.Unmarshal(page.Data, &view))
	assert.Equal(t, []string{"Home", "Toys"}, view.Categories)
	require.Len(t, view.Products, 1)
	assert.Equal(t, "Car Toy", view.Products[0].Title)
	// 仪表盘指标始终覆盖全部商品
	assert.Equal(t, 2, view.Dashboard.TotalProducts)
}
