package router

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"shopkeep/internal/apperr"
	"shopkeep/internal/inventory"
	"shopkeep/internal/metrics"
	"shopkeep/internal/middleware"
	"shopkeep/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// maxImageSize 单张图片上限。
const maxImageSize = 8 << 20

func dashboard(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := d.Inventory.List(c.Request.Context())
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, metrics.Compute(products))
	}
}

// listProducts ?category= 按分类精确筛选。
func listProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := d.Inventory.ListByCategory(c.Request.Context(), c.Query("category"))
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, inventory.Rows(products))
	}
}

func listCategories(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := d.Inventory.Categories(c.Request.Context())
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, categories)
	}
}

func getProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		p, err := d.Inventory.Get(c.Request.Context(), id)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, p)
	}
}

func createProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, img, err := bindProductInput(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		p, err := d.Inventory.Create(c.Request.Context(), in, img)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": 0, "data": p})
	}
}

func updateProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		in, img, err := bindProductInput(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		p, err := d.Inventory.Update(c.Request.Context(), id, in, img)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, p)
	}
}

func deleteProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		if err := d.Inventory.Delete(c.Request.Context(), id); err != nil {
			fail(c, d.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "deleted"})
	}
}

// recordSale 售出一件，库存为 0 返回 409。
func recordSale(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		actor := ""
		if sess, found := middleware.CurrentSession(c); found {
			actor = sess.Username
		}
		p, event, err := d.Inventory.RecordSale(c.Request.Context(), id, actor)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, gin.H{
			"product": inventory.Rows([]model.Product{*p})[0],
			"event":   event,
		})
	}
}

func saleHistory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		events, err := d.Inventory.History(c.Request.Context(), id)
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		ok(c, events)
	}
}

func exportProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := d.Inventory.List(c.Request.Context())
		if err != nil {
			fail(c, d.Log, err)
			return
		}
		var buf bytes.Buffer
		if err := inventory.WriteCSV(&buf, products); err != nil {
			fail(c, d.Log, errors.Wrap(apperr.ErrFetchFailed, err.Error()))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="products.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

// bindProductInput 支持 multipart/form 与 JSON 两种提交方式，
// 只有表单方式可以附带 image 文件。
func bindProductInput(c *gin.Context) (inventory.ProductInput, *inventory.ImageFile, error) {
	var in inventory.ProductInput
	ct := c.ContentType()
	if ct != "multipart/form-data" && ct != "application/x-www-form-urlencoded" {
		if err := c.ShouldBindJSON(&in); err != nil {
			return in, nil, apperr.Validation("invalid product payload: %v", err)
		}
		return in, nil, nil
	}

	if v, found := c.GetPostForm("title"); found {
		in.Title = &v
	}
	if v, found := c.GetPostForm("product_category"); found {
		in.Category = &v
	}
	if v, found := c.GetPostForm("stock"); found {
		n, err := cast.ToInt64E(strings.TrimSpace(v))
		if err != nil {
			return in, nil, apperr.Validation("stock must be an integer")
		}
		in.Stock = &n
	}
	for field, dst := range map[string]**decimal.Decimal{
		"whole_price": &in.WholePrice,
		"sale_price":  &in.SalePrice,
	} {
		v, found := c.GetPostForm(field)
		if !found {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return in, nil, apperr.Validation("%s must be a number", field)
		}
		*dst = &price
	}

	if ct != "multipart/form-data" {
		return in, nil, nil
	}
	img, err := formImage(c)
	return in, img, err
}

func formImage(c *gin.Context) (*inventory.ImageFile, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("invalid image upload: %v", err)
	}
	if fh.Size > maxImageSize {
		return nil, apperr.Validation("image larger than %d bytes", maxImageSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(apperr.ErrImageUploadFailed, err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrImageUploadFailed, err.Error())
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &inventory.ImageFile{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}
