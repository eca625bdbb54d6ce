package inventory

import (
	"context"
	"time"

	"shopkeep/internal/apperr"
	"shopkeep/internal/model"
	"shopkeep/internal/pkg/clock"
	"shopkeep/internal/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service 商品库存操作：列表、新建、编辑、删除、售出与流水。
type Service struct {
	repo        Repository
	images      ImageStore
	publisher   EventPublisher
	async       Submitter
	clock       clock.Clock
	placeholder string
	log         *zap.Logger
}

// Options 构造 Service 的依赖；Publisher 与 Async 可为空。
type Options struct {
	Repo           Repository
	Images         ImageStore
	Publisher      EventPublisher
	Async          Submitter
	Clock          clock.Clock
	PlaceholderURL string
	Logger         *zap.Logger
}

func NewService(opts Options) *Service {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:        opts.Repo,
		images:      opts.Images,
		publisher:   opts.Publisher,
		async:       opts.Async,
		clock:       clk,
		placeholder: opts.PlaceholderURL,
		log:         log,
	}
}

// List 全部商品，id 升序；存储失败返回 ErrFetchFailed，不重试。
func (s *Service) List(ctx context.Context) ([]model.Product, error) {
	return s.ListByCategory(ctx, "")
}

// ListByCategory 按分类精确筛选，category 为空等同 List。
func (s *Service) ListByCategory(ctx context.Context, category string) ([]model.Product, error) {
	products, err := s.repo.List(ctx, category)
	if err != nil {
		s.log.Error("list products", zap.String("category", category), zap.Error(err))
		return nil, errors.Wrap(apperr.ErrFetchFailed, err.Error())
	}
	return products, nil
}

// Categories 商品分类标签。
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		s.log.Error("list categories", zap.Error(err))
		return nil, errors.Wrap(apperr.ErrFetchFailed, err.Error())
	}
	return categories, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*model.Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, classify(err, apperr.ErrFetchFailed)
	}
	return p, nil
}

// Create 先写商品行再上传图片，两步在同一事务内：
// 上传失败回滚商品行，提交失败删除已上传的对象，不留下孤儿图片。
func (s *Service) Create(ctx context.Context, in ProductInput, img *ImageFile) (*model.Product, error) {
	if err := in.validateCreate(); err != nil {
		return nil, err
	}
	p := &model.Product{ImageURL: s.placeholder}
	in.apply(p)

	var uploadedKey string
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		if err := tx.Insert(ctx, p); err != nil {
			return errors.Wrap(apperr.ErrStoreWriteFailed, err.Error())
		}
		if img == nil {
			return nil
		}
		key, url, err := s.upload(ctx, img)
		if err != nil {
			return err
		}
		uploadedKey = key
		if err := tx.SetImageURL(ctx, p.ID, url); err != nil {
			return errors.Wrap(apperr.ErrStoreWriteFailed, err.Error())
		}
		p.ImageURL = url
		return nil
	})
	if err != nil {
		s.discard(uploadedKey)
		s.log.Error("create product", zap.String("title", p.Title), zap.Error(err))
		return nil, classify(err, apperr.ErrStoreWriteFailed)
	}

	s.log.Info("product created", zap.Uint("id", p.ID), zap.String("title", p.Title))
	return p, nil
}

// Update 只写已提供的列，stock 与 sale_stock 未提供时不会被旧值覆盖；
// 换图成功后异步删除旧图。
func (s *Service) Update(ctx context.Context, id uint, in ProductInput, img *ImageFile) (*model.Product, error) {
	if err := in.validatePatch(); err != nil {
		return nil, err
	}

	var (
		updated     *model.Product
		uploadedKey string
		oldURL      string
	)
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		cur, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		fields := in.columns()
		if img != nil {
			key, url, err := s.upload(ctx, img)
			if err != nil {
				return err
			}
			uploadedKey = key
			oldURL = cur.ImageURL
			fields["image_url"] = url
		}
		if err := tx.Patch(ctx, id, fields); err != nil {
			return errors.Wrap(apperr.ErrStoreWriteFailed, err.Error())
		}
		updated, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		s.discard(uploadedKey)
		if !errors.Is(err, apperr.ErrProductNotFound) {
			s.log.Error("update product", zap.Uint("id", id), zap.Error(err))
		}
		return nil, classify(err, apperr.ErrStoreWriteFailed)
	}

	if uploadedKey != "" && oldURL != updated.ImageURL {
		s.discardURL(oldURL)
	}
	s.log.Info("product updated", zap.Uint("id", id))
	return updated, nil
}

// Delete 物理删除商品，提交后异步删除其图片对象。
func (s *Service) Delete(ctx context.Context, id uint) error {
	var imageURL string
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		cur, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		imageURL = cur.ImageURL
		return tx.Delete(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrProductNotFound) {
			s.log.Error("delete product", zap.Uint("id", id), zap.Error(err))
		}
		return classify(err, apperr.ErrStoreWriteFailed)
	}

	s.discardURL(imageURL)
	s.log.Info("product deleted", zap.Uint("id", id))
	return nil
}

// RecordSale 售出一件：条件扣减与写流水在同一事务，库存为 0 时返回 ErrInsufficientStock 且不做任何修改。
// 提交后投递事件；投递失败只记录日志，由补偿任务重投。
func (s *Service) RecordSale(ctx context.Context, id uint, actor string) (*model.Product, *model.SaleEvent, error) {
	var (
		product *model.Product
		event   model.SaleEvent
	)
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		p, err := tx.DecrementStock(ctx, id)
		if err != nil {
			return err
		}
		event = model.SaleEvent{
			CreatedAt:    s.clock.Now().UTC(),
			EventID:      uuid.NewString(),
			ProductID:    p.ID,
			ProductTitle: p.Title,
			Quantity:     1,
			UnitPrice:    p.SalePrice,
			WholePrice:   p.WholePrice,
			StockAfter:   p.Stock,
			SoldAfter:    p.Sold,
			Actor:        actor,
		}
		if err := tx.AppendSale(ctx, &event); err != nil {
			return errors.Wrap(apperr.ErrStoreWriteFailed, err.Error())
		}
		product = p
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrInsufficientStock) && !errors.Is(err, apperr.ErrProductNotFound) {
			s.log.Error("record sale", zap.Uint("id", id), zap.Error(err))
		}
		return nil, nil, classify(err, apperr.ErrStoreWriteFailed)
	}

	s.log.Info("sale recorded",
		zap.Uint("product_id", id),
		zap.String("event_id", event.EventID),
		zap.Int64("stock_after", event.StockAfter))

	if s.publisher != nil {
		if err := s.publisher.PublishSale(ctx, event); err != nil {
			s.log.Warn("publish sale event, will retry", zap.String("event_id", event.EventID), zap.Error(err))
		}
	}
	return product, &event, nil
}

// History 商品的售出流水，最新在前；商品删除后依然可查。
func (s *Service) History(ctx context.Context, id uint) ([]model.SaleEvent, error) {
	events, err := s.repo.History(ctx, id)
	if err != nil {
		s.log.Error("sale history", zap.Uint("id", id), zap.Error(err))
		return nil, errors.Wrap(apperr.ErrFetchFailed, err.Error())
	}
	return events, nil
}

// ImageURLs 供孤儿图片清理使用。
func (s *Service) ImageURLs(ctx context.Context) ([]string, error) {
	return s.repo.ImageURLs(ctx)
}

func (s *Service) upload(ctx context.Context, img *ImageFile) (string, string, error) {
	if len(img.Data) == 0 {
		return "", "", apperr.Validation("image file is empty")
	}
	key := storage.NewObjectKey(img.Filename)
	url, err := s.images.Upload(ctx, key, img.ContentType, img.Data)
	if err != nil {
		return "", "", errors.Wrap(apperr.ErrImageUploadFailed, err.Error())
	}
	return key, url, nil
}

// discardURL 删除本 bucket 内的对象；占位图或外部地址直接忽略。
func (s *Service) discardURL(url string) {
	if url == "" || s.images == nil {
		return
	}
	if key, ok := s.images.KeyFromURL(url); ok {
		s.discard(key)
	}
}

func (s *Service) discard(key string) {
	if key == "" || s.images == nil {
		return
	}
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.images.Remove(ctx, key); err != nil {
			// 清理任务会兜底
			s.log.Warn("remove image object", zap.String("key", key), zap.Error(err))
		}
	}
	if s.async == nil {
		task()
		return
	}
	if err := s.async.Submit(task); err != nil {
		task()
	}
}

// classify 已分类的业务错误原样返回，其余包装成 fallback。
func classify(err error, fallback error) error {
	for _, known := range []error{
		apperr.ErrProductNotFound,
		apperr.ErrInsufficientStock,
		apperr.ErrValidationFailed,
		apperr.ErrImageUploadFailed,
		apperr.ErrStoreWriteFailed,
		apperr.ErrFetchFailed,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return errors.Wrap(fallback, err.Error())
}
