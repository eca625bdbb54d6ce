package storage

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// ProductImages 商品图片 bucket 名称。
const ProductImages = "product-images"

// ErrObjectNotFound 对象不存在。
var ErrObjectNotFound = errors.New("object not found")

// Object 对象元数据。
type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Bucket 基于 bbolt 的单文件对象存储，提供按 key 上传、公开 URL、删除与遍历。
// 数据与元数据分两个 bolt bucket 存放，遍历时不需要读取图片内容。
type Bucket struct {
	db         *bolt.DB
	name       []byte
	metaName   []byte
	publicBase string
}

// OpenBucket 打开（或创建）bolt 文件并确保 bucket 存在。
// publicBaseURL 形如 http://host:port，对象地址为 {base}/storage/{bucket}/{key}。
func OpenBucket(file, name, publicBaseURL string) (*Bucket, error) {
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bucket file")
	}
	b := &Bucket{
		db:         db,
		name:       []byte(name),
		metaName:   []byte(name + ".meta"),
		publicBase: strings.TrimRight(publicBaseURL, "/"),
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(b.name); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(b.metaName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return b, nil
}

func (b *Bucket) Close() error { return b.db.Close() }

// Name 返回 bucket 名称。
func (b *Bucket) Name() string { return string(b.name) }

// Upload 写入对象（同 key 覆盖），返回公开访问 URL。
func (b *Bucket) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("object key is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	meta, err := json.Marshal(Object{
		Key:         key,
		ContentType: contentType,
		Size:        len(data),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(b.name).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket(b.metaName).Put([]byte(key), meta)
	})
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", key)
	}
	return b.PublicURL(key), nil
}

// Download 读取对象内容与元数据。
func (b *Bucket) Download(ctx context.Context, key string) ([]byte, Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, Object{}, err
	}
	var (
		data []byte
		obj  Object
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(b.name).Get([]byte(key))
		if raw == nil {
			return ErrObjectNotFound
		}
		// bolt 返回的切片只在事务内有效
		data = append([]byte(nil), raw...)
		if m := tx.Bucket(b.metaName).Get([]byte(key)); m != nil {
			if err := json.Unmarshal(m, &obj); err != nil {
				return err
			}
		}
		obj.Key = key
		return nil
	})
	if err != nil {
		return nil, Object{}, err
	}
	return data, obj, nil
}

// Remove 删除对象；不存在时不报错。
func (b *Bucket) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(b.name).Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(b.metaName).Delete([]byte(key))
	})
	return errors.Wrapf(err, "remove %s", key)
}

// List 遍历全部对象元数据。
func (b *Bucket) List(ctx context.Context) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Object, 0)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(b.metaName).ForEach(func(k, v []byte) error {
			var obj Object
			if err := json.Unmarshal(v, &obj); err != nil {
				return err
			}
			obj.Key = string(k)
			out = append(out, obj)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list objects")
	}
	return out, nil
}

// PublicURL 拼接对象的公开地址。
func (b *Bucket) PublicURL(key string) string {
	return b.publicBase + b.publicPrefix() + key
}

// KeyFromURL 从公开地址反解 key；非本 bucket 的地址返回 false（例如占位图）。
func (b *Bucket) KeyFromURL(url string) (string, bool) {
	prefix := b.publicBase + b.publicPrefix()
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, key != ""
}

func (b *Bucket) publicPrefix() string {
	return "/storage/" + string(b.name) + "/"
}

// NewObjectKey 生成 public/<uuid>.<ext>，扩展名沿用上传文件名。
func NewObjectKey(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return "public/" + uuid.NewString() + "." + ext
}
