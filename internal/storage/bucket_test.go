package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shopkeep/internal/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestBucket(t *testing.T) *Bucket {
	t.Helper()
	b, err := OpenBucket(filepath.Join(t.TempDir(), "images.db"), ProductImages, "http://localhost:8080/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBucket_UploadDownloadRemove(t *testing.T) {
	ctx := context.Background()
	b := openTestBucket(t)

	url, err := b.Upload(ctx, "public/a.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/storage/product-images/public/a.png", url)

	data, obj, err := b.Download(ctx, "public/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, 9, obj.Size)

	// upsert
	_, err = b.Upload(ctx, "public/a.png", "image/png", []byte("v2"))
	require.NoError(t, err)
	data, _, err = b.Download(ctx, "public/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	require.NoError(t, b.Remove(ctx, "public/a.png"))
	_, _, err = b.Download(ctx, "public/a.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// removing again is fine
	assert.NoError(t, b.Remove(ctx, "public/a.png"))
}

func TestBucket_KeyFromURL(t *testing.T) {
	b := openTestBucket(t)

	key, ok := b.KeyFromURL(b.PublicURL("public/x.jpg"))
	assert.True(t, ok)
	assert.Equal(t, "public/x.jpg", key)

	_, ok = b.KeyFromURL("https://picsum.photos/seed/placeholder/400/300")
	assert.False(t, ok)
}

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey("Car Toy.PNG")
	assert.True(t, strings.HasPrefix(key, "public/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, NewObjectKey("Car Toy.PNG"))

	assert.True(t, strings.HasSuffix(NewObjectKey("noext"), ".bin"))
}

type staticRefs []string

func (s staticRefs) ImageURLs(context.Context) ([]string, error) { return s, nil }

func TestSweeper_RemovesOnlyOldUnreferenced(t *testing.T) {
	ctx := context.Background()
	b := openTestBucket(t)

	keptURL, err := b.Upload(ctx, "public/kept.png", "image/png", []byte("1"))
	require.NoError(t, err)
	_, err = b.Upload(ctx, "public/orphan.png", "image/png", []byte("2"))
	require.NoError(t, err)

	clk := clock.NewMockClock(time.Now())
	s := NewSweeper(b, staticRefs{keptURL, "https://picsum.photos/seed/placeholder/400/300"}, 10*time.Minute, clk, zap.NewNop())

	// 宽限期内不删除
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clk.Advance(11 * time.Minute)
	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	objs, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "public/kept.png", objs[0].Key)
}
