package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopkeep/internal/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweeper struct{ n int }

func (c *countingSweeper) Sweep(context.Context) (int, error) {
	c.n++
	return 0, nil
}

type recordingRedeliverer struct{ before time.Time }

func (r *recordingRedeliverer) Redeliver(_ context.Context, before time.Time) (int, error) {
	r.before = before
	return 0, nil
}

func TestNewScheduler(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))

	s, err := NewScheduler(Jobs{
		SweepSpec:   "@every 1h",
		Sweeper:     &countingSweeper{},
		Redeliverer: &recordingRedeliverer{},
	}, clk, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s, err = NewScheduler(Jobs{}, clk, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Entries())

	_, err = NewScheduler(Jobs{SweepSpec: "every hour", Sweeper: &countingSweeper{}}, clk, zap.NewNop())
	assert.Error(t, err)
}

func TestScheduler_RunRedeliverUsesLag(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	s, err := NewScheduler(Jobs{}, clock.NewMockClock(now), zap.NewNop())
	require.NoError(t, err)

	r := &recordingRedeliverer{}
	s.runRedeliver(r, time.Minute)
	assert.Equal(t, now.Add(-time.Minute), r.before)

	sw := &countingSweeper{}
	s.runSweep(sw)
	assert.Equal(t, 1, sw.n)
}

func TestNewPool(t *testing.T) {
	pool, err := NewPool(2, zap.NewNop())
	require.NoError(t, err)
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	n := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			mu.Lock()
			n++
			mu.Unlock()
		}))
	}
	wg.Wait()
	assert.Equal(t, 10, n)
}
