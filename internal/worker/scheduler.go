// Package worker 后台任务：ants 协程池与 cron 定时任务。
package worker

import (
	"context"
	"time"

	"shopkeep/internal/pkg/clock"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ImageSweeper 清理孤儿图片。
type ImageSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Redeliverer 重投未进入 outbox 的售出流水。
type Redeliverer interface {
	Redeliver(ctx context.Context, before time.Time) (int, error)
}

// RedeliverFunc 把普通函数适配成 Redeliverer。
type RedeliverFunc func(ctx context.Context, before time.Time) (int, error)

func (f RedeliverFunc) Redeliver(ctx context.Context, before time.Time) (int, error) {
	return f(ctx, before)
}

// Jobs 需要定时执行的任务，字段为空时不注册。
type Jobs struct {
	SweepSpec    string
	Sweeper      ImageSweeper
	RedeliverLag time.Duration
	Redeliverer  Redeliverer
}

type Scheduler struct {
	sched *cron.Cron
	clock clock.Clock
	log   *zap.Logger
}

// NewScheduler 按 jobs 注册定时任务；cron 表达式非法时返回错误。
func NewScheduler(jobs Jobs, clk clock.Clock, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		sched: cron.New(cron.WithLocation(time.UTC), cron.WithParser(cronParser)),
		clock: clk,
		log:   log,
	}

	if jobs.Sweeper != nil && jobs.SweepSpec != "" {
		if _, err := s.sched.AddFunc(jobs.SweepSpec, func() { s.runSweep(jobs.Sweeper) }); err != nil {
			return nil, err
		}
	}
	if jobs.Redeliverer != nil {
		lag := jobs.RedeliverLag
		if lag <= 0 {
			lag = time.Minute
		}
		if _, err := s.sched.AddFunc("@every 1m", func() { s.runRedeliver(jobs.Redeliverer, lag) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() { s.sched.Start() }

// Stop 等待正在执行的任务结束。
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.sched.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Entries 已注册任务数量。
func (s *Scheduler) Entries() int { return len(s.sched.Entries()) }

func (s *Scheduler) runSweep(sw ImageSweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := sw.Sweep(ctx); err != nil {
		s.log.Error("image sweep", zap.Error(err))
	}
}

func (s *Scheduler) runRedeliver(r Redeliverer, lag time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := r.Redeliver(ctx, s.clock.Now().Add(-lag)); err != nil {
		s.log.Error("redeliver sale events", zap.Error(err))
	}
}
