package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopkeep/internal/auth"
	"shopkeep/internal/config"
	"shopkeep/internal/inventory"
	"shopkeep/internal/inventory/repository"
	"shopkeep/internal/logger"
	"shopkeep/internal/middleware"
	"shopkeep/internal/pkg/clock"
	"shopkeep/internal/queue"
	"shopkeep/internal/report"
	"shopkeep/internal/router"
	"shopkeep/internal/storage"
	"shopkeep/internal/store"
	"shopkeep/internal/worker"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(logger.Options{
		Production: cfg.AppEnv == "production",
		Level:      cfg.LogLevel,
		Filename:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 数据库：自动建表并写入管理员
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN, zl)
	if err != nil {
		zl.Fatal("db open", zap.Error(err))
	}
	if err := store.SeedAdmin(ctx, db, cfg.AdminUsername, cfg.AdminPassword, zl); err != nil {
		zl.Fatal("seed admin", zap.Error(err))
	}

	// 2. Redis：会话、登录限流、售出事件 outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		zl.Warn("redis ping failed, sessions unavailable until it recovers", zap.Error(err))
	}
	cancel()

	// 3. 图片 bucket
	bucket, err := storage.OpenBucket(cfg.ImageDBPath, storage.ProductImages, cfg.PublicBaseURL)
	if err != nil {
		zl.Fatal("open image bucket", zap.Error(err))
	}
	defer bucket.Close()

	pool, err := worker.NewPool(cfg.WorkerPoolSize, zl)
	if err != nil {
		zl.Fatal("worker pool", zap.Error(err))
	}
	defer pool.Release()

	clk := clock.NewRealClock()
	sales := store.NewSaleRepository(db)
	alerts := store.NewAlertRepository(db)

	// 4. 售出事件：outbox(Redis Stream) → Relay → Kafka → 低库存提醒
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	outbox := queue.NewOutbox(rdb, cfg.SaleEventStream, sales, zl)
	relay := queue.NewRelay(rdb, producer, cfg.SaleEventStream, cfg.SaleEventGroup, cfg.SaleEventConsumer, zl)
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, alerts, zl)
	defer consumer.Close()
	go relay.Run(ctx)
	go consumer.Run(ctx)

	authSvc := auth.NewService(
		store.NewAdminRepository(db),
		auth.NewRedisSessionStore(rdb),
		auth.NewTokenIssuer(cfg.JWTSecret),
		clk, cfg.SessionTTL, pool, zl,
	)
	inv := inventory.NewService(inventory.Options{
		Repo:           repository.NewGormRepository(db),
		Images:         bucket,
		Publisher:      outbox,
		Async:          pool,
		Clock:          clk,
		PlaceholderURL: cfg.PlaceholderImageURL,
		Logger:         zl,
	})

	// 5. 定时任务：孤儿图片清理、outbox 补投
	sched, err := worker.NewScheduler(worker.Jobs{
		SweepSpec:    cfg.ImageSweepSpec,
		Sweeper:      storage.NewSweeper(bucket, inv, cfg.ImageSweepGrace, clk, zl),
		RedeliverLag: time.Minute,
		Redeliverer: worker.RedeliverFunc(func(ctx context.Context, before time.Time) (int, error) {
			return outbox.Redeliver(ctx, sales, before)
		}),
	}, clk, zl)
	if err != nil {
		zl.Fatal("scheduler", zap.Error(err))
	}
	sched.Start()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(zl), middleware.AccessLog(zl))
	router.Setup(r, router.Deps{
		Auth:      authSvc,
		Inventory: inv,
		Reports:   report.NewService(sales, clk),
		Alerts:    alerts,
		Images:    bucket,
		Limiter:   middleware.NewRedisWindowLimiter(rdb, cfg.LoginRateLimit, cfg.LoginRateWindow),
		Cfg:       cfg,
		Log:       zl,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
}
