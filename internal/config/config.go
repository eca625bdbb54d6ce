package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	AppEnv   string
	HTTPAddr string

	// DBDriver 可选 sqlite / postgres / mysql
	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（售出事件先入流，Relay 异步转 Kafka）
	SaleEventStream   string
	SaleEventGroup    string
	SaleEventConsumer string

	// 登录接口限流（防暴力破解）
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// 会话：签名密钥与有效期（固定 24h，不自动续期）
	JWTSecret  string
	SessionTTL time.Duration

	// 首次启动时写入 admins 表的管理员
	AdminUsername string
	AdminPassword string

	// 图片 bucket（bbolt 文件）与对外访问地址
	ImageDBPath         string
	PublicBaseURL       string
	PlaceholderImageURL string
	ImageSweepSpec      string
	ImageSweepGrace     time.Duration

	WorkerPoolSize int
	CORSOrigins    []string

	LogLevel string
	LogFile  string
}

// Load 读取并校验配置，缺失时使用默认值。
// 当前目录存在 .env 时先加载，已存在的环境变量不会被覆盖。
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		AppEnv:              getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DBDriver:            strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:               getEnv("DB_DSN", "shopkeep.db"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             0,
		KafkaBrokers:        splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "shopkeep-sales"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "shopkeep-alert-consumer"),
		SaleEventStream:     getEnv("SALE_EVENT_STREAM", "shopkeep:sale_events"),
		SaleEventGroup:      getEnv("SALE_EVENT_GROUP", "shopkeep-relay-group"),
		SaleEventConsumer:   getEnv("SALE_EVENT_CONSUMER", "shopkeep-relay-1"),
		LoginRateLimit:      10,
		LoginRateWindow:     time.Minute,
		JWTSecret:           getEnv("JWT_SECRET", ""),
		SessionTTL:          24 * time.Hour,
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "secret"),
		ImageDBPath:         getEnv("IMAGE_DB_PATH", "product-images.db"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		PlaceholderImageURL: getEnv("PLACEHOLDER_IMAGE_URL", "https://picsum.photos/seed/placeholder/400/300"),
		ImageSweepSpec:      getEnv("IMAGE_SWEEP_SPEC", "@every 1h"),
		ImageSweepGrace:     10 * time.Minute,
		WorkerPoolSize:      16,
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFile:             getEnv("LOG_FILE", ""),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return AppConfig{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("LOGIN_RATE_LIMIT", cfg.LoginRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("LOGIN_RATE_LIMIT must be > 0")
	}
	cfg.LoginRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("LOGIN_RATE_WINDOW_SEC", int(cfg.LoginRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOGIN_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("LOGIN_RATE_WINDOW_SEC must be > 0")
	}
	cfg.LoginRateWindow = time.Duration(rateWindowSec) * time.Second

	ttlHour, err := getEnvInt("SESSION_TTL_HOUR", int(cfg.SessionTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SESSION_TTL_HOUR: %w", err)
	}
	if ttlHour <= 0 {
		return AppConfig{}, fmt.Errorf("SESSION_TTL_HOUR must be > 0")
	}
	cfg.SessionTTL = time.Duration(ttlHour) * time.Hour

	graceMin, err := getEnvInt("IMAGE_SWEEP_GRACE_MIN", int(cfg.ImageSweepGrace.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid IMAGE_SWEEP_GRACE_MIN: %w", err)
	}
	if graceMin < 0 {
		return AppConfig{}, fmt.Errorf("IMAGE_SWEEP_GRACE_MIN must be >= 0")
	}
	cfg.ImageSweepGrace = time.Duration(graceMin) * time.Minute

	poolSize, err := getEnvInt("WORKER_POOL_SIZE", cfg.WorkerPoolSize)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid WORKER_POOL_SIZE: %w", err)
	}
	if poolSize <= 0 {
		return AppConfig{}, fmt.Errorf("WORKER_POOL_SIZE must be > 0")
	}
	cfg.WorkerPoolSize = poolSize

	// 生产环境必须显式配置签名密钥，开发环境给一个固定值方便调试。
	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "production" {
			return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty in production")
		}
		cfg.JWTSecret = "dev-jwt-secret"
	}
	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.SaleEventStream == "" {
		return AppConfig{}, fmt.Errorf("SALE_EVENT_STREAM must not be empty")
	}
	if cfg.SaleEventGroup == "" {
		return AppConfig{}, fmt.Errorf("SALE_EVENT_GROUP must not be empty")
	}
	if cfg.SaleEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("SALE_EVENT_CONSUMER must not be empty")
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return AppConfig{}, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
