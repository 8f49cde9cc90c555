package app

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// Драйверы хранилища сессий.
const (
	StorageDriverMemory   = "memory"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска витрины.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	SessionTTL          time.Duration
	PostgresDSN         string
	PostgresAutoMigrate bool

	SessionCleanupInterval  time.Duration
	SessionCleanupBatchSize int
	SessionMaxIdle          time.Duration
	SessionIdleTTL          time.Duration

	// При пустом BackendURL заказы, оплата и каталог работают в памяти.
	// Разрешено только при AllowMockIntegrations.
	BackendURL            string
	PrintBaseURL          string
	BackendTimeout        time.Duration
	AllowMockIntegrations bool
	CatalogTTL            time.Duration

	KafkaBrokers string
	PrintTopic   string
	PrintToken   string

	DeliveryFee int64
	// Зоны без доплаты через запятую.
	FreeZones string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		RedisAddr:           "localhost:6379",
		SessionTTL:          redis.DefaultTTL,
		PostgresAutoMigrate: true,

		SessionCleanupInterval:  time.Hour,
		SessionCleanupBatchSize: 500,
		SessionMaxIdle:          30 * 24 * time.Hour,
		SessionIdleTTL:          session.DefaultIdleTTL,

		BackendTimeout:        10 * time.Second,
		AllowMockIntegrations: true,
		CatalogTTL:            catalog.DefaultTTL,

		PrintTopic: kafka.TopicPrintJobs,

		DeliveryFee: cart.DefaultDeliveryFee,
		FreeZones:   cart.DefaultFreeZone,
	}
}
