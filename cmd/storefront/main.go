package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	envLogLevel              = "STOREFRONT_LOG_LEVEL"
	envHTTPAddr              = "STOREFRONT_HTTP_ADDR"
	envGRPCAddr              = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr           = "STOREFRONT_METRICS_ADDR"
	envStorageDriver         = "STOREFRONT_STORAGE_DRIVER"
	envRedisAddr             = "STOREFRONT_REDIS_ADDR"
	envRedisPassword         = "STOREFRONT_REDIS_PASSWORD"
	envRedisDB               = "STOREFRONT_REDIS_DB"
	envSessionTTL            = "STOREFRONT_SESSION_TTL"
	envPostgresDSN           = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate   = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envCleanupInterval       = "STOREFRONT_SESSION_CLEANUP_INTERVAL"
	envCleanupBatchSize      = "STOREFRONT_SESSION_CLEANUP_BATCH_SIZE"
	envSessionMaxIdle        = "STOREFRONT_SESSION_MAX_IDLE"
	envSessionIdleTTL        = "STOREFRONT_SESSION_IDLE_TTL"
	envBackendURL            = "STOREFRONT_BACKEND_URL"
	envPrintBaseURL          = "STOREFRONT_PRINT_BASE_URL"
	envBackendTimeout        = "STOREFRONT_BACKEND_TIMEOUT"
	envAllowMockIntegrations = "STOREFRONT_ALLOW_MOCK_INTEGRATIONS"
	envCatalogTTL            = "STOREFRONT_CATALOG_TTL"
	envKafkaBrokers          = "KAFKA_BROKERS"
	envPrintTopic            = "STOREFRONT_PRINT_TOPIC"
	envPrintToken            = "STOREFRONT_PRINT_TOKEN"
	envDeliveryFee           = "STOREFRONT_DELIVERY_FEE"
	envFreeZones             = "STOREFRONT_FREE_ZONES"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		log.WithError(err).Warnf("invalid %s, using info", envLogLevel)
		return
	}
	log.SetLevel(level)
}

// readConfigFromEnv собирает конфигурацию из окружения. Некорректные значения
// не валят запуск: остаётся значение по умолчанию и пишется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v, using default", key, raw, err))
	}
	str := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, target *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*target = parsed
	}
	integer := func(key string, target *int, validate func(int) bool, msg string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, validate, msg)
		if err != nil {
			warn(key, v, err)
			return
		}
		*target = parsed
	}
	duration := func(key string, target *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(key, v, err)
			return
		}
		*target = parsed
	}

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	str(envRedisAddr, &cfg.RedisAddr)
	str(envRedisPassword, &cfg.RedisPassword)
	integer(envRedisDB, &cfg.RedisDB, func(v int) bool { return v >= 0 }, "must be >= 0")
	duration(envSessionTTL, &cfg.SessionTTL)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	duration(envCleanupInterval, &cfg.SessionCleanupInterval)
	integer(envCleanupBatchSize, &cfg.SessionCleanupBatchSize, func(v int) bool { return v > 0 }, "must be > 0")
	duration(envSessionMaxIdle, &cfg.SessionMaxIdle)
	duration(envSessionIdleTTL, &cfg.SessionIdleTTL)

	str(envBackendURL, &cfg.BackendURL)
	str(envPrintBaseURL, &cfg.PrintBaseURL)
	duration(envBackendTimeout, &cfg.BackendTimeout)
	boolean(envAllowMockIntegrations, &cfg.AllowMockIntegrations)
	duration(envCatalogTTL, &cfg.CatalogTTL)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envPrintTopic, &cfg.PrintTopic)
	str(envPrintToken, &cfg.PrintToken)

	if v, ok := lookup(envDeliveryFee); ok && strings.TrimSpace(v) != "" {
		fee, err := parseInt(v, func(v int) bool { return v >= 0 }, "must be >= 0")
		if err != nil {
			warn(envDeliveryFee, v, err)
		} else {
			cfg.DeliveryFee = int64(fee)
		}
	}
	str(envFreeZones, &cfg.FreeZones)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported bool value %q", raw)
	}
}

func parseInt(raw string, validate func(int) bool, msg string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if validate != nil && !validate(value) {
		return 0, errors.New(msg)
	}
	return value, nil
}

func parseDuration(raw string, validate func(time.Duration) bool, msg string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if validate != nil && !validate(value) {
		return 0, errors.New(msg)
	}
	return value, nil
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":        version.GetVersion(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"mock_backend":   cfg.BackendURL == "",
	}).Info("запускаем витрину")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("витрина остановлена")
}
