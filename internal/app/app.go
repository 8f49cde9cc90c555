// Package app собирает витрину: хранилище сессий, интеграции, HTTP API,
// gRPC health и сервер метрик.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cleanup"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	registryJanitorInterval = time.Minute
	shutdownTimeout         = 5 * time.Second
)

// Run запускает витрину и блокируется до отмены ctx или падения сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	// Без Kafka витрина работает: события не публикуются, печать идёт напрямую.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	runtimeDeps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := runtimeDeps.close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close session storage")
		}
	}()

	deps, err := NewDependencies(cfg, kafkaProducer, logger)
	if err != nil {
		return err
	}

	registryDeps := session.Deps{
		KV:         runtimeDeps.kv,
		Orders:     deps.Orders,
		Payments:   deps.Payments,
		Printer:    deps.Printer,
		FeePolicy:  feePolicy(cfg),
		PrintToken: cfg.PrintToken,
		Metrics:    metrics.NewCheckoutMetrics(),
		Logger:     logger.WithField("component", "sessions"),
		IdleTTL:    cfg.SessionIdleTTL,
	}
	if kafkaProducer != nil {
		registryDeps.Events = kafkaProducer
	}
	registry := session.NewRegistry(registryDeps)
	go registry.Run(ctx, registryJanitorInterval)

	if runtimeDeps.staleDeleter != nil {
		worker := cleanup.NewWorker(runtimeDeps.staleDeleter,
			cleanup.WithLogger(logger.WithField("component", "session-cleanup")),
			cleanup.WithInterval(cfg.SessionCleanupInterval),
			cleanup.WithBatchSize(cfg.SessionCleanupBatchSize),
			cleanup.WithMaxIdle(cfg.SessionMaxIdle),
		)
		go worker.Run(ctx)
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", runtimeDeps.storageChecker)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	api := httpapi.NewHandler(registry, deps.Catalog, logger.WithField("layer", "http"))
	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}
	apiSrv := &http.Server{Handler: api.Routes(), ReadHeaderTimeout: 10 * time.Second}

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiLis.Close()
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		errCh <- grpcServer.Serve(grpcLis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(apiSrv, logger)
		shutdownGRPC(grpcServer, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(apiSrv, logger)
		shutdownGRPC(grpcServer, logger)
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// feePolicy собирает тариф доставки из настроек; пустые настройки дают тариф по умолчанию.
func feePolicy(cfg Config) cart.FeePolicy {
	policy := cart.FeePolicy{FlatFee: cfg.DeliveryFee, FreeZones: splitList(cfg.FreeZones)}
	if policy.FlatFee == 0 && len(policy.FreeZones) == 0 {
		return cart.DefaultFeePolicy()
	}
	return policy
}

// shutdownGRPC останавливает gRPC сервер, дожидаясь активных вызовов не дольше shutdownTimeout.
func shutdownGRPC(srv *grpc.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и пробы здоровья.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
