// Command print-relay читает задания печати из Kafka и пересылает их на
// принт-станцию. Задания, которые не удалось доставить, уходят в DLQ.
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

	"github.com/vladislavdragonenkov/storefront/internal/client/backend"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	envKafkaBrokers   = "KAFKA_BROKERS"
	envPrintTopic     = "STOREFRONT_PRINT_TOPIC"
	envGroupID        = "STOREFRONT_PRINT_RELAY_GROUP"
	envPrintBaseURL   = "STOREFRONT_PRINT_BASE_URL"
	envBackendTimeout = "STOREFRONT_BACKEND_TIMEOUT"
	envMaxRetries     = "STOREFRONT_PRINT_RELAY_MAX_RETRIES"
	envRetryDelay     = "STOREFRONT_PRINT_RELAY_RETRY_DELAY"

	defaultGroupID    = "storefront-print-relay"
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

type envLookup func(key string) (string, bool)

type config struct {
	brokers      []string
	topic        string
	groupID      string
	printBaseURL string
	timeout      time.Duration
	maxRetries   int
	retryDelay   time.Duration
}

type relay interface {
	Start(ctx context.Context) error
	Stop() error
}

type relayDeps struct {
	consumer relay
	closeFn  func() error
}

var newRelay = func(cfg config, logger *log.Entry) (*relayDeps, error) {
	client, err := backend.New(backend.Config{
		BaseURL: cfg.printBaseURL,
		Timeout: cfg.timeout,
	}, logger.WithField("component", "backend-client"))
	if err != nil {
		return nil, fmt.Errorf("init print station client: %w", err)
	}

	dlq, err := kafka.NewProducer(cfg.brokers, logger.WithField("component", "dlq-producer"))
	if err != nil {
		return nil, fmt.Errorf("init dlq producer: %w", err)
	}

	consumer, err := kafka.NewConsumer(cfg.brokers, cfg.groupID, []string{cfg.topic},
		kafka.NewPrintRelayHandler(client.PrintStation(), logger),
		kafka.ConsumerOptions{
			DLQProducer: dlq,
			MaxRetries:  cfg.maxRetries,
			RetryDelay:  cfg.retryDelay,
			Logger:      logger.WithField("component", "kafka-consumer"),
		})
	if err != nil {
		_ = dlq.Close()
		return nil, err
	}
	return &relayDeps{consumer: consumer, closeFn: dlq.Close}, nil
}

func readConfig(lookup envLookup) (config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := config{
		topic:        kafka.TopicPrintJobs,
		groupID:      defaultGroupID,
		printBaseURL: get(envPrintBaseURL),
		timeout:      backend.DefaultConfig().Timeout,
		maxRetries:   defaultMaxRetries,
		retryDelay:   defaultRetryDelay,
	}
	for _, broker := range strings.Split(get(envKafkaBrokers), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.brokers = append(cfg.brokers, broker)
		}
	}
	if v := get(envPrintTopic); v != "" {
		cfg.topic = v
	}
	if v := get(envGroupID); v != "" {
		cfg.groupID = v
	}

	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("%s is required", envKafkaBrokers)
	}
	if cfg.printBaseURL == "" {
		return config{}, fmt.Errorf("%s is required", envPrintBaseURL)
	}
	if v := get(envBackendTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("invalid %s=%q", envBackendTimeout, v)
		}
		cfg.timeout = d
	}
	if v := get(envMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return config{}, fmt.Errorf("invalid %s=%q", envMaxRetries, v)
		}
		cfg.maxRetries = n
	}
	if v := get(envRetryDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return config{}, fmt.Errorf("invalid %s=%q", envRetryDelay, v)
		}
		cfg.retryDelay = d
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, logger *log.Entry) error {
	deps, err := newRelay(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn != nil {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close dlq producer")
			}
		}
	}()

	if err := deps.consumer.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	logger.WithFields(log.Fields{
		"topic": cfg.topic,
		"group": cfg.groupID,
	}).Info("print relay started")

	<-ctx.Done()

	if err := deps.consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop consumer")
	}
	return ctx.Err()
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	logger := log.WithField("component", "print-relay")

	cfg, err := readConfig(os.LookupEnv)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("print relay failed")
	}
	logger.Info("print relay stopped")
}
