package app

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/client/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var errBackendRequired = errors.New("backend url is required when mock integrations are disabled")

// Dependencies содержит внешние интеграции витрины.
type Dependencies struct {
	Orders   domain.OrderBackend
	Payments domain.PaymentPreferenceService
	Catalog  *catalog.Cache
	Printer  domain.PrintJobSink
	Logger   *log.Entry
}

// NewDependencies собирает интеграции. Без BackendURL заказы, оплата и каталог
// работают в памяти. Печать уходит в Kafka, если есть producer.
func NewDependencies(cfg Config, producer *kafka.Producer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}
	var provider domain.CatalogProvider

	if strings.TrimSpace(cfg.BackendURL) == "" {
		if !cfg.AllowMockIntegrations {
			return nil, errBackendRequired
		}
		logger.Warn("backend url is empty, using in-memory orders, payments and catalog")
		deps.Orders = memory.NewOrderBackend()
		deps.Payments = payment.NewMockService()
		deps.Printer = memory.NewPrintSink()
		provider = memory.NewCatalogProvider(memory.DemoCatalog())
	} else {
		client, err := backend.New(backend.Config{
			BaseURL:      cfg.BackendURL,
			PrintBaseURL: cfg.PrintBaseURL,
			Timeout:      cfg.BackendTimeout,
		}, logger.WithField("component", "backend-client"))
		if err != nil {
			return nil, fmt.Errorf("init backend client: %w", err)
		}
		deps.Orders = client
		deps.Payments = client
		deps.Printer = client.PrintStation()
		provider = client
	}

	if producer != nil {
		topic := cfg.PrintTopic
		if topic == "" {
			topic = kafka.TopicPrintJobs
		}
		deps.Printer = kafka.NewPrintJobPublisher(producer, topic)
		logger.WithField("topic", topic).Info("print jobs are published to kafka")
	}

	deps.Catalog = catalog.NewCache(provider, cfg.CatalogTTL, logger.WithField("component", "catalog"))
	return deps, nil
}
