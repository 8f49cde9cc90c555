// Package backend содержит HTTP-клиент внешних сервисов витрины: заказы, платёжные
// предпочтения, каталог и принт-станция. Каждое направление закрыто своим
// circuit breaker.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	pathOrders            = "/api/orders"
	pathPaymentPreference = "/api/payments/preference"
	pathCatalog           = "/api/catalog"
	pathPrintJobs         = "/api/print-jobs"

	maxResponseBytes = 1 << 20
)

var errNotFound = errors.New("resource not found")

// Config задаёт адреса и лимиты клиента.
type Config struct {
	BaseURL      string
	PrintBaseURL string
	Timeout      time.Duration
	// MaxFailures — сколько ошибок подряд открывают breaker.
	MaxFailures uint32
	// OpenTimeout — сколько breaker остаётся открытым до пробного запроса.
	OpenTimeout time.Duration
}

// DefaultConfig возвращает настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:3000",
		Timeout:     10 * time.Second,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Client обращается к бэкенду заказов и принт-станции.
type Client struct {
	baseURL      string
	printBaseURL string
	http         *http.Client
	backend      *gobreaker.CircuitBreaker[[]byte]
	printer      *gobreaker.CircuitBreaker[[]byte]
	logger       *log.Entry
}

// New создаёт клиента. PrintBaseURL по умолчанию совпадает с BaseURL.
func New(cfg Config, logger *log.Entry) (*Client, error) {
	if logger == nil {
		logger = log.New().WithField("component", "backend-client")
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}

	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	printBase := base
	if strings.TrimSpace(cfg.PrintBaseURL) != "" {
		if printBase, err = normalizeBaseURL(cfg.PrintBaseURL); err != nil {
			return nil, fmt.Errorf("print station url: %w", err)
		}
	}

	return &Client{
		baseURL:      base,
		printBaseURL: printBase,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		backend: newBreaker("order-backend", cfg, logger),
		printer: newBreaker("print-station", cfg, logger),
		logger:  logger,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("host is required")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func newBreaker(name string, cfg Config, logger *log.Entry) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// Отказ 4xx и отмена запроса не говорят о неисправности сервиса.
			return err == nil ||
				errors.Is(err, domain.ErrBackendRejected) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
}

// CreateOrder создаёт заказ.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, c.backend, http.MethodPost, c.baseURL+pathOrders, req, &order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return domain.Order{}, fmt.Errorf("create order: %w: response without order id", domain.ErrBackendUnavailable)
	}
	return order, nil
}

// GetOrder возвращает заказ или ErrOrderNotFound.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	var order domain.Order
	err := c.do(ctx, c.backend, http.MethodGet, c.baseURL+pathOrders+"/"+url.PathEscape(orderID), nil, &order)
	if errors.Is(err, errNotFound) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return order, nil
}

// CreatePreference запрашивает ссылку на страницу оплаты.
func (c *Client) CreatePreference(ctx context.Context, orderID string) (domain.PaymentPreference, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.PaymentPreference{}, domain.ErrOrderIDRequired
	}
	var pref domain.PaymentPreference
	body := map[string]string{"orderId": orderID}
	if err := c.do(ctx, c.backend, http.MethodPost, c.baseURL+pathPaymentPreference, body, &pref); err != nil {
		return domain.PaymentPreference{}, fmt.Errorf("create payment preference: %w", err)
	}
	return pref, nil
}

// LoadCatalog загружает каталог.
func (c *Client) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	var catalog domain.Catalog
	if err := c.do(ctx, c.backend, http.MethodGet, c.baseURL+pathCatalog, nil, &catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	return catalog, nil
}

// PrintStation возвращает PrintJobSink поверх того же клиента.
type PrintStation struct {
	client *Client
}

// PrintStation возвращает отправитель заданий печати.
func (c *Client) PrintStation() *PrintStation {
	return &PrintStation{client: c}
}

// Submit отправляет задание печати.
func (p *PrintStation) Submit(ctx context.Context, job domain.PrintJob) error {
	c := p.client
	if err := c.do(ctx, c.printer, http.MethodPost, c.printBaseURL+pathPrintJobs, job, nil); err != nil {
		return fmt.Errorf("submit print job: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, breaker *gobreaker.CircuitBreaker[[]byte], method, target string, in, out interface{}) error {
	body, err := breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, target, in)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, target string, in interface{}) ([]byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent("storefront-bff"))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrBackendUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendRejected, errNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrBackendRejected, resp.StatusCode, errorMessage(body))
	default:
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrBackendUnavailable, resp.StatusCode, errorMessage(body))
	}
}

// errorMessage достаёт поле error/message из JSON-ответа, иначе возвращает начало тела.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

var (
	_ domain.OrderBackend             = (*Client)(nil)
	_ domain.PaymentPreferenceService = (*Client)(nil)
	_ domain.CatalogProvider          = (*Client)(nil)
	_ domain.PrintJobSink             = (*PrintStation)(nil)
)
