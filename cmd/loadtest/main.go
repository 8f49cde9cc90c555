// Command loadtest гоняет сценарии покупателя против HTTP API витрины
// и печатает сводку по задержкам и кодам ответа.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	sessionHeader = "X-Session-ID"
	scenarioName  = "scenario"
)

type loadMode string

const (
	modeBrowse   loadMode = "browse"
	modeCart     loadMode = "cart"
	modeCheckout loadMode = "checkout"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	storeID     string
	productID   string
	quantity    int
	payment     string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type endpointReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time                 `json:"started_at"`
	DurationSeconds   float64                   `json:"duration_seconds"`
	TotalScenarios    int64                     `json:"total_scenarios"`
	SuccessScenarios  int64                     `json:"success_scenarios"`
	FailedScenarios   int64                     `json:"failed_scenarios"`
	ErrorRate         float64                   `json:"error_rate"`
	RPS               float64                   `json:"rps"`
	ScenarioLatencyMs latencySummary            `json:"scenario_latency_ms"`
	Endpoints         map[string]endpointReport `json:"endpoints"`
}

type endpointStats struct {
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

// collector копит результаты вызовов по имени эндпоинта.
type collector struct {
	mu        sync.Mutex
	endpoints map[string]*endpointStats
}

func newCollector() *collector {
	return &collector{endpoints: make(map[string]*endpointStats)}
}

// record учитывает вызов. status 0 означает транспортную ошибку.
func (c *collector) record(name string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.endpoints[name]
	if !ok {
		stats = &endpointStats{statuses: make(map[string]int64)}
		c.endpoints[name] = stats
	}
	if isSuccess(status) {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[statusLabel(status)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (s *endpointStats) report() endpointReport {
	statuses := make(map[string]int64, len(s.statuses))
	for label, count := range s.statuses {
		statuses[label] = count
	}
	calls := s.success + s.failed
	return endpointReport{
		Calls:     calls,
		Success:   s.success,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, calls),
		Statuses:  statuses,
		LatencyMs: buildLatencySummary(s.latencies),
	}
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Endpoints:       make(map[string]endpointReport, len(c.endpoints)),
	}
	for name, stats := range c.endpoints {
		result.Endpoints[name] = stats.report()
	}
	if scenario, ok := result.Endpoints[scenarioName]; ok {
		result.TotalScenarios = scenario.Calls
		result.SuccessScenarios = scenario.Success
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}
	return result
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}

func parseConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)

	var cfg config
	var modeValue string
	fs.StringVar(&cfg.addr, "addr", "http://localhost:8080", "storefront HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent shoppers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCart), "load mode: browse | cart | checkout")
	fs.StringVar(&cfg.storeID, "store", "store-norte", "store id selected before checkout")
	fs.StringVar(&cfg.productID, "product", "emp-carne", "product id added to the cart")
	fs.IntVar(&cfg.quantity, "quantity", 5, "quantity of the product per cart")
	fs.StringVar(&cfg.payment, "payment", "cash", "payment method in checkout mode: cash | mercadopago")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.addr = strings.TrimRight(strings.TrimSpace(cfg.addr), "/")

	switch {
	case cfg.addr == "":
		return cfg, errors.New("addr is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case strings.TrimSpace(cfg.productID) == "":
		return cfg, errors.New("product is required")
	case cfg.mode == modeCheckout && strings.TrimSpace(cfg.storeID) == "":
		return cfg, errors.New("store is required in checkout mode")
	case cfg.payment != "cash" && cfg.payment != "mercadopago":
		return cfg, fmt.Errorf("unsupported payment: %s", cfg.payment)
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeBrowse, modeCart, modeCheckout:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	client := newShopperClient(cfg, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.timeout,
	})
	result := runLoad(context.Background(), client, cfg)

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// runLoad раздаёт сценарии воркерам и собирает отчёт.
func runLoad(ctx context.Context, client *shopperClient, cfg config) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				if err := client.runScenario(ctx, col); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}
	return result
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// shopperClient ходит в API витрины от имени покупателя.
type shopperClient struct {
	cfg  config
	http *http.Client
}

func newShopperClient(cfg config, httpClient *http.Client) *shopperClient {
	return &shopperClient{cfg: cfg, http: httpClient}
}

// runScenario проходит сценарий режима в новой сессии.
func (c *shopperClient) runScenario(ctx context.Context, col *collector) (err error) {
	start := time.Now()
	sid := uuid.NewString()
	defer func() {
		status := http.StatusOK
		if err != nil {
			status = scenarioStatus(err)
		}
		col.record(scenarioName, time.Since(start), status)
	}()

	if err := c.call(ctx, col, "GetCatalog", http.MethodGet, "/v1/catalog", "", nil, nil); err != nil {
		return err
	}
	if c.cfg.mode == modeBrowse {
		return nil
	}

	item := map[string]interface{}{"productId": c.cfg.productID, "quantity": c.cfg.quantity}
	if err := c.call(ctx, col, "AddItem", http.MethodPost, "/v1/cart/items", sid, item, nil); err != nil {
		return err
	}
	if err := c.call(ctx, col, "GetCart", http.MethodGet, "/v1/cart", sid, nil, nil); err != nil {
		return err
	}
	if c.cfg.mode == modeCart {
		return nil
	}

	store := map[string]string{"storeId": c.cfg.storeID}
	if err := c.call(ctx, col, "SelectStore", http.MethodPut, "/v1/cart/store", sid, store, nil); err != nil {
		return err
	}
	form := map[string]interface{}{
		"form": map[string]interface{}{
			"deliveryType":  "pickup",
			"customerInfo":  map[string]string{"name": "Carga", "phone": "1100000000"},
			"paymentMethod": c.cfg.payment,
		},
	}
	if err := c.call(ctx, col, "UpdateForm", http.MethodPatch, "/v1/checkout/form", sid, form, nil); err != nil {
		return err
	}

	var outcome struct {
		OrderID string `json:"orderId"`
	}
	if err := c.call(ctx, col, "Submit", http.MethodPost, "/v1/checkout/submit", sid, nil, &outcome); err != nil {
		return err
	}
	if outcome.OrderID == "" {
		return errors.New("submit returned empty order id")
	}
	return nil
}

// statusError описывает ответ API с кодом вне 2xx.
type statusError struct {
	endpoint string
	status   int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.endpoint, e.status, e.body)
}

func scenarioStatus(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return http.StatusInternalServerError
}

func (c *shopperClient) call(ctx context.Context, col *collector, name, method, path, sid string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", name, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.addr+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.Header.Set(sessionHeader, sid)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		col.record(name, time.Since(start), 0)
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()
	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	col.record(name, time.Since(start), resp.StatusCode)

	if !isSuccess(resp.StatusCode) {
		return &statusError{endpoint: name, status: resp.StatusCode, body: strings.TrimSpace(string(payload))}
	}
	if readErr != nil {
		return fmt.Errorf("%s: read body: %w", name, readErr)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%s: decode body: %w", name, err)
		}
	}
	return nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Storefront load test summary")
	_, _ = fmt.Fprintf(w, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg),
		result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	lat := result.ScenarioLatencyMs
	_, _ = fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		lat.Min, lat.Avg, lat.P50, lat.P95, lat.P99, lat.Max)

	names := make([]string, 0, len(result.Endpoints))
	for name := range result.Endpoints {
		if name != scenarioName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Endpoints[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно по отсортированной выборке.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
