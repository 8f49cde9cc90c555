// Package submission отправляет оформленный заказ: проверка, раскрытие комбо,
// создание заказа, задание печати и ветка оплаты. Состояние отправки хранится
// явно, поэтому после частичного сбоя работа продолжается с упавшего шага
// без повторного создания заказа.
package submission

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/money"
)

// State — состояние отправки.
type State string

const (
	StateIdle                   State = "idle"
	StateSubmitting             State = "submitting"
	StateOrderCreated           State = "order_created"
	StatePrintQueued            State = "print_queued"
	StatePaymentRedirectPending State = "payment_redirect_pending"
	StateCompleted              State = "completed"
	StateFailed                 State = "failed"
)

// Stage — шаг, на котором отправка может упасть.
type Stage string

const (
	StageValidation        Stage = "validation"
	StageCreateOrder       Stage = "create_order"
	StagePrintJob          Stage = "print_job"
	StagePaymentPreference Stage = "payment_preference"
	StageSavePending       Stage = "save_pending_payment"
	StageFinalize          Stage = "finalize"
)

// Status — наблюдаемое состояние отправки.
type Status struct {
	State         State                `json:"state"`
	FailedStage   Stage                `json:"failedStage,omitempty"`
	OrderID       string               `json:"orderId,omitempty"`
	OrderNumber   string               `json:"orderNumber,omitempty"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod,omitempty"`
	RedirectURL   string               `json:"redirectUrl,omitempty"`
	LastError     string               `json:"lastError,omitempty"`
}

// Outcome — результат успешной отправки.
// Для онлайн-оплаты заполнен RedirectURL, для наличных TrackingOrderID.
type Outcome struct {
	OrderID         string               `json:"orderId"`
	OrderNumber     string               `json:"orderNumber"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod"`
	RedirectURL     string               `json:"redirectUrl,omitempty"`
	TrackingOrderID string               `json:"trackingOrderId,omitempty"`
	// PrintErr — сбой задания печати в ветке наличных; заказ при этом оформлен.
	PrintErr error `json:"-"`
	Resumed  bool  `json:"resumed"`
}

// CartStore отдаёт отправке корзину и снимок отложенной оплаты.
type CartStore interface {
	State() domain.CartState
	Totals() domain.Totals
	SavePendingPaymentTotals(ctx context.Context, orderID string) (domain.PendingPaymentSnapshot, error)
	DeletePendingPayment(ctx context.Context) error
	ClearCart(ctx context.Context) error
}

// EventPublisher публикует события оформления (kafka.Producer).
type EventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// Options задаёт параметры Orchestrator.
type Options struct {
	Logger     *log.Entry
	Metrics    *metrics.CheckoutMetrics
	Events     EventPublisher
	PrintToken string
	Clock      domain.Clock
}

// Option настраивает Orchestrator.
type Option func(*Options)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		if logger != nil {
			opts.Logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithEvents подключает публикацию событий.
func WithEvents(events EventPublisher) Option {
	return func(opts *Options) {
		opts.Events = events
	}
}

// WithPrintToken задаёт токен принт-станции (поле basic задания печати).
func WithPrintToken(token string) Option {
	return func(opts *Options) {
		opts.PrintToken = token
	}
}

// WithClock подменяет источник времени.
func WithClock(clock domain.Clock) Option {
	return func(opts *Options) {
		if clock != nil {
			opts.Clock = clock
		}
	}
}

// progress хранит незавершённую отправку с уже созданным заказом.
type progress struct {
	order        domain.Order
	storeName    string
	form         checkout.FormState
	printHandled bool
	printErr     error
	redirectURL  string
	pendingSaved bool
}

// Orchestrator отправляет заказы одной сессии.
type Orchestrator struct {
	cart     CartStore
	orders   domain.OrderBackend
	payments domain.PaymentPreferenceService
	printer  domain.PrintJobSink

	events     EventPublisher
	printToken string
	now        domain.Clock
	logger     *log.Entry
	metrics    *metrics.CheckoutMetrics

	busy atomic.Bool

	mu       sync.Mutex
	status   Status
	inflight *progress
}

// NewOrchestrator создаёт оркестратор отправки.
func NewOrchestrator(
	cart CartStore,
	orders domain.OrderBackend,
	payments domain.PaymentPreferenceService,
	printer domain.PrintJobSink,
	options ...Option,
) *Orchestrator {
	opts := Options{
		Logger: log.New().WithField("component", "submission"),
		Clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(&opts)
	}

	return &Orchestrator{
		cart:       cart,
		orders:     orders,
		payments:   payments,
		printer:    printer,
		events:     opts.Events,
		printToken: opts.PrintToken,
		now:        opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		status:     Status{State: StateIdle},
	}
}

// Status возвращает текущее состояние отправки.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Submit отправляет заказ. Пока предыдущая отправка не завершена, возвращает
// ErrSubmissionInProgress. Если заказ уже создан, но последующий шаг упал,
// Submit продолжает с этого шага и CreateOrder не вызывает.
func (o *Orchestrator) Submit(ctx context.Context, form checkout.FormState) (Outcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Outcome{}, domain.ErrSubmissionInProgress
	}
	defer o.busy.Store(false)

	if p := o.pending(); p != nil {
		o.logger.WithField("order_id", p.order.ID).Info("order already created, resuming submission")
		return o.advance(ctx, p, true)
	}

	start := time.Now()
	o.metrics.RecordSubmissionStarted()
	defer func() {
		o.metrics.RecordSubmissionDuration(time.Since(start))
	}()

	state := o.cart.State()
	totals := o.cart.Totals()
	if err := validate(form, state, totals); err != nil {
		o.metrics.RecordSubmissionFailed(string(StageValidation))
		o.setStatus(Status{State: StateFailed, FailedStage: StageValidation, LastError: err.Error()})
		return Outcome{}, err
	}

	req, expansion := buildRequest(form, state, totals)
	for _, lineID := range expansion.EmptyCombos {
		o.metrics.RecordComboGap()
		o.logger.WithField("line_id", lineID).Warn("combo without details sent without item breakdown")
	}

	o.setStatus(Status{State: StateSubmitting})
	stageStart := time.Now()
	order, err := o.orders.CreateOrder(ctx, req)
	o.metrics.RecordStageDuration(string(StageCreateOrder), time.Since(stageStart))
	if err != nil {
		o.metrics.RecordSubmissionFailed(string(StageCreateOrder))
		o.setStatus(Status{State: StateFailed, FailedStage: StageCreateOrder, LastError: err.Error()})
		o.logger.WithError(err).WithField("store_id", req.StoreID).Warn("create order failed")
		return Outcome{}, &StageError{Stage: StageCreateOrder, Retryable: true, Err: err}
	}

	// Бэкенд может не вернуть часть полей запроса.
	if order.StoreID == "" {
		order.StoreID = req.StoreID
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = req.PaymentMethod
	}
	if order.Fulfillment == "" {
		order.Fulfillment = req.Fulfillment
	}

	p := &progress{order: order, storeName: state.SelectedStore.Name, form: form}
	o.mu.Lock()
	o.inflight = p
	o.status = Status{
		State:         StateOrderCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
	}
	o.mu.Unlock()

	o.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"payment_method": order.PaymentMethod,
	}).Info("order created")
	o.publishEvent(kafka.EventTypeOrderCreated, order.ID, map[string]interface{}{
		"order_number":   order.OrderNumber,
		"store_id":       order.StoreID,
		"payment_method": string(order.PaymentMethod),
		"total_amount":   order.TotalAmount,
	})

	return o.advance(ctx, p, false)
}

// Resume продолжает отправку после частичного сбоя с известным id заказа.
func (o *Orchestrator) Resume(ctx context.Context) (Outcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Outcome{}, domain.ErrSubmissionInProgress
	}
	defer o.busy.Store(false)

	p := o.pending()
	if p == nil {
		return Outcome{}, domain.ErrNothingToResume
	}
	o.logger.WithField("order_id", p.order.ID).Info("resuming submission")
	return o.advance(ctx, p, true)
}

func (o *Orchestrator) pending() *progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight
}

func (o *Orchestrator) setStatus(status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = status
}

func (o *Orchestrator) updateStatus(fn func(status *Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.status)
}

// advance выполняет оставшиеся после создания заказа шаги.
func (o *Orchestrator) advance(ctx context.Context, p *progress, resumed bool) (Outcome, error) {
	online := p.order.PaymentMethod.Online()

	if !p.printHandled {
		if err := o.queuePrint(ctx, p); err != nil {
			if online {
				return Outcome{}, o.partial(p, StagePrintJob, err)
			}
			o.metrics.RecordPartialFailure(string(StagePrintJob))
			o.logger.WithError(err).WithField("order_id", p.order.ID).Warn("print job failed for cash order, order stays confirmed")
			p.printErr = err
		} else {
			o.updateStatus(func(s *Status) {
				s.State = StatePrintQueued
				s.FailedStage = ""
				s.LastError = ""
			})
		}
		p.printHandled = true
	}

	if online {
		return o.finishOnline(ctx, p, resumed)
	}
	return o.finishCash(ctx, p, resumed)
}

func (o *Orchestrator) finishOnline(ctx context.Context, p *progress, resumed bool) (Outcome, error) {
	if p.redirectURL == "" {
		stageStart := time.Now()
		pref, err := o.payments.CreatePreference(ctx, p.order.ID)
		o.metrics.RecordStageDuration(string(StagePaymentPreference), time.Since(stageStart))
		if err == nil && strings.TrimSpace(pref.InitPoint) == "" {
			err = errors.New("payment preference without init point")
		}
		if err != nil {
			return Outcome{}, o.partial(p, StagePaymentPreference, err)
		}
		p.redirectURL = pref.InitPoint
		o.updateStatus(func(s *Status) {
			s.State = StatePaymentRedirectPending
			s.RedirectURL = pref.InitPoint
			s.FailedStage = ""
			s.LastError = ""
		})
	}

	if !p.pendingSaved {
		if _, err := o.cart.SavePendingPaymentTotals(ctx, p.order.ID); err != nil {
			return Outcome{}, o.partial(p, StageSavePending, err)
		}
		p.pendingSaved = true
	}

	o.publishEvent(kafka.EventTypePaymentRedirect, p.order.ID, map[string]interface{}{
		"redirect_url": p.redirectURL,
	})
	return o.complete(p, Outcome{RedirectURL: p.redirectURL}, resumed), nil
}

func (o *Orchestrator) finishCash(ctx context.Context, p *progress, resumed bool) (Outcome, error) {
	if err := o.cart.DeletePendingPayment(ctx); err != nil {
		return Outcome{}, o.partial(p, StageFinalize, err)
	}
	if err := o.cart.ClearCart(ctx); err != nil {
		return Outcome{}, o.partial(p, StageFinalize, err)
	}
	return o.complete(p, Outcome{TrackingOrderID: p.order.ID, PrintErr: p.printErr}, resumed), nil
}

func (o *Orchestrator) complete(p *progress, outcome Outcome, resumed bool) Outcome {
	outcome.OrderID = p.order.ID
	outcome.OrderNumber = p.order.OrderNumber
	outcome.PaymentMethod = p.order.PaymentMethod
	outcome.Resumed = resumed

	o.mu.Lock()
	o.inflight = nil
	o.status.State = StateCompleted
	o.status.FailedStage = ""
	o.status.LastError = ""
	o.mu.Unlock()

	o.metrics.RecordSubmissionCompleted(string(p.order.PaymentMethod))
	o.logger.WithFields(log.Fields{
		"order_id":       p.order.ID,
		"payment_method": p.order.PaymentMethod,
		"resumed":        resumed,
	}).Info("submission completed")
	o.publishEvent(kafka.EventTypeCompleted, p.order.ID, map[string]interface{}{
		"payment_method": string(p.order.PaymentMethod),
		"print_failed":   p.printErr != nil,
	})
	return outcome
}

func (o *Orchestrator) partial(p *progress, stage Stage, err error) error {
	o.updateStatus(func(s *Status) {
		s.State = StateFailed
		s.FailedStage = stage
		s.LastError = err.Error()
	})
	o.metrics.RecordPartialFailure(string(stage))
	o.logger.WithError(err).WithFields(log.Fields{
		"order_id": p.order.ID,
		"stage":    stage,
	}).Warn("order created but follow-up step failed")
	o.publishEvent(kafka.EventTypePartialFailure, p.order.ID, map[string]interface{}{
		"stage":  string(stage),
		"reason": err.Error(),
	})
	return &PartialFailureError{
		OrderID:     p.order.ID,
		OrderNumber: p.order.OrderNumber,
		Stage:       stage,
		Err:         err,
	}
}

func (o *Orchestrator) queuePrint(ctx context.Context, p *progress) error {
	job, err := o.buildPrintJob(p)
	if err != nil {
		return err
	}
	stageStart := time.Now()
	err = o.printer.Submit(ctx, job)
	o.metrics.RecordStageDuration(string(StagePrintJob), time.Since(stageStart))
	return err
}

// buildPrintJob собирает чек из ответа бэкенда, а не из локальной формы.
// Контакт из формы берётся только для самовывоза, когда адреса в ответе нет.
func (o *Orchestrator) buildPrintJob(p *progress) (domain.PrintJob, error) {
	order := p.order
	ticket := domain.Ticket{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		StoreName:     p.storeName,
		Fulfillment:   order.Fulfillment,
		PaymentMethod: order.PaymentMethod,
		Lines:         make([]domain.TicketLine, 0, len(order.Items)),
		TotalAmount:   order.TotalAmount,
		TotalDisplay:  money.Format(order.TotalAmount),
		PrintedAt:     o.now(),
	}
	for _, item := range order.Items {
		ticket.Lines = append(ticket.Lines, domain.TicketLine{Name: item.Name, Quantity: item.Quantity})
	}
	if ds := order.DeliveryShort; ds != nil {
		ticket.ContactName = ds.ContactName
		ticket.ContactPhone = ds.ContactPhone
		ticket.Address = formatAddress(ds)
		ticket.Notes = ds.Notes
	} else {
		ticket.ContactName = p.form.CustomerInfo.Name
		ticket.ContactPhone = p.form.CustomerInfo.Phone
		ticket.Notes = p.form.Notes
	}

	raw, err := json.Marshal(ticket)
	if err != nil {
		return domain.PrintJob{}, fmt.Errorf("marshal ticket: %w", err)
	}

	status := domain.PrintStatusToPrint
	if order.PaymentMethod.Online() {
		status = domain.PrintStatusPending
	}
	return domain.PrintJob{
		DataB64: base64.StdEncoding.EncodeToString(raw),
		Basic:   o.printToken,
		StoreID: order.StoreID,
		OrderID: order.ID,
		Origin:  domain.PrintOriginPublic,
		Status:  status,
	}, nil
}

func formatAddress(ds *domain.DeliveryShort) string {
	parts := make([]string, 0, 3)
	if street := strings.TrimSpace(ds.Street + " " + ds.Number); street != "" {
		parts = append(parts, street)
	}
	if ds.Apartment != "" {
		parts = append(parts, ds.Apartment)
	}
	if ds.Neighborhood != "" {
		parts = append(parts, ds.Neighborhood)
	}
	return strings.Join(parts, ", ")
}

// publishEvent публикует событие, если producer настроен. Ошибка публикации только логируется.
func (o *Orchestrator) publishEvent(eventType kafka.EventType, orderID string, metadata map[string]interface{}) {
	if o.events == nil {
		return
	}
	event := kafka.NewCheckoutEvent(eventType, orderID, metadata)
	if err := o.events.PublishEvent(kafka.TopicCheckoutEvents, orderID, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id":   orderID,
			"event_type": eventType,
		}).Warn("failed to publish checkout event")
	}
}
