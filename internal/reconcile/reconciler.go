// Package reconcile решает при входе в checkout, можно ли доверять сохранённому
// снимку отложенной оплаты или его нужно выбросить.
package reconcile

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Source указывает, откуда брать суммы для отображения.
type Source string

const (
	SourceLive     Source = "live"
	SourceSnapshot Source = "snapshot"
)

// Action фиксирует, что сверка сделала со снимком.
type Action string

const (
	ActionNone                Action = "none"
	ActionDiscardedInvalid    Action = "discarded_invalid"
	ActionDiscardedResolved   Action = "discarded_resolved"
	ActionDiscardedFetchError Action = "discarded_fetch_error"
	// ActionKept — заказ ещё ждёт оплаты; снимок сохранён.
	ActionKept Action = "kept"
)

// Result возвращается из Reconcile.
type Result struct {
	Source   Source
	Action   Action
	Snapshot *domain.PendingPaymentSnapshot
	// Status — статус заказа, если его удалось получить.
	Status domain.OrderStatus
}

// DisplayTotals возвращает суммы для экрана: снимок, если он источник, иначе живые.
func (r Result) DisplayTotals(live domain.Totals) domain.Totals {
	if r.Source == SourceSnapshot && r.Snapshot != nil {
		return r.Snapshot.Totals()
	}
	return live
}

// PendingStore хранит снимок отложенной оплаты.
type PendingStore interface {
	LoadPendingPayment(ctx context.Context) (domain.PendingPaymentSnapshot, bool, error)
	DeletePendingPayment(ctx context.Context) error
}

// Reconciler сверяет снимок с актуальным статусом заказа.
type Reconciler struct {
	pending PendingStore
	orders  domain.OrderStatusReader
	group   *singleflight.Group
	logger  *log.Entry
	metrics *metrics.CheckoutMetrics
}

// NewReconciler создаёт сверку. group можно разделять между сессиями,
// чтобы параллельные запросы статуса одного заказа схлопывались в один.
func NewReconciler(pending PendingStore, orders domain.OrderStatusReader, group *singleflight.Group, m *metrics.CheckoutMetrics, logger *log.Entry) *Reconciler {
	if logger == nil {
		logger = log.New().WithField("component", "reconcile")
	}
	if group == nil {
		group = &singleflight.Group{}
	}
	return &Reconciler{
		pending: pending,
		orders:  orders,
		group:   group,
		logger:  logger,
		metrics: m,
	}
}

// Reconcile выполняет сверку. Ошибок не возвращает: любой сбой приводит к удалению
// снимка и показу живых сумм.
func (r *Reconciler) Reconcile(ctx context.Context, liveCartEmpty bool) Result {
	snapshot, ok, err := r.pending.LoadPendingPayment(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotCorrupt) {
			r.logger.WithError(err).Warn("pending payment snapshot unreadable")
			return r.finish(Result{Source: SourceLive, Action: ActionNone})
		}
		r.logger.WithError(err).Warn("pending payment snapshot corrupt, discarding")
		r.discard(ctx, "")
		return r.finish(Result{Source: SourceLive, Action: ActionDiscardedInvalid})
	}
	if !ok {
		return r.finish(Result{Source: SourceLive, Action: ActionNone})
	}

	if snapshot.OrderID == "" {
		r.discard(ctx, "")
		return r.finish(Result{Source: SourceLive, Action: ActionDiscardedInvalid})
	}

	order, err := r.fetch(ctx, snapshot.OrderID)
	if err != nil {
		r.logger.WithError(err).WithField("order_id", snapshot.OrderID).Warn("order status check failed, discarding pending snapshot")
		r.discard(ctx, snapshot.OrderID)
		return r.finish(Result{Source: SourceLive, Action: ActionDiscardedFetchError})
	}

	if !order.Status.AwaitingPayment() {
		r.discard(ctx, snapshot.OrderID)
		return r.finish(Result{Source: SourceLive, Action: ActionDiscardedResolved, Status: order.Status})
	}

	result := Result{Source: SourceLive, Action: ActionKept, Status: order.Status}
	if liveCartEmpty {
		result.Source = SourceSnapshot
		result.Snapshot = &snapshot
	}
	return r.finish(result)
}

func (r *Reconciler) fetch(ctx context.Context, orderID string) (domain.Order, error) {
	v, err, shared := r.group.Do(orderID, func() (interface{}, error) {
		return r.orders.GetOrder(ctx, orderID)
	})
	if shared {
		r.logger.WithField("order_id", orderID).Debug("order status lookup shared")
	}
	if err != nil {
		return domain.Order{}, err
	}
	return v.(domain.Order), nil
}

func (r *Reconciler) discard(ctx context.Context, orderID string) {
	if err := r.pending.DeletePendingPayment(ctx); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("failed to delete pending payment snapshot")
	}
}

func (r *Reconciler) finish(result Result) Result {
	r.metrics.RecordReconciliation(string(result.Action))
	return result
}
