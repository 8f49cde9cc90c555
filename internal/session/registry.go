// Package session держит по одной корзине, машине шагов, отправке и сверке на
// каждую сессию браузера. Сессии создаются лениво и выселяются после простоя;
// состояние корзины при этом остаётся в KVStore.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/submission"
)

// DefaultIdleTTL задаёт, через сколько простоя сессия выгружается из памяти.
const DefaultIdleTTL = 30 * time.Minute

// Deps содержит зависимости, общие для всех сессий.
type Deps struct {
	KV         domain.KVStoreFactory
	Orders     domain.OrderBackend
	Payments   domain.PaymentPreferenceService
	Printer    domain.PrintJobSink
	Events     submission.EventPublisher
	FeePolicy  cart.FeePolicy
	PrintToken string
	Metrics    *metrics.CheckoutMetrics
	Logger     *log.Entry
	IdleTTL    time.Duration
	Clock      domain.Clock
}

// Session хранит состояние одной сессии.
type Session struct {
	ID         string
	Cart       *cart.Store
	Checkout   *checkout.Machine
	Submission *submission.Orchestrator
	Reconciler *reconcile.Reconciler

	mu       sync.Mutex
	lastSeen time.Time
}

// Reconcile сверяет снимок отложенной оплаты при каждом входе в checkout,
// в том числе при возврате после редиректа на оплату.
func (s *Session) Reconcile(ctx context.Context) reconcile.Result {
	return s.Reconciler.Reconcile(ctx, s.Cart.State().IsEmpty())
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// busy сообщает, что у сессии есть незавершённая отправка, которую нельзя терять.
func (s *Session) busy() bool {
	status := s.Submission.Status()
	switch status.State {
	case submission.StateSubmitting, submission.StateOrderCreated,
		submission.StatePrintQueued, submission.StatePaymentRedirectPending:
		return true
	case submission.StateFailed:
		return status.OrderID != ""
	default:
		return false
	}
}

// Registry хранит сессии в памяти и создаёт их по запросу.
type Registry struct {
	deps     Deps
	lookups  *singleflight.Group
	creating singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry создаёт реестр.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = log.New().WithField("component", "session")
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.FeePolicy.FlatFee == 0 && len(deps.FeePolicy.FreeZones) == 0 {
		deps.FeePolicy = cart.DefaultFeePolicy()
	}
	return &Registry{
		deps:     deps,
		lookups:  &singleflight.Group{},
		sessions: make(map[string]*Session),
	}
}

// Get возвращает сессию, создавая и восстанавливая её при первом обращении.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrSessionRequired
	}

	if s := r.lookup(id); s != nil {
		s.touch(r.deps.Clock())
		return s, nil
	}

	v, err, _ := r.creating.Do(id, func() (interface{}, error) {
		if s := r.lookup(id); s != nil {
			return s, nil
		}
		s, err := r.newSession(ctx, id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[id] = s
		active := len(r.sessions)
		r.mu.Unlock()
		r.deps.Metrics.SetActiveSessions(active)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s := v.(*Session)
	s.touch(r.deps.Clock())
	return s, nil
}

func (r *Registry) lookup(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

func (r *Registry) newSession(ctx context.Context, id string) (*Session, error) {
	logger := r.deps.Logger.WithField("session_id", id)

	store, err := cart.NewStore(ctx, r.deps.KV.ForSession(id),
		cart.WithLogger(logger.WithField("component", "cart")),
		cart.WithFeePolicy(r.deps.FeePolicy),
		cart.WithOrderBackend(r.deps.Orders),
		cart.WithMetrics(r.deps.Metrics),
	)
	if err != nil {
		return nil, err
	}

	orchestrator := submission.NewOrchestrator(store, r.deps.Orders, r.deps.Payments, r.deps.Printer,
		submission.WithLogger(logger.WithField("component", "submission")),
		submission.WithMetrics(r.deps.Metrics),
		submission.WithEvents(r.deps.Events),
		submission.WithPrintToken(r.deps.PrintToken),
	)

	return &Session{
		ID:         id,
		Cart:       store,
		Checkout:   checkout.NewMachine(store, r.deps.Metrics, logger.WithField("component", "checkout")),
		Submission: orchestrator,
		Reconciler: reconcile.NewReconciler(store, r.deps.Orders, r.lookups, r.deps.Metrics, logger.WithField("component", "reconcile")),
		lastSeen:   r.deps.Clock(),
	}, nil
}

// Len возвращает число сессий в памяти.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict выгружает сессии, простаивающие дольше IdleTTL. Сессии с
// незавершённой отправкой остаются. Возвращает число выгруженных.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.idleSince()) < r.deps.IdleTTL || s.busy() {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	active := len(r.sessions)
	r.mu.Unlock()

	r.deps.Metrics.SetActiveSessions(active)
	if evicted > 0 {
		r.deps.Logger.WithFields(log.Fields{
			"evicted": evicted,
			"active":  active,
		}).Debug("idle sessions evicted")
	}
	return evicted
}

// Run периодически выселяет простаивающие сессии до отмены ctx.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.deps.IdleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(r.deps.Clock())
		}
	}
}
