// Package cart владеет состоянием корзины одной сессии: мутации, производные суммы
// и синхронное сохранение снимка в KVStore после каждой мутации.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/money"
)

// Ключи KVStore.
const (
	KeyCart           = "cart"
	KeyPendingPayment = "pendingPayment"
)

// Options задаёт параметры Store.
type Options struct {
	Logger    *log.Entry
	Clock     domain.Clock
	FeePolicy FeePolicy
	Orders    domain.OrderBackend
	Metrics   *metrics.CheckoutMetrics
}

// Option настраивает Store.
type Option func(*Options)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		if logger != nil {
			opts.Logger = logger
		}
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

// WithFeePolicy задаёт правило стоимости доставки.
func WithFeePolicy(policy FeePolicy) Option {
	return func(opts *Options) {
		opts.FeePolicy = policy
	}
}

// WithOrderBackend подключает бэкенд заказов для CreateOrder.
func WithOrderBackend(orders domain.OrderBackend) Option {
	return func(opts *Options) {
		opts.Orders = orders
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Store — корзина одной сессии. Безопасна для параллельного использования.
type Store struct {
	mu    sync.RWMutex
	kv    domain.KVStore
	state domain.CartState

	orders  domain.OrderBackend
	policy  FeePolicy
	now     domain.Clock
	logger  *log.Entry
	metrics *metrics.CheckoutMetrics

	lastComboMillis int64
}

// NewStore создаёт корзину и один раз восстанавливает её из ключа "cart".
// Отсутствующий снимок даёт пустую корзину; битый снимок логируется и игнорируется.
func NewStore(ctx context.Context, kv domain.KVStore, options ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("cart: kv store is required")
	}

	opts := Options{
		Logger:    log.New().WithField("component", "cart"),
		Clock:     func() time.Time { return time.Now().UTC() },
		FeePolicy: DefaultFeePolicy(),
	}
	for _, option := range options {
		option(&opts)
	}

	s := &Store{
		kv:      kv,
		state:   domain.CartState{Items: []domain.LineItem{}},
		orders:  opts.Orders,
		policy:  opts.FeePolicy,
		now:     opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, KeyCart)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("load cart snapshot: %w", err)
	}

	var saved domain.CartState
	if err := json.Unmarshal(raw, &saved); err != nil {
		s.logger.WithError(err).Warn("cart snapshot is corrupt, starting with empty cart")
		return nil
	}
	if saved.Items == nil {
		saved.Items = []domain.LineItem{}
	}
	s.state = saved
	return nil
}

// State возвращает глубокую копию текущего состояния.
func (s *Store) State() domain.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Totals возвращает производные суммы текущего состояния.
func (s *Store) Totals() domain.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeTotals(s.state, s.policy)
}

// FeePolicy возвращает правило стоимости доставки корзины.
func (s *Store) FeePolicy() FeePolicy {
	return s.policy
}

// mutate применяет fn к копии состояния, сохраняет её и только затем подменяет состояние.
func (s *Store) mutate(ctx context.Context, op string, fn func(state *domain.CartState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist(ctx, next); err != nil {
		s.metrics.RecordPersistFailure()
		s.logger.WithError(err).WithField("op", op).Warn("cart persist failed, mutation discarded")
		return err
	}
	s.state = next
	s.metrics.RecordCartMutation(op)
	return nil
}

func (s *Store) persist(ctx context.Context, state domain.CartState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", domain.ErrPersistFailed, err)
	}
	if err := s.kv.Set(ctx, KeyCart, raw); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistFailed, err)
	}
	return nil
}

// AddItem добавляет товар в корзину.
// Комбо всегда добавляется новой строкой с количеством 1 и уникальным id.
// Обычный товар сливается со строкой с тем же id и опциями либо добавляется в конец.
func (s *Store) AddItem(ctx context.Context, product domain.CartProduct, quantity int, customizations domain.Customizations, isCombo bool) (domain.LineItem, error) {
	if strings.TrimSpace(product.ID) == "" {
		return domain.LineItem{}, domain.ErrProductRequired
	}
	if product.PriceMinor < 0 {
		return domain.LineItem{}, domain.ErrItemPriceInvalid
	}
	if !isCombo && !money.ValidQuantity(quantity) {
		return domain.LineItem{}, domain.ErrInvalidQuantity
	}

	var added domain.LineItem
	op := "add_item"
	if isCombo {
		op = "add_combo"
	}
	err := s.mutate(ctx, op, func(state *domain.CartState) error {
		now := s.now()
		if isCombo {
			added = s.newComboLine(state, product, now)
			state.Items = append(state.Items, added)
			return nil
		}

		idx := slices.IndexFunc(state.Items, func(item domain.LineItem) bool {
			return !item.IsCombo && item.SameLine(product.ID, customizations)
		})
		if idx >= 0 {
			state.Items[idx].Quantity += quantity
			added = state.Items[idx].Clone()
			return nil
		}

		added = domain.LineItem{
			ID:             product.ID,
			Name:           product.Name,
			PriceMinor:     product.PriceMinor,
			Image:          product.Image,
			Category:       product.Category,
			SKU:            product.SKU,
			Quantity:       quantity,
			Customizations: customizations.Clone(),
			AddedAt:        now,
		}
		state.Items = append(state.Items, added)
		added = added.Clone()
		return nil
	})
	if err != nil {
		return domain.LineItem{}, err
	}
	return added, nil
}

// newComboLine строит строку комбо с id вида combo-<comboId>-<unixMillis>.
// Миллисекунды монотонно растут внутри Store, а коллизии с уже лежащими строками пропускаются.
func (s *Store) newComboLine(state *domain.CartState, product domain.CartProduct, now time.Time) domain.LineItem {
	comboID := product.ComboID
	if comboID == "" {
		comboID = product.ID
	}

	millis := now.UnixMilli()
	if millis <= s.lastComboMillis {
		millis = s.lastComboMillis + 1
	}
	id := fmt.Sprintf("combo-%s-%d", comboID, millis)
	for slices.ContainsFunc(state.Items, func(item domain.LineItem) bool { return item.ID == id }) {
		millis++
		id = fmt.Sprintf("combo-%s-%d", comboID, millis)
	}
	s.lastComboMillis = millis

	return domain.LineItem{
		ID:             id,
		Name:           product.Name,
		PriceMinor:     product.PriceMinor,
		Image:          product.Image,
		Category:       product.Category,
		SKU:            product.SKU,
		Quantity:       1,
		Customizations: domain.Customizations{},
		IsCombo:        true,
		ComboID:        comboID,
		ComboDetails:   slices.Clone(product.ComboDetails),
		AddedAt:        now,
	}
}

// RemoveItem удаляет строку. Комбо ищется по id, обычный товар по id и опциям.
func (s *Store) RemoveItem(ctx context.Context, itemID string, customizations domain.Customizations) error {
	return s.mutate(ctx, "remove_item", func(state *domain.CartState) error {
		idx := findLine(state.Items, itemID, customizations)
		if idx < 0 {
			return domain.ErrLineNotFound
		}
		state.Items = slices.Delete(state.Items, idx, idx+1)
		return nil
	})
}

// UpdateQuantity выставляет количество; quantity <= 0 удаляет строку.
// Количество комбо всегда 1 и не меняется.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, customizations domain.Customizations, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID, customizations)
	}
	return s.mutate(ctx, "update_quantity", func(state *domain.CartState) error {
		idx := findLine(state.Items, itemID, customizations)
		if idx < 0 {
			return domain.ErrLineNotFound
		}
		if state.Items[idx].IsCombo {
			return nil
		}
		state.Items[idx].Quantity = quantity
		return nil
	})
}

func findLine(items []domain.LineItem, itemID string, customizations domain.Customizations) int {
	return slices.IndexFunc(items, func(item domain.LineItem) bool {
		return item.SameLine(itemID, customizations)
	})
}

// ClearCart очищает позиции и промокод и удаляет снимок отложенной оплаты.
func (s *Store) ClearCart(ctx context.Context) error {
	if err := s.DeletePendingPayment(ctx); err != nil {
		return err
	}
	return s.mutate(ctx, "clear", func(state *domain.CartState) error {
		state.Items = []domain.LineItem{}
		state.PromoCode = nil
		return nil
	})
}

// ApplyPromoCode сохраняет код в верхнем регистре как непроверенную подсказку.
// Скидку определяет бэкенд при создании заказа.
func (s *Store) ApplyPromoCode(ctx context.Context, code string) (domain.PromoCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return domain.PromoCode{}, domain.ErrPromoCodeRequired
	}
	promo := domain.PromoCode{Code: normalized}
	err := s.mutate(ctx, "apply_promo", func(state *domain.CartState) error {
		state.PromoCode = &promo
		return nil
	})
	if err != nil {
		return domain.PromoCode{}, err
	}
	return promo, nil
}

// RemovePromoCode снимает промокод.
func (s *Store) RemovePromoCode(ctx context.Context) error {
	return s.mutate(ctx, "remove_promo", func(state *domain.CartState) error {
		state.PromoCode = nil
		return nil
	})
}

// UpdateStore выбирает точку продаж; nil снимает выбор.
func (s *Store) UpdateStore(ctx context.Context, store *domain.Store) error {
	return s.mutate(ctx, "update_store", func(state *domain.CartState) error {
		if store == nil {
			state.SelectedStore = nil
			return nil
		}
		selected := *store
		state.SelectedStore = &selected
		return nil
	})
}

// UpdateDeliveryInfo задаёт зону доставки; используется только для расчёта тарифа.
func (s *Store) UpdateDeliveryInfo(ctx context.Context, info *domain.DeliveryInfo) error {
	return s.mutate(ctx, "update_delivery", func(state *domain.CartState) error {
		if info == nil {
			state.DeliveryInfo = nil
			return nil
		}
		delivery := *info
		state.DeliveryInfo = &delivery
		return nil
	})
}

// SetOpen сохраняет флаг видимости корзины.
func (s *Store) SetOpen(ctx context.Context, open bool) error {
	return s.mutate(ctx, "set_open", func(state *domain.CartState) error {
		state.IsOpen = open
		return nil
	})
}

// SavePendingPaymentTotals сохраняет текущие суммы перед уходом на страницу оплаты.
func (s *Store) SavePendingPaymentTotals(ctx context.Context, orderID string) (domain.PendingPaymentSnapshot, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.PendingPaymentSnapshot{}, domain.ErrOrderIDRequired
	}

	totals := s.Totals()
	snapshot := domain.PendingPaymentSnapshot{
		OrderID:     orderID,
		Subtotal:    totals.Subtotal,
		Discount:    totals.Discount,
		DeliveryFee: totals.DeliveryFee,
		Total:       totals.Total,
		ItemCount:   totals.ItemCount,
		SavedAt:     s.now(),
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return domain.PendingPaymentSnapshot{}, fmt.Errorf("marshal pending payment: %w", err)
	}
	if err := s.kv.Set(ctx, KeyPendingPayment, raw); err != nil {
		return domain.PendingPaymentSnapshot{}, fmt.Errorf("%w: pending payment: %w", domain.ErrPersistFailed, err)
	}
	s.logger.WithField("order_id", orderID).Debug("pending payment totals saved")
	return snapshot, nil
}

// LoadPendingPayment читает снимок отложенной оплаты. ok=false, если снимка нет.
// Неразбираемый снимок возвращает ErrSnapshotCorrupt.
func (s *Store) LoadPendingPayment(ctx context.Context) (snapshot domain.PendingPaymentSnapshot, ok bool, err error) {
	raw, err := s.kv.Get(ctx, KeyPendingPayment)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.PendingPaymentSnapshot{}, false, nil
		}
		return domain.PendingPaymentSnapshot{}, false, fmt.Errorf("load pending payment: %w", err)
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.PendingPaymentSnapshot{}, true, fmt.Errorf("%w: %v", domain.ErrSnapshotCorrupt, err)
	}
	return snapshot, true, nil
}

// DeletePendingPayment удаляет снимок отложенной оплаты.
func (s *Store) DeletePendingPayment(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyPendingPayment); err != nil {
		return fmt.Errorf("%w: delete pending payment: %w", domain.ErrPersistFailed, err)
	}
	return nil
}

// CreateOrder передаёт заказ в бэкенд и при успехе очищает корзину.
// Ошибка бэкенда возвращается без изменений; повтор остаётся за пользователем.
func (s *Store) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if s.orders == nil {
		return domain.Order{}, errors.New("cart: order backend is not configured")
	}
	order, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.ClearCart(ctx); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("order created but cart clear failed")
	}
	return order, nil
}
