package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderBackend — in-memory реализация OrderBackend для локальной разработки и тестов.
// Ведёт себя как настоящий бэкенд: присваивает id и номер, возвращает каноничный адрес.
type OrderBackend struct {
	mu     sync.RWMutex
	items  map[string]domain.Order
	seq    int
	now    domain.Clock
	failOn error
}

// NewOrderBackend возвращает пустой бэкенд заказов.
func NewOrderBackend() *OrderBackend {
	return &OrderBackend{
		items: make(map[string]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FailCreate заставляет следующие CreateOrder возвращать err (nil снимает сбой).
func (b *OrderBackend) FailCreate(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOn = err
}

// CreateOrder сохраняет заказ. Онлайн-оплата получает статус AWAITING_PAYMENT,
// наличные получают CREATED.
func (b *OrderBackend) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failOn != nil {
		return domain.Order{}, b.failOn
	}

	b.seq++
	status := domain.OrderStatusCreated
	if req.PaymentMethod.Online() {
		status = domain.OrderStatusAwaitingPayment
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		OrderNumber:   fmt.Sprintf("%06d", b.seq),
		StoreID:       req.StoreID,
		Items:         slices.Clone(req.Items),
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		Fulfillment:   req.Fulfillment,
		Status:        status,
		CreatedAt:     b.now(),
	}
	if addr := req.DeliveryAddress; addr != nil {
		order.DeliveryShort = &domain.DeliveryShort{
			Street:       addr.Street,
			Number:       addr.Number,
			Neighborhood: addr.Neighborhood,
			Apartment:    addr.Apartment,
			ContactName:  addr.ContactName,
			ContactPhone: addr.ContactPhone,
			Notes:        addr.Notes,
		}
	}

	b.items[order.ID] = order
	return cloneOrder(order), nil
}

// GetOrder возвращает заказ или ErrOrderNotFound, если его нет.
func (b *OrderBackend) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.items[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// SetStatus меняет статус заказа, имитируя вебхук платёжного провайдера.
func (b *OrderBackend) SetStatus(orderID string, status domain.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown order status %q", status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	b.items[orderID] = order
	return nil
}

// Count возвращает количество созданных заказов.
func (b *OrderBackend) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

func cloneOrder(order domain.Order) domain.Order {
	out := order
	out.Items = slices.Clone(order.Items)
	if order.DeliveryShort != nil {
		short := *order.DeliveryShort
		out.DeliveryShort = &short
	}
	return out
}

var _ domain.OrderBackend = (*OrderBackend)(nil)
