// Package payment содержит локальную реализацию сервиса платёжных предпочтений.
package payment

import (
	"context"
	"net/url"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultInitPointBase — адрес страницы оплаты, который отдаёт заглушка.
const DefaultInitPointBase = "https://sandbox.mercadopago.local/checkout"

// MockService — конфигурируемая заглушка PaymentPreferenceService для локального запуска и тестов.
type MockService struct {
	mu sync.Mutex

	InitPointBase string
	Err           error

	Calls    int
	OrderIDs []string
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{InitPointBase: DefaultInitPointBase}
}

// CreatePreference возвращает ссылку с id заказа и считает вызовы.
func (m *MockService) CreatePreference(ctx context.Context, orderID string) (domain.PaymentPreference, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaymentPreference{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.OrderIDs = append(m.OrderIDs, orderID)
	if m.Err != nil {
		return domain.PaymentPreference{}, m.Err
	}
	if orderID == "" {
		return domain.PaymentPreference{}, domain.ErrOrderIDRequired
	}
	return domain.PaymentPreference{
		InitPoint: m.InitPointBase + "?pref_id=" + url.QueryEscape(orderID),
	}, nil
}

// SetErr задаёт ошибку для следующих вызовов (nil снимает сбой).
func (m *MockService) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

var _ domain.PaymentPreferenceService = (*MockService)(nil)
