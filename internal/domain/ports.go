package domain

import (
	"context"
	"time"
)

// KVStore — постоянное key-value хранилище, привязанное к одной сессии браузера.
type KVStore interface {
	// Get возвращает значение или ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete удаляет ключ; отсутствие ключа не ошибка.
	Delete(ctx context.Context, key string) error
}

// KVStoreFactory создаёт хранилище для конкретной сессии.
type KVStoreFactory interface {
	ForSession(sessionID string) KVStore
}

// CatalogProvider отдаёт товары, комбо и точки продаж.
type CatalogProvider interface {
	LoadCatalog(ctx context.Context) (Catalog, error)
}

// OrderBackend создаёт заказы и отдаёт их текущий статус.
type OrderBackend interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	// GetOrder возвращает заказ или ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (Order, error)
}

// OrderStatusReader — часть OrderBackend, нужная для сверки отложенной оплаты.
type OrderStatusReader interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
}

// PaymentPreferenceService выдаёт ссылку на внешнюю страницу оплаты.
type PaymentPreferenceService interface {
	CreatePreference(ctx context.Context, orderID string) (PaymentPreference, error)
}

// PrintJobSink принимает задания на печать чеков.
type PrintJobSink interface {
	Submit(ctx context.Context, job PrintJob) error
}

// Clock позволяет подменять время в тестах.
type Clock func() time.Time
