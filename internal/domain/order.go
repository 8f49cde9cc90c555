package domain

import "time"

// OrderStatus — статус заказа на стороне бэкенда.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusPreparing       OrderStatus = "PREPARING"
	OrderStatusReady           OrderStatus = "READY"
	OrderStatusInDelivery      OrderStatus = "IN_DELIVERY"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// Valid проверяет, что статус относится к известным значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusAwaitingPayment, OrderStatusPaid,
		OrderStatusPreparing, OrderStatusReady, OrderStatusInDelivery,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// AwaitingPayment сообщает, что оплата по заказу ещё не получена.
// Любой другой статус (включая неизвестные) считается разрешённым.
func (s OrderStatus) AwaitingPayment() bool {
	return s == OrderStatusCreated || s == OrderStatusAwaitingPayment
}

// PaymentMethod — способ оплаты в терминах бэкенда.
type PaymentMethod string

const (
	PaymentMethodMercadoPago PaymentMethod = "MERCADO_PAGO"
	PaymentMethodCash        PaymentMethod = "CASH"
)

// Valid проверяет способ оплаты.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodMercadoPago || m == PaymentMethodCash
}

// Online сообщает, что оплата проходит через внешнюю страницу провайдера.
func (m PaymentMethod) Online() bool {
	return m == PaymentMethodMercadoPago
}

// Fulfillment — способ получения заказа.
type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "DELIVERY"
	FulfillmentPickup   Fulfillment = "PICKUP"
)

// OrderItem — плоская позиция заказа после раскрытия комбо.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice *int64 `json:"unitPrice,omitempty"`
	Quantity  int    `json:"quantity"`
	SKU       string `json:"sku"`
	HasRecipe *bool  `json:"hasRecipe,omitempty"`
}

// DeliveryAddress — адрес доставки в запросе на создание заказа.
type DeliveryAddress struct {
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Apartment    string `json:"apartment"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	Notes        string `json:"notes"`
	References   string `json:"references"`
}

// OrderRequest — тело запроса на создание заказа.
type OrderRequest struct {
	StoreID         string           `json:"storeId"`
	Items           []OrderItem      `json:"items"`
	PaymentMethod   PaymentMethod    `json:"paymentMethod"`
	Fulfillment     Fulfillment      `json:"fulfillment"`
	DeliveryAddress *DeliveryAddress `json:"deliveryAddress"`
	TotalAmount     int64            `json:"totalAmount"`
	// PromoCode передаётся как подсказка: скидку проверяет и применяет бэкенд.
	PromoCode string `json:"promoCode,omitempty"`
}

// DeliveryShort — каноничный адрес, который возвращает бэкенд.
type DeliveryShort struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	Apartment    string `json:"apartment"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	Notes        string `json:"notes"`
}

// Order — созданный заказ в том виде, в каком его вернул бэкенд.
type Order struct {
	ID            string         `json:"id"`
	OrderNumber   string         `json:"orderNumber"`
	StoreID       string         `json:"storeId,omitempty"`
	Items         []OrderItem    `json:"items"`
	TotalAmount   int64          `json:"totalAmount"`
	DeliveryShort *DeliveryShort `json:"deliveryShort,omitempty"`
	PaymentMethod PaymentMethod  `json:"paymentMethod"`
	Fulfillment   Fulfillment    `json:"fulfillment,omitempty"`
	Status        OrderStatus    `json:"status"`
	CreatedAt     time.Time      `json:"createdAt,omitempty"`
}

// PaymentPreference — ответ сервиса платёжных предпочтений.
type PaymentPreference struct {
	InitPoint string `json:"initPoint"`
}
