package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События оформления заказа
	EventTypeOrderCreated    EventType = "checkout.order_created"
	EventTypePartialFailure  EventType = "checkout.partial_failure"
	EventTypePaymentRedirect EventType = "checkout.payment_redirect"
	EventTypeCompleted       EventType = "checkout.completed"
)

// Topics для Kafka
const (
	TopicCheckoutEvents  = "storefront.checkout.events"
	TopicPrintJobs       = "storefront.print.jobs"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для заданий, которые не удалось доставить
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// CheckoutEvent представляет событие оформления заказа
type CheckoutEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent создает новое событие оформления
func NewCheckoutEvent(eventType EventType, orderID string, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
