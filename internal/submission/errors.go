package submission

import (
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
)

// ValidationError — отправка отклонена до любого сетевого вызова.
type ValidationError struct {
	Fields  checkout.FieldErrors
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("checkout form has %d invalid fields", len(e.Fields))
}

// StageError — сбой до создания заказа. Повторная отправка безопасна.
type StageError struct {
	Stage     Stage
	Retryable bool
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PartialFailureError — заказ уже создан, но последующий шаг не выполнен.
// Повторять нужно через Resume: заказ повторно не создаётся.
type PartialFailureError struct {
	OrderID     string
	OrderNumber string
	Stage       Stage
	Err         error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("order %s created but %s failed: %v", e.OrderID, e.Stage, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
