// Package checkout реализует пошаговое оформление заказа: форму, проверки шагов
// и машину переходов с набором пройденных шагов.
package checkout

import (
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Step — шаг оформления.
type Step int

const (
	StepDelivery Step = iota + 1
	StepCustomerInfo
	StepPayment
	StepConfirm
)

// Valid сообщает, что шаг существует.
func (s Step) Valid() bool {
	return s >= StepDelivery && s <= StepConfirm
}

func (s Step) String() string {
	switch s {
	case StepDelivery:
		return "delivery"
	case StepCustomerInfo:
		return "customer_info"
	case StepPayment:
		return "payment"
	case StepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// DeliveryType — способ получения в терминах формы.
type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

// Fulfillment переводит способ получения в enum бэкенда.
func (d DeliveryType) Fulfillment() domain.Fulfillment {
	if d == DeliveryTypePickup {
		return domain.FulfillmentPickup
	}
	return domain.FulfillmentDelivery
}

// PaymentChoice — способ оплаты в терминах формы.
type PaymentChoice string

const (
	PaymentChoiceMercadoPago PaymentChoice = "mercadopago"
	PaymentChoiceCash        PaymentChoice = "cash"
)

// Method переводит выбор в enum бэкенда; ok=false для пустого или неизвестного значения.
func (p PaymentChoice) Method() (domain.PaymentMethod, bool) {
	switch p {
	case PaymentChoiceMercadoPago:
		return domain.PaymentMethodMercadoPago, true
	case PaymentChoiceCash:
		return domain.PaymentMethodCash, true
	default:
		return "", false
	}
}

// CustomerInfo — контакт покупателя.
type CustomerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Address — адрес доставки из формы.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Floor        string `json:"floor"`
	Apartment    string `json:"apartment"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	References   string `json:"references"`
}

// FormState — состояние формы оформления. Не сохраняется между перезагрузками.
type FormState struct {
	DeliveryType  DeliveryType  `json:"deliveryType"`
	CustomerInfo  CustomerInfo  `json:"customerInfo"`
	Address       Address       `json:"address"`
	PaymentMethod PaymentChoice `json:"paymentMethod"`
	Notes         string        `json:"notes"`
}

// DefaultForm возвращает форму нового оформления: доставка, остальное пусто.
func DefaultForm() FormState {
	return FormState{DeliveryType: DeliveryTypeDelivery}
}

// IsDelivery сообщает, что нужен адрес доставки.
func (f FormState) IsDelivery() bool {
	return f.DeliveryType != DeliveryTypePickup
}

// Пути полей для FieldErrors.
const (
	FieldStore         = "store"
	FieldCustomerName  = "customerInfo.name"
	FieldCustomerPhone = "customerInfo.phone"
	FieldStreet        = "address.street"
	FieldNumber        = "address.number"
	FieldPaymentMethod = "paymentMethod"
)

// MsgRequired ставится незаполненному полю.
const MsgRequired = "required"

// FieldErrors — ошибки проверки по путям полей.
type FieldErrors map[string]string

// Empty сообщает, что ошибок нет.
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateStep проверяет один шаг. Функция чистая; шаг Confirm проверок не имеет.
func ValidateStep(step Step, form FormState, cart domain.CartState) FieldErrors {
	errs := FieldErrors{}

	switch step {
	case StepDelivery:
		if cart.SelectedStore == nil {
			errs[FieldStore] = MsgRequired
		}
	case StepCustomerInfo:
		if blank(form.CustomerInfo.Name) {
			errs[FieldCustomerName] = MsgRequired
		}
		if blank(form.CustomerInfo.Phone) {
			errs[FieldCustomerPhone] = MsgRequired
		}
		if form.IsDelivery() {
			if blank(form.Address.Street) {
				errs[FieldStreet] = MsgRequired
			}
			if blank(form.Address.Number) {
				errs[FieldNumber] = MsgRequired
			}
		}
	case StepPayment:
		if _, ok := form.PaymentMethod.Method(); !ok {
			errs[FieldPaymentMethod] = MsgRequired
		}
	}

	return errs
}

// ValidateThrough проверяет все шаги до last включительно и объединяет ошибки.
func ValidateThrough(last Step, form FormState, cart domain.CartState) FieldErrors {
	errs := FieldErrors{}
	for step := StepDelivery; step <= last && step.Valid(); step++ {
		for field, msg := range ValidateStep(step, form, cart) {
			errs[field] = msg
		}
	}
	return errs
}
