package submission

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/combo"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/money"
)

// validate повторяет проверки шагов и добавляет проверки корзины.
// Всё проверяется локально, до сетевых вызовов.
func validate(form checkout.FormState, state domain.CartState, totals domain.Totals) error {
	if fields := checkout.ValidateThrough(checkout.StepPayment, form, state); !fields.Empty() {
		return &ValidationError{Fields: fields, Message: "please complete the required fields"}
	}
	if state.IsEmpty() {
		return &ValidationError{Message: "your cart is empty"}
	}
	store := state.SelectedStore
	if totals.Subtotal < store.MinOrder {
		return &ValidationError{
			Message: fmt.Sprintf("the minimum order at %s is %s", store.Name, money.Format(store.MinOrder)),
		}
	}
	return nil
}

// buildRequest собирает тело запроса на создание заказа.
func buildRequest(form checkout.FormState, state domain.CartState, totals domain.Totals) (domain.OrderRequest, combo.Expansion) {
	expansion := combo.Expand(state.Items)
	method, _ := form.PaymentMethod.Method()

	req := domain.OrderRequest{
		StoreID:       state.SelectedStore.ID,
		Items:         expansion.Items,
		PaymentMethod: method,
		Fulfillment:   form.DeliveryType.Fulfillment(),
		TotalAmount:   totals.Total,
	}
	if form.IsDelivery() {
		req.DeliveryAddress = &domain.DeliveryAddress{
			ContactName:  strings.TrimSpace(form.CustomerInfo.Name),
			ContactPhone: strings.TrimSpace(form.CustomerInfo.Phone),
			Street:       strings.TrimSpace(form.Address.Street),
			Number:       strings.TrimSpace(form.Address.Number),
			Apartment:    joinNonEmpty(" ", form.Address.Floor, form.Address.Apartment),
			Neighborhood: strings.TrimSpace(form.Address.Neighborhood),
			City:         strings.TrimSpace(form.Address.City),
			Notes:        strings.TrimSpace(form.Notes),
			References:   strings.TrimSpace(form.Address.References),
		}
	}
	if state.PromoCode != nil {
		req.PromoCode = state.PromoCode.Code
	}
	return req, expansion
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
