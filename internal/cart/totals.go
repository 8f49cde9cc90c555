package cart

import (
	"slices"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/money"
)

// Стоимость доставки по умолчанию и зона без доплаты.
const (
	DefaultDeliveryFee int64 = 500
	DefaultFreeZone          = "centro"
)

// FeePolicy описывает правило стоимости доставки.
type FeePolicy struct {
	FlatFee   int64
	FreeZones []string
}

// DefaultFeePolicy возвращает фиксированный тариф 500 и бесплатную зону "centro".
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{FlatFee: DefaultDeliveryFee, FreeZones: []string{DefaultFreeZone}}
}

// IsFreeZone сообщает, что доставка в зону бесплатна. Сравнение без учёта регистра.
func (p FeePolicy) IsFreeZone(zone string) bool {
	zone = strings.TrimSpace(zone)
	return slices.ContainsFunc(p.FreeZones, func(z string) bool {
		return strings.EqualFold(z, zone)
	})
}

// DeliveryFee считает стоимость доставки для состояния корзины.
func (p FeePolicy) DeliveryFee(state domain.CartState) int64 {
	if state.DeliveryInfo == nil {
		return 0
	}
	if state.PromoCode != nil && state.PromoCode.Type == domain.PromoTypeFreeShipping {
		return 0
	}
	if p.IsFreeZone(state.DeliveryInfo.Zone) {
		return 0
	}
	return money.NonNegative(p.FlatFee)
}

// Discount считает скидку промокода. Непроверенный промокод (без типа) скидки не даёт.
func Discount(subtotal int64, promo *domain.PromoCode) int64 {
	if promo == nil {
		return 0
	}
	switch promo.Type {
	case domain.PromoTypePercentage:
		return money.NonNegative(money.PercentInt(subtotal, promo.Discount))
	case domain.PromoTypeFixed:
		return money.NonNegative(promo.Discount)
	default:
		return 0
	}
}

// ComputeTotals пересчитывает производные суммы. Total никогда не бывает отрицательным.
func ComputeTotals(state domain.CartState, policy FeePolicy) domain.Totals {
	var totals domain.Totals
	for _, item := range state.Items {
		totals.Subtotal += item.LineTotal()
		totals.ItemCount += item.Quantity
	}
	totals.Discount = Discount(totals.Subtotal, state.PromoCode)
	totals.DeliveryFee = policy.DeliveryFee(state)
	totals.Total = money.NonNegative(totals.Subtotal-totals.Discount) + totals.DeliveryFee
	return totals
}
