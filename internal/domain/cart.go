package domain

import (
	"maps"
	"slices"
	"time"
)

// Customizations — неупорядоченный набор опций позиции (например, "sauce" → "picante").
type Customizations map[string]string

// Equal сравнивает наборы опций структурно; nil и пустой набор равны.
func (c Customizations) Equal(other Customizations) bool {
	return maps.Equal(c, other)
}

// Clone возвращает независимую копию набора.
func (c Customizations) Clone() Customizations {
	if len(c) == 0 {
		return Customizations{}
	}
	return maps.Clone(c)
}

// ComboDetail — один товар внутри комбо.
type ComboDetail struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	SKU       string `json:"sku,omitempty"`
}

// CartProduct — то, что добавляется в корзину: товар каталога или собранное комбо.
type CartProduct struct {
	ID           string
	Name         string
	PriceMinor   int64
	Image        string
	Category     string
	SKU          string
	ComboID      string
	ComboDetails []ComboDetail
}

// ProductFromCatalog превращает запись каталога в CartProduct.
func ProductFromCatalog(p Product) CartProduct {
	return CartProduct{
		ID:         p.ID,
		Name:       p.Name,
		PriceMinor: p.PriceMinor,
		Image:      p.Image,
		Category:   p.Category,
		SKU:        p.SKU,
	}
}

// LineItem — позиция корзины. Цена фиксируется в момент добавления.
type LineItem struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	PriceMinor     int64          `json:"price"`
	Image          string         `json:"image,omitempty"`
	Category       string         `json:"category,omitempty"`
	SKU            string         `json:"sku,omitempty"`
	Quantity       int            `json:"quantity"`
	Customizations Customizations `json:"customizations"`
	IsCombo        bool           `json:"isCombo"`
	ComboID        string         `json:"comboId,omitempty"`
	ComboDetails   []ComboDetail  `json:"comboDetails,omitempty"`
	AddedAt        time.Time      `json:"addedAt"`
}

// SameLine сообщает, является ли позиция той же строкой корзины.
// Комбо сравниваются только по id, обычные товары по id и опциям.
func (l LineItem) SameLine(id string, customizations Customizations) bool {
	if l.ID != id {
		return false
	}
	if l.IsCombo {
		return true
	}
	return l.Customizations.Equal(customizations)
}

// LineTotal возвращает price × quantity.
func (l LineItem) LineTotal() int64 {
	return l.PriceMinor * int64(l.Quantity)
}

// Clone возвращает глубокую копию позиции.
func (l LineItem) Clone() LineItem {
	out := l
	out.Customizations = l.Customizations.Clone()
	out.ComboDetails = slices.Clone(l.ComboDetails)
	return out
}

// DeliveryInfo используется только для расчёта стоимости доставки.
type DeliveryInfo struct {
	Zone          string `json:"zone"`
	EstimatedTime string `json:"estimatedTime,omitempty"`
}

// PromoType — тип скидки промокода.
type PromoType string

const (
	PromoTypePercentage   PromoType = "percentage"
	PromoTypeFixed        PromoType = "fixed"
	PromoTypeFreeShipping PromoType = "free_shipping"
)

// PromoCode — введённый пользователем промокод. До проверки на сервере
// Type пустой и скидка не применяется.
type PromoCode struct {
	Code     string    `json:"code"`
	Discount int64     `json:"discount,omitempty"`
	Type     PromoType `json:"type,omitempty"`
}

// CartState — агрегат корзины, один на сессию.
type CartState struct {
	Items         []LineItem    `json:"items"`
	SelectedStore *Store        `json:"selectedStore"`
	DeliveryInfo  *DeliveryInfo `json:"deliveryInfo"`
	PromoCode     *PromoCode    `json:"promoCode"`
	IsOpen        bool          `json:"isOpen"`
}

// Clone возвращает глубокую копию состояния.
func (s CartState) Clone() CartState {
	out := CartState{IsOpen: s.IsOpen}
	out.Items = make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		out.Items = append(out.Items, item.Clone())
	}
	if s.SelectedStore != nil {
		store := *s.SelectedStore
		out.SelectedStore = &store
	}
	if s.DeliveryInfo != nil {
		info := *s.DeliveryInfo
		out.DeliveryInfo = &info
	}
	if s.PromoCode != nil {
		promo := *s.PromoCode
		out.PromoCode = &promo
	}
	return out
}

// IsEmpty сообщает, что в корзине нет позиций.
func (s CartState) IsEmpty() bool {
	return len(s.Items) == 0
}

// Totals — производные суммы корзины; никогда не хранятся в CartState.
type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	Discount    int64 `json:"discount"`
	DeliveryFee int64 `json:"deliveryFee"`
	Total       int64 `json:"total"`
	ItemCount   int   `json:"itemCount"`
}

// PendingPaymentSnapshot сохраняется перед уходом на внешнюю страницу оплаты.
type PendingPaymentSnapshot struct {
	OrderID     string    `json:"orderId"`
	Subtotal    int64     `json:"subtotal"`
	Discount    int64     `json:"discount"`
	DeliveryFee int64     `json:"deliveryFee"`
	Total       int64     `json:"total"`
	ItemCount   int       `json:"itemCount"`
	SavedAt     time.Time `json:"savedAt"`
}

// Totals возвращает сохранённые суммы снимка.
func (p PendingPaymentSnapshot) Totals() Totals {
	return Totals{
		Subtotal:    p.Subtotal,
		Discount:    p.Discount,
		DeliveryFee: p.DeliveryFee,
		Total:       p.Total,
		ItemCount:   p.ItemCount,
	}
}
