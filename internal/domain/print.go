package domain

import "time"

// PrintOrigin — источник задания на печать.
type PrintOrigin string

const (
	PrintOriginPublic PrintOrigin = "public"
	PrintOriginAdmin  PrintOrigin = "admin"
)

// PrintStatus — статус задания печати. PENDIENTE ждёт подтверждения оплаты,
// PARA_IMPRIMIR печатается сразу.
type PrintStatus string

const (
	PrintStatusPending PrintStatus = "PENDIENTE"
	PrintStatusToPrint PrintStatus = "PARA_IMPRIMIR"
)

// PrintJob — задание для кухонного/курьерского принтера.
type PrintJob struct {
	DataB64 string      `json:"dataB64"`
	Basic   string      `json:"basic"`
	StoreID string      `json:"storeId"`
	OrderID string      `json:"orderId"`
	Origin  PrintOrigin `json:"origin"`
	Status  PrintStatus `json:"status"`
}

// TicketLine — позиция на чеке.
type TicketLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Ticket — содержимое чека; сериализуется в JSON и кодируется в base64.
type Ticket struct {
	OrderID       string        `json:"orderId"`
	OrderNumber   string        `json:"orderNumber"`
	StoreID       string        `json:"storeId"`
	StoreName     string        `json:"storeName,omitempty"`
	Fulfillment   Fulfillment   `json:"fulfillment"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	ContactName   string        `json:"contactName,omitempty"`
	ContactPhone  string        `json:"contactPhone,omitempty"`
	Address       string        `json:"address,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Lines         []TicketLine  `json:"lines"`
	TotalAmount   int64         `json:"totalAmount"`
	TotalDisplay  string        `json:"totalDisplay"`
	PrintedAt     time.Time     `json:"printedAt"`
}
