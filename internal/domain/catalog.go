package domain

// Product — запись каталога.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price"`
	Category   string `json:"category"`
	Image      string `json:"image,omitempty"`
	SKU        string `json:"sku,omitempty"`
	HasRecipe  bool   `json:"hasRecipe,omitempty"`
}

// SelectionRule требует ровно UnitsRequired единиц из категории CategoryID.
type SelectionRule struct {
	CategoryID    string `json:"categoryId"`
	UnitsRequired int    `json:"unitsRequired"`
}

// Combo — набор товаров по фиксированной цене.
type Combo struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	PriceMinor     int64           `json:"price"`
	Image          string          `json:"image,omitempty"`
	CategoryIDs    []string        `json:"categoryIds"`
	SelectionRules []SelectionRule `json:"selectionRules"`
}

// Store — точка продаж, которая исполняет заказ.
type Store struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	MinOrder     int64  `json:"minOrder"`
	DeliveryTime string `json:"deliveryTime,omitempty"`
}

// Catalog — полный снимок каталога, который отдаёт CatalogProvider.
type Catalog struct {
	Products []Product `json:"products"`
	Combos   []Combo   `json:"combos"`
	Stores   []Store   `json:"stores"`
}
