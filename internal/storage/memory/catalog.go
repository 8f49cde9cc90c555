package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CatalogProvider отдаёт статичный каталог; используется в dev-режиме и тестах.
type CatalogProvider struct {
	mu      sync.RWMutex
	catalog domain.Catalog
	loads   int
}

// NewCatalogProvider возвращает провайдер с переданным каталогом.
func NewCatalogProvider(catalog domain.Catalog) *CatalogProvider {
	return &CatalogProvider{catalog: catalog}
}

// LoadCatalog возвращает копию каталога.
func (p *CatalogProvider) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++

	out := domain.Catalog{
		Products: slices.Clone(p.catalog.Products),
		Stores:   slices.Clone(p.catalog.Stores),
		Combos:   make([]domain.Combo, 0, len(p.catalog.Combos)),
	}
	for _, c := range p.catalog.Combos {
		c.CategoryIDs = slices.Clone(c.CategoryIDs)
		c.SelectionRules = slices.Clone(c.SelectionRules)
		out.Combos = append(out.Combos, c)
	}
	return out, nil
}

// Loads возвращает число обращений к LoadCatalog.
func (p *CatalogProvider) Loads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loads
}

// DemoCatalog — небольшой каталог для локального запуска без бэкенда.
func DemoCatalog() domain.Catalog {
	return domain.Catalog{
		Products: []domain.Product{
			{ID: "emp-carne", Name: "Empanada de carne", PriceMinor: 450, Category: "empanadas", SKU: "EMP-001", HasRecipe: true},
			{ID: "emp-pollo", Name: "Empanada de pollo", PriceMinor: 450, Category: "empanadas", SKU: "EMP-002", HasRecipe: true},
			{ID: "emp-jyq", Name: "Empanada jamón y queso", PriceMinor: 420, Category: "empanadas", SKU: "EMP-003", HasRecipe: true},
			{ID: "soda-cola", Name: "Gaseosa cola 500ml", PriceMinor: 800, Category: "bebidas", SKU: "BEB-001"},
			{ID: "agua", Name: "Agua mineral 500ml", PriceMinor: 600, Category: "bebidas", SKU: "BEB-002"},
		},
		Combos: []domain.Combo{
			{
				ID:          "combo-docena",
				Name:        "Media docena + bebida",
				PriceMinor:  2900,
				CategoryIDs: []string{"empanadas", "bebidas"},
				SelectionRules: []domain.SelectionRule{
					{CategoryID: "empanadas", UnitsRequired: 6},
					{CategoryID: "bebidas", UnitsRequired: 1},
				},
			},
		},
		Stores: []domain.Store{
			{ID: "store-centro", Name: "Sucursal Centro", Address: "San Martín 120", MinOrder: 3000, DeliveryTime: "30-45 min"},
			{ID: "store-norte", Name: "Sucursal Norte", Address: "Belgrano 2200", MinOrder: 2000, DeliveryTime: "40-60 min"},
		},
	}
}

var _ domain.CatalogProvider = (*CatalogProvider)(nil)
