// Package catalog кэширует каталог витрины и ищет в нём товары, комбо и точки продаж.
package catalog

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultTTL задаёт время жизни закэшированного каталога.
const DefaultTTL = 5 * time.Minute

// Cache держит последний загруженный каталог. Одновременные промахи
// схлопываются в одну загрузку; при ошибке загрузки отдаётся устаревшая копия.
type Cache struct {
	provider domain.CatalogProvider
	ttl      time.Duration
	now      domain.Clock
	logger   *log.Entry
	group    singleflight.Group

	mu       sync.RWMutex
	catalog  domain.Catalog
	loadedAt time.Time
	loaded   bool
}

// NewCache создаёт кэш поверх провайдера.
func NewCache(provider domain.CatalogProvider, ttl time.Duration, logger *log.Entry) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New().WithField("component", "catalog-cache")
	}
	return &Cache{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock подменяет время (для тестов).
func (c *Cache) SetClock(clock domain.Clock) {
	if clock != nil {
		c.now = clock
	}
}

// LoadCatalog возвращает каталог. Результат нельзя изменять.
func (c *Cache) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := c.fresh(); ok {
		return catalog, nil
	}

	v, err, _ := c.group.Do("catalog", func() (interface{}, error) {
		if catalog, ok := c.fresh(); ok {
			return catalog, nil
		}
		catalog, err := c.provider.LoadCatalog(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.catalog = catalog
		c.loadedAt = c.now()
		c.loaded = true
		c.mu.Unlock()
		c.logger.WithFields(log.Fields{
			"products": len(catalog.Products),
			"combos":   len(catalog.Combos),
			"stores":   len(catalog.Stores),
		}).Debug("catalog loaded")
		return catalog, nil
	})
	if err != nil {
		c.mu.RLock()
		stale, loaded := c.catalog, c.loaded
		c.mu.RUnlock()
		if loaded {
			c.logger.WithError(err).Warn("catalog refresh failed, serving stale copy")
			return stale, nil
		}
		return domain.Catalog{}, err
	}
	return v.(domain.Catalog), nil
}

func (c *Cache) fresh() (domain.Catalog, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.now().Sub(c.loadedAt) >= c.ttl {
		return domain.Catalog{}, false
	}
	return c.catalog, true
}

// Invalidate сбрасывает срок жизни; устаревшая копия остаётся запасной.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadedAt = time.Time{}
}

// Product ищет товар.
func (c *Cache) Product(ctx context.Context, id string) (domain.Product, error) {
	catalog, err := c.LoadCatalog(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range catalog.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

// Combo ищет комбо.
func (c *Cache) Combo(ctx context.Context, id string) (domain.Combo, error) {
	catalog, err := c.LoadCatalog(ctx)
	if err != nil {
		return domain.Combo{}, err
	}
	for _, combo := range catalog.Combos {
		if combo.ID == id {
			return combo, nil
		}
	}
	return domain.Combo{}, domain.ErrComboNotFound
}

// Store ищет точку продаж.
func (c *Cache) Store(ctx context.Context, id string) (domain.Store, error) {
	catalog, err := c.LoadCatalog(ctx)
	if err != nil {
		return domain.Store{}, err
	}
	for _, s := range catalog.Stores {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Store{}, domain.ErrStoreNotFound
}

var _ domain.CatalogProvider = (*Cache)(nil)
