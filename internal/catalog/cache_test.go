package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// slowProvider держит загрузку, пока не закрыт release.
type slowProvider struct {
	loads   atomic.Int32
	release chan struct{}
	err     error
}

func (p *slowProvider) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	p.loads.Add(1)
	if p.release != nil {
		<-p.release
	}
	if p.err != nil {
		return domain.Catalog{}, p.err
	}
	return memory.DemoCatalog(), nil
}

func TestCache_ServesFreshCopyWithinTTL(t *testing.T) {
	provider := memory.NewCatalogProvider(memory.DemoCatalog())
	cache := NewCache(provider, time.Minute, nil)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := cache.LoadCatalog(ctx)
	require.NoError(t, err)
	_, err = cache.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.Loads())

	now = now.Add(2 * time.Minute)
	_, err = cache.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Loads())

	cache.Invalidate()
	_, err = cache.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, provider.Loads())
}

func TestCache_ConcurrentMissesLoadOnce(t *testing.T) {
	provider := &slowProvider{release: make(chan struct{})}
	cache := NewCache(provider, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.LoadCatalog(context.Background())
			assert.NoError(t, err)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	assert.Equal(t, int32(1), provider.loads.Load())
}

func TestCache_StaleOnError(t *testing.T) {
	provider := &slowProvider{}
	cache := NewCache(provider, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.LoadCatalog(ctx)
	require.NoError(t, err)

	provider.err = errors.New("backend down")
	cache.Invalidate()
	catalog, err := cache.LoadCatalog(ctx)
	require.NoError(t, err, "stale copy is served when refresh fails")
	assert.NotEmpty(t, catalog.Products)

	empty := NewCache(&slowProvider{err: domain.ErrBackendUnavailable}, time.Minute, nil)
	_, err = empty.LoadCatalog(ctx)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestCache_Lookups(t *testing.T) {
	cache := NewCache(memory.NewCatalogProvider(memory.DemoCatalog()), 0, nil)
	ctx := context.Background()

	product, err := cache.Product(ctx, "emp-carne")
	require.NoError(t, err)
	assert.Equal(t, int64(450), product.PriceMinor)
	_, err = cache.Product(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	combo, err := cache.Combo(ctx, "combo-docena")
	require.NoError(t, err)
	assert.Len(t, combo.SelectionRules, 2)
	_, err = cache.Combo(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrComboNotFound)

	store, err := cache.Store(ctx, "store-norte")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), store.MinOrder)
	_, err = cache.Store(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}
