// Package taxonomy caches the allowed product categories and product types
// and snaps free-text values onto them.
package taxonomy

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/normalize"
)

// Source loads the taxonomy lists. store.Store satisfies it.
type Source interface {
	ListCategories(ctx context.Context) ([]string, error)
	ListProductTypes(ctx context.Context) ([]string, error)
}

// Cache holds the taxonomy lists in memory. Entries expire after ttl; a ttl
// of zero keeps them until Invalidate is called.
type Cache struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu           sync.RWMutex
	categories   []string
	productTypes []string
	loadedAt     time.Time
	loaded       bool
}

// NewCache returns an empty cache over src.
func NewCache(src Source, ttl time.Duration) *Cache {
	return &Cache{src: src, ttl: ttl, now: time.Now}
}

// Categories returns the category list, loading it if missing or expired.
func (c *Cache) Categories(ctx context.Context) ([]string, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories, nil
}

// ProductTypes returns the product-type list, loading it if missing or expired.
func (c *Cache) ProductTypes(ctx context.Context) ([]string, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.productTypes, nil
}

// Refresh reloads both lists from the source. On failure the previous lists
// are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	cats, err := c.src.ListCategories(ctx)
	if err != nil {
		return eris.Wrap(err, "taxonomy: load categories")
	}
	types, err := c.src.ListProductTypes(ctx)
	if err != nil {
		return eris.Wrap(err, "taxonomy: load product types")
	}

	c.mu.Lock()
	c.categories = cats
	c.productTypes = types
	c.loadedAt = c.now()
	c.loaded = true
	c.mu.Unlock()

	zap.L().Debug("taxonomy: refreshed",
		zap.Int("categories", len(cats)),
		zap.Int("product_types", len(types)),
	)
	return nil
}

// Invalidate forces the next read to reload from the source.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

func (c *Cache) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	fresh := c.loaded && (c.ttl <= 0 || c.now().Sub(c.loadedAt) < c.ttl)
	c.mu.RUnlock()
	if fresh {
		return nil
	}
	return c.Refresh(ctx)
}

// Validate returns value when it is one of options, the matching option when
// it differs only in case or spacing, otherwise the first option. With no
// options the value is returned unchanged.
func Validate(value string, options []string) string {
	if len(options) == 0 {
		return value
	}
	for _, opt := range options {
		if opt == value {
			return value
		}
	}
	key := normalize.NormalizeText(value)
	for _, opt := range options {
		if normalize.NormalizeText(opt) == key {
			return opt
		}
	}
	return options[0]
}
