// Package catalog caches tenant menus in front of the store.
package catalog

import (
	"context"
	"sync"
	"time"

	"resto/internal/models"

	"golang.org/x/sync/singleflight"
)

type Loader interface {
	ListMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
}

type entry struct {
	items    []models.MenuItem
	loadedAt time.Time
}

type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

func New(loader Loader, ttl time.Duration) *Cache {
	return &Cache{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func signature(tenantID string) string {
	return "menu:" + tenantID
}

// Items returns the tenant menu, loading it at most once per signature while
// concurrent callers wait for the same result.
func (c *Cache) Items(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	key := signature(tenantID)
	if items, ok := c.cached(key); ok {
		return items, nil
	}
	value, err, _ := c.group.Do(key, func() (any, error) {
		if items, ok := c.cached(key); ok {
			return items, nil
		}
		items, err := c.loader.ListMenuItems(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{items: items, loadedAt: c.now()}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneItems(value.([]models.MenuItem)), nil
}

// Lookup indexes the requested menu items by id. Missing ids are absent from
// the map.
func (c *Cache) Lookup(ctx context.Context, tenantID string, ids []string) (map[string]models.MenuItem, error) {
	items, err := c.Items(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make(map[string]models.MenuItem, len(ids))
	for _, item := range items {
		if wanted[item.MenuItemID] {
			out[item.MenuItemID] = item
		}
	}
	return out, nil
}

func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, signature(tenantID))
	c.mu.Unlock()
	c.group.Forget(signature(tenantID))
}

func (c *Cache) cached(key string) ([]models.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.loadedAt) >= c.ttl {
		return nil, false
	}
	return cloneItems(e.items), true
}

func cloneItems(items []models.MenuItem) []models.MenuItem {
	out := make([]models.MenuItem, len(items))
	for i, item := range items {
		item.Modifiers = append([]models.MenuModifier(nil), item.Modifiers...)
		out[i] = item
	}
	return out
}
