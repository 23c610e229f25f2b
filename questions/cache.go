package questions

import (
	"context"
	"sync"

	"whosaidit/models"
)

// Cache holds the active corpus between writes. It is owned by the Supplier and
// refreshed lazily after Invalidate.
type Cache struct {
	mu     sync.Mutex
	store  Store
	loaded bool
	items  []models.Question
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Questions returns a copy of the cached corpus, loading it from the store when stale.
func (c *Cache) Questions(ctx context.Context) ([]models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		items, err := c.store.Active(ctx)
		if err != nil {
			return nil, err
		}
		c.items = items
		c.loaded = true
	}
	return append([]models.Question(nil), c.items...), nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.items = nil
	c.mu.Unlock()
}
