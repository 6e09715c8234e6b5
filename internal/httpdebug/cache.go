package httpdebug

import (
	"sync"

	"github.com/swimd/swimd/internal/swimnode"
)

// Cache is a thread-safe holder for the latest swimnode.Snapshot. The
// event loop is the only writer (via Config.OnTick); the debug HTTP
// server is the reader — this is the only point where membership state
// crosses a goroutine boundary.
type Cache struct {
	mu   sync.RWMutex
	snap swimnode.Snapshot
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Store replaces the cached snapshot.
func (c *Cache) Store(s swimnode.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
}

// Load returns the most recently stored snapshot.
func (c *Cache) Load() swimnode.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
