package eta

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// Cache is a tiny in-memory TTL cache for estimates keyed by coordinate pair.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	etaMin float64
	distKm float64
	ts     time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Get returns a cached estimate and true if present and not expired.
func (c *Cache) Get(a, b models.Coord) (etaMin, distKm float64, ok bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, found := c.store[k]
	c.mu.RUnlock()
	if !found {
		return 0, 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, 0, false
	}
	return e.etaMin, e.distKm, true
}

// Set stores an estimate in the cache.
func (c *Cache) Set(a, b models.Coord, etaMin, distKm float64) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{etaMin: etaMin, distKm: distKm, ts: time.Now()}
	c.mu.Unlock()
}
