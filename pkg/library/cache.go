package library

import (
	"sync"
	"time"

	"github.com/hollanded/kindred/pkg/model"
)

type cacheEntry struct {
	windows []*model.PatternWindow
	exp     time.Time
}

// candidateCache is an explicitly owned TTL cache for re-derived coarse
// candidate sets. The TTL is injected and invalidation is explicit - no
// implicit process-wide state.
type candidateCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]cacheEntry
}

func newCandidateCache(ttl time.Duration) *candidateCache {
	return &candidateCache{ttl: ttl, m: make(map[string]cacheEntry)}
}

func (c *candidateCache) get(key string) ([]*model.PatternWindow, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.windows, true
}

func (c *candidateCache) set(key string, windows []*model.PatternWindow) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.m[key] = cacheEntry{windows: windows, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// invalidate drops every cached candidate set, e.g. after a backfill run.
func (c *candidateCache) invalidate() {
	c.mu.Lock()
	c.m = make(map[string]cacheEntry)
	c.mu.Unlock()
}
