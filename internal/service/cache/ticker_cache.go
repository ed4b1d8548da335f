package cache

import (
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
)

type entry struct {
	t        models.Ticker
	received time.Time
}

// TickerCache holds the latest streamed ticker per market with its receive time.
type TickerCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewTickerCache() *TickerCache {
	return &TickerCache{m: make(map[string]entry), now: time.Now}
}

// NewTickerCacheWithClock is NewTickerCache with an injected clock.
func NewTickerCacheWithClock(now func() time.Time) *TickerCache {
	c := NewTickerCache()
	if now != nil {
		c.now = now
	}
	return c
}

// Put stores t unless a newer ticker for the same market is already cached.
func (c *TickerCache) Put(t models.Ticker) {
	if t.Market == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[t.Market]; ok && t.Timestamp.Before(cur.t.Timestamp) {
		return
	}
	c.m[t.Market] = entry{t: t, received: c.now()}
}

// Get returns the cached ticker regardless of age.
func (c *TickerCache) Get(market string) (models.Ticker, bool) {
	c.mu.RLock()
	e, ok := c.m[market]
	c.mu.RUnlock()
	return e.t, ok
}

// GetFresh returns the ticker only if it was received within maxAge.
func (c *TickerCache) GetFresh(market string, maxAge time.Duration) (models.Ticker, bool) {
	c.mu.RLock()
	e, ok := c.m[market]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.received) > maxAge {
		return models.Ticker{}, false
	}
	return e.t, true
}

// Markets lists the cached market codes.
func (c *TickerCache) Markets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.m))
	for k := range c.m {
		out = append(out, k)
	}
	return out
}

func (c *TickerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
