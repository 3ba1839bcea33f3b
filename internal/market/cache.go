package market

import (
	"sync"
	"time"

	"FXPulse/internal/domain/models"
)

// PriceCache holds the latest PriceState per instrument. It is mutated only
// by the ingest goroutine; reads may happen concurrently from handlers and
// the hub. Values are stored by copy, so readers never observe a partially
// updated state.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]models.PriceState
}

// NewPriceCache creates an empty price cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]models.PriceState)}
}

// Update atomically replaces the instrument's price state and returns the
// committed value.
func (c *PriceCache) Update(t models.Tick) models.PriceState {
	ps := models.NewPriceState(t)
	c.mu.Lock()
	c.prices[t.Symbol] = ps
	c.mu.Unlock()
	return ps
}

// Get returns the latest price state for an instrument.
func (c *PriceCache) Get(symbol string) (models.PriceState, bool) {
	c.mu.RLock()
	ps, ok := c.prices[symbol]
	c.mu.RUnlock()
	return ps, ok
}

// Snapshot returns a copy of all known price states, used for
// new-connection bootstrap and REST reads.
func (c *PriceCache) Snapshot() map[string]models.PriceState {
	c.mu.RLock()
	out := make(map[string]models.PriceState, len(c.prices))
	for sym, ps := range c.prices {
		out[sym] = ps
	}
	c.mu.RUnlock()
	return out
}

// Len returns the number of known instruments.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	n := len(c.prices)
	c.mu.RUnlock()
	return n
}

// MarkStaleOlderThan flags entries not updated since cutoff. Stale entries
// are still served; the flag only signals that the feed has gone quiet.
// Returns the number of entries flagged.
func (c *PriceCache) MarkStaleOlderThan(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for sym, ps := range c.prices {
		if !ps.Stale && ps.Timestamp.Before(cutoff) {
			ps.Stale = true
			c.prices[sym] = ps
			n++
		}
	}
	return n
}
