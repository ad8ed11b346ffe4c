package rates

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tipbot/pkg/tip"
)

type cacheEntry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Cached remembers successful lookups for a fixed TTL. Failures are not cached.
type Cached struct {
	source tip.RateSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCached wraps source with a TTL cache.
func NewCached(source tip.RateSource, ttl time.Duration) *Cached {
	return &Cached{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) CurrentRate(ctx context.Context, base string, quote string) (decimal.Decimal, error) {
	key := base + "/" + quote

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.rate, nil
	}

	rate, err := c.source.CurrentRate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{rate: rate, fetchedAt: c.now()}
	c.mu.Unlock()

	return rate, nil
}
