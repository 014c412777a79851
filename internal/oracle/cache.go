package oracle

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cached wraps a Resolver with a TTL cache and collapses concurrent lookups
// for the same question into one upstream call. Only resolved answers
// (index >= 0) are cached; failures pass straight through so a transient
// outage does not pin a useless reply for the whole TTL.
type Cached struct {
	inner Resolver
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedAnswer
}

type cachedAnswer struct {
	index       int
	explanation string
	expiresAt   time.Time
}

func NewCached(inner Resolver, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedAnswer),
	}
}

func (c *Cached) Resolve(ctx context.Context, question string, options []string) (int, string) {
	key := cacheKey(question, options)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.index, entry.explanation
	}
	c.mu.RUnlock()

	result, _, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		index, explanation := c.inner.Resolve(ctx, question, options)
		entry := cachedAnswer{index: index, explanation: explanation}
		if index >= 0 {
			c.mu.Lock()
			// rnd is guarded by mu; it is not safe for concurrent use.
			entry.expiresAt = now.Add(c.ttlWithJitter())
			c.cache[key] = entry
			c.mu.Unlock()
		}
		return entry, nil
	})

	entry := result.(cachedAnswer)
	return entry.index, entry.explanation
}

func cacheKey(question string, options []string) string {
	return question + "\x00" + strings.Join(options, "\x00")
}

// ttlWithJitter spreads expirations by up to 10% of the TTL.
func (c *Cached) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
