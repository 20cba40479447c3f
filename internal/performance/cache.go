// Package performance caches per-learner, per-panel performance aggregates
// for a short TTL so gating and prompt building share one store round trip.
package performance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anyuan-chen/manga/internal/manga"
)

// DefaultTTL is how long an aggregate is served before it is recomputed.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

type key struct {
	learnerID string
	panelID   string
}

type entry struct {
	perf      *manga.Performance
	fetchedAt time.Time
}

// Cache memoizes manga.PerformanceReader results keyed by (learner, panel).
// A fresh hit returns the same *Performance pointer that was stored; callers
// must treat it as read-only. New attempts do not invalidate entries, so a
// result may be stale for up to the TTL.
type Cache struct {
	reader manga.PerformanceReader
	ttl    time.Duration
	now    Clock

	mu      sync.Mutex
	entries map[key]entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now Clock) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates a cache in front of reader.
func NewCache(reader manga.PerformanceReader, opts ...Option) *Cache {
	c := &Cache{
		reader:  reader,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[key]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the learner's performance on the panel, from cache when the
// entry is younger than the TTL. Concurrent misses on the same key share one
// store call, which runs detached from any one caller's cancellation so the
// others still get a result. Errors are returned as-is and never cached.
func (c *Cache) Get(ctx context.Context, learnerID, panelID string) (*manga.Performance, error) {
	if err := manga.RequireIDs(learnerID, panelID); err != nil {
		return nil, err
	}

	k := key{learnerID: learnerID, panelID: panelID}
	if perf, ok := c.lookup(k); ok {
		return perf, nil
	}

	v, err, shared := c.group.Do(k.learnerID+"\x00"+k.panelID, func() (any, error) {
		if perf, ok := c.lookup(k); ok {
			return perf, nil
		}
		perf, err := c.reader.FetchPerformance(context.WithoutCancel(ctx), learnerID, panelID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[k] = entry{perf: perf, fetchedAt: c.now()}
		c.mu.Unlock()
		return perf, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("performance fetch shared", "learner_id", learnerID, "panel_id", panelID)
	}
	return v.(*manga.Performance), nil
}

func (c *Cache) lookup(k key) (*manga.Performance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.perf, true
}

// Len returns the number of stored entries, fresh or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
