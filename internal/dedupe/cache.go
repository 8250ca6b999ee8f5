// ABOUTME: Thread-safe TTL cache for deduplicating inbound chat events.
// ABOUTME: Bounded by age and count so re-delivered events are dropped without unbounded growth.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an event key is remembered when no TTL is configured.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxSize caps retained keys when no size is configured.
	DefaultMaxSize = 100_000
)

type seenKey struct {
	key    string
	seenAt time.Time
}

// Cache records which event keys have been observed. Keys are usually
// "<transport>:<event id>" so ids from different platforms never collide.
//
// Keys are never refreshed, so the list is ordered by seenAt and both TTL
// expiry and size eviction pop from the front.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	byAge   *list.List // of *seenKey, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its expiry loop. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		index:   make(map[string]*list.Element),
		byAge:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.expireLoop(sweepEvery(ttl))
	return c
}

// sweepEvery picks the expiry loop period: half the TTL, clamped to [1s, 1m].
func sweepEvery(ttl time.Duration) time.Duration {
	d := ttl / 2
	switch {
	case d < time.Second:
		return time.Second
	case d > time.Minute:
		return time.Minute
	}
	return d
}

// Observe reports whether this is the first time key has been seen within the
// retention window, recording it if so. A second Observe of the same key
// returns false until the key expires, is evicted, or is forgotten.
func (c *Cache) Observe(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expireLocked(now)

	if _, dup := c.index[key]; dup {
		return false
	}
	for len(c.index) >= c.maxSize {
		c.removeLocked(c.byAge.Front())
	}
	c.index[key] = c.byAge.PushBack(&seenKey{key: key, seenAt: now})
	return true
}

// Seen reports whether key is currently retained, without recording it.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	return ok && c.now().Sub(el.Value.(*seenKey).seenAt) < c.ttl
}

// Forget removes a key so that a later delivery of the same event is treated
// as new. Used when processing of an observed event failed.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.removeLocked(el)
	}
}

// Len returns the number of keys currently retained.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// expireLocked drops every key older than the TTL. Caller holds mu.
func (c *Cache) expireLocked(now time.Time) {
	for el := c.byAge.Front(); el != nil; el = c.byAge.Front() {
		if now.Sub(el.Value.(*seenKey).seenAt) < c.ttl {
			return
		}
		c.removeLocked(el)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	delete(c.index, el.Value.(*seenKey).key)
	c.byAge.Remove(el)
}

// expireLoop trims expired keys between observations so an idle cache
// releases memory.
func (c *Cache) expireLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.expireLocked(c.now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Close stops the expiry loop. It is safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
