package forum

import (
	"sync"
	"time"
)

// indexCache holds the current Index for at most ttl. Readers never
// block on a rebuild; they see the previous index until it is swapped.
type indexCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	idx       *Index
	checked   time.Time
	watermark time.Time
}

func newIndexCache(ttl time.Duration, now func() time.Time) *indexCache {
	if now == nil {
		now = time.Now
	}
	return &indexCache{ttl: ttl, now: now}
}

func (c *indexCache) get() *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx
}

// fresh reports whether the cached index was built or confirmed less
// than ttl ago.
func (c *indexCache) fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx != nil && c.now().Sub(c.checked) < c.ttl
}

// current reports whether the cached index already reflects records
// modified up to lastModified. A zero lastModified is never current.
func (c *indexCache) current(lastModified time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx != nil && !lastModified.IsZero() && !lastModified.After(c.watermark)
}

// touch restarts the ttl of the cached index.
func (c *indexCache) touch() {
	c.mu.Lock()
	c.checked = c.now()
	c.mu.Unlock()
}

func (c *indexCache) store(idx *Index, watermark time.Time) {
	c.mu.Lock()
	c.idx = idx
	c.checked = c.now()
	c.watermark = watermark
	c.mu.Unlock()
}

// invalidate forces the next refresh to rebuild. The stale index stays
// readable until then.
func (c *indexCache) invalidate() {
	c.mu.Lock()
	c.checked = time.Time{}
	c.watermark = time.Time{}
	c.mu.Unlock()
}
