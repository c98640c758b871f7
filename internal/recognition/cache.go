package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/rollcall/internal/store"
)

// Cache holds the known-set snapshot the matcher scans. The snapshot is
// rebuilt lazily on access when it is older than the TTL or was invalidated,
// never by a background timer. Above indexThreshold samples an approximate
// index is built alongside the snapshot.
type Cache struct {
	samples        store.SampleReader
	ttl            time.Duration
	indexThreshold int

	mu       sync.Mutex
	snapshot []store.FaceSample
	index    *approxIndex
	loadedAt time.Time
	dirty    bool

	now func() time.Time
}

// NewCache creates a known-set cache reading from the given sample store.
// indexThreshold of zero disables the approximate index.
func NewCache(samples store.SampleReader, ttl time.Duration, indexThreshold int) *Cache {
	return &Cache{
		samples:        samples,
		ttl:            ttl,
		indexThreshold: indexThreshold,
		dirty:          true,
		now:            time.Now,
	}
}

// Get returns the current snapshot, rebuilding it first when stale or
// invalidated. The returned slice must be treated as read-only.
func (c *Cache) Get(ctx context.Context) ([]store.FaceSample, *approxIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty || c.now().Sub(c.loadedAt) >= c.ttl {
		if err := c.rebuild(ctx); err != nil {
			return nil, nil, err
		}
	}

	return c.snapshot, c.index, nil
}

// rebuild reloads every sample from the store. Caller must hold the lock.
func (c *Cache) rebuild(ctx context.Context) error {
	samples, err := c.samples.AllSamples(ctx)
	if err != nil {
		return fmt.Errorf("failed to load known set: %w", err)
	}

	c.snapshot = samples
	c.index = nil
	if c.indexThreshold > 0 && len(samples) >= c.indexThreshold {
		c.index = buildIndex(samples)
	}
	c.loadedAt = c.now()
	c.dirty = false
	return nil
}

// Invalidate marks the snapshot dirty. The next Get rebuilds it. Callers must
// invalidate after every mutation of the sample store so the matcher never
// scans deleted or missing samples past the TTL.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
}

// Len returns the size of the current snapshot without triggering a rebuild.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshot)
}

// LoadedAt returns when the snapshot was last rebuilt.
func (c *Cache) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}
