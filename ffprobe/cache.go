package ffprobe

import (
	"context"
	"sync"

	"clipjoin/models"
)

// Cache memoizes successful probes by path. Failures are not cached, so a
// file that appears later (for example the output of an earlier batch job)
// is probed again.
type Cache struct {
	prober Prober

	mu      sync.Mutex
	entries map[string]models.MediaInfo
}

// NewCache wraps prober with a per-path cache.
func NewCache(prober Prober) *Cache {
	return &Cache{
		prober:  prober,
		entries: make(map[string]models.MediaInfo),
	}
}

// Probe returns the cached metadata for path, probing it on first use.
func (c *Cache) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	c.mu.Lock()
	if info, ok := c.entries[path]; ok {
		c.mu.Unlock()
		return &info, nil
	}
	c.mu.Unlock()

	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = *info
	c.mu.Unlock()

	out := *info
	return &out, nil
}

// Forget drops path from the cache; the executor calls it after overwriting a file.
func (c *Cache) Forget(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}
