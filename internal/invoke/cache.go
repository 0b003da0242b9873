package invoke

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Fingerprint is the cache key for a (model, prompt) pair.
func Fingerprint(model string, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\n" + prompt))
	return hex.EncodeToString(sum[:])
}

// Cache stores raw judge responses by fingerprint. Put must be durable
// before it returns.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (string, bool, error)
	Put(ctx context.Context, fingerprint string, response string) error
}

type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]string)}
}

func (c *MemoryCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[fingerprint]
	return v, ok, nil
}

func (c *MemoryCache) Put(ctx context.Context, fingerprint string, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[fingerprint]; !ok {
		c.m[fingerprint] = response
	}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
