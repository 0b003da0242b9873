package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileCache keeps every entry in one JSON object on disk. The whole file is
// rewritten through a temp file and rename on each Put.
type FileCache struct {
	path string

	mu sync.Mutex
	m  map[string]string
}

// NewFileCache loads path if it exists. A missing or unreadable file starts
// an empty cache.
func NewFileCache(path string) *FileCache {
	c := &FileCache{path: path, m: make(map[string]string)}
	if b, err := os.ReadFile(path); err == nil {
		var m map[string]string
		if json.Unmarshal(b, &m) == nil && m != nil {
			c.m = m
		}
	}
	return c
}

func (c *FileCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[fingerprint]
	return v, ok, nil
}

func (c *FileCache) Put(ctx context.Context, fingerprint string, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.m[fingerprint]; ok {
		return nil
	}
	c.m[fingerprint] = response
	return c.flushLocked()
}

func (c *FileCache) flushLocked() error {
	b, err := json.MarshalIndent(c.m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".judge_cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
