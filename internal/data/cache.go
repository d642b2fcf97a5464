package data

import (
	"strings"
	"sync"
)

// CacheMode defines how playback handles end-of-data
type CacheMode string

const (
	CacheModeExhaust  CacheMode = "exhaust"  // not found at end
	CacheModeRotation CacheMode = "rotation" // wrap to 0
)

// IndexCache tracks replay playback positions per symbol/expiry.
type IndexCache struct {
	mu      sync.RWMutex
	indexes map[string]int
	mode    CacheMode
}

func NewIndexCache(mode CacheMode) *IndexCache {
	return &IndexCache{
		indexes: make(map[string]int),
		mode:    mode,
	}
}

// GetAndAdvance returns the current index and advances it
// Returns (index, isExhausted)
func (c *IndexCache) GetAndAdvance(key string, dataLength int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dataLength <= 0 {
		return 0, true
	}

	idx := c.indexes[key]

	if c.mode == CacheModeExhaust && idx >= dataLength {
		return idx, true
	}

	currentIdx := idx
	if c.mode == CacheModeRotation {
		currentIdx = idx % dataLength
		c.indexes[key] = (currentIdx + 1) % dataLength
	} else {
		c.indexes[key] = idx + 1
	}

	return currentIdx, false
}

// Reset clears positions whose key starts with prefix; an empty prefix
// clears everything. It returns how many positions were dropped.
func (c *IndexCache) Reset(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		count := len(c.indexes)
		c.indexes = make(map[string]int)
		return count
	}

	count := 0
	for k := range c.indexes {
		if strings.HasPrefix(k, prefix) {
			delete(c.indexes, k)
			count++
		}
	}
	return count
}

// GetIndex returns current index without advancing
func (c *IndexCache) GetIndex(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes[key]
}
