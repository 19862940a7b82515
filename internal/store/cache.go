package store

import (
	"bytes"
	"fmt"
	"sort"
)

type cacheEntry struct {
	value   []byte
	deleted bool
}

// CacheStore buffers writes over a parent store. Write flushes them in key
// order; dropping the cache discards them. Nested caches give each message
// its own revert scope.
type CacheStore struct {
	parent  KVStore
	pending map[string]cacheEntry
}

func NewCacheStore(parent KVStore) *CacheStore {
	return &CacheStore{parent: parent, pending: make(map[string]cacheEntry)}
}

func (c *CacheStore) Get(key []byte) ([]byte, error) {
	if entry, ok := c.pending[string(key)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return append([]byte(nil), entry.value...), nil
	}
	return c.parent.Get(key)
}

func (c *CacheStore) Set(key, value []byte) error {
	c.pending[string(key)] = cacheEntry{value: append([]byte(nil), value...)}
	return nil
}

func (c *CacheStore) Delete(key []byte) error {
	c.pending[string(key)] = cacheEntry{deleted: true}
	return nil
}

func (c *CacheStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	if err := c.parent.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = append([]byte(nil), value...)
		return true
	}); err != nil {
		return err
	}
	for k, entry := range c.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if entry.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = entry.value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return nil
		}
	}
	return nil
}

// Write applies the buffered changes to the parent and resets the cache.
func (c *CacheStore) Write() error {
	keys := make([]string, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := c.pending[k]
		var err error
		if entry.deleted {
			err = c.parent.Delete([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), entry.value)
		}
		if err != nil {
			return fmt.Errorf("flush cache key %x: %w", k, err)
		}
	}
	c.pending = make(map[string]cacheEntry)
	return nil
}

// Discard drops the buffered changes.
func (c *CacheStore) Discard() {
	c.pending = make(map[string]cacheEntry)
}

// Dirty reports the number of buffered keys.
func (c *CacheStore) Dirty() int {
	return len(c.pending)
}
