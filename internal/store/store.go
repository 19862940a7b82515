package store

import (
	"bytes"
	"sort"
	"sync"
)

// KVStore is the byte-level state every module writes through.
// Get returns nil for a missing key. Iterate visits keys with the given
// prefix in ascending order until fn returns false.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// MemStore is an in-memory KVStore used by tests and ephemeral runs.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (m *MemStore) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = m.data[k]
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if !fn([]byte(k), values[i]) {
			return nil
		}
	}
	return nil
}

// PrefixStore namespaces every key under a fixed prefix.
type PrefixStore struct {
	parent KVStore
	prefix []byte
}

func NewPrefixStore(parent KVStore, prefix []byte) *PrefixStore {
	return &PrefixStore{parent: parent, prefix: append([]byte(nil), prefix...)}
}

func (p *PrefixStore) key(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	return append(out, key...)
}

func (p *PrefixStore) Get(key []byte) ([]byte, error) {
	return p.parent.Get(p.key(key))
}

func (p *PrefixStore) Set(key, value []byte) error {
	return p.parent.Set(p.key(key), value)
}

func (p *PrefixStore) Delete(key []byte) error {
	return p.parent.Delete(p.key(key))
}

func (p *PrefixStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return p.parent.Iterate(p.key(prefix), func(key, value []byte) bool {
		return fn(key[len(p.prefix):], value)
	})
}
