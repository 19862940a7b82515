package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// GetRLP decodes the value at key into out. It reports false when the key is absent.
func GetRLP(kv KVStore, key []byte, out interface{}) (bool, error) {
	raw, err := kv.Get(key)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// PutRLP encodes value and stores it at key.
func PutRLP(kv KVStore, key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return kv.Set(key, encoded)
}

// Item is a single typed slot.
type Item[T any] struct {
	key []byte
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: []byte(key)}
}

func (i Item[T]) Key() []byte { return i.key }

func (i Item[T]) Load(kv KVStore) (T, bool, error) {
	var out T
	ok, err := GetRLP(kv, i.key, &out)
	return out, ok, err
}

// MustLoad fails when the slot was never written.
func (i Item[T]) MustLoad(kv KVStore) (T, error) {
	out, ok, err := i.Load(kv)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("item %q not initialized", i.key)
	}
	return out, nil
}

func (i Item[T]) Exists(kv KVStore) (bool, error) {
	return GetRLP(kv, i.key, nil)
}

func (i Item[T]) Save(kv KVStore, value T) error {
	return PutRLP(kv, i.key, value)
}

func (i Item[T]) Remove(kv KVStore) error {
	return kv.Delete(i.key)
}

// Map is a typed collection of values under a shared key prefix.
type Map[T any] struct {
	prefix []byte
}

func NewMap[T any](prefix string) Map[T] {
	return Map[T]{prefix: []byte(prefix)}
}

func (m Map[T]) key(k []byte) []byte {
	out := make([]byte, 0, len(m.prefix)+len(k))
	out = append(out, m.prefix...)
	return append(out, k...)
}

func (m Map[T]) Load(kv KVStore, k []byte) (T, bool, error) {
	var out T
	ok, err := GetRLP(kv, m.key(k), &out)
	return out, ok, err
}

func (m Map[T]) Has(kv KVStore, k []byte) (bool, error) {
	return GetRLP(kv, m.key(k), nil)
}

func (m Map[T]) Save(kv KVStore, k []byte, value T) error {
	return PutRLP(kv, m.key(k), value)
}

func (m Map[T]) Remove(kv KVStore, k []byte) error {
	return kv.Delete(m.key(k))
}

// Range visits entries in key order, passing the key without the map prefix.
func (m Map[T]) Range(kv KVStore, fn func(k []byte, value T) bool) error {
	var decodeErr error
	err := kv.Iterate(m.prefix, func(key, raw []byte) bool {
		var value T
		if err := rlp.DecodeBytes(raw, &value); err != nil {
			decodeErr = fmt.Errorf("decode %q: %w", key, err)
			return false
		}
		return fn(key[len(m.prefix):], value)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// AddressKey concatenates fixed-width addresses into a composite map key.
func AddressKey(addrs ...common.Address) []byte {
	out := make([]byte, 0, len(addrs)*common.AddressLength)
	for _, a := range addrs {
		out = append(out, a.Bytes()...)
	}
	return out
}

// AddressFromKey reads the address at position idx of a composite key.
func AddressFromKey(key []byte, idx int) (common.Address, error) {
	start := idx * common.AddressLength
	end := start + common.AddressLength
	if len(key) < end {
		return common.Address{}, fmt.Errorf("key %x too short for address %d", key, idx)
	}
	return common.BytesToAddress(key[start:end]), nil
}
