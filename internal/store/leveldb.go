package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is a persistent KVStore backed by LevelDB.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore creates or opens a LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	if path == "" {
		return nil, fmt.Errorf("leveldb path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelStore{db: db}, nil
}

func (l *LevelStore) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

func (l *LevelStore) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelStore) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if !fn(key, value) {
			break
		}
	}
	return iter.Error()
}

func (l *LevelStore) Close() error {
	return l.db.Close()
}
