package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")

	db, err := OpenLevelStore(path)
	require.NoError(t, err)
	cache := NewCacheStore(db)
	require.NoError(t, cache.Set([]byte("b/1"), []byte("one")))
	require.NoError(t, cache.Set([]byte("b/2"), []byte("two")))
	require.NoError(t, cache.Set([]byte("c/1"), []byte("other")))
	require.NoError(t, cache.Write())
	require.NoError(t, db.Delete([]byte("b/2")))
	require.NoError(t, db.Close())

	db, err = OpenLevelStore(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get([]byte("b/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("one"), got)

	missing, err := db.Get([]byte("b/2"))
	require.NoError(t, err)
	require.Nil(t, missing)

	require.Equal(t, []string{"b/1"}, collect(t, db, "b/"))

	_, err = OpenLevelStore("")
	require.Error(t, err)
}
