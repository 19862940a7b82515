package settlement

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

var (
	buyer = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	thief = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	token = common.HexToAddress("0x00000000000000000000000000000000000000d0")
)

func snapshot(t *testing.T, kv *store.MemStore) map[string]string {
	t.Helper()
	out := make(map[string]string)
	require.NoError(t, kv.Iterate(nil, func(k, v []byte) bool {
		out[string(k)] = string(v)
		return true
	}))
	return out
}

func TestSingleFlight(t *testing.T) {
	kv := store.NewMemStore()
	lock := Open(kv, 0)

	id, err := lock.Begin(buyer, model.TokenAsset(token), "swap", big.NewInt(10), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	before := snapshot(t, kv)
	_, err = lock.Begin(thief, model.NativeAsset("uluna"), "swap", nil, 101)
	require.True(t, errors.Is(err, model.ErrLocked))
	require.Equal(t, before, snapshot(t, kv), "failed begin must not write")

	_, err = lock.Complete(id + 1)
	require.ErrorIs(t, err, model.ErrInvalidContinuation)
	require.Equal(t, before, snapshot(t, kv))

	p, err := lock.Complete(id)
	require.NoError(t, err)
	require.Equal(t, buyer, p.Actor)
	require.True(t, p.Asset.Equal(model.TokenAsset(token)))
	require.Equal(t, int64(10), p.BalanceBefore.Int64())

	after := snapshot(t, kv)
	_, err = lock.Complete(id)
	require.ErrorIs(t, err, model.ErrInvalidContinuation)
	require.ErrorIs(t, err, model.ErrAlreadyUnlocked)
	require.Equal(t, after, snapshot(t, kv))

	next, err := lock.Begin(thief, model.NativeAsset("uluna"), "swap", nil, 102)
	require.NoError(t, err)
	require.Equal(t, uint64(2), next)
}

func TestExpiryAllowsTakeover(t *testing.T) {
	kv := store.NewMemStore()
	lock := Open(kv, 60)

	stale, err := lock.Begin(buyer, model.NativeAsset("uluna"), "burn", nil, 1000)
	require.NoError(t, err)

	_, err = lock.Begin(thief, model.NativeAsset("uluna"), "burn", nil, 1059)
	require.ErrorIs(t, err, model.ErrLocked)

	fresh, err := lock.Begin(thief, model.NativeAsset("uluna"), "burn", nil, 1060)
	require.NoError(t, err)

	_, err = lock.Complete(stale)
	require.ErrorIs(t, err, model.ErrInvalidContinuation)

	p, err := lock.Complete(fresh)
	require.NoError(t, err)
	require.Equal(t, thief, p.Actor)
}

func TestRelease(t *testing.T) {
	kv := store.NewMemStore()
	lock := Open(kv, 0)

	_, err := lock.Release()
	require.ErrorIs(t, err, model.ErrAlreadyUnlocked)

	id, err := lock.Begin(buyer, model.NativeAsset("uluna"), "swap", nil, 5)
	require.NoError(t, err)
	p, err := lock.Release()
	require.NoError(t, err)
	require.Equal(t, id, p.CorrelationID)

	_, err = lock.Complete(id)
	require.ErrorIs(t, err, model.ErrAlreadyUnlocked)
}
