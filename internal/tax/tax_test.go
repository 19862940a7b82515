package tax

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
	poolA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	routerA = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	poolB   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	routerB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	user    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	other   = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func testRegistry() Registry {
	return Registry{Venues: []Venue{
		{Name: "terraswap", Router: routerA, Pools: []common.Address{poolA}},
		{Name: "terraport", Router: routerB, Pools: []common.Address{poolB}},
	}}
}

func TestClassify(t *testing.T) {
	reg := testRegistry()
	cases := []struct {
		name     string
		from, to common.Address
		want     Operation
	}{
		{"pool to user is buy", poolA, user, OpBuy},
		{"pool to own router is not buy", poolA, routerA, OpTransfer},
		{"pool to other router is buy", poolA, routerB, OpBuy},
		{"user to pool is sell", user, poolA, OpSell},
		{"user to router is sell", user, routerB, OpSell},
		{"router to pool is transfer", routerA, poolB, OpTransfer},
		{"pool to pool is buy", poolA, poolB, OpBuy},
		{"user to user is transfer", user, other, OpTransfer},
		{"self transfer", poolA, poolA, OpTransfer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.from, tc.to, reg)
			require.Equal(t, tc.want, got)
			require.Equal(t, got, Classify(tc.from, tc.to, reg))
		})
	}
}

type exemptSet map[common.Address]bool

func (e exemptSet) IsExempt(addr common.Address) (bool, error) { return e[addr], nil }

func fraction(num, den uint64) *model.Fraction {
	f := model.NewFraction(num, den)
	return &f
}

func TestEngineCompute(t *testing.T) {
	engine := Engine{
		Info:       Info{Sell: fraction(8, 100), Buy: fraction(3, 100)},
		Exemptions: exemptSet{other: true, user: false},
	}

	tax, err := engine.Compute(user, poolA, big.NewInt(100), OpSell)
	require.NoError(t, err)
	require.Equal(t, int64(8), tax.Int64())

	tax, err = engine.Compute(poolA, user, big.NewInt(99), OpBuy)
	require.NoError(t, err)
	require.Equal(t, int64(2), tax.Int64())

	tax, err = engine.Compute(user, other, big.NewInt(100), OpTransfer)
	require.NoError(t, err)
	require.Nil(t, tax)

	tax, err = engine.Compute(other, poolA, big.NewInt(100), OpSell)
	require.NoError(t, err)
	require.Nil(t, tax, "exempt sender never pays")
}

func TestSplitIsExact(t *testing.T) {
	rate := model.NewFraction(7, 93)
	for _, amount := range []int64{0, 1, 13, 100, 12345, 999999937} {
		a := big.NewInt(amount)
		tax := rate.MulFloor(a)
		net, err := Split(a, tax)
		require.NoError(t, err)
		require.Equal(t, 0, new(big.Int).Add(net, tax).Cmp(a))
	}
}

func TestInfoValidate(t *testing.T) {
	require.NoError(t, Info{Sell: fraction(1, 1)}.Validate())
	err := Info{Buy: fraction(2, 1)}.Validate()
	require.True(t, errors.Is(err, model.ErrInvalidFraction))
	err = Info{Transfer: &model.Fraction{Numerator: big.NewInt(1), Denominator: big.NewInt(0)}}.Validate()
	require.True(t, errors.Is(err, model.ErrInvalidFraction))
}

func TestRegistryLifecycle(t *testing.T) {
	kv := store.NewMemStore()
	require.NoError(t, SetVenues(kv, testRegistry().Venues))
	require.ErrorIs(t, SetVenues(kv, nil), model.ErrAlreadyInitialized)

	extra := common.HexToAddress("0x00000000000000000000000000000000000000a3")
	require.NoError(t, AddPools(kv, "terraswap", []common.Address{extra, poolA}))
	require.ErrorIs(t, AddPools(kv, "unknown", []common.Address{extra}), model.ErrNotFound)

	reg, err := LoadRegistry(kv)
	require.NoError(t, err)
	v, ok := reg.Venue("terraswap")
	require.True(t, ok)
	require.Equal(t, []common.Address{poolA, extra}, v.Pools)

	require.NoError(t, RemovePool(kv, "terraswap", poolA))
	require.ErrorIs(t, RemovePool(kv, "terraswap", poolA), model.ErrNotFound)
	reg, err = LoadRegistry(kv)
	require.NoError(t, err)
	require.Equal(t, OpTransfer, Classify(poolA, user, reg))
}

func TestMigrateLegacy(t *testing.T) {
	kv := store.NewMemStore()
	require.NoError(t, SaveLegacyConfig(kv, LegacyConfig{Pair: poolA, Router: routerA}))

	reg, err := MigrateLegacy(kv, Venue{Name: "terraport", Router: routerB, Pools: []common.Address{poolB}})
	require.NoError(t, err)
	require.Len(t, reg.Venues, 2)
	require.Equal(t, "terraswap", reg.Venues[0].Name)
	require.Equal(t, []common.Address{poolA}, reg.Venues[0].Pools)

	stored, err := LoadRegistry(kv)
	require.NoError(t, err)
	require.Equal(t, OpSell, Classify(user, routerB, stored))
	require.Equal(t, OpBuy, Classify(poolA, user, stored))

	_, ok, err := legacyItem.Load(kv)
	require.NoError(t, err)
	require.False(t, ok)
}
