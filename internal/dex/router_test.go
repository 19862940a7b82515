package dex_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/dex"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

var (
	routerOwner = common.HexToAddress("0x0000000000000000000000000000000000000061")
	trader      = common.HexToAddress("0x0000000000000000000000000000000000000062")
	uluna       = model.NativeAsset("uluna")
	uusd        = model.NativeAsset("uusd")
	ukrw        = model.NativeAsset("ukrw")
)

func newRouter(t *testing.T) (*host.App, common.Address) {
	t.Helper()
	app := host.NewApp(store.NewMemStore(), zap.NewNop())
	codes.Register(app, codes.Options{})
	require.NoError(t, app.SetBlock(1, 1_700_000_000))
	raw, err := json.Marshal(dex.RouterInstantiateMsg{Owner: routerOwner})
	require.NoError(t, err)
	router, _, err := app.Instantiate(codes.Router, routerOwner, raw, nil, "router", common.Address{})
	require.NoError(t, err)

	for _, r := range []dex.SetRateMsg{
		{Offer: uusd, Ask: uluna, Rate: model.NewFraction(1, 4)},
		{Offer: uluna, Ask: ukrw, Rate: model.NewFraction(3, 1)},
	} {
		_, err := app.ExecuteJSON(routerOwner, router, "set_rate", r)
		require.NoError(t, err)
	}
	require.NoError(t, app.MintNative(router, model.NewCoin("ukrw", big.NewInt(1_000_000))))
	require.NoError(t, app.MintNative(trader, model.NewCoin("uusd", big.NewInt(1_000))))
	return app, router
}

func TestBuildOperations(t *testing.T) {
	ops, err := dex.BuildOperations(uusd, []model.AssetInfo{uluna}, ukrw)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.True(t, ops[0].AskAssetInfo.Equal(uluna))
	require.True(t, ops[1].OfferAssetInfo.Equal(uluna))
	require.NoError(t, dex.ValidateOperations(ops))

	_, err = dex.BuildOperations(uusd, nil, uusd)
	require.Error(t, err)
	_, err = dex.BuildOperations(uusd, []model.AssetInfo{uluna, uluna}, ukrw)
	require.Error(t, err)

	require.Error(t, dex.ValidateOperations([]dex.SwapOperation{ops[1], ops[0]}))
}

func TestMultiHopSwap(t *testing.T) {
	app, router := newRouter(t)
	ops, err := dex.BuildOperations(uusd, []model.AssetInfo{uluna}, ukrw)
	require.NoError(t, err)

	var sim dex.SimulateSwapOperationsResponse
	require.NoError(t, app.QueryJSON(router, "simulate_swap_operations", dex.SimulateSwapOperations{OfferAmount: big.NewInt(1_000), Operations: ops}, &sim))
	require.Equal(t, int64(750), sim.Amount.Int64())

	_, err = app.ExecuteJSON(trader, router, "execute_swap_operations",
		dex.ExecuteSwapOperations{Operations: ops, MinimumReceive: big.NewInt(751)},
		model.NewCoin("uusd", big.NewInt(1_000)))
	require.ErrorIs(t, err, model.ErrMinimumReceive)

	_, err = app.ExecuteJSON(trader, router, "execute_swap_operations",
		dex.ExecuteSwapOperations{Operations: ops},
		model.NewCoin("uusd", big.NewInt(1_000)))
	require.NoError(t, err)

	got, err := app.NativeBalance(trader, "ukrw")
	require.NoError(t, err)
	require.Equal(t, int64(750), got.Int64())
}

func TestSwapNeedsMatchingFundsAndRates(t *testing.T) {
	app, router := newRouter(t)

	ops, err := dex.BuildOperations(uusd, nil, uluna)
	require.NoError(t, err)
	_, err = app.ExecuteJSON(trader, router, "execute_swap_operations", dex.ExecuteSwapOperations{Operations: ops})
	require.ErrorIs(t, err, model.ErrInvalidFunds)

	ops, err = dex.BuildOperations(uluna, nil, uusd)
	require.NoError(t, err)
	var sim dex.SimulateSwapOperationsResponse
	err = app.QueryJSON(router, "simulate_swap_operations", dex.SimulateSwapOperations{OfferAmount: big.NewInt(10), Operations: ops}, &sim)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSetRateIsOwnerOnly(t *testing.T) {
	app, router := newRouter(t)

	_, err := app.ExecuteJSON(trader, router, "set_rate", dex.SetRateMsg{Offer: uusd, Ask: uluna, Rate: model.NewFraction(1, 1)})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	var rate model.Fraction
	require.NoError(t, app.QueryJSON(router, "rate", dex.RateQuery{Offer: uusd, Ask: uluna}, &rate))
	require.Equal(t, "1/4", rate.String())
}
