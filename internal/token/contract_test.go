package token_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/cw20"
	"cremationLedger/internal/dex"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/tax"
	"cremationLedger/internal/timelock"
	"cremationLedger/internal/token"
)

func TestSellTaxGoesToCollector(t *testing.T) {
	f := newFixture(t, tax.Info{Sell: frac(8, 100)}, nil)
	f.exec(t, owner, "set_tax_free_address", token.SetTaxFreeAddressMsg{Address: stakerS, TaxFree: true})
	before := f.supply(t)

	res := f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})

	require.Equal(t, int64(900), f.balance(t, userU))
	require.Equal(t, int64(1_092), f.balance(t, poolP))
	require.Equal(t, int64(8), f.balance(t, owner))
	require.Equal(t, int64(1_000), f.balance(t, stakerS))
	op, ok := res.Attr(f.token, "operation")
	require.True(t, ok)
	require.Equal(t, "sell", op)

	// The exempt stake address sells without paying tax.
	f.exec(t, stakerS, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})
	require.Equal(t, int64(900), f.balance(t, stakerS))
	require.Equal(t, int64(1_192), f.balance(t, poolP))
	require.Equal(t, int64(8), f.balance(t, owner))

	require.Equal(t, before, f.supply(t))
	require.Equal(t, before, f.sumBalances(t))
}

func TestBuyAndTransferTax(t *testing.T) {
	f := newFixture(t, tax.Info{Buy: frac(5, 100), Transfer: frac(1, 10)}, nil)

	f.exec(t, poolP, "transfer", cw20.TransferMsg{Recipient: userV, Amount: big.NewInt(200)})
	require.Equal(t, int64(190), f.balance(t, userV))
	require.Equal(t, int64(10), f.balance(t, owner))

	f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: userV, Amount: big.NewInt(55)})
	require.Equal(t, int64(190+50), f.balance(t, userV))
	require.Equal(t, int64(10+5), f.balance(t, owner))

	// No sell rate configured.
	f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})
	require.Equal(t, int64(1_000-200+100), f.balance(t, poolP))

	require.Equal(t, f.supply(t), f.sumBalances(t))
}

func TestPoolToRouterIsNotABuy(t *testing.T) {
	f := newFixture(t, tax.Info{Buy: frac(5, 100), Transfer: frac(1, 10)}, nil)

	var sim token.SimulateTransferResponse
	require.NoError(t, f.app.QueryJSON(f.token, "simulate_transfer", token.SimulateTransferQuery{From: poolP, To: routerR, Amount: big.NewInt(100)}, &sim))
	require.Equal(t, "transfer", sim.Operation)
	require.Equal(t, int64(10), sim.Tax.Int64())
	require.Equal(t, int64(90), sim.Net.Int64())
}

func TestTaxFreeAddressSkipsTax(t *testing.T) {
	f := newFixture(t, tax.Info{Sell: frac(8, 100)}, nil)
	f.exec(t, owner, "set_tax_free_address", token.SetTaxFreeAddressMsg{Address: userU, TaxFree: true})

	f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})
	require.Equal(t, int64(1_100), f.balance(t, poolP))
	require.Equal(t, int64(0), f.balance(t, owner))

	var exempt bool
	require.NoError(t, f.app.QueryJSON(f.token, "tax_free_address", token.TaxFreeAddressQuery{Address: userU}, &exempt))
	require.True(t, exempt)

	f.exec(t, owner, "set_tax_free_address", token.SetTaxFreeAddressMsg{Address: userU, TaxFree: false})
	f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})
	require.Equal(t, int64(8), f.balance(t, owner))
}

func TestAdminMessagesRequireOwner(t *testing.T) {
	f := newFixture(t, tax.Info{}, nil)

	_, err := f.app.ExecuteJSON(userU, f.token, "update_tax_info", token.UpdateTaxInfoMsg{TaxInfo: tax.Info{Sell: frac(1, 2)}})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.app.ExecuteJSON(userU, f.token, "set_tax_free_address", token.SetTaxFreeAddressMsg{Address: userU, TaxFree: true})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.app.ExecuteJSON(userU, f.token, "add_pools", token.AddPoolsMsg{Venue: "terraswap", Pools: []common.Address{userV}})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.app.ExecuteJSON(creator, f.token, "set_venues", token.SetVenuesMsg{Venues: []tax.Venue{{Name: "other", Router: routerR}}})
	require.ErrorIs(t, err, model.ErrAlreadyInitialized)

	_, err = f.app.ExecuteJSON(owner, f.token, "update_tax_info", token.UpdateTaxInfoMsg{TaxInfo: tax.Info{Sell: frac(3, 2)}})
	require.ErrorIs(t, err, model.ErrInvalidFraction)
}

func TestUpdateCollectTaxAddress(t *testing.T) {
	f := newFixture(t, tax.Info{Sell: frac(8, 100)}, nil)

	_, err := f.app.ExecuteJSON(owner, f.token, "update_collect_tax_address", token.UpdateCollectTaxAddressMsg{Address: owner})
	require.ErrorIs(t, err, model.ErrSameAddress)

	f.exec(t, owner, "update_collect_tax_address", token.UpdateCollectTaxAddressMsg{Address: collector})
	var got common.Address
	require.NoError(t, f.app.QueryJSON(f.token, "collect_tax_address", nil, &got))
	require.Equal(t, collector, got)

	f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})
	require.Equal(t, int64(8), f.balance(t, collector))
	require.Equal(t, int64(0), f.balance(t, owner))
}

func TestFailedTransferLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, tax.Info{Sell: frac(8, 100)}, nil)

	_, err := f.app.ExecuteJSON(userU, f.token, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(5_000)})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = f.app.ExecuteJSON(userU, f.token, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(0)})
	require.ErrorIs(t, err, model.ErrZeroAmount)

	require.Equal(t, int64(1_000), f.balance(t, userU))
	require.Equal(t, int64(1_000), f.balance(t, poolP))
	require.Equal(t, int64(0), f.balance(t, owner))
}

func TestAllowanceSpend(t *testing.T) {
	f := newFixture(t, tax.Info{}, nil)
	f.exec(t, userU, "increase_allowance", cw20.AllowanceMsg{Spender: userV, Amount: big.NewInt(50)})

	_, err := f.app.ExecuteJSON(userV, f.token, "transfer_from", cw20.TransferFromMsg{Owner: userU, Recipient: userV, Amount: big.NewInt(60)})
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	f.exec(t, userV, "transfer_from", cw20.TransferFromMsg{Owner: userU, Recipient: userV, Amount: big.NewInt(30)})
	require.Equal(t, int64(970), f.balance(t, userU))
	require.Equal(t, int64(30), f.balance(t, userV))

	var allowance cw20.AllowanceResponse
	require.NoError(t, f.app.QueryJSON(f.token, "allowance", cw20.AllowanceQuery{Owner: userU, Spender: userV}, &allowance))
	require.Equal(t, int64(20), allowance.Allowance.Int64())

	f.exec(t, userV, "burn_from", cw20.BurnFromMsg{Owner: userU, Amount: big.NewInt(20)})
	require.Equal(t, int64(950), f.balance(t, userU))
	require.Equal(t, int64(2_980), f.supply(t).Int64())
}

func TestTransferFromWithoutAmountFails(t *testing.T) {
	f := newFixture(t, tax.Info{}, nil)
	f.exec(t, userU, "increase_allowance", cw20.AllowanceMsg{Spender: userV, Amount: big.NewInt(50)})

	bodies := map[string]map[string]interface{}{
		"transfer_from": {"owner": userU, "recipient": userV},
		"send_from":     {"owner": userU, "contract": poolP},
		"burn_from":     {"owner": userU},
	}
	for name, body := range bodies {
		_, err := f.app.ExecuteJSON(userV, f.token, name, body)
		require.ErrorIs(t, err, model.ErrZeroAmount, name)
	}

	_, err := f.app.ExecuteJSON(userV, f.token, "transfer_from", cw20.TransferFromMsg{Owner: userU, Recipient: userV, Amount: big.NewInt(-10)})
	require.ErrorIs(t, err, model.ErrZeroAmount)

	var allowance cw20.AllowanceResponse
	require.NoError(t, f.app.QueryJSON(f.token, "allowance", cw20.AllowanceQuery{Owner: userU, Spender: userV}, &allowance))
	require.Equal(t, int64(50), allowance.Allowance.Int64())
	require.Equal(t, int64(1_000), f.balance(t, userU))
}

func TestMintRespectsCap(t *testing.T) {
	f := newFixture(t, tax.Info{}, nil)

	_, err := f.app.ExecuteJSON(userU, f.token, "mint", cw20.MintMsg{Recipient: userU, Amount: big.NewInt(1)})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.app.ExecuteJSON(owner, f.token, "mint", cw20.MintMsg{Recipient: userV, Amount: big.NewInt(1_000_000)})
	require.ErrorIs(t, err, model.ErrCapExceeded)

	f.exec(t, owner, "mint", cw20.MintMsg{Recipient: userV, Amount: big.NewInt(500)})
	require.Equal(t, int64(500), f.balance(t, userV))
	require.Equal(t, int64(3_500), f.supply(t).Int64())
}

func TestSendCreditsNetAmountToHook(t *testing.T) {
	f := newFixture(t, tax.Info{Transfer: frac(1, 10)}, nil)
	raw, err := json.Marshal(timelock.InstantiateMsg{Owner: owner})
	require.NoError(t, err)
	lock, _, err := f.app.Instantiate(codes.Timelock, creator, raw, nil, "lock", owner)
	require.NoError(t, err)

	hook, err := host.TaggedJSON("deposit", nil)
	require.NoError(t, err)
	res := f.exec(t, userU, "send", cw20.SendMsg{Contract: lock, Amount: big.NewInt(100), Msg: hook})

	require.Equal(t, int64(90), f.balance(t, lock))
	amount, ok := res.Attr(lock, "amount")
	require.True(t, ok)
	require.Equal(t, "90", amount)

	var locked timelock.LockedTokenAmountResponse
	require.NoError(t, f.app.QueryJSON(lock, "locked_token_amount", timelock.LockedTokenAmountQuery{TokenAddress: f.token}, &locked))
	require.Equal(t, int64(90), locked.Amount.Int64())
}

func TestCollectedTaxIsSwappedThroughVenueRouter(t *testing.T) {
	enabled := true
	target := model.NativeAsset("uluna")
	f := newBareFixture(t, tax.Info{Sell: frac(8, 100)}, &token.SwapConfigMsg{
		Enabled:   &enabled,
		Threshold: big.NewInt(5),
		Target:    &target,
	})

	raw, err := json.Marshal(dex.RouterInstantiateMsg{Owner: owner})
	require.NoError(t, err)
	router, _, err := f.app.Instantiate(codes.Router, creator, raw, nil, "router", common.Address{})
	require.NoError(t, err)
	_, err = f.app.ExecuteJSON(owner, router, "set_rate", dex.SetRateMsg{
		Offer: model.TokenAsset(f.token),
		Ask:   target,
		Rate:  model.NewFraction(2, 1),
	})
	require.NoError(t, err)
	require.NoError(t, f.app.MintNative(router, model.NewCoin("uluna", big.NewInt(1_000))))

	f.exec(t, creator, "set_venues", token.SetVenuesMsg{Venues: []tax.Venue{
		{Name: "terraswap", Router: router, Pools: []common.Address{poolP}},
	}})

	res := f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: poolP, Amount: big.NewInt(100)})
	swapped, ok := res.Attr(f.token, "tax_swap_amount")
	require.True(t, ok)
	require.Equal(t, "8", swapped)

	require.Equal(t, int64(0), f.balance(t, owner))
	require.Equal(t, int64(8), f.balance(t, router))
	native, err := f.app.NativeBalance(owner, "uluna")
	require.NoError(t, err)
	require.Equal(t, int64(16), native.Int64())
	require.Equal(t, f.supply(t), f.sumBalances(t))
}

func TestMigrateUpgradesLegacyConfig(t *testing.T) {
	f := newBareFixture(t, tax.Info{Sell: frac(8, 100)}, nil)
	require.NoError(t, tax.SaveLegacyConfig(host.ContractStore(f.root, f.token), tax.LegacyConfig{Pair: poolP, Router: routerR}))

	astroPool := common.HexToAddress("0x0000000000000000000000000000000000000b01")
	raw, err := json.Marshal(token.MigrateMsg{Venues: []tax.Venue{
		{Name: "astroport", Router: common.HexToAddress("0x0000000000000000000000000000000000000b02"), Pools: []common.Address{astroPool}},
	}})
	require.NoError(t, err)

	_, err = f.app.Migrate(userU, f.token, codes.Token, raw)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.app.Migrate(owner, f.token, codes.Token, raw)
	require.NoError(t, err)

	var reg tax.Registry
	require.NoError(t, f.app.QueryJSON(f.token, "venues", nil, &reg))
	require.Len(t, reg.Venues, 2)
	require.Equal(t, tax.LegacyVenueName, reg.Venues[0].Name)
	require.Equal(t, []common.Address{poolP}, reg.Venues[0].Pools)

	f.exec(t, userU, "transfer", cw20.TransferMsg{Recipient: astroPool, Amount: big.NewInt(100)})
	require.Equal(t, int64(92), f.balance(t, astroPool))
	require.Equal(t, int64(8), f.balance(t, owner))
}
