package proxyswap_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/cw20"
	"cremationLedger/internal/dex"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/proxyswap"
	"cremationLedger/internal/settlement"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
	"cremationLedger/internal/token"
)

var (
	deployer   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	proxyOwner = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	tokenOwner = common.HexToAddress("0x00000000000000000000000000000000000000d3")
	buyer      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	intruder   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type env struct {
	app    *host.App
	root   *store.MemStore
	router common.Address
	token  common.Address
	proxy  common.Address
}

func instantiate(t *testing.T, app *host.App, code string, msg interface{}, label string) common.Address {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	addr, _, err := app.Instantiate(code, deployer, raw, nil, label, deployer)
	require.NoError(t, err)
	return addr
}

func newEnv(t *testing.T, expiry uint64) *env {
	t.Helper()
	root := store.NewMemStore()
	app := host.NewApp(root, zap.NewNop())
	codes.Register(app, codes.Options{SettlementExpiry: expiry})
	require.NoError(t, app.SetBlock(1, 1_700_000_000))

	e := &env{app: app, root: root}
	e.router = instantiate(t, app, codes.Router, dex.RouterInstantiateMsg{Owner: deployer}, "router")
	e.token = instantiate(t, app, codes.Token, token.InstantiateMsg{
		Name:     "Cremation Coin",
		Symbol:   "CREMAT",
		Decimals: 6,
		InitialBalances: []token.InitialBalance{
			{Address: e.router, Amount: big.NewInt(1_000_000)},
			{Address: buyer, Amount: big.NewInt(10_000)},
		},
		Owner:   tokenOwner,
		TaxInfo: tax.Info{},
	}, "cremat")
	e.proxy = instantiate(t, app, codes.ProxySwap, proxyswap.InstantiateMsg{Owner: proxyOwner, SwapRouter: e.router}, "proxy")

	uluna := model.NativeAsset("uluna")
	e.setRate(t, uluna, model.TokenAsset(e.token), model.NewFraction(2, 1))
	e.setRate(t, model.TokenAsset(e.token), uluna, model.NewFraction(1, 2))
	require.NoError(t, app.MintNative(e.router, model.NewCoin("uluna", big.NewInt(1_000_000))))
	require.NoError(t, app.MintNative(buyer, model.NewCoin("uluna", big.NewInt(10_000))))
	return e
}

func (e *env) setRate(t *testing.T, offer, ask model.AssetInfo, rate model.Fraction) {
	t.Helper()
	_, err := e.app.ExecuteJSON(deployer, e.router, "set_rate", dex.SetRateMsg{Offer: offer, Ask: ask, Rate: rate})
	require.NoError(t, err)
}

func (e *env) tokenBalance(t *testing.T, addr common.Address) int64 {
	t.Helper()
	var resp cw20.BalanceResponse
	require.NoError(t, e.app.QueryJSON(e.token, "balance", cw20.BalanceQuery{Address: addr}, &resp))
	return resp.Balance.Int64()
}

func (e *env) native(t *testing.T, addr common.Address) int64 {
	t.Helper()
	bal, err := e.app.NativeBalance(addr, "uluna")
	require.NoError(t, err)
	return bal.Int64()
}

func (e *env) buyToken(amount int64) (*host.Result, error) {
	return e.app.ExecuteJSON(buyer, e.proxy, "swap",
		proxyswap.SwapMsg{AskAsset: model.TokenAsset(e.token)},
		model.NewCoin("uluna", big.NewInt(amount)))
}

func (e *env) settlementStatus(t *testing.T) settlement.Status {
	t.Helper()
	var status settlement.Status
	require.NoError(t, e.app.QueryJSON(e.proxy, "settlement", nil, &status))
	return status
}

// seedLock leaves a settlement in flight as if its continuation never came.
func (e *env) seedLock(t *testing.T) {
	t.Helper()
	b, err := e.app.Block()
	require.NoError(t, err)
	lock := settlement.Open(host.ContractStore(e.root, e.proxy), 0)
	_, err = lock.Begin(intruder, model.TokenAsset(e.token), "swap", new(big.Int), b.Time)
	require.NoError(t, err)
}

func TestNativeBuyWithholdsTokenTax(t *testing.T) {
	e := newEnv(t, 0)
	_, err := e.app.ExecuteJSON(proxyOwner, e.proxy, "set_token_buy_tax", proxyswap.SetTokenBuyTaxMsg{
		TokenAddress: e.token,
		BuyTax:       model.NewFraction(10, 100),
	})
	require.NoError(t, err)

	res, err := e.buyToken(1_000)
	require.NoError(t, err)

	// 1000 less the 5/1000 send tax is swapped at 2:1.
	require.Equal(t, int64(10_000+1_791), e.tokenBalance(t, buyer))
	require.Equal(t, int64(199), e.tokenBalance(t, tokenOwner))
	require.Equal(t, int64(0), e.tokenBalance(t, e.proxy))
	require.Equal(t, int64(5), e.native(t, e.proxy))
	require.Equal(t, int64(1_000_000+995), e.native(t, e.router))

	taxed, ok := res.Attr(e.proxy, "cw20_tax_amount")
	require.True(t, ok)
	require.Equal(t, "199", taxed)

	status := e.settlementStatus(t)
	require.False(t, status.Locked)
	require.Equal(t, uint64(1), status.CorrelationID)
}

func TestTokenSellPaysNativeToBuyer(t *testing.T) {
	e := newEnv(t, 0)
	hook, err := host.TaggedJSON("swap", proxyswap.SwapMsg{AskAsset: model.NativeAsset("uluna")})
	require.NoError(t, err)

	_, err = e.app.ExecuteJSON(buyer, e.token, "send", cw20.SendMsg{Contract: e.proxy, Amount: big.NewInt(100), Msg: hook})
	require.NoError(t, err)

	require.Equal(t, int64(10_000-100), e.tokenBalance(t, buyer))
	require.Equal(t, int64(1_000_000+100), e.tokenBalance(t, e.router))
	require.Equal(t, int64(10_000+50), e.native(t, buyer))
	require.Equal(t, int64(0), e.native(t, e.proxy))
}

func TestSwapRejectsBadInput(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.app.ExecuteJSON(buyer, e.proxy, "swap",
		proxyswap.SwapMsg{AskAsset: model.NativeAsset("uluna")},
		model.NewCoin("uluna", big.NewInt(1_000)))
	require.ErrorIs(t, err, model.ErrInvalidFunds)

	_, err = e.app.ExecuteJSON(buyer, e.proxy, "swap", proxyswap.SwapMsg{AskAsset: model.TokenAsset(e.token)})
	require.ErrorIs(t, err, model.ErrInvalidFunds)

	require.Equal(t, int64(10_000), e.native(t, buyer))
}

func TestHeldLockBlocksUntilReleased(t *testing.T) {
	e := newEnv(t, 0)
	e.seedLock(t)

	_, err := e.buyToken(1_000)
	require.ErrorIs(t, err, model.ErrLocked)
	require.Equal(t, int64(10_000), e.native(t, buyer))

	status := e.settlementStatus(t)
	require.True(t, status.Locked)
	require.NotNil(t, status.Actor)
	require.Equal(t, intruder, *status.Actor)
	require.False(t, status.Stale)

	_, err = e.app.ExecuteJSON(buyer, e.proxy, "release_settlement", nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = e.app.ExecuteJSON(proxyOwner, e.proxy, "release_settlement", nil)
	require.NoError(t, err)
	_, err = e.app.ExecuteJSON(proxyOwner, e.proxy, "release_settlement", nil)
	require.ErrorIs(t, err, model.ErrAlreadyUnlocked)

	_, err = e.buyToken(1_000)
	require.NoError(t, err)
	require.Equal(t, int64(10_000+1_990), e.tokenBalance(t, buyer))
	require.Equal(t, int64(0), e.tokenBalance(t, intruder))
}

func TestStaleLockIsTakenOver(t *testing.T) {
	e := newEnv(t, 60)
	e.seedLock(t)

	require.NoError(t, e.app.AdvanceBlock(59))
	_, err := e.buyToken(1_000)
	require.ErrorIs(t, err, model.ErrLocked)

	require.NoError(t, e.app.AdvanceBlock(1))
	require.True(t, e.settlementStatus(t).Stale)
	_, err = e.buyToken(1_000)
	require.NoError(t, err)
	require.Equal(t, int64(10_000+1_990), e.tokenBalance(t, buyer))
}

func TestAdminAndQueries(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.app.ExecuteJSON(buyer, e.proxy, "set_token_buy_tax", proxyswap.SetTokenBuyTaxMsg{
		TokenAddress: e.token,
		BuyTax:       model.NewFraction(1, 100),
	})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = e.app.ExecuteJSON(proxyOwner, e.proxy, "set_token_buy_tax", proxyswap.SetTokenBuyTaxMsg{
		TokenAddress: e.token,
		BuyTax:       model.NewFraction(3, 2),
	})
	require.ErrorIs(t, err, model.ErrInvalidFraction)

	var rate proxyswap.TokenBuyTaxResponse
	require.NoError(t, e.app.QueryJSON(e.proxy, "token_tax_info", proxyswap.TokenTaxInfoQuery{TokenAddress: e.token}, &rate))
	require.True(t, rate.BuyTax.IsZero())

	_, err = e.app.ExecuteJSON(proxyOwner, e.proxy, "update_owner", proxyswap.UpdateOwnerMsg{NewOwner: buyer})
	require.NoError(t, err)
	var ownerResp proxyswap.OwnerResponse
	require.NoError(t, e.app.QueryJSON(e.proxy, "owner", nil, &ownerResp))
	require.Equal(t, buyer, ownerResp.Owner)

	_, err = e.app.ExecuteJSON(proxyOwner, e.proxy, "update_swap_router", proxyswap.UpdateSwapRouterMsg{Router: intruder})
	require.ErrorIs(t, err, model.ErrUnauthorized)
}
