package token_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/cw20"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
	"cremationLedger/internal/token"
)

var (
	creator   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	userU     = common.HexToAddress("0x0000000000000000000000000000000000000101")
	userV     = common.HexToAddress("0x0000000000000000000000000000000000000102")
	stakerS   = common.HexToAddress("0x0000000000000000000000000000000000000103")
	poolP     = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	routerR   = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	collector = common.HexToAddress("0x0000000000000000000000000000000000000a03")
)

type fixture struct {
	app   *host.App
	root  *store.MemStore
	token common.Address
}

func frac(num, den uint64) *model.Fraction {
	f := model.NewFraction(num, den)
	return &f
}

func newFixture(t *testing.T, info tax.Info, swap *token.SwapConfigMsg) *fixture {
	t.Helper()
	f := newBareFixture(t, info, swap)
	f.exec(t, creator, "set_venues", token.SetVenuesMsg{Venues: []tax.Venue{
		{Name: "terraswap", Router: routerR, Pools: []common.Address{poolP}},
	}})
	return f
}

// newBareFixture instantiates the token without wiring any venue.
func newBareFixture(t *testing.T, info tax.Info, swap *token.SwapConfigMsg) *fixture {
	t.Helper()
	root := store.NewMemStore()
	app := host.NewApp(root, zap.NewNop())
	codes.Register(app, codes.Options{})
	require.NoError(t, app.SetBlock(1, 1_700_000_000))

	msg := token.InstantiateMsg{
		Name:     "Cremation Coin",
		Symbol:   "CREMAT",
		Decimals: 6,
		InitialBalances: []token.InitialBalance{
			{Address: userU, Amount: big.NewInt(1_000)},
			{Address: stakerS, Amount: big.NewInt(1_000)},
			{Address: poolP, Amount: big.NewInt(1_000)},
		},
		Mint:    &token.MinterMsg{Minter: owner, Cap: big.NewInt(1_000_000)},
		Owner:   owner,
		TaxInfo: info,
		TaxSwap: swap,
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	addr, _, err := app.Instantiate(codes.Token, creator, raw, nil, "cremat", owner)
	require.NoError(t, err)

	return &fixture{app: app, root: root, token: addr}
}

func (f *fixture) exec(t *testing.T, sender common.Address, name string, body interface{}) *host.Result {
	t.Helper()
	res, err := f.app.ExecuteJSON(sender, f.token, name, body)
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, addr common.Address) int64 {
	t.Helper()
	var resp cw20.BalanceResponse
	require.NoError(t, f.app.QueryJSON(f.token, "balance", cw20.BalanceQuery{Address: addr}, &resp))
	return resp.Balance.Int64()
}

func (f *fixture) supply(t *testing.T) *big.Int {
	t.Helper()
	var resp cw20.TokenInfoResponse
	require.NoError(t, f.app.QueryJSON(f.token, "token_info", nil, &resp))
	return resp.TotalSupply
}

// sumBalances adds up every account the token knows about.
func (f *fixture) sumBalances(t *testing.T) *big.Int {
	t.Helper()
	total := new(big.Int)
	var start *common.Address
	for {
		var resp cw20.AllAccountsResponse
		require.NoError(t, f.app.QueryJSON(f.token, "all_accounts", cw20.AllAccountsQuery{StartAfter: start, Limit: 30}, &resp))
		if len(resp.Accounts) == 0 {
			return total
		}
		for _, a := range resp.Accounts {
			total.Add(total, big.NewInt(f.balance(t, a)))
		}
		last := resp.Accounts[len(resp.Accounts)-1]
		start = &last
	}
}
