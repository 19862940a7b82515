package rewardburn_test

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
	"cremationLedger/internal/rewardburn"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
	"cremationLedger/internal/token"
)

var (
	deployer   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	burnOwner  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	rewardAddr = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	funder     = common.HexToAddress("0x00000000000000000000000000000000000000f4")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol      = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

const genesis = 1_700_000_000

type env struct {
	app      *host.App
	token    common.Address
	contract common.Address
}

func instantiate(t *testing.T, app *host.App, code string, msg interface{}, label string) common.Address {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	addr, _, err := app.Instantiate(code, deployer, raw, nil, label, deployer)
	require.NoError(t, err)
	return addr
}

// newEnv deploys the token and a reward-burn contract prefunded with
// `reserve` tokens, limited to 1000 total and 500 per address per day.
func newEnv(t *testing.T, reserve int64) *env {
	t.Helper()
	app := host.NewApp(store.NewMemStore(), zap.NewNop())
	codes.Register(app, codes.Options{})
	require.NoError(t, app.SetBlock(1, genesis))

	e := &env{app: app}
	e.token = instantiate(t, app, codes.Token, token.InstantiateMsg{
		Name:     "Cremation Coin",
		Symbol:   "CREMAT",
		Decimals: 6,
		InitialBalances: []token.InitialBalance{
			{Address: funder, Amount: big.NewInt(100_000)},
			{Address: alice, Amount: big.NewInt(10_000)},
			{Address: bob, Amount: big.NewInt(10_000)},
			{Address: carol, Amount: big.NewInt(10_000)},
		},
		Owner:   deployer,
		TaxInfo: tax.Info{},
	}, "cremat")
	e.contract = instantiate(t, app, codes.RewardBurn, rewardburn.InstantiateMsg{
		Owner:         burnOwner,
		Token:         e.token,
		RewardAddress: rewardAddr,
		RewardInfo: rewardburn.RewardInfo{
			RefundRatio: model.NewFraction(1, 10),
			RewardRatio: model.NewFraction(1, 20),
		},
		BurnLimit: rewardburn.BurnLimit{
			Total:      big.NewInt(1_000),
			PerAddress: big.NewInt(500),
			Duration:   86_400,
		},
	}, "reward-burn")

	if reserve > 0 {
		_, err := app.ExecuteJSON(funder, e.token, "transfer", cw20.TransferMsg{Recipient: e.contract, Amount: big.NewInt(reserve)})
		require.NoError(t, err)
	}
	return e
}

func (e *env) burn(from common.Address, amount int64) (*host.Result, error) {
	hook, err := host.TaggedJSON("burn", nil)
	if err != nil {
		return nil, err
	}
	return e.app.ExecuteJSON(from, e.token, "send", cw20.SendMsg{Contract: e.contract, Amount: big.NewInt(amount), Msg: hook})
}

func (e *env) balance(t *testing.T, addr common.Address) int64 {
	t.Helper()
	var resp cw20.BalanceResponse
	require.NoError(t, e.app.QueryJSON(e.token, "balance", cw20.BalanceQuery{Address: addr}, &resp))
	return resp.Balance.Int64()
}

func (e *env) supply(t *testing.T) int64 {
	t.Helper()
	var resp cw20.TokenInfoResponse
	require.NoError(t, e.app.QueryJSON(e.token, "token_info", nil, &resp))
	return resp.TotalSupply.Int64()
}

func (e *env) amount(t *testing.T, name string, body interface{}) int64 {
	t.Helper()
	var resp rewardburn.AmountResponse
	require.NoError(t, e.app.QueryJSON(e.contract, name, body, &resp))
	return resp.Amount.Int64()
}

func TestBurnRefundsAndRewardsFromReserve(t *testing.T) {
	e := newEnv(t, 1_000)
	supply := e.supply(t)

	_, err := e.burn(alice, 400)
	require.NoError(t, err)

	require.Equal(t, supply-400, e.supply(t))
	require.Equal(t, int64(10_000-400+40), e.balance(t, alice))
	require.Equal(t, int64(20), e.balance(t, rewardAddr))
	require.Equal(t, int64(1_000-40-20), e.balance(t, e.contract))

	var burned rewardburn.BurnedAmountResponse
	require.NoError(t, e.app.QueryJSON(e.contract, "burned_amount", nil, &burned))
	require.Equal(t, int64(400), burned.BurnedAmount.Int64())
	require.Equal(t, int64(400), e.amount(t, "total_burned_today", nil))
	require.Equal(t, int64(400), e.amount(t, "burned_today_by_address", rewardburn.BurnedTodayByAddressQuery{Address: alice}))
}

func TestRefundIsCappedBeforeReward(t *testing.T) {
	e := newEnv(t, 30)

	res, err := e.burn(alice, 400)
	require.NoError(t, err)

	refund, ok := res.Attr(e.contract, "refund_amount")
	require.True(t, ok)
	require.Equal(t, "30", refund)
	reward, ok := res.Attr(e.contract, "reward_amount")
	require.True(t, ok)
	require.Equal(t, "0", reward)
	require.Equal(t, int64(0), e.balance(t, e.contract))
	require.Equal(t, int64(0), e.balance(t, rewardAddr))
}

func TestBurnLimitsPerAddressAndTotal(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.burn(alice, 400)
	require.NoError(t, err)
	_, err = e.burn(alice, 200)
	require.ErrorIs(t, err, model.ErrExceedBurnLimit)
	require.Equal(t, int64(9_600), e.balance(t, alice))

	_, err = e.burn(bob, 500)
	require.NoError(t, err)
	_, err = e.burn(carol, 200)
	require.ErrorIs(t, err, model.ErrExceedBurnLimit)
	_, err = e.burn(carol, 100)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), e.amount(t, "total_burned_today", nil))

	// One second past the window both counters start over.
	require.NoError(t, e.app.SetBlock(2, genesis+86_401))
	require.Equal(t, int64(0), e.amount(t, "total_burned_today", nil))
	require.Equal(t, int64(0), e.amount(t, "burned_today_by_address", rewardburn.BurnedTodayByAddressQuery{Address: alice}))

	_, err = e.burn(alice, 500)
	require.NoError(t, err)
	require.Equal(t, int64(500), e.amount(t, "total_burned_today", nil))

	var burned rewardburn.BurnedAmountResponse
	require.NoError(t, e.app.QueryJSON(e.contract, "burned_amount", nil, &burned))
	require.Equal(t, int64(1_500), burned.BurnedAmount.Int64())
}

func TestOnlyConfiguredTokenIsBurned(t *testing.T) {
	e := newEnv(t, 0)
	other := instantiate(t, e.app, codes.Token, token.InstantiateMsg{
		Name:            "Other",
		Symbol:          "OTHER",
		Decimals:        6,
		InitialBalances: []token.InitialBalance{{Address: alice, Amount: big.NewInt(1_000)}},
		Owner:           deployer,
	}, "other")

	hook, err := host.TaggedJSON("burn", nil)
	require.NoError(t, err)
	_, err = e.app.ExecuteJSON(alice, other, "send", cw20.SendMsg{Contract: e.contract, Amount: big.NewInt(100), Msg: hook})
	require.ErrorIs(t, err, model.ErrUnsupportedToken)

	hook, err = host.TaggedJSON("stake", nil)
	require.NoError(t, err)
	_, err = e.app.ExecuteJSON(alice, e.token, "send", cw20.SendMsg{Contract: e.contract, Amount: big.NewInt(100), Msg: hook})
	require.ErrorIs(t, err, model.ErrUnknownMessage)
}

func TestOwnerUpdates(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.app.ExecuteJSON(alice, e.contract, "update_burn_limit", rewardburn.UpdateBurnLimitMsg{Total: big.NewInt(5)})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = e.app.ExecuteJSON(burnOwner, e.contract, "update_burn_limit", rewardburn.UpdateBurnLimitMsg{Total: big.NewInt(0)})
	require.ErrorIs(t, err, model.ErrInvalidZeroLimit)

	over := model.NewFraction(11, 10)
	_, err = e.app.ExecuteJSON(burnOwner, e.contract, "update_reward_info", rewardburn.UpdateRewardInfoMsg{RewardRatio: &over})
	require.ErrorIs(t, err, model.ErrRatioMustBeAtMostOne)

	zero := model.NewFraction(0, 10)
	_, err = e.app.ExecuteJSON(burnOwner, e.contract, "update_reward_info", rewardburn.UpdateRewardInfoMsg{RefundRatio: &zero})
	require.ErrorIs(t, err, model.ErrZeroRatio)

	perAddress := big.NewInt(50)
	_, err = e.app.ExecuteJSON(burnOwner, e.contract, "update_burn_limit", rewardburn.UpdateBurnLimitMsg{PerAddress: perAddress})
	require.NoError(t, err)
	var limit rewardburn.BurnLimit
	require.NoError(t, e.app.QueryJSON(e.contract, "burn_limit", nil, &limit))
	require.Equal(t, int64(1_000), limit.Total.Int64())
	require.Equal(t, int64(50), limit.PerAddress.Int64())

	_, err = e.burn(alice, 51)
	require.ErrorIs(t, err, model.ErrExceedBurnLimit)

	_, err = e.app.ExecuteJSON(burnOwner, e.contract, "update_reward_address", rewardburn.UpdateRewardAddressMsg{Address: carol})
	require.NoError(t, err)
	var addr rewardburn.AddressResponse
	require.NoError(t, e.app.QueryJSON(e.contract, "reward_address", nil, &addr))
	require.Equal(t, carol, addr.Address)
}
