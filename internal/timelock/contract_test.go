package timelock_test

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
	"cremationLedger/internal/timelock"
	"cremationLedger/internal/token"
)

var (
	deployer  = common.HexToAddress("0x0000000000000000000000000000000000000071")
	lockOwner = common.HexToAddress("0x0000000000000000000000000000000000000072")
	holder    = common.HexToAddress("0x0000000000000000000000000000000000000073")
)

const genesis = 1_700_000_000

func setup(t *testing.T) (*host.App, common.Address, common.Address) {
	t.Helper()
	app := host.NewApp(store.NewMemStore(), zap.NewNop())
	codes.Register(app, codes.Options{})
	require.NoError(t, app.SetBlock(1, genesis))

	deploy := func(code string, msg interface{}, label string) common.Address {
		raw, err := json.Marshal(msg)
		require.NoError(t, err)
		addr, _, err := app.Instantiate(code, deployer, raw, nil, label, deployer)
		require.NoError(t, err)
		return addr
	}
	tok := deploy(codes.Token, token.InstantiateMsg{
		Name:            "Cremation Coin",
		Symbol:          "CREMAT",
		Decimals:        6,
		InitialBalances: []token.InitialBalance{{Address: holder, Amount: big.NewInt(5_000)}},
		Owner:           deployer,
	}, "cremat")
	lock := deploy(codes.Timelock, timelock.InstantiateMsg{Owner: lockOwner}, "lock")

	_, err := app.ExecuteJSON(holder, tok, "transfer", cw20.TransferMsg{Recipient: lock, Amount: big.NewInt(3_000)})
	require.NoError(t, err)
	return app, tok, lock
}

func balance(t *testing.T, app *host.App, tok, addr common.Address) int64 {
	t.Helper()
	var resp cw20.BalanceResponse
	require.NoError(t, app.QueryJSON(tok, "balance", cw20.BalanceQuery{Address: addr}, &resp))
	return resp.Balance.Int64()
}

func TestWithdrawWaitsForUnlock(t *testing.T) {
	app, tok, lock := setup(t)

	var unlock timelock.UnlockTimeResponse
	require.NoError(t, app.QueryJSON(lock, "unlock_time", nil, &unlock))
	require.Equal(t, uint64(genesis)+timelock.LockSeconds, unlock.UnlockTime)

	require.NoError(t, app.SetBlock(2, unlock.UnlockTime-1))
	_, err := app.ExecuteJSON(lockOwner, lock, "withdraw", timelock.WithdrawMsg{TokenAddress: tok})
	require.ErrorIs(t, err, model.ErrLocked)

	var locked timelock.LockedTokenAmountResponse
	require.NoError(t, app.QueryJSON(lock, "locked_token_amount", timelock.LockedTokenAmountQuery{TokenAddress: tok}, &locked))
	require.Equal(t, int64(3_000), locked.Amount.Int64())

	require.NoError(t, app.SetBlock(3, unlock.UnlockTime))
	_, err = app.ExecuteJSON(holder, lock, "withdraw", timelock.WithdrawMsg{TokenAddress: tok})
	require.NoError(t, err)
	require.Equal(t, int64(3_000), balance(t, app, tok, lockOwner))
	require.Equal(t, int64(0), balance(t, app, tok, lock))

	// An empty lock withdraws nothing and does not fail.
	_, err = app.ExecuteJSON(lockOwner, lock, "withdraw", timelock.WithdrawMsg{TokenAddress: tok})
	require.NoError(t, err)
}

func TestUpdateOwnerRedirectsWithdrawal(t *testing.T) {
	app, tok, lock := setup(t)

	_, err := app.ExecuteJSON(holder, lock, "update_owner", timelock.UpdateOwnerMsg{NewOwner: holder})
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = app.ExecuteJSON(lockOwner, lock, "update_owner", timelock.UpdateOwnerMsg{NewOwner: holder})
	require.NoError(t, err)
	var owner timelock.OwnerResponse
	require.NoError(t, app.QueryJSON(lock, "owner", nil, &owner))
	require.Equal(t, holder, owner.Owner)

	require.NoError(t, app.SetBlock(2, genesis+timelock.LockSeconds))
	_, err = app.ExecuteJSON(lockOwner, lock, "withdraw", timelock.WithdrawMsg{TokenAddress: tok})
	require.NoError(t, err)
	require.Equal(t, int64(5_000), balance(t, app, tok, holder))
	require.Equal(t, int64(0), balance(t, app, tok, lockOwner))
}
