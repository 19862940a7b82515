// Package timelock holds tokens until one year after instantiation and then
// releases them to the owner.
package timelock

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

const (
	contractName    = "crates.io:cremation-lock"
	contractVersion = "0.1.0"

	// LockSeconds is how long deposits stay locked.
	LockSeconds uint64 = 365 * 86_400
)

var (
	ownerItem      = store.NewItem[common.Address]("owner")
	unlockTimeItem = store.NewItem[uint64]("unlock_time")
)

type InstantiateMsg struct {
	Owner common.Address `json:"owner"`
}

type UpdateOwnerMsg struct {
	NewOwner common.Address `json:"new_owner"`
}

type WithdrawMsg struct {
	TokenAddress common.Address `json:"token_address"`
}

type LockedTokenAmountQuery struct {
	TokenAddress common.Address `json:"token_address"`
}

type LockedTokenAmountResponse struct {
	Amount *big.Int `json:"amount"`
}

type OwnerResponse struct {
	Owner common.Address `json:"owner"`
}

type UnlockTimeResponse struct {
	UnlockTime uint64 `json:"unlock_time"`
}

type Contract struct{}

func New() host.Contract { return &Contract{} }

func (c *Contract) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in InstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if in.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner is required", model.ErrInvalidAddress)
	}
	unlock := ctx.Now() + LockSeconds
	if err := host.SetContractVersion(ctx.Store, contractName, contractVersion); err != nil {
		return nil, err
	}
	if err := ownerItem.Save(ctx.Store, in.Owner); err != nil {
		return nil, err
	}
	if err := unlockTimeItem.Save(ctx.Store, unlock); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("unlock_time", fmt.Sprintf("%d", unlock)), nil
}

func (c *Contract) Execute(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "receive":
		// Deposits need no bookkeeping; the token ledger already holds them.
		var in cw20.ReceiveMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("action", "deposit").
			AddAttribute("token", info.Sender.Hex()).
			AddAttribute("from", in.Sender.Hex()).
			AddAttribute("amount", in.Amount.String()), nil
	case "update_owner":
		var in UpdateOwnerMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		owner, err := ownerItem.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		if info.Sender != owner {
			return nil, fmt.Errorf("%w: owner only", model.ErrUnauthorized)
		}
		if in.NewOwner == (common.Address{}) {
			return nil, fmt.Errorf("%w: new_owner is required", model.ErrInvalidAddress)
		}
		if err := ownerItem.Save(ctx.Store, in.NewOwner); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("action", "change_owner").
			AddAttribute("owner", in.NewOwner.Hex()), nil
	case "withdraw":
		var in WithdrawMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.withdraw(ctx, in.TokenAddress)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

// withdraw sends the whole balance of token to the owner once unlocked.
// Anyone may trigger it; the funds only ever go to the owner.
func (c *Contract) withdraw(ctx host.Context, token common.Address) (*host.Response, error) {
	unlock, err := unlockTimeItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	if ctx.Now() < unlock {
		return nil, fmt.Errorf("%w: until %d", model.ErrLocked, unlock)
	}
	owner, err := ownerItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	amount, err := cw20.QueryBalance(ctx.Querier, token, ctx.Self())
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse().
		AddAttribute("action", "withdraw").
		AddAttribute("token_address", token.Hex()).
		AddAttribute("amount", amount.String())
	if amount.Sign() == 0 {
		return resp, nil
	}
	transfer, err := cw20.Transfer(token, owner, amount)
	if err != nil {
		return nil, err
	}
	return resp.AddMessage(transfer), nil
}

func (c *Contract) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "locked_token_amount":
		var in LockedTokenAmountQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		amount, err := cw20.QueryBalance(ctx.Querier, in.TokenAddress, ctx.Self())
		if err != nil {
			amount = new(big.Int)
		}
		return host.Marshal(LockedTokenAmountResponse{Amount: amount})
	case "owner":
		owner, err := ownerItem.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		return host.Marshal(OwnerResponse{Owner: owner})
	case "unlock_time":
		unlock, err := unlockTimeItem.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		return host.Marshal(UnlockTimeResponse{UnlockTime: unlock})
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}
