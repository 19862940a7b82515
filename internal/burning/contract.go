// Package burning destroys native uluna sent to it, pays a development fee and
// rewards burners from a whitelist of tokens. Other assets are swapped into
// uluna first and burned in the settlement continuation.
package burning

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/dex"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/settlement"
	"cremationLedger/internal/store"
)

const (
	contractName    = "crates.io:burning"
	contractVersion = "0.3.0"

	kindSwapAndBurn = "swap_and_burn"
)

type Contract struct {
	settlements *settlement.Dispatcher
}

func New(expiry uint64) host.Contract {
	c := &Contract{}
	c.settlements = settlement.NewDispatcher(expiry).Register(kindSwapAndBurn, c.settleSwapAndBurn)
	return c
}

func (c *Contract) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in InstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if in.Owner == (common.Address{}) || in.DevelopmentConfig.Beneficiary == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner and beneficiary are required", model.ErrInvalidAddress)
	}
	if err := validateFeeRatio(in.DevelopmentConfig.FeeRatio); err != nil {
		return nil, err
	}
	kv := ctx.Store
	if err := host.SetContractVersion(kv, contractName, contractVersion); err != nil {
		return nil, err
	}
	if err := ownerItem.Save(kv, in.Owner); err != nil {
		return nil, err
	}
	if err := burnedItem.Save(kv, new(big.Int)); err != nil {
		return nil, err
	}
	if err := feeRatioItem.Save(kv, in.DevelopmentConfig.FeeRatio); err != nil {
		return nil, err
	}
	if err := beneficiaryItem.Save(kv, in.DevelopmentConfig.Beneficiary); err != nil {
		return nil, err
	}
	if in.SwapRouter != nil {
		if err := routerItem.Save(kv, *in.SwapRouter); err != nil {
			return nil, err
		}
	}
	return host.NewResponse().AddAttribute("action", "instantiate"), nil
}

func (c *Contract) Execute(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "burn":
		return c.burn(ctx, info.Sender, model.FindCoin(info.Funds, BurnDenom))
	case "swap_and_burn":
		var in SwapAndBurnMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.swapNative(ctx, info, in)
	case "receive":
		var in cw20.ReceiveMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.receive(ctx, info, in)
	case "update_development_config":
		var in UpdateDevelopmentConfigMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateDevelopmentConfig(ctx, info.Sender, in)
	case "add_to_reward_whitelist":
		var in RewardInfoMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.addToWhitelist(ctx, info.Sender, in.RewardInfo)
	case "remove_from_reward_whitelist":
		var in RemoveFromRewardWhitelistMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.removeFromWhitelist(ctx, info.Sender, in.Token)
	case "update_reward_info":
		var in RewardInfoMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateRewardInfo(ctx, info.Sender, in.RewardInfo)
	case "set_swap_router":
		var in SetSwapRouterMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx.Store, info.Sender); err != nil {
			return nil, err
		}
		if err := routerItem.Save(ctx.Store, in.Router); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("action", "set_swap_router").
			AddAttribute("router", in.Router.Hex()), nil
	case "update_owner":
		var in UpdateOwnerMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx.Store, info.Sender); err != nil {
			return nil, err
		}
		if in.NewOwner == (common.Address{}) {
			return nil, fmt.Errorf("%w: new_owner is required", model.ErrInvalidAddress)
		}
		if err := ownerItem.Save(ctx.Store, in.NewOwner); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("action", "update_owner").
			AddAttribute("owner", in.NewOwner.Hex()), nil
	case "release_settlement":
		if err := requireOwner(ctx.Store, info.Sender); err != nil {
			return nil, err
		}
		p, err := c.settlements.Lock(ctx).Release()
		if err != nil {
			return nil, err
		}
		ctx.Log().Warn("settlement released by owner", zap.Uint64("id", p.CorrelationID), zap.String("burner", p.Actor.Hex()))
		return host.NewResponse().
			AddAttribute("action", "release_settlement").
			AddAttribute("correlation_id", fmt.Sprintf("%d", p.CorrelationID)), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

// burn splits amount of uluna held by the contract into the development fee,
// the send tax withheld on that fee, and the part destroyed. Whitelisted
// tokens pay the burner a reward on the destroyed part.
func (c *Contract) burn(ctx host.Context, burner common.Address, amount *big.Int) (*host.Response, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	kv := ctx.Store
	beneficiary, err := beneficiaryItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	feeRatio, err := feeRatioItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}

	fee := feeRatio.MulFloor(amount)
	sendTax := model.NativeSendTax().MulFloor(fee)
	burned := new(big.Int).Sub(amount, fee)
	burned.Sub(burned, sendTax)

	resp := host.NewResponse()
	if fee.Sign() > 0 {
		resp.AddMessage(host.BankSend{To: beneficiary, Amount: []model.Coin{model.NewCoin(BurnDenom, fee)}})
	}
	if burned.Sign() > 0 {
		resp.AddMessage(host.BankBurn{Amount: []model.Coin{model.NewCoin(BurnDenom, burned)}})
	}
	resp.AddAttribute("action", "burn").
		AddAttribute("burner", burner.Hex()).
		AddAttribute("development_fee", fee.String()).
		AddAttribute("burn_amount", burned.String())

	rewards, err := loadWhitelist(kv)
	if err != nil {
		return nil, err
	}
	for _, r := range rewards {
		reward := r.RewardRatio.MulFloor(burned)
		if reward.Sign() == 0 {
			continue
		}
		held, err := cw20.QueryBalance(ctx.Querier, r.Token, ctx.Self())
		if err != nil {
			return nil, err
		}
		if held.Sign() == 0 {
			continue
		}
		if reward.Cmp(held) > 0 {
			reward = held
		}
		transfer, err := cw20.Transfer(r.Token, burner, reward)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(transfer).
			AddAttribute("token", r.Token.Hex()).
			AddAttribute("reward", reward.String())
	}

	total, err := burnedItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	if err := burnedItem.Save(kv, new(big.Int).Add(total, burned)); err != nil {
		return nil, err
	}
	ctx.Log().Debug("burn",
		zap.String("burner", burner.Hex()),
		zap.String("amount", amount.String()),
		zap.String("burned", burned.String()),
	)
	return resp, nil
}

// swapNative swaps the attached denom into uluna, less the host send tax.
func (c *Contract) swapNative(ctx host.Context, info host.MessageInfo, in SwapAndBurnMsg) (*host.Response, error) {
	if in.Denom == "" {
		return nil, fmt.Errorf("%w: denom is required", model.ErrInvalidFunds)
	}
	if in.Denom == BurnDenom {
		return nil, fmt.Errorf("%w: send %s to burn directly", model.ErrInvalidFunds, BurnDenom)
	}
	amount := model.FindCoin(info.Funds, in.Denom)
	if amount.Sign() == 0 {
		return nil, model.ErrZeroAmount
	}
	sendTax := model.NativeSendTax().MulFloor(amount)
	swapAmount := new(big.Int).Sub(amount, sendTax)
	if swapAmount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	return c.begin(ctx, info.Sender, model.NativeAsset(in.Denom), swapAmount, in.SwapPaths)
}

func (c *Contract) receive(ctx host.Context, info host.MessageInfo, in cw20.ReceiveMsg) (*host.Response, error) {
	name, body, err := host.ParseMessage(in.Msg)
	if err != nil {
		return nil, err
	}
	if name != "swap_and_burn" {
		return nil, fmt.Errorf("%w: receive %q", model.ErrUnknownMessage, name)
	}
	var hook SwapAndBurnHook
	if err := host.Decode(body, &hook); err != nil {
		return nil, err
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	return c.begin(ctx, in.Sender, model.TokenAsset(info.Sender), in.Amount, hook.SwapPaths)
}

func (c *Contract) begin(ctx host.Context, burner common.Address, offer model.AssetInfo, amount *big.Int, paths []model.AssetInfo) (*host.Response, error) {
	ask := model.NativeAsset(BurnDenom)
	ops, err := dex.BuildOperations(offer, paths, ask)
	if err != nil {
		return nil, err
	}
	router, err := routerItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, fmt.Errorf("%w: swap router not set", model.ErrNotFound)
	}
	call, err := dex.SwapMsg(router, offer, amount, ops, ctx.Self())
	if err != nil {
		return nil, err
	}
	sub, err := c.settlements.Begin(ctx, kindSwapAndBurn, burner, ask, call)
	if err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddSubMessage(sub).
		AddAttribute("action", "swap_and_burn").
		AddAttribute("burner", burner.Hex()).
		AddAttribute("offer_asset", offer.String()).
		AddAttribute("offer_amount", amount.String()), nil
}

func (c *Contract) Reply(ctx host.Context, reply host.Reply) (*host.Response, error) {
	return c.settlements.Dispatch(ctx, reply)
}

// settleSwapAndBurn burns exactly the uluna the swap delivered, on behalf of
// the burner recorded when the swap began.
func (c *Contract) settleSwapAndBurn(ctx host.Context, p settlement.Pending, _ host.Reply) (*host.Response, error) {
	received, err := settlement.Observed(ctx, p)
	if err != nil {
		return nil, err
	}
	return c.burn(ctx, p.Actor, received)
}

func (c *Contract) updateDevelopmentConfig(ctx host.Context, sender common.Address, in UpdateDevelopmentConfigMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	resp := host.NewResponse().AddAttribute("action", "update_development_config")
	if in.FeeRatio != nil {
		if err := validateFeeRatio(*in.FeeRatio); err != nil {
			return nil, err
		}
		if err := feeRatioItem.Save(ctx.Store, *in.FeeRatio); err != nil {
			return nil, err
		}
		resp.AddAttribute("fee_ratio", in.FeeRatio.String())
	}
	if in.Beneficiary != nil {
		if *in.Beneficiary == (common.Address{}) {
			return nil, fmt.Errorf("%w: beneficiary", model.ErrInvalidAddress)
		}
		if err := beneficiaryItem.Save(ctx.Store, *in.Beneficiary); err != nil {
			return nil, err
		}
		resp.AddAttribute("beneficiary", in.Beneficiary.Hex())
	}
	return resp, nil
}

func (c *Contract) addToWhitelist(ctx host.Context, sender common.Address, r RewardInfo) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := validateRewardRatio(r.RewardRatio); err != nil {
		return nil, err
	}
	key := store.AddressKey(r.Token)
	exists, err := whitelist.Has(ctx.Store, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", model.ErrAlreadyExists, r.Token.Hex())
	}
	if err := whitelist.Save(ctx.Store, key, r.RewardRatio); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "add_to_reward_whitelist").
		AddAttribute("token", r.Token.Hex()).
		AddAttribute("reward_ratio", r.RewardRatio.String()), nil
}

func (c *Contract) removeFromWhitelist(ctx host.Context, sender, token common.Address) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	key := store.AddressKey(token)
	exists, err := whitelist.Has(ctx.Store, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", model.ErrNotInWhitelist, token.Hex())
	}
	if err := whitelist.Remove(ctx.Store, key); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "remove_from_reward_whitelist").
		AddAttribute("token", token.Hex()), nil
}

func (c *Contract) updateRewardInfo(ctx host.Context, sender common.Address, r RewardInfo) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := validateRewardRatio(r.RewardRatio); err != nil {
		return nil, err
	}
	key := store.AddressKey(r.Token)
	exists, err := whitelist.Has(ctx.Store, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", model.ErrNotInWhitelist, r.Token.Hex())
	}
	if err := whitelist.Save(ctx.Store, key, r.RewardRatio); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "update_reward_info").
		AddAttribute("token", r.Token.Hex()).
		AddAttribute("reward_ratio", r.RewardRatio.String()), nil
}
