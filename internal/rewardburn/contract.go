// Package rewardburn burns a token sent through its receive hook, refunds the
// burner and pays a reward address out of the contract's own holdings, with
// burns capped per address and globally over rolling windows.
package rewardburn

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

const (
	contractName    = "crates.io:reward-burning"
	contractVersion = "0.2.0"
)

var (
	ownerItem         = store.NewItem[common.Address]("owner")
	tokenItem         = store.NewItem[common.Address]("token")
	rewardAddressItem = store.NewItem[common.Address]("reward_address")
	rewardInfoItem    = store.NewItem[RewardInfo]("reward_info")
	burnLimitItem     = store.NewItem[BurnLimit]("burn_limit")
	burnedItem        = store.NewItem[*big.Int]("burned_amount")
	totalWindowItem   = store.NewItem[Window]("total_burned_today")

	addressWindows = store.NewMap[Window]("burned_today_by_address/")
)

type Contract struct{}

func New() host.Contract { return &Contract{} }

func (c *Contract) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in InstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if in.Owner == (common.Address{}) || in.Token == (common.Address{}) || in.RewardAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner, token and reward_address are required", model.ErrInvalidAddress)
	}
	if err := validateRatio(in.RewardInfo.RefundRatio); err != nil {
		return nil, fmt.Errorf("refund ratio: %w", err)
	}
	if err := validateRatio(in.RewardInfo.RewardRatio); err != nil {
		return nil, fmt.Errorf("reward ratio: %w", err)
	}
	if err := validateLimit(in.BurnLimit); err != nil {
		return nil, err
	}

	kv := ctx.Store
	if err := host.SetContractVersion(kv, contractName, contractVersion); err != nil {
		return nil, err
	}
	for _, step := range []func() error{
		func() error { return ownerItem.Save(kv, in.Owner) },
		func() error { return tokenItem.Save(kv, in.Token) },
		func() error { return rewardAddressItem.Save(kv, in.RewardAddress) },
		func() error { return rewardInfoItem.Save(kv, in.RewardInfo) },
		func() error { return burnLimitItem.Save(kv, in.BurnLimit) },
		func() error { return burnedItem.Save(kv, new(big.Int)) },
		func() error { return totalWindowItem.Save(kv, newWindow(ctx.Now())) },
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return host.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("token", in.Token.Hex()), nil
}

func (c *Contract) Execute(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "receive":
		var in cw20.ReceiveMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		hook, _, err := host.ParseMessage(in.Msg)
		if err != nil {
			return nil, err
		}
		if hook != "burn" {
			return nil, fmt.Errorf("%w: receive %q", model.ErrUnknownMessage, hook)
		}
		token, err := tokenItem.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		if info.Sender != token {
			return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedToken, info.Sender.Hex())
		}
		return c.burn(ctx, token, in.Sender, in.Amount)
	case "update_owner":
		var in UpdateOwnerMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx.Store, info.Sender); err != nil {
			return nil, err
		}
		if in.Owner == (common.Address{}) {
			return nil, fmt.Errorf("%w: owner is required", model.ErrInvalidAddress)
		}
		if err := ownerItem.Save(ctx.Store, in.Owner); err != nil {
			return nil, err
		}
		return host.NewResponse().AddAttribute("action", "update_owner").AddAttribute("owner", in.Owner.Hex()), nil
	case "update_reward_address":
		var in UpdateRewardAddressMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx.Store, info.Sender); err != nil {
			return nil, err
		}
		if in.Address == (common.Address{}) {
			return nil, fmt.Errorf("%w: address is required", model.ErrInvalidAddress)
		}
		if err := rewardAddressItem.Save(ctx.Store, in.Address); err != nil {
			return nil, err
		}
		return host.NewResponse().AddAttribute("action", "update_reward_address").AddAttribute("address", in.Address.Hex()), nil
	case "update_reward_info":
		var in UpdateRewardInfoMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateRewardInfo(ctx, info.Sender, in)
	case "update_burn_limit":
		var in UpdateBurnLimitMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateBurnLimit(ctx, info.Sender, in)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

// burn checks both windows before writing anything, then burns amount and
// pays refund and reward out of what the contract held beforehand. The
// refund is capped first; the reward gets what is left.
func (c *Contract) burn(ctx host.Context, token, burner common.Address, amount *big.Int) (*host.Response, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	kv := ctx.Store
	now := ctx.Now()

	ratios, err := rewardInfoItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	limit, err := burnLimitItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	rewardAddress, err := rewardAddressItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}

	refund := ratios.RefundRatio.MulFloor(amount)
	reward := ratios.RewardRatio.MulFloor(amount)

	addrWindow, ok, err := addressWindows.Load(kv, store.AddressKey(burner))
	if err != nil {
		return nil, err
	}
	if !ok {
		addrWindow = newWindow(now)
	}
	addrWindow, err = addrWindow.Add(amount, limit.PerAddress, limit.Duration, now)
	if err != nil {
		return nil, fmt.Errorf("per address: %w", err)
	}
	total, err := totalWindowItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	total, err = total.Add(amount, limit.Total, limit.Duration, now)
	if err != nil {
		return nil, fmt.Errorf("total: %w", err)
	}

	held, err := cw20.QueryBalance(ctx.Querier, token, ctx.Self())
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(held, amount)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	if refund.Cmp(available) > 0 {
		refund = new(big.Int).Set(available)
	}
	available.Sub(available, refund)
	if reward.Cmp(available) > 0 {
		reward = new(big.Int).Set(available)
	}

	if err := addressWindows.Save(kv, store.AddressKey(burner), addrWindow); err != nil {
		return nil, err
	}
	if err := totalWindowItem.Save(kv, total); err != nil {
		return nil, err
	}
	burned, err := burnedItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	if err := burnedItem.Save(kv, new(big.Int).Add(burned, amount)); err != nil {
		return nil, err
	}

	burnMsg, err := cw20.Burn(token, amount)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse().AddMessage(burnMsg)
	if refund.Sign() > 0 {
		msg, err := cw20.Transfer(token, burner, refund)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(msg)
	}
	if reward.Sign() > 0 {
		msg, err := cw20.Transfer(token, rewardAddress, reward)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(msg)
	}
	ctx.Log().Debug("reward burn",
		zap.String("burner", burner.Hex()),
		zap.String("amount", amount.String()),
		zap.String("refund", refund.String()),
		zap.String("reward", reward.String()),
	)
	return resp.
		AddAttribute("action", "burn").
		AddAttribute("burner", burner.Hex()).
		AddAttribute("burn_amount", amount.String()).
		AddAttribute("refund_amount", refund.String()).
		AddAttribute("reward_amount", reward.String()), nil
}

func (c *Contract) updateRewardInfo(ctx host.Context, sender common.Address, in UpdateRewardInfoMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	current, err := rewardInfoItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	if in.RefundRatio != nil {
		if err := validateRatio(*in.RefundRatio); err != nil {
			return nil, fmt.Errorf("refund ratio: %w", err)
		}
		current.RefundRatio = *in.RefundRatio
	}
	if in.RewardRatio != nil {
		if err := validateRatio(*in.RewardRatio); err != nil {
			return nil, fmt.Errorf("reward ratio: %w", err)
		}
		current.RewardRatio = *in.RewardRatio
	}
	if err := rewardInfoItem.Save(ctx.Store, current); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "update_reward_info").
		AddAttribute("refund_ratio", current.RefundRatio.String()).
		AddAttribute("reward_ratio", current.RewardRatio.String()), nil
}

func (c *Contract) updateBurnLimit(ctx host.Context, sender common.Address, in UpdateBurnLimitMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	current, err := burnLimitItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	if in.Total != nil {
		current.Total = new(big.Int).Set(in.Total)
	}
	if in.PerAddress != nil {
		current.PerAddress = new(big.Int).Set(in.PerAddress)
	}
	if in.Duration != nil {
		current.Duration = *in.Duration
	}
	if err := validateLimit(current); err != nil {
		return nil, err
	}
	if err := burnLimitItem.Save(ctx.Store, current); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "update_burn_limit").
		AddAttribute("total", current.Total.String()).
		AddAttribute("per_address", current.PerAddress.String()).
		AddAttribute("duration", fmt.Sprintf("%d", current.Duration)), nil
}

func requireOwner(kv store.KVStore, sender common.Address) error {
	owner, err := ownerItem.MustLoad(kv)
	if err != nil {
		return err
	}
	if sender != owner {
		return fmt.Errorf("%w: owner only", model.ErrUnauthorized)
	}
	return nil
}

func validateRatio(f model.Fraction) error {
	if f.IsZero() {
		return model.ErrZeroRatio
	}
	if f.Denominator == nil || f.Denominator.Sign() <= 0 || f.Numerator.Sign() < 0 {
		return fmt.Errorf("%w: %s", model.ErrInvalidFraction, f)
	}
	if f.Numerator.Cmp(f.Denominator) > 0 {
		return model.ErrRatioMustBeAtMostOne
	}
	return nil
}

func validateLimit(l BurnLimit) error {
	if l.Total == nil || l.Total.Sign() <= 0 {
		return fmt.Errorf("%w: total", model.ErrInvalidZeroLimit)
	}
	if l.PerAddress == nil || l.PerAddress.Sign() <= 0 {
		return fmt.Errorf("%w: per_address", model.ErrInvalidZeroLimit)
	}
	if l.Duration == 0 {
		return fmt.Errorf("%w: duration", model.ErrInvalidZeroLimit)
	}
	return nil
}
