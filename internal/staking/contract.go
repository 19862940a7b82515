// Package staking locks the token for a fixed tier and mints a reward at
// maturity out of the token's remaining mint capacity.
package staking

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
	contractName    = "crates.io:cremation-stake"
	contractVersion = "0.1.0"
)

type InstantiateMsg struct {
	TokenAddress common.Address `json:"token_address"`
}

type StakeHook struct {
	StakingPeriod Period `json:"staking_period"`
}

type StakedQuery struct {
	Address common.Address `json:"address"`
}

type StakedResponse struct {
	StakedAmount  *big.Int `json:"staked_amount"`
	PendingReward *big.Int `json:"pending_reward"`
	ClaimRewardAt uint64   `json:"claim_reward_at"`
	Period        *Period  `json:"staking_period,omitempty"`
}

type RewardInfoResponse struct {
	TokenReward common.Address `json:"token_reward"`
	RewardInfo  []Tier         `json:"reward_info"`
}

type TotalStakedResponse struct {
	TotalStakedAmount *big.Int `json:"total_staked_amount"`
}

type CanStakeResponse struct {
	CanStake bool `json:"can_stake"`
}

type RemainingRewardsResponse struct {
	RemainingRewards *big.Int `json:"remaining_rewards"`
}

type TotalPendingRewardsResponse struct {
	TotalPendingRewards *big.Int `json:"total_pending_rewards"`
}

type Contract struct{}

func New() host.Contract { return &Contract{} }

// Instantiate sizes the reward pool as the token's cap minus its supply.
func (c *Contract) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in InstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if in.TokenAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: token_address is required", model.ErrInvalidAddress)
	}
	minter, err := cw20.QueryMinter(ctx.Querier, in.TokenAddress)
	if err != nil {
		return nil, err
	}
	if minter.Cap == nil {
		return nil, fmt.Errorf("token %s has no mint cap", in.TokenAddress.Hex())
	}
	tokenInfo, err := cw20.QueryTokenInfo(ctx.Querier, in.TokenAddress)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(minter.Cap, tokenInfo.TotalSupply)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}

	if err := host.SetContractVersion(ctx.Store, contractName, contractVersion); err != nil {
		return nil, err
	}
	if err := tokenItem.Save(ctx.Store, in.TokenAddress); err != nil {
		return nil, err
	}
	if err := poolItem.Save(ctx.Store, Pool{Remaining: remaining, Pending: new(big.Int), TotalStaked: new(big.Int)}); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("remaining_rewards", remaining.String()), nil
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
		return c.receive(ctx, info, in)
	case "unstake":
		return c.unstake(ctx, info.Sender)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

func (c *Contract) receive(ctx host.Context, info host.MessageInfo, in cw20.ReceiveMsg) (*host.Response, error) {
	token, err := tokenItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	if info.Sender != token {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedToken, info.Sender.Hex())
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, model.ErrInvalidStakeAmount
	}
	hook, body, err := host.ParseMessage(in.Msg)
	if err != nil {
		return nil, err
	}
	if hook != "stake" {
		return nil, fmt.Errorf("%w: receive %q", model.ErrUnknownMessage, hook)
	}
	var stake StakeHook
	if err := host.Decode(body, &stake); err != nil {
		return nil, err
	}
	rec, err := openStake(ctx.Store, in.Sender, in.Amount, stake.StakingPeriod, ctx.Now())
	if err != nil {
		return nil, err
	}
	tier, _ := tierOf(rec.Period)
	ctx.Log().Debug("stake",
		zap.String("staker", in.Sender.Hex()),
		zap.String("amount", rec.Amount.String()),
		zap.String("period", rec.Period.String()),
	)
	return host.NewResponse().
		AddAttribute("action", "stake").
		AddAttribute("staker", in.Sender.Hex()).
		AddAttribute("staked_amount", rec.Amount.String()).
		AddAttribute("period", fmt.Sprintf("%d", tier.Days)), nil
}

func (c *Contract) unstake(ctx host.Context, staker common.Address) (*host.Response, error) {
	token, err := tokenItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	out, err := closeStake(ctx.Store, staker, ctx.Now())
	if err != nil {
		return nil, err
	}
	principal, err := cw20.Transfer(token, staker, out.Principal)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse().
		AddMessage(principal).
		AddAttribute("action", "unstake").
		AddAttribute("staker", staker.Hex()).
		AddAttribute("unstaked_amount", out.Principal.String())
	if out.Matured && out.Reward.Sign() > 0 {
		mint, err := cw20.Mint(token, staker, out.Reward)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(mint).AddAttribute("reward", out.Reward.String())
	}
	return resp, nil
}

func (c *Contract) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	kv := ctx.Store
	switch name {
	case "staked":
		var in StakedQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return staked(kv, in.Address)
	case "reward_info":
		token, err := tokenItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(RewardInfoResponse{TokenReward: token, RewardInfo: Tiers()})
	}

	pool, err := loadPool(kv)
	if err != nil {
		return nil, err
	}
	switch name {
	case "total_staked":
		return host.Marshal(TotalStakedResponse{TotalStakedAmount: pool.TotalStaked})
	case "can_stake":
		return host.Marshal(CanStakeResponse{CanStake: pool.Remaining.Cmp(pool.Pending) > 0})
	case "remaining_rewards":
		return host.Marshal(RemainingRewardsResponse{RemainingRewards: pool.Remaining})
	case "total_pending_rewards":
		return host.Marshal(TotalPendingRewardsResponse{TotalPendingRewards: pool.Pending})
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

func staked(kv store.KVStore, addr common.Address) ([]byte, error) {
	rec, ok, err := stakes.Load(kv, store.AddressKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return host.Marshal(StakedResponse{StakedAmount: new(big.Int), PendingReward: new(big.Int)})
	}
	tier, err := tierOf(rec.Period)
	if err != nil {
		return nil, err
	}
	period := rec.Period
	return host.Marshal(StakedResponse{
		StakedAmount:  rec.Amount,
		PendingReward: rec.Reward,
		ClaimRewardAt: rec.Start + tier.Seconds(),
		Period:        &period,
	})
}

// Export lists the pool and every open stake.
func (c *Contract) Export(ctx host.Context) ([]host.ExportRecord, error) {
	pool, err := loadPool(ctx.Store)
	if err != nil {
		return nil, err
	}
	out := []host.ExportRecord{{Kind: "reward_pool", Key: "pool", Value: pool}}
	var keyErr error
	err = stakes.Range(ctx.Store, func(k []byte, rec Record) bool {
		addr, err := store.AddressFromKey(k, 0)
		if err != nil {
			keyErr = err
			return false
		}
		out = append(out, host.ExportRecord{Kind: "stake", Key: addr.Hex(), Value: rec})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, keyErr
}
