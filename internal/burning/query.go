package burning

import (
	"encoding/json"
	"fmt"

	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
)

func (c *Contract) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, _, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	kv := ctx.Store
	switch name {
	case "owner":
		owner, err := ownerItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(OwnerResponse{Owner: owner})
	case "development_config":
		cfg, err := developmentConfig(ctx)
		if err != nil {
			return nil, err
		}
		return host.Marshal(cfg)
	case "reward_whitelist":
		rewards, err := loadWhitelist(kv)
		if err != nil {
			return nil, err
		}
		if rewards == nil {
			rewards = []RewardInfo{}
		}
		return host.Marshal(RewardWhitelistResponse{RewardWhitelist: rewards})
	case "burned_amount":
		burned, err := burnedItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(BurnedAmountResponse{BurnedAmount: burned})
	case "swap_router":
		router, ok, err := routerItem.Load(kv)
		if err != nil {
			return nil, err
		}
		resp := SwapRouterResponse{}
		if ok {
			resp.SwapRouter = &router
		}
		return host.Marshal(resp)
	case "settlement":
		status, err := c.settlements.Lock(ctx).StatusAt(ctx.Now())
		if err != nil {
			return nil, err
		}
		return host.Marshal(status)
	case "contract_info":
		v, err := host.GetContractVersion(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

func developmentConfig(ctx host.Context) (DevelopmentConfig, error) {
	ratio, err := feeRatioItem.MustLoad(ctx.Store)
	if err != nil {
		return DevelopmentConfig{}, err
	}
	beneficiary, err := beneficiaryItem.MustLoad(ctx.Store)
	if err != nil {
		return DevelopmentConfig{}, err
	}
	return DevelopmentConfig{Beneficiary: beneficiary, FeeRatio: ratio}, nil
}

// Export reports the running burn total, the fee split and the reward table.
func (c *Contract) Export(ctx host.Context) ([]host.ExportRecord, error) {
	burned, err := burnedItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	cfg, err := developmentConfig(ctx)
	if err != nil {
		return nil, err
	}
	out := []host.ExportRecord{
		{Kind: "burned_amount", Key: BurnDenom, Value: burned},
		{Kind: "development_config", Key: "development_config", Value: cfg},
	}
	rewards, err := loadWhitelist(ctx.Store)
	if err != nil {
		return nil, err
	}
	for _, r := range rewards {
		out = append(out, host.ExportRecord{Kind: "reward_whitelist", Key: r.Token.Hex(), Value: r})
	}
	return out, nil
}
