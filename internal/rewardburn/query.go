package rewardburn

import (
	"encoding/json"
	"fmt"

	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

func (c *Contract) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, body, err := host.ParseMessage(msg)
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
	case "token":
		token, err := tokenItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(AddressResponse{Address: token})
	case "reward_address":
		addr, err := rewardAddressItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(AddressResponse{Address: addr})
	case "reward_info":
		info, err := rewardInfoItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(info)
	case "burn_limit":
		limit, err := burnLimitItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(limit)
	case "total_burned_today":
		limit, err := burnLimitItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		w, err := totalWindowItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(AmountResponse{Amount: w.Current(limit.Duration, ctx.Now())})
	case "burned_today_by_address":
		var in BurnedTodayByAddressQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		limit, err := burnLimitItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		w, _, err := addressWindows.Load(kv, store.AddressKey(in.Address))
		if err != nil {
			return nil, err
		}
		return host.Marshal(AmountResponse{Amount: w.Current(limit.Duration, ctx.Now())})
	case "burned_amount":
		burned, err := burnedItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(BurnedAmountResponse{BurnedAmount: burned})
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

// Export lists the limits, the running total and every address window.
func (c *Contract) Export(ctx host.Context) ([]host.ExportRecord, error) {
	kv := ctx.Store
	limit, err := burnLimitItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	burned, err := burnedItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	total, err := totalWindowItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	out := []host.ExportRecord{
		{Kind: "burn_limit", Key: "burn_limit", Value: limit},
		{Kind: "burned_amount", Key: "burned_amount", Value: burned},
		{Kind: "burn_window", Key: "total", Value: total},
	}
	var keyErr error
	err = addressWindows.Range(kv, func(k []byte, w Window) bool {
		addr, err := store.AddressFromKey(k, 0)
		if err != nil {
			keyErr = err
			return false
		}
		out = append(out, host.ExportRecord{Kind: "burn_window", Key: addr.Hex(), Value: w})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, keyErr
}
