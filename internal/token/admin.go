package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
)

func (c *Contract) setVenues(ctx host.Context, sender common.Address, in SetVenuesMsg) (*host.Response, error) {
	if err := requireCreator(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := tax.SetVenues(ctx.Store, in.Venues); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "set_venues").
		AddAttribute("venues", fmt.Sprintf("%d", len(in.Venues))), nil
}

func (c *Contract) addPools(ctx host.Context, sender common.Address, in AddPoolsMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := tax.AddPools(ctx.Store, in.Venue, in.Pools); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "add_pools").
		AddAttribute("venue", in.Venue).
		AddAttribute("pools", fmt.Sprintf("%d", len(in.Pools))), nil
}

func (c *Contract) removePool(ctx host.Context, sender common.Address, in RemovePoolMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := tax.RemovePool(ctx.Store, in.Venue, in.Pool); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "remove_pool").
		AddAttribute("venue", in.Venue).
		AddAttribute("pool", in.Pool.Hex()), nil
}

func (c *Contract) updateOwner(ctx host.Context, sender common.Address, in UpdateOwnerMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if in.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner is required", model.ErrInvalidAddress)
	}
	if err := ownerItem.Save(ctx.Store, in.Owner); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "update_owner").
		AddAttribute("owner", in.Owner.Hex()), nil
}

func (c *Contract) updateTaxInfo(ctx host.Context, sender common.Address, in UpdateTaxInfoMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := in.TaxInfo.Validate(); err != nil {
		return nil, err
	}
	if err := taxInfoItem.Save(ctx.Store, in.TaxInfo); err != nil {
		return nil, err
	}
	return host.NewResponse().AddAttribute("action", "update_tax_info"), nil
}

// updateCollectTaxAddress points tax at a new collector and makes it tax-free.
func (c *Contract) updateCollectTaxAddress(ctx host.Context, sender common.Address, in UpdateCollectTaxAddressMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	current, err := collectorItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	if in.Address == current {
		return nil, fmt.Errorf("%w: collect tax address", model.ErrSameAddress)
	}
	if in.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: collect tax address is required", model.ErrInvalidAddress)
	}
	if err := collectorItem.Save(ctx.Store, in.Address); err != nil {
		return nil, err
	}
	if err := taxFree.Save(ctx.Store, store.AddressKey(in.Address), true); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "update_collect_tax_address").
		AddAttribute("address", in.Address.Hex()), nil
}

func (c *Contract) setTaxFreeAddress(ctx host.Context, sender common.Address, in SetTaxFreeAddressMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	if err := taxFree.Save(ctx.Store, store.AddressKey(in.Address), in.TaxFree); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "set_tax_free_address").
		AddAttribute("address", in.Address.Hex()).
		AddAttribute("tax_free", fmt.Sprintf("%t", in.TaxFree)), nil
}

func (c *Contract) updateSwapConfig(ctx host.Context, sender common.Address, in SwapConfigMsg) (*host.Response, error) {
	if err := requireOwner(ctx.Store, sender); err != nil {
		return nil, err
	}
	current, err := swapItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	next := applySwapConfig(current, in)
	if err := validateSwapConfig(next); err != nil {
		return nil, err
	}
	if err := swapItem.Save(ctx.Store, next); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "update_tax_swap_config").
		AddAttribute("enabled", fmt.Sprintf("%t", next.Enabled)).
		AddAttribute("threshold", next.Threshold.String()).
		AddAttribute("target", next.Target.String()), nil
}

func applySwapConfig(cfg SwapConfig, in SwapConfigMsg) SwapConfig {
	if in.Enabled != nil {
		cfg.Enabled = *in.Enabled
	}
	if in.Threshold != nil {
		cfg.Threshold = new(big.Int).Set(in.Threshold)
	}
	if in.Target != nil {
		cfg.Target = *in.Target
	}
	return cfg
}

func validateSwapConfig(cfg SwapConfig) error {
	if cfg.Threshold == nil || cfg.Threshold.Sign() <= 0 {
		return fmt.Errorf("%w: swap threshold", model.ErrZeroAmount)
	}
	return cfg.Target.Validate()
}
