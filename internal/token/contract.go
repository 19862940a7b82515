package token

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
	"cremationLedger/internal/tax"
)

const (
	contractName    = "crates.io:cremation-token"
	contractVersion = "1.1.0"
)

// Contract is the tax-aware fungible token.
type Contract struct{}

func New() host.Contract { return &Contract{} }

func (c *Contract) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in InstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if in.Name == "" || in.Symbol == "" {
		return nil, fmt.Errorf("name and symbol are required")
	}
	if in.Decimals > 18 {
		return nil, fmt.Errorf("decimals must not exceed 18")
	}
	if in.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner is required", model.ErrInvalidAddress)
	}
	if err := in.TaxInfo.Validate(); err != nil {
		return nil, err
	}
	kv := ctx.Store

	if err := host.SetContractVersion(kv, contractName, contractVersion); err != nil {
		return nil, err
	}

	supply := new(big.Int)
	for _, b := range in.InitialBalances {
		if b.Amount == nil || b.Amount.Sign() < 0 {
			return nil, fmt.Errorf("%w: initial balance for %s", model.ErrInvalidFunds, b.Address.Hex())
		}
		if err := credit(kv, b.Address, b.Amount); err != nil {
			return nil, err
		}
		supply.Add(supply, b.Amount)
	}
	if in.Mint != nil {
		m := minterData{Minter: in.Mint.Minter}
		if in.Mint.Cap != nil {
			if supply.Cmp(in.Mint.Cap) > 0 {
				return nil, fmt.Errorf("%w: initial supply above cap", model.ErrCapExceeded)
			}
			m.HasCap = true
			m.Cap = new(big.Int).Set(in.Mint.Cap)
		}
		if err := minterItem.Save(kv, m); err != nil {
			return nil, err
		}
	}
	if err := infoItem.Save(kv, tokenInfo{Name: in.Name, Symbol: in.Symbol, Decimals: in.Decimals, TotalSupply: supply}); err != nil {
		return nil, err
	}

	if err := taxInfoItem.Save(kv, in.TaxInfo); err != nil {
		return nil, err
	}
	if err := creatorItem.Save(kv, info.Sender); err != nil {
		return nil, err
	}
	if err := ownerItem.Save(kv, in.Owner); err != nil {
		return nil, err
	}
	if err := collectorItem.Save(kv, in.Owner); err != nil {
		return nil, err
	}
	if err := taxFree.Save(kv, store.AddressKey(in.Owner), true); err != nil {
		return nil, err
	}

	swap := SwapConfig{Enabled: true, Threshold: new(big.Int).Set(DefaultSwapThreshold), Target: model.NativeAsset(DefaultSwapDenom)}
	if in.TaxSwap != nil {
		swap = applySwapConfig(swap, *in.TaxSwap)
	}
	if err := validateSwapConfig(swap); err != nil {
		return nil, err
	}
	if err := swapItem.Save(kv, swap); err != nil {
		return nil, err
	}

	return host.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("owner", in.Owner.Hex()).
		AddAttribute("total_supply", supply.String()), nil
}

func (c *Contract) Execute(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "transfer":
		var in cw20.TransferMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.transfer(ctx, info.Sender, info.Sender, in.Recipient, in.Amount)
	case "transfer_from":
		var in cw20.TransferFromMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := spendAllowance(ctx.Store, in.Owner, info.Sender, in.Amount, ctx.Now()); err != nil {
			return nil, err
		}
		return c.transfer(ctx, info.Sender, in.Owner, in.Recipient, in.Amount)
	case "send":
		var in cw20.SendMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.send(ctx, info.Sender, info.Sender, in.Contract, in.Amount, in.Msg)
	case "send_from":
		var in cw20.SendFromMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := spendAllowance(ctx.Store, in.Owner, info.Sender, in.Amount, ctx.Now()); err != nil {
			return nil, err
		}
		return c.send(ctx, info.Sender, in.Owner, in.Contract, in.Amount, in.Msg)
	case "burn":
		var in cw20.BurnMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := burn(ctx.Store, info.Sender, in.Amount); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("action", "burn").
			AddAttribute("from", info.Sender.Hex()).
			AddAttribute("amount", in.Amount.String()), nil
	case "burn_from":
		var in cw20.BurnFromMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := spendAllowance(ctx.Store, in.Owner, info.Sender, in.Amount, ctx.Now()); err != nil {
			return nil, err
		}
		if err := burn(ctx.Store, in.Owner, in.Amount); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("action", "burn_from").
			AddAttribute("from", in.Owner.Hex()).
			AddAttribute("by", info.Sender.Hex()).
			AddAttribute("amount", in.Amount.String()), nil
	case "mint":
		var in cw20.MintMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.mint(ctx, info.Sender, in)
	case "increase_allowance", "decrease_allowance":
		var in cw20.AllowanceMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.changeAllowance(ctx, info.Sender, in, name == "increase_allowance")
	case "update_minter":
		var in cw20.UpdateMinterMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateMinter(ctx, info.Sender, in)
	case "set_venues":
		var in SetVenuesMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.setVenues(ctx, info.Sender, in)
	case "add_pools":
		var in AddPoolsMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.addPools(ctx, info.Sender, in)
	case "remove_pool":
		var in RemovePoolMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.removePool(ctx, info.Sender, in)
	case "update_owner":
		var in UpdateOwnerMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateOwner(ctx, info.Sender, in)
	case "update_tax_info":
		var in UpdateTaxInfoMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateTaxInfo(ctx, info.Sender, in)
	case "update_collect_tax_address":
		var in UpdateCollectTaxAddressMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateCollectTaxAddress(ctx, info.Sender, in)
	case "set_tax_free_address":
		var in SetTaxFreeAddressMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.setTaxFreeAddress(ctx, info.Sender, in)
	case "update_tax_swap_config":
		var in SwapConfigMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.updateSwapConfig(ctx, info.Sender, in)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

func (c *Contract) transfer(ctx host.Context, spender, from, to common.Address, amount *big.Int) (*host.Response, error) {
	mv, err := moveWithTax(ctx.Store, from, to, amount)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse().
		AddAttribute("action", "transfer").
		AddAttribute("from", from.Hex()).
		AddAttribute("to", to.Hex()).
		AddAttribute("amount", mv.Net.String()).
		AddAttribute("tax", mv.taxString()).
		AddAttribute("operation", mv.Op.String())
	if spender != from {
		resp.AddAttribute("by", spender.Hex())
	}
	if err := c.swapCollectedTax(ctx, mv, to, resp); err != nil {
		return nil, err
	}
	ctx.Log().Debug("transfer",
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("op", mv.Op.String()),
		zap.String("tax", mv.taxString()),
	)
	return resp, nil
}

// send moves tokens to a contract and calls its receive hook with the
// amount actually credited.
func (c *Contract) send(ctx host.Context, spender, from, contract common.Address, amount *big.Int, hook []byte) (*host.Response, error) {
	mv, err := moveWithTax(ctx.Store, from, contract, amount)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse().
		AddAttribute("action", "send").
		AddAttribute("from", from.Hex()).
		AddAttribute("to", contract.Hex()).
		AddAttribute("amount", mv.Net.String()).
		AddAttribute("tax", mv.taxString()).
		AddAttribute("operation", mv.Op.String())
	if spender != from {
		resp.AddAttribute("by", spender.Hex())
	}

	receive, err := host.Execute(contract, "receive", cw20.ReceiveMsg{Sender: spender, Amount: mv.Net, Msg: hook})
	if err != nil {
		return nil, err
	}
	resp.AddMessage(receive)
	if err := c.swapCollectedTax(ctx, mv, contract, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Contract) mint(ctx host.Context, sender common.Address, in cw20.MintMsg) (*host.Response, error) {
	m, ok, err := minterItem.Load(ctx.Store)
	if err != nil {
		return nil, err
	}
	if !ok || m.Minter != sender {
		return nil, fmt.Errorf("%w: minter only", model.ErrUnauthorized)
	}
	if err := mint(ctx.Store, in.Recipient, in.Amount); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "mint").
		AddAttribute("to", in.Recipient.Hex()).
		AddAttribute("amount", in.Amount.String()), nil
}

func (c *Contract) changeAllowance(ctx host.Context, owner common.Address, in cw20.AllowanceMsg, increase bool) (*host.Response, error) {
	if in.Spender == owner {
		return nil, model.ErrCannotSetOwnAccount
	}
	if in.Amount == nil || in.Amount.Sign() < 0 {
		return nil, model.ErrZeroAmount
	}
	key := store.AddressKey(owner, in.Spender)
	current, ok, err := allowances.Load(ctx.Store, key)
	if err != nil {
		return nil, err
	}
	if !ok || current.Amount == nil {
		current = allowance{Amount: new(big.Int)}
	}
	if current.expired(ctx.Now()) {
		current.Amount = new(big.Int)
	}
	if in.Expires != 0 {
		if in.Expires <= ctx.Now() {
			return nil, model.ErrExpired
		}
		current.Expires = in.Expires
	}

	action := "increase_allowance"
	if increase {
		current.Amount = new(big.Int).Add(current.Amount, in.Amount)
	} else {
		action = "decrease_allowance"
		current.Amount = new(big.Int).Sub(current.Amount, in.Amount)
		if current.Amount.Sign() <= 0 {
			if err := allowances.Remove(ctx.Store, key); err != nil {
				return nil, err
			}
			current.Amount = new(big.Int)
		}
	}
	if current.Amount.Sign() > 0 {
		if err := allowances.Save(ctx.Store, key, current); err != nil {
			return nil, err
		}
	}
	return host.NewResponse().
		AddAttribute("action", action).
		AddAttribute("owner", owner.Hex()).
		AddAttribute("spender", in.Spender.Hex()).
		AddAttribute("amount", in.Amount.String()), nil
}

func (c *Contract) updateMinter(ctx host.Context, sender common.Address, in cw20.UpdateMinterMsg) (*host.Response, error) {
	m, ok, err := minterItem.Load(ctx.Store)
	if err != nil {
		return nil, err
	}
	if !ok || m.Minter != sender {
		return nil, fmt.Errorf("%w: minter only", model.ErrUnauthorized)
	}
	resp := host.NewResponse().AddAttribute("action", "update_minter")
	if in.NewMinter == nil {
		if err := minterItem.Remove(ctx.Store); err != nil {
			return nil, err
		}
		return resp.AddAttribute("new_minter", "none"), nil
	}
	m.Minter = *in.NewMinter
	if err := minterItem.Save(ctx.Store, m); err != nil {
		return nil, err
	}
	return resp.AddAttribute("new_minter", in.NewMinter.Hex()), nil
}

// Migrate upgrades the legacy single-pool config into the venue registry and
// merges any venues carried by the message.
func (c *Contract) Migrate(ctx host.Context, msg json.RawMessage) (*host.Response, error) {
	var in MigrateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if err := host.AssertContract(ctx.Store, contractName); err != nil {
		return nil, err
	}
	reg, err := tax.MigrateLegacy(ctx.Store, in.Venues...)
	if err != nil {
		return nil, err
	}
	if err := host.SetContractVersion(ctx.Store, contractName, contractVersion); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "migrate").
		AddAttribute("venues", fmt.Sprintf("%d", len(reg.Venues))), nil
}
