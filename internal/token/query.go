package token

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
)

const (
	defaultAccountsLimit = 10
	maxAccountsLimit     = 30
)

func (c *Contract) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	kv := ctx.Store
	switch name {
	case "balance":
		var in cw20.BalanceQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		bal, err := balanceOf(kv, in.Address)
		if err != nil {
			return nil, err
		}
		return host.Marshal(cw20.BalanceResponse{Balance: bal})
	case "token_info":
		info, err := infoItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(cw20.TokenInfoResponse{
			Name:        info.Name,
			Symbol:      info.Symbol,
			Decimals:    info.Decimals,
			TotalSupply: info.TotalSupply,
		})
	case "minter":
		m, ok, err := minterItem.Load(kv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []byte("null"), nil
		}
		resp := cw20.MinterResponse{Minter: m.Minter}
		if m.HasCap {
			resp.Cap = m.Cap
		}
		return host.Marshal(resp)
	case "allowance":
		var in cw20.AllowanceQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		a, ok, err := allowances.Load(kv, store.AddressKey(in.Owner, in.Spender))
		if err != nil {
			return nil, err
		}
		resp := cw20.AllowanceResponse{Allowance: new(big.Int)}
		if ok && !a.expired(ctx.Now()) {
			resp.Allowance = a.Amount
			resp.Expires = a.Expires
		}
		return host.Marshal(resp)
	case "all_accounts":
		var in cw20.AllAccountsQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		accounts, err := allAccounts(kv, in)
		if err != nil {
			return nil, err
		}
		return host.Marshal(cw20.AllAccountsResponse{Accounts: accounts})
	case "venues":
		reg, err := tax.LoadRegistry(kv)
		if err != nil {
			return nil, err
		}
		if reg.Venues == nil {
			reg.Venues = []tax.Venue{}
		}
		return host.Marshal(reg)
	case "owner":
		return marshalItem(kv, ownerItem)
	case "creator":
		return marshalItem(kv, creatorItem)
	case "collect_tax_address":
		return marshalItem(kv, collectorItem)
	case "tax_info":
		info, err := taxInfoItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(TaxInfoResponse{
			BuyTax:      info.Buy,
			SellTax:     info.Sell,
			TransferTax: info.Transfer,
			Buy:         decimal(info.Buy),
			Sell:        decimal(info.Sell),
			Transfer:    decimal(info.Transfer),
		})
	case "tax_free_address":
		var in TaxFreeAddressQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		exempt, err := exemptions{kv: kv}.IsExempt(in.Address)
		if err != nil {
			return nil, err
		}
		return host.Marshal(exempt)
	case "tax_swap_config":
		cfg, err := swapItem.MustLoad(kv)
		if err != nil {
			return nil, err
		}
		return host.Marshal(cfg)
	case "simulate_transfer":
		var in SimulateTransferQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return c.simulateTransfer(kv, in)
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

func (c *Contract) simulateTransfer(kv store.KVStore, in SimulateTransferQuery) ([]byte, error) {
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	reg, err := tax.LoadRegistry(kv)
	if err != nil {
		return nil, err
	}
	info, err := taxInfoItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	op := tax.Classify(in.From, in.To, reg)
	taxAmount, err := tax.Engine{Info: info, Exemptions: exemptions{kv: kv}}.Compute(in.From, in.To, in.Amount, op)
	if err != nil {
		return nil, err
	}
	net, err := tax.Split(in.Amount, taxAmount)
	if err != nil {
		return nil, err
	}
	if taxAmount == nil {
		taxAmount = new(big.Int)
	}
	return host.Marshal(SimulateTransferResponse{Operation: op.String(), Tax: taxAmount, Net: net})
}

func allAccounts(kv store.KVStore, in cw20.AllAccountsQuery) ([]common.Address, error) {
	limit := int(in.Limit)
	if limit == 0 {
		limit = defaultAccountsLimit
	}
	if limit > maxAccountsLimit {
		limit = maxAccountsLimit
	}
	out := make([]common.Address, 0, limit)
	var keyErr error
	err := balances.Range(kv, func(k []byte, _ *big.Int) bool {
		addr, err := store.AddressFromKey(k, 0)
		if err != nil {
			keyErr = err
			return false
		}
		if in.StartAfter != nil && bytes.Compare(addr.Bytes(), in.StartAfter.Bytes()) <= 0 {
			return true
		}
		out = append(out, addr)
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, keyErr
}

func marshalItem(kv store.KVStore, item store.Item[common.Address]) ([]byte, error) {
	v, err := item.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	return host.Marshal(v)
}

func decimal(f *model.Fraction) string {
	if f == nil {
		return "0"
	}
	return new(big.Rat).SetFrac(f.Numerator, f.Denominator).FloatString(6)
}

// Export lists balances, allowances and configuration for snapshots.
func (c *Contract) Export(ctx host.Context) ([]host.ExportRecord, error) {
	kv := ctx.Store
	var out []host.ExportRecord

	info, err := infoItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	out = append(out, host.ExportRecord{Kind: "token_info", Key: info.Symbol, Value: cw20.TokenInfoResponse{
		Name: info.Name, Symbol: info.Symbol, Decimals: info.Decimals, TotalSupply: info.TotalSupply,
	}})

	if err := balances.Range(kv, func(k []byte, bal *big.Int) bool {
		out = append(out, host.ExportRecord{Kind: "balance", Key: common.BytesToAddress(k).Hex(), Value: bal})
		return true
	}); err != nil {
		return nil, err
	}
	if err := allowances.Range(kv, func(k []byte, a allowance) bool {
		owner := common.BytesToAddress(k[:common.AddressLength])
		spender := common.BytesToAddress(k[common.AddressLength:])
		out = append(out, host.ExportRecord{
			Kind:  "allowance",
			Key:   owner.Hex() + "/" + spender.Hex(),
			Value: cw20.AllowanceResponse{Allowance: a.Amount, Expires: a.Expires},
		})
		return true
	}); err != nil {
		return nil, err
	}

	reg, err := tax.LoadRegistry(kv)
	if err != nil {
		return nil, err
	}
	for _, v := range reg.Venues {
		out = append(out, host.ExportRecord{Kind: "venue", Key: v.Name, Value: v})
	}
	taxInfo, err := taxInfoItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	out = append(out, host.ExportRecord{Kind: "tax_info", Key: "tax_info", Value: taxInfo})
	collector, err := collectorItem.MustLoad(kv)
	if err != nil {
		return nil, err
	}
	out = append(out, host.ExportRecord{Kind: "collect_tax_address", Key: "collect_tax_address", Value: collector})
	return out, nil
}
