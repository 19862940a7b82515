// Package proxyswap routes swaps through a venue router and withholds a
// per-token buy tax from whatever the router paid out.
package proxyswap

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
	contractName    = "crates.io:proxy-swap"
	contractVersion = "0.2.0"

	kindSwap = "swap"
)

var (
	ownerItem  = store.NewItem[common.Address]("owner")
	routerItem = store.NewItem[common.Address]("swap_router")
	buyTaxes   = store.NewMap[model.Fraction]("token_buy_tax/")
)

type Contract struct {
	settlements *settlement.Dispatcher
}

// New builds the proxy. expiry is forwarded to its settlement lock.
func New(expiry uint64) host.Contract {
	c := &Contract{}
	c.settlements = settlement.NewDispatcher(expiry).Register(kindSwap, c.settleSwap)
	return c
}

func (c *Contract) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in InstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	if in.Owner == (common.Address{}) || in.SwapRouter == (common.Address{}) {
		return nil, fmt.Errorf("%w: owner and swap_router are required", model.ErrInvalidAddress)
	}
	if err := host.SetContractVersion(ctx.Store, contractName, contractVersion); err != nil {
		return nil, err
	}
	if err := ownerItem.Save(ctx.Store, in.Owner); err != nil {
		return nil, err
	}
	if err := routerItem.Save(ctx.Store, in.SwapRouter); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("owner", in.Owner.Hex()), nil
}

func (c *Contract) Execute(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "swap":
		var in SwapMsg
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
	case "update_owner":
		var in UpdateOwnerMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx, info.Sender); err != nil {
			return nil, err
		}
		if in.NewOwner == (common.Address{}) {
			return nil, fmt.Errorf("%w: new_owner is required", model.ErrInvalidAddress)
		}
		if err := ownerItem.Save(ctx.Store, in.NewOwner); err != nil {
			return nil, err
		}
		return host.NewResponse().AddAttribute("owner", in.NewOwner.Hex()), nil
	case "update_swap_router":
		var in UpdateSwapRouterMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx, info.Sender); err != nil {
			return nil, err
		}
		if in.Router == (common.Address{}) {
			return nil, fmt.Errorf("%w: router is required", model.ErrInvalidAddress)
		}
		if err := routerItem.Save(ctx.Store, in.Router); err != nil {
			return nil, err
		}
		return host.NewResponse().AddAttribute("swap_router", in.Router.Hex()), nil
	case "set_token_buy_tax":
		var in SetTokenBuyTaxMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := requireOwner(ctx, info.Sender); err != nil {
			return nil, err
		}
		if err := in.BuyTax.Validate(); err != nil {
			return nil, err
		}
		if err := buyTaxes.Save(ctx.Store, store.AddressKey(in.TokenAddress), in.BuyTax); err != nil {
			return nil, err
		}
		return host.NewResponse().
			AddAttribute("token", in.TokenAddress.Hex()).
			AddAttribute("buy_tax", in.BuyTax.String()), nil
	case "release_settlement":
		if err := requireOwner(ctx, info.Sender); err != nil {
			return nil, err
		}
		p, err := c.settlements.Lock(ctx).Release()
		if err != nil {
			return nil, err
		}
		ctx.Log().Warn("settlement released by owner", zap.Uint64("id", p.CorrelationID), zap.String("actor", p.Actor.Hex()))
		return host.NewResponse().
			AddAttribute("action", "release_settlement").
			AddAttribute("correlation_id", fmt.Sprintf("%d", p.CorrelationID)), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

// swapNative swaps the attached coin less the host send tax, which stays
// with the proxy.
func (c *Contract) swapNative(ctx host.Context, info host.MessageInfo, in SwapMsg) (*host.Response, error) {
	coin, err := model.OneCoin(info.Funds)
	if err != nil {
		return nil, err
	}
	sendTax := model.NativeSendTax().MulFloor(coin.Amount)
	amount := new(big.Int).Sub(coin.Amount, sendTax)
	if amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	resp, err := c.begin(ctx, info.Sender, model.NativeAsset(coin.Denom), amount, in)
	if err != nil {
		return nil, err
	}
	return resp.AddAttribute("native_tax", sendTax.String()), nil
}

func (c *Contract) receive(ctx host.Context, info host.MessageInfo, in cw20.ReceiveMsg) (*host.Response, error) {
	name, body, err := host.ParseMessage(in.Msg)
	if err != nil {
		return nil, err
	}
	if name != "swap" {
		return nil, fmt.Errorf("%w: receive %q", model.ErrUnknownMessage, name)
	}
	var hook SwapMsg
	if err := host.Decode(body, &hook); err != nil {
		return nil, err
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	return c.begin(ctx, in.Sender, model.TokenAsset(info.Sender), in.Amount, hook)
}

// begin locks for buyer and sends offer through the router, paid back to the
// proxy so the continuation can observe it.
func (c *Contract) begin(ctx host.Context, buyer common.Address, offer model.AssetInfo, amount *big.Int, in SwapMsg) (*host.Response, error) {
	if err := in.AskAsset.Validate(); err != nil {
		return nil, err
	}
	if in.AskAsset.Equal(offer) {
		return nil, fmt.Errorf("%w: ask asset equals offer asset %s", model.ErrInvalidFunds, offer)
	}
	ops, err := dex.BuildOperations(offer, in.SwapPaths, in.AskAsset)
	if err != nil {
		return nil, err
	}
	router, err := routerItem.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	call, err := dex.SwapMsg(router, offer, amount, ops, ctx.Self())
	if err != nil {
		return nil, err
	}
	sub, err := c.settlements.Begin(ctx, kindSwap, buyer, in.AskAsset, call)
	if err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddSubMessage(sub).
		AddAttribute("action", "swap").
		AddAttribute("buyer", buyer.Hex()).
		AddAttribute("offer_amount", amount.String()).
		AddAttribute("ask_asset", in.AskAsset.String()), nil
}

func (c *Contract) Reply(ctx host.Context, reply host.Reply) (*host.Response, error) {
	return c.settlements.Dispatch(ctx, reply)
}

// settleSwap pays out what the router delivered. Token assets owe the buy
// tax to the token's collector; native assets go to the buyer whole.
func (c *Contract) settleSwap(ctx host.Context, p settlement.Pending, _ host.Reply) (*host.Response, error) {
	bought, err := settlement.Observed(ctx, p)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse().
		AddAttribute("action", "settle_swap").
		AddAttribute("buyer", p.Actor.Hex()).
		AddAttribute("bought", bought.String())
	if bought.Sign() == 0 {
		return resp.AddAttribute("cw20_tax_amount", "0"), nil
	}

	if p.Asset.IsNative() {
		resp.AddMessage(host.BankSend{To: p.Actor, Amount: []model.Coin{model.NewCoin(p.Asset.Denom, bought)}})
		return resp.AddAttribute("cw20_tax_amount", "0"), nil
	}

	token := p.Asset.Contract
	rate, ok, err := buyTaxes.Load(ctx.Store, store.AddressKey(token))
	if err != nil {
		return nil, err
	}
	taxAmount := new(big.Int)
	if ok {
		taxAmount = rate.MulFloor(bought)
	}
	remainder := new(big.Int).Sub(bought, taxAmount)

	if taxAmount.Sign() > 0 {
		var collector common.Address
		if err := host.QueryJSON(ctx.Querier, token, "collect_tax_address", nil, &collector); err != nil {
			return nil, err
		}
		msg, err := cw20.Transfer(token, collector, taxAmount)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(msg)
	}
	if remainder.Sign() > 0 {
		msg, err := cw20.Transfer(token, p.Actor, remainder)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(msg)
	}
	ctx.Log().Debug("swap settled",
		zap.Uint64("id", p.CorrelationID),
		zap.String("buyer", p.Actor.Hex()),
		zap.String("bought", bought.String()),
		zap.String("tax", taxAmount.String()),
	)
	return resp.AddAttribute("cw20_tax_amount", taxAmount.String()), nil
}

func requireOwner(ctx host.Context, sender common.Address) error {
	owner, err := ownerItem.MustLoad(ctx.Store)
	if err != nil {
		return err
	}
	if sender != owner {
		return fmt.Errorf("%w: owner only", model.ErrUnauthorized)
	}
	return nil
}

func (c *Contract) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "owner":
		owner, err := ownerItem.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		return host.Marshal(OwnerResponse{Owner: owner})
	case "swap_router":
		router, err := routerItem.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		return host.Marshal(SwapRouterResponse{Router: router})
	case "token_tax_info":
		var in TokenTaxInfoQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		rate, ok, err := buyTaxes.Load(ctx.Store, store.AddressKey(in.TokenAddress))
		if err != nil {
			return nil, err
		}
		if !ok {
			rate = model.NewFraction(0, 1)
		}
		return host.Marshal(TokenBuyTaxResponse{TokenAddress: in.TokenAddress, BuyTax: rate})
	case "settlement":
		status, err := c.settlements.Lock(ctx).StatusAt(ctx.Now())
		if err != nil {
			return nil, err
		}
		return host.Marshal(status)
	case "contract_info":
		v, err := host.GetContractVersion(ctx.Store)
		if err != nil {
			return nil, err
		}
		return host.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}
