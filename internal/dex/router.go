package dex

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

const routerContractName = "crates.io:fixed-rate-router"

// Router is a venue stand-in that quotes fixed rates between asset pairs and
// pays out of its own inventory. It does no price discovery.
type Router struct{}

func NewRouter() host.Contract { return &Router{} }

type RouterInstantiateMsg struct {
	Owner common.Address `json:"owner"`
}

type SetRateMsg struct {
	Offer model.AssetInfo `json:"offer"`
	Ask   model.AssetInfo `json:"ask"`
	Rate  model.Fraction  `json:"rate"`
}

type RateQuery struct {
	Offer model.AssetInfo `json:"offer"`
	Ask   model.AssetInfo `json:"ask"`
}

var (
	routerOwner = store.NewItem[common.Address]("owner")
	routerRates = store.NewMap[model.Fraction]("rate/")
)

func rateKey(offer, ask model.AssetInfo) []byte {
	return []byte(offer.String() + "|" + ask.String())
}

func (r *Router) Instantiate(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	var in RouterInstantiateMsg
	if err := host.Decode(msg, &in); err != nil {
		return nil, err
	}
	owner := in.Owner
	if owner == (common.Address{}) {
		owner = info.Sender
	}
	if err := host.SetContractVersion(ctx.Store, routerContractName, "1.0.0"); err != nil {
		return nil, err
	}
	if err := routerOwner.Save(ctx.Store, owner); err != nil {
		return nil, err
	}
	return host.NewResponse().AddAttribute("action", "instantiate"), nil
}

func (r *Router) Execute(ctx host.Context, info host.MessageInfo, msg json.RawMessage) (*host.Response, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "set_rate":
		var in SetRateMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		return r.setRate(ctx, info, in)
	case "execute_swap_operations":
		var in ExecuteSwapOperations
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := ValidateOperations(in.Operations); err != nil {
			return nil, err
		}
		offer := in.Operations[0].OfferAssetInfo
		if !offer.IsNative() {
			return nil, fmt.Errorf("%w: token offers must arrive through receive", model.ErrInvalidFunds)
		}
		coin, err := model.OneCoin(info.Funds)
		if err != nil {
			return nil, err
		}
		if coin.Denom != offer.Denom {
			return nil, fmt.Errorf("%w: sent %s, operations offer %s", model.ErrInvalidFunds, coin.Denom, offer.Denom)
		}
		return r.swap(ctx, info.Sender, coin.Amount, in)
	case "receive":
		var in cw20.ReceiveMsg
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		hookName, hookBody, err := host.ParseMessage(in.Msg)
		if err != nil {
			return nil, err
		}
		if hookName != "execute_swap_operations" {
			return nil, fmt.Errorf("%w: receive %q", model.ErrUnknownMessage, hookName)
		}
		var swap ExecuteSwapOperations
		if err := host.Decode(hookBody, &swap); err != nil {
			return nil, err
		}
		if err := ValidateOperations(swap.Operations); err != nil {
			return nil, err
		}
		if !swap.Operations[0].OfferAssetInfo.Equal(model.TokenAsset(info.Sender)) {
			return nil, fmt.Errorf("%w: received %s, operations offer %s", model.ErrInvalidFunds, info.Sender.Hex(), swap.Operations[0].OfferAssetInfo)
		}
		return r.swap(ctx, in.Sender, in.Amount, swap)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}

func (r *Router) setRate(ctx host.Context, info host.MessageInfo, in SetRateMsg) (*host.Response, error) {
	owner, err := routerOwner.MustLoad(ctx.Store)
	if err != nil {
		return nil, err
	}
	if info.Sender != owner {
		return nil, model.ErrUnauthorized
	}
	if in.Rate.Denominator == nil || in.Rate.Denominator.Sign() <= 0 || in.Rate.Numerator == nil || in.Rate.Numerator.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidFraction, in.Rate)
	}
	if err := routerRates.Save(ctx.Store, rateKey(in.Offer, in.Ask), in.Rate); err != nil {
		return nil, err
	}
	return host.NewResponse().
		AddAttribute("action", "set_rate").
		AddAttribute("pair", string(rateKey(in.Offer, in.Ask))).
		AddAttribute("rate", in.Rate.String()), nil
}

// simulate walks every hop at its fixed rate.
func (r *Router) simulate(kv store.KVStore, amount *big.Int, ops []SwapOperation) (*big.Int, error) {
	out := new(big.Int).Set(amount)
	for _, op := range ops {
		rate, ok, err := routerRates.Load(kv, rateKey(op.OfferAssetInfo, op.AskAssetInfo))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: no rate for %s -> %s", model.ErrNotFound, op.OfferAssetInfo, op.AskAssetInfo)
		}
		out = new(big.Int).Div(new(big.Int).Mul(out, rate.Numerator), rate.Denominator)
	}
	return out, nil
}

func (r *Router) swap(ctx host.Context, sender common.Address, amount *big.Int, in ExecuteSwapOperations) (*host.Response, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, model.ErrZeroAmount
	}
	received, err := r.simulate(ctx.Store, amount, in.Operations)
	if err != nil {
		return nil, err
	}
	if in.MinimumReceive != nil && received.Cmp(in.MinimumReceive) < 0 {
		return nil, fmt.Errorf("%w: %s < %s", model.ErrMinimumReceive, received, in.MinimumReceive)
	}
	to := sender
	if in.To != nil {
		to = *in.To
	}

	ask := in.Operations[len(in.Operations)-1].AskAssetInfo
	resp := host.NewResponse().
		AddAttribute("action", "execute_swap_operations").
		AddAttribute("offer_amount", amount.String()).
		AddAttribute("return_amount", received.String()).
		AddAttribute("to", to.Hex())
	if received.Sign() == 0 {
		return resp, nil
	}
	switch ask.Kind {
	case model.AssetNative:
		resp.AddMessage(host.BankSend{To: to, Amount: []model.Coin{model.NewCoin(ask.Denom, received)}})
	case model.AssetToken:
		msg, err := cw20.Transfer(ask.Contract, to, received)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(msg)
	default:
		return nil, ask.Validate()
	}
	ctx.Log().Debug("router swap",
		zap.String("offer_amount", amount.String()),
		zap.String("ask", ask.String()),
		zap.String("return_amount", received.String()),
	)
	return resp, nil
}

func (r *Router) Query(ctx host.Context, msg json.RawMessage) ([]byte, error) {
	name, body, err := host.ParseMessage(msg)
	if err != nil {
		return nil, err
	}
	switch name {
	case "simulate_swap_operations":
		var in SimulateSwapOperations
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		if err := ValidateOperations(in.Operations); err != nil {
			return nil, err
		}
		amount, err := r.simulate(ctx.Store, in.OfferAmount, in.Operations)
		if err != nil {
			return nil, err
		}
		return host.Marshal(SimulateSwapOperationsResponse{Amount: amount})
	case "rate":
		var in RateQuery
		if err := host.Decode(body, &in); err != nil {
			return nil, err
		}
		rate, ok, err := routerRates.Load(ctx.Store, rateKey(in.Offer, in.Ask))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: no rate for %s -> %s", model.ErrNotFound, in.Offer, in.Ask)
		}
		return host.Marshal(rate)
	case "owner":
		owner, err := routerOwner.MustLoad(ctx.Store)
		if err != nil {
			return nil, err
		}
		return host.Marshal(owner)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessage, name)
	}
}
