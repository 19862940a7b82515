package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
)

// SwapOperation is one hop of a routed swap.
type SwapOperation struct {
	OfferAssetInfo model.AssetInfo `json:"offer_asset_info"`
	AskAssetInfo   model.AssetInfo `json:"ask_asset_info"`
}

// ExecuteSwapOperations is the router entry point for a multi-hop swap.
type ExecuteSwapOperations struct {
	Operations     []SwapOperation `json:"operations"`
	MinimumReceive *big.Int        `json:"minimum_receive,omitempty"`
	To             *common.Address `json:"to,omitempty"`
}

type SimulateSwapOperations struct {
	OfferAmount *big.Int        `json:"offer_amount"`
	Operations  []SwapOperation `json:"operations"`
}

type SimulateSwapOperationsResponse struct {
	Amount *big.Int `json:"amount"`
}

// BuildOperations chains offer through every path asset to ask.
func BuildOperations(offer model.AssetInfo, paths []model.AssetInfo, ask model.AssetInfo) ([]SwapOperation, error) {
	if offer.Equal(ask) {
		return nil, fmt.Errorf("offer and ask are both %s", offer)
	}
	hops := make([]model.AssetInfo, 0, len(paths)+2)
	hops = append(hops, offer)
	hops = append(hops, paths...)
	hops = append(hops, ask)

	ops := make([]SwapOperation, 0, len(hops)-1)
	for i := 0; i+1 < len(hops); i++ {
		if hops[i].Equal(hops[i+1]) {
			return nil, fmt.Errorf("swap path repeats %s", hops[i])
		}
		ops = append(ops, SwapOperation{OfferAssetInfo: hops[i], AskAssetInfo: hops[i+1]})
	}
	return ops, nil
}

// ValidateOperations checks that hops are chained.
func ValidateOperations(ops []SwapOperation) error {
	if len(ops) == 0 {
		return fmt.Errorf("must provide swap operations")
	}
	for i := 1; i < len(ops); i++ {
		if !ops[i-1].AskAssetInfo.Equal(ops[i].OfferAssetInfo) {
			return fmt.Errorf("operation %d offers %s but previous asks %s", i, ops[i].OfferAssetInfo, ops[i-1].AskAssetInfo)
		}
	}
	return nil
}

// SwapMsg builds the router call that swaps amount of offer along ops and
// pays the result to `to`. Native offers ride along as funds; token offers
// go through the token's send hook.
func SwapMsg(router common.Address, offer model.AssetInfo, amount *big.Int, ops []SwapOperation, to common.Address) (host.WasmExecute, error) {
	body := ExecuteSwapOperations{Operations: ops, To: &to}
	switch offer.Kind {
	case model.AssetNative:
		return host.Execute(router, "execute_swap_operations", body, model.NewCoin(offer.Denom, amount))
	case model.AssetToken:
		hook, err := host.TaggedJSON("execute_swap_operations", body)
		if err != nil {
			return host.WasmExecute{}, err
		}
		return host.Execute(offer.Contract, "send", cw20.SendMsg{Contract: router, Amount: amount, Msg: hook})
	default:
		return host.WasmExecute{}, offer.Validate()
	}
}
