package proxyswap

import (
	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
)

type InstantiateMsg struct {
	Owner      common.Address `json:"owner"`
	SwapRouter common.Address `json:"swap_router"`
}

// SwapMsg is both the native entry point and the token receive hook.
type SwapMsg struct {
	AskAsset  model.AssetInfo   `json:"ask_asset"`
	SwapPaths []model.AssetInfo `json:"swap_paths,omitempty"`
}

type UpdateOwnerMsg struct {
	NewOwner common.Address `json:"new_owner"`
}

type UpdateSwapRouterMsg struct {
	Router common.Address `json:"router"`
}

type SetTokenBuyTaxMsg struct {
	TokenAddress common.Address `json:"token_address"`
	BuyTax       model.Fraction `json:"buy_tax"`
}

type TokenTaxInfoQuery struct {
	TokenAddress common.Address `json:"token_address"`
}

type OwnerResponse struct {
	Owner common.Address `json:"owner"`
}

type SwapRouterResponse struct {
	Router common.Address `json:"router"`
}

type TokenBuyTaxResponse struct {
	TokenAddress common.Address `json:"token_address"`
	BuyTax       model.Fraction `json:"buy_tax"`
}
