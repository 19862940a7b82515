package burning

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
)

type DevelopmentConfig struct {
	Beneficiary common.Address `json:"beneficiary"`
	FeeRatio    model.Fraction `json:"fee_ratio"`
}

type InstantiateMsg struct {
	Owner             common.Address    `json:"owner"`
	DevelopmentConfig DevelopmentConfig `json:"development_config"`
	SwapRouter        *common.Address   `json:"swap_router,omitempty"`
}

// RewardInfo pays ratio × burned uluna of Token to every burner.
type RewardInfo struct {
	Token       common.Address `json:"token"`
	RewardRatio model.Fraction `json:"reward_ratio"`
}

type UpdateDevelopmentConfigMsg struct {
	Beneficiary *common.Address `json:"beneficiary,omitempty"`
	FeeRatio    *model.Fraction `json:"fee_ratio,omitempty"`
}

type RewardInfoMsg struct {
	RewardInfo RewardInfo `json:"reward_info"`
}

type RemoveFromRewardWhitelistMsg struct {
	Token common.Address `json:"token"`
}

type SwapAndBurnMsg struct {
	Denom     string            `json:"denom"`
	SwapPaths []model.AssetInfo `json:"swap_paths,omitempty"`
}

// SwapAndBurnHook arrives through the token receive hook.
type SwapAndBurnHook struct {
	SwapPaths []model.AssetInfo `json:"swap_paths,omitempty"`
}

type SetSwapRouterMsg struct {
	Router common.Address `json:"router"`
}

type UpdateOwnerMsg struct {
	NewOwner common.Address `json:"new_owner"`
}

type OwnerResponse struct {
	Owner common.Address `json:"owner"`
}

type RewardWhitelistResponse struct {
	RewardWhitelist []RewardInfo `json:"reward_whitelist"`
}

type BurnedAmountResponse struct {
	BurnedAmount *big.Int `json:"burned_amount"`
}

type SwapRouterResponse struct {
	SwapRouter *common.Address `json:"swap_router"`
}
