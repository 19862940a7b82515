package rewardburn

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
)

type RewardInfo struct {
	RefundRatio model.Fraction `json:"refund_ratio"`
	RewardRatio model.Fraction `json:"reward_ratio"`
}

// BurnLimit caps burns per rolling window of Duration seconds.
type BurnLimit struct {
	Total      *big.Int `json:"total"`
	PerAddress *big.Int `json:"per_address"`
	Duration   uint64   `json:"duration"`
}

type InstantiateMsg struct {
	Owner         common.Address `json:"owner"`
	Token         common.Address `json:"token"`
	RewardAddress common.Address `json:"reward_address"`
	RewardInfo    RewardInfo     `json:"reward_info"`
	BurnLimit     BurnLimit      `json:"burn_limit"`
}

type UpdateOwnerMsg struct {
	Owner common.Address `json:"owner"`
}

type UpdateRewardAddressMsg struct {
	Address common.Address `json:"address"`
}

type UpdateRewardInfoMsg struct {
	RefundRatio *model.Fraction `json:"refund_ratio,omitempty"`
	RewardRatio *model.Fraction `json:"reward_ratio,omitempty"`
}

type UpdateBurnLimitMsg struct {
	Total      *big.Int `json:"total,omitempty"`
	PerAddress *big.Int `json:"per_address,omitempty"`
	Duration   *uint64  `json:"duration,omitempty"`
}

type BurnedTodayByAddressQuery struct {
	Address common.Address `json:"address"`
}

type OwnerResponse struct {
	Owner common.Address `json:"owner"`
}

type AddressResponse struct {
	Address common.Address `json:"address"`
}

type AmountResponse struct {
	Amount *big.Int `json:"amount"`
}

type BurnedAmountResponse struct {
	BurnedAmount *big.Int `json:"burned_amount"`
}
