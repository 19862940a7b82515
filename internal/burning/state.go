package burning

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

// BurnDenom is the native denomination this module destroys.
const BurnDenom = "uluna"

var (
	ownerItem       = store.NewItem[common.Address]("owner")
	burnedItem      = store.NewItem[*big.Int]("burned_amount")
	feeRatioItem    = store.NewItem[model.Fraction]("development_fee")
	beneficiaryItem = store.NewItem[common.Address]("fee_beneficiary")
	routerItem      = store.NewItem[common.Address]("swap_router")

	whitelist = store.NewMap[model.Fraction]("reward_whitelist/")
)

func requireOwner(kv store.KVStore, sender common.Address) error {
	owner, err := ownerItem.MustLoad(kv)
	if err != nil {
		return err
	}
	if sender != owner {
		return fmt.Errorf("%w: owner only", model.ErrUnauthorized)
	}
	return nil
}

func validateFeeRatio(f model.Fraction) error {
	if f.Numerator == nil || f.Denominator == nil || f.Denominator.Sign() <= 0 || f.Numerator.Sign() < 0 {
		return fmt.Errorf("%w: fee ratio %s", model.ErrInvalidFraction, f)
	}
	if !f.LessThanOne() {
		return model.ErrFeeRatioMustBeLessThanOne
	}
	return nil
}

func validateRewardRatio(f model.Fraction) error {
	if f.IsZero() {
		return model.ErrZeroRatio
	}
	return f.Validate()
}

// loadWhitelist returns the reward table in address order.
func loadWhitelist(kv store.KVStore) ([]RewardInfo, error) {
	var out []RewardInfo
	var keyErr error
	err := whitelist.Range(kv, func(k []byte, ratio model.Fraction) bool {
		token, err := store.AddressFromKey(k, 0)
		if err != nil {
			keyErr = err
			return false
		}
		out = append(out, RewardInfo{Token: token, RewardRatio: ratio})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, keyErr
}
