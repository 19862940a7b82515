package staking

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

// Record is one address's active stake. Reward is reserved out of the pool
// when the stake opens.
type Record struct {
	Amount *big.Int
	Start  uint64
	Period Period
	Reward *big.Int
}

// Pool is the reward capacity: Remaining is what may still be minted,
// Pending is what open stakes have reserved out of it.
type Pool struct {
	Remaining   *big.Int
	Pending     *big.Int
	TotalStaked *big.Int
}

// Outcome reports what an unstake pays.
type Outcome struct {
	Principal *big.Int
	Reward    *big.Int
	Matured   bool
}

var (
	tokenItem = store.NewItem[common.Address]("token_address")
	poolItem  = store.NewItem[Pool]("pool")
	stakes    = store.NewMap[Record]("stake/")
)

func loadPool(kv store.KVStore) (Pool, error) {
	return poolItem.MustLoad(kv)
}

// openStake reserves the tier reward for actor. The pool must be able to
// cover every reservation including this one.
func openStake(kv store.KVStore, actor common.Address, amount *big.Int, period Period, now uint64) (Record, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Record{}, model.ErrInvalidStakeAmount
	}
	tier, err := tierOf(period)
	if err != nil {
		return Record{}, err
	}
	key := store.AddressKey(actor)
	staked, err := stakes.Has(kv, key)
	if err != nil {
		return Record{}, err
	}
	if staked {
		return Record{}, fmt.Errorf("%w: %s", model.ErrAlreadyStaked, actor.Hex())
	}
	pool, err := loadPool(kv)
	if err != nil {
		return Record{}, err
	}
	reward := tier.RewardRate.MulFloor(amount)
	reserved := new(big.Int).Add(pool.Pending, reward)
	if pool.Remaining.Cmp(reserved) < 0 {
		return Record{}, fmt.Errorf("%w: remaining %s, reserved %s", model.ErrInsufficientRewards, pool.Remaining, reserved)
	}

	rec := Record{Amount: new(big.Int).Set(amount), Start: now, Period: period, Reward: reward}
	pool.Pending = reserved
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
	if err := poolItem.Save(kv, pool); err != nil {
		return Record{}, err
	}
	if err := stakes.Save(kv, key, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// closeStake removes actor's stake and releases its reservation. The reward
// is paid out of Remaining only at or after maturity; before that it is
// forfeited back to the pool.
func closeStake(kv store.KVStore, actor common.Address, now uint64) (Outcome, error) {
	key := store.AddressKey(actor)
	rec, ok, err := stakes.Load(kv, key)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", model.ErrNotStaked, actor.Hex())
	}
	tier, err := tierOf(rec.Period)
	if err != nil {
		return Outcome{}, err
	}
	pool, err := loadPool(kv)
	if err != nil {
		return Outcome{}, err
	}

	pool.Pending = new(big.Int).Sub(pool.Pending, rec.Reward)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, rec.Amount)
	out := Outcome{Principal: rec.Amount, Reward: new(big.Int)}
	if now >= rec.Start+tier.Seconds() {
		out.Matured = true
		out.Reward = rec.Reward
		pool.Remaining = new(big.Int).Sub(pool.Remaining, rec.Reward)
	}
	if pool.Pending.Sign() < 0 || pool.Remaining.Sign() < 0 {
		return Outcome{}, fmt.Errorf("%w: reward pool would go negative", model.ErrInsufficientRewards)
	}

	if err := poolItem.Save(kv, pool); err != nil {
		return Outcome{}, err
	}
	if err := stakes.Remove(kv, key); err != nil {
		return Outcome{}, err
	}
	return out, nil
}
