package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
)

type tokenInfo struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

type minterData struct {
	Minter common.Address
	HasCap bool
	Cap    *big.Int
}

type allowance struct {
	Amount  *big.Int
	Expires uint64
}

func (a allowance) expired(now uint64) bool {
	return a.Expires != 0 && now >= a.Expires
}

// SwapConfig controls the automatic swap of collected tax.
type SwapConfig struct {
	Enabled   bool            `json:"enabled"`
	Threshold *big.Int        `json:"threshold"`
	Target    model.AssetInfo `json:"target"`
}

// DefaultSwapThreshold is 10_000 whole units at six decimals.
var DefaultSwapThreshold = big.NewInt(10_000 * 1_000_000)

const DefaultSwapDenom = "uluna"

var (
	infoItem      = store.NewItem[tokenInfo]("token_info")
	minterItem    = store.NewItem[minterData]("minter")
	ownerItem     = store.NewItem[common.Address]("owner")
	creatorItem   = store.NewItem[common.Address]("creator")
	collectorItem = store.NewItem[common.Address]("collect_tax_address")
	taxInfoItem   = store.NewItem[tax.Info]("tax_info")
	swapItem      = store.NewItem[SwapConfig]("tax_swap")

	balances   = store.NewMap[*big.Int]("balance/")
	allowances = store.NewMap[allowance]("allowance/")
	taxFree    = store.NewMap[bool]("tax_free/")
)

// exemptions reads the tax-free table. The stored flag is honoured, so an
// address explicitly set to false is taxed.
type exemptions struct {
	kv store.KVStore
}

func (e exemptions) IsExempt(addr common.Address) (bool, error) {
	flag, _, err := taxFree.Load(e.kv, store.AddressKey(addr))
	return flag, err
}

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

func requireCreator(kv store.KVStore, sender common.Address) error {
	creator, err := creatorItem.MustLoad(kv)
	if err != nil {
		return err
	}
	if sender != creator {
		return fmt.Errorf("%w: creator only", model.ErrUnauthorized)
	}
	return nil
}
