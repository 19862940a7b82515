package host

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

const (
	bankBalancePrefix = "bank/balance/"
	bankSupplyPrefix  = "bank/supply/"
)

// bank keeps native coin balances in the host's root namespace.
type bank struct{}

func balanceKey(denom string, addr common.Address) []byte {
	return append([]byte(bankBalancePrefix+denom+"/"), addr.Bytes()...)
}

func supplyKey(denom string) []byte {
	return []byte(bankSupplyPrefix + denom)
}

func loadAmount(kv store.KVStore, key []byte) (*big.Int, error) {
	var out *big.Int
	ok, err := store.GetRLP(kv, key, &out)
	if err != nil {
		return nil, err
	}
	if !ok || out == nil {
		return new(big.Int), nil
	}
	return out, nil
}

func saveAmount(kv store.KVStore, key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return kv.Delete(key)
	}
	return store.PutRLP(kv, key, amount)
}

func (bank) balance(kv store.KVStore, addr common.Address, denom string) (*big.Int, error) {
	return loadAmount(kv, balanceKey(denom, addr))
}

func (b bank) send(kv store.KVStore, from, to common.Address, coins []model.Coin) error {
	for _, coin := range coins {
		if coin.Amount == nil || coin.Amount.Sign() == 0 {
			continue
		}
		if coin.Amount.Sign() < 0 {
			return fmt.Errorf("%w: negative coin %s", model.ErrInvalidFunds, coin.Denom)
		}
		fromBal, err := b.balance(kv, from, coin.Denom)
		if err != nil {
			return err
		}
		if fromBal.Cmp(coin.Amount) < 0 {
			return fmt.Errorf("%w: %s has %s%s, needs %s%s", model.ErrInsufficientFunds, from.Hex(), fromBal, coin.Denom, coin.Amount, coin.Denom)
		}
		if err := saveAmount(kv, balanceKey(coin.Denom, from), new(big.Int).Sub(fromBal, coin.Amount)); err != nil {
			return err
		}
		toBal, err := b.balance(kv, to, coin.Denom)
		if err != nil {
			return err
		}
		if err := saveAmount(kv, balanceKey(coin.Denom, to), new(big.Int).Add(toBal, coin.Amount)); err != nil {
			return err
		}
	}
	return nil
}

func (b bank) mint(kv store.KVStore, to common.Address, coin model.Coin) error {
	if coin.Amount == nil || coin.Amount.Sign() <= 0 {
		return model.ErrZeroAmount
	}
	bal, err := b.balance(kv, to, coin.Denom)
	if err != nil {
		return err
	}
	if err := saveAmount(kv, balanceKey(coin.Denom, to), new(big.Int).Add(bal, coin.Amount)); err != nil {
		return err
	}
	supply, err := loadAmount(kv, supplyKey(coin.Denom))
	if err != nil {
		return err
	}
	return saveAmount(kv, supplyKey(coin.Denom), new(big.Int).Add(supply, coin.Amount))
}

func (b bank) burn(kv store.KVStore, from common.Address, coins []model.Coin) error {
	for _, coin := range coins {
		if coin.Amount == nil || coin.Amount.Sign() == 0 {
			continue
		}
		bal, err := b.balance(kv, from, coin.Denom)
		if err != nil {
			return err
		}
		if bal.Cmp(coin.Amount) < 0 {
			return fmt.Errorf("%w: burn %s%s from %s", model.ErrInsufficientFunds, coin.Amount, coin.Denom, from.Hex())
		}
		if err := saveAmount(kv, balanceKey(coin.Denom, from), new(big.Int).Sub(bal, coin.Amount)); err != nil {
			return err
		}
		supply, err := loadAmount(kv, supplyKey(coin.Denom))
		if err != nil {
			return err
		}
		if err := saveAmount(kv, supplyKey(coin.Denom), new(big.Int).Sub(supply, coin.Amount)); err != nil {
			return err
		}
	}
	return nil
}

// nativeBalance is one row of the bank table.
type nativeBalance struct {
	Denom   string
	Address common.Address
	Amount  *big.Int
}

func (bank) all(kv store.KVStore) ([]nativeBalance, error) {
	var out []nativeBalance
	var decodeErr error
	err := kv.Iterate([]byte(bankBalancePrefix), func(key, value []byte) bool {
		rest := string(key[len(bankBalancePrefix):])
		if len(rest) <= common.AddressLength {
			return true
		}
		idx := strings.LastIndex(rest[:len(rest)-common.AddressLength], "/")
		if idx < 0 {
			return true
		}
		var amount *big.Int
		if err := rlp.DecodeBytes(value, &amount); err != nil {
			decodeErr = err
			return false
		}
		out = append(out, nativeBalance{
			Denom:   rest[:idx],
			Address: common.BytesToAddress(key[len(key)-common.AddressLength:]),
			Amount:  amount,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}

func (bank) supply(kv store.KVStore, denom string) (*big.Int, error) {
	return loadAmount(kv, supplyKey(denom))
}
