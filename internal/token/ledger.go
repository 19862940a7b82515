package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
	"cremationLedger/internal/tax"
)

func balanceOf(kv store.KVStore, addr common.Address) (*big.Int, error) {
	bal, ok, err := balances.Load(kv, store.AddressKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok || bal == nil {
		return new(big.Int), nil
	}
	return bal, nil
}

func setBalance(kv store.KVStore, addr common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return balances.Remove(kv, store.AddressKey(addr))
	}
	return balances.Save(kv, store.AddressKey(addr), amount)
}

// debit fails closed when from holds less than amount.
func debit(kv store.KVStore, from common.Address, amount *big.Int) error {
	bal, err := balanceOf(kv, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", model.ErrInsufficientFunds, from.Hex(), bal, amount)
	}
	return setBalance(kv, from, new(big.Int).Sub(bal, amount))
}

func credit(kv store.KVStore, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	bal, err := balanceOf(kv, to)
	if err != nil {
		return err
	}
	return setBalance(kv, to, new(big.Int).Add(bal, amount))
}

// creditWithSplit credits amount-tax to `to` and tax to collector. With no
// tax the full amount goes to `to`.
func creditWithSplit(kv store.KVStore, to common.Address, amount, taxAmount *big.Int, collector common.Address) (*big.Int, error) {
	net, err := tax.Split(amount, taxAmount)
	if err != nil {
		return nil, err
	}
	if err := credit(kv, to, net); err != nil {
		return nil, err
	}
	if taxAmount != nil && taxAmount.Sign() > 0 {
		if err := credit(kv, collector, taxAmount); err != nil {
			return nil, err
		}
	}
	return net, nil
}

// movement describes what a taxed transfer did.
type movement struct {
	Op       tax.Operation
	Amount   *big.Int
	Net      *big.Int
	Tax      *big.Int
	Registry tax.Registry
}

func (m movement) taxString() string {
	if m.Tax == nil {
		return "0"
	}
	return m.Tax.String()
}

// moveWithTax classifies the transfer, computes the tax and applies the
// debit and split credit.
func moveWithTax(kv store.KVStore, from, to common.Address, amount *big.Int) (movement, error) {
	if amount == nil || amount.Sign() <= 0 {
		return movement{}, model.ErrZeroAmount
	}
	reg, err := tax.LoadRegistry(kv)
	if err != nil {
		return movement{}, err
	}
	info, err := taxInfoItem.MustLoad(kv)
	if err != nil {
		return movement{}, err
	}
	collector, err := collectorItem.MustLoad(kv)
	if err != nil {
		return movement{}, err
	}

	op := tax.Classify(from, to, reg)
	engine := tax.Engine{Info: info, Exemptions: exemptions{kv: kv}}
	taxAmount, err := engine.Compute(from, to, amount, op)
	if err != nil {
		return movement{}, err
	}

	if err := debit(kv, from, amount); err != nil {
		return movement{}, err
	}
	net, err := creditWithSplit(kv, to, amount, taxAmount, collector)
	if err != nil {
		return movement{}, err
	}
	return movement{Op: op, Amount: amount, Net: net, Tax: taxAmount, Registry: reg}, nil
}

func adjustSupply(kv store.KVStore, delta *big.Int) error {
	info, err := infoItem.MustLoad(kv)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(info.TotalSupply, delta)
	if next.Sign() < 0 {
		return fmt.Errorf("%w: supply would go negative", model.ErrInsufficientFunds)
	}
	info.TotalSupply = next
	return infoItem.Save(kv, info)
}

func mint(kv store.KVStore, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return model.ErrZeroAmount
	}
	m, ok, err := minterItem.Load(kv)
	if err != nil {
		return err
	}
	if ok && m.HasCap {
		info, err := infoItem.MustLoad(kv)
		if err != nil {
			return err
		}
		if new(big.Int).Add(info.TotalSupply, amount).Cmp(m.Cap) > 0 {
			return model.ErrCapExceeded
		}
	}
	if err := credit(kv, to, amount); err != nil {
		return err
	}
	return adjustSupply(kv, amount)
}

func burn(kv store.KVStore, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return model.ErrZeroAmount
	}
	if err := debit(kv, from, amount); err != nil {
		return err
	}
	return adjustSupply(kv, new(big.Int).Neg(amount))
}

func spendAllowance(kv store.KVStore, owner, spender common.Address, amount *big.Int, now uint64) error {
	if amount == nil || amount.Sign() <= 0 {
		return model.ErrZeroAmount
	}
	key := store.AddressKey(owner, spender)
	a, ok, err := allowances.Load(kv, key)
	if err != nil {
		return err
	}
	if !ok || a.Amount == nil {
		return fmt.Errorf("%w: no allowance for %s", model.ErrInsufficientFunds, spender.Hex())
	}
	if a.expired(now) {
		return model.ErrExpired
	}
	if a.Amount.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s, needs %s", model.ErrInsufficientFunds, a.Amount, amount)
	}
	a.Amount = new(big.Int).Sub(a.Amount, amount)
	if a.Amount.Sign() == 0 {
		return allowances.Remove(kv, key)
	}
	return allowances.Save(kv, key, a)
}
