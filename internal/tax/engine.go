package tax

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
)

// Info holds the per-direction rates. A nil rate means no tax.
type Info struct {
	Buy      *model.Fraction `json:"buy_tax,omitempty" rlp:"nil"`
	Sell     *model.Fraction `json:"sell_tax,omitempty" rlp:"nil"`
	Transfer *model.Fraction `json:"transfer_tax,omitempty" rlp:"nil"`
}

// Validate rejects malformed rates at configuration time.
func (i Info) Validate() error {
	for name, f := range map[string]*model.Fraction{"buy": i.Buy, "sell": i.Sell, "transfer": i.Transfer} {
		if f == nil {
			continue
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%s tax: %w", name, err)
		}
	}
	return nil
}

// Rate returns the configured rate for op.
func (i Info) Rate(op Operation) *model.Fraction {
	switch op {
	case OpBuy:
		return i.Buy
	case OpSell:
		return i.Sell
	default:
		return i.Transfer
	}
}

// Exemptions answers whether an address is tax-free.
type Exemptions interface {
	IsExempt(addr common.Address) (bool, error)
}

// Engine computes the tax owed on a classified transfer.
type Engine struct {
	Info       Info
	Exemptions Exemptions
}

// Compute returns floor(amount * rate) for op, or nil when either side is
// exempt or no rate is configured for op.
func (e Engine) Compute(from, to common.Address, amount *big.Int, op Operation) (*big.Int, error) {
	if e.Exemptions != nil {
		for _, addr := range []common.Address{from, to} {
			exempt, err := e.Exemptions.IsExempt(addr)
			if err != nil {
				return nil, err
			}
			if exempt {
				return nil, nil
			}
		}
	}
	rate := e.Info.Rate(op)
	if rate == nil {
		return nil, nil
	}
	return rate.MulFloor(amount), nil
}

// Split returns the net amount credited to the recipient given a tax.
func Split(amount, tax *big.Int) (*big.Int, error) {
	if tax == nil || tax.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if tax.Sign() < 0 || tax.Cmp(amount) > 0 {
		return nil, fmt.Errorf("tax %s out of range for amount %s", tax, amount)
	}
	net := new(big.Int).Sub(amount, tax)
	if new(big.Int).Add(net, tax).Cmp(amount) != 0 {
		return nil, fmt.Errorf("tax split leaks value: %s + %s != %s", net, tax, amount)
	}
	return net, nil
}
