package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind separates host-native coins from token contracts.
type AssetKind uint8

const (
	AssetNative AssetKind = iota + 1
	AssetToken
)

// AssetInfo identifies an asset. Equality is structural over kind and id.
type AssetInfo struct {
	Kind     AssetKind
	Denom    string
	Contract common.Address
}

func NativeAsset(denom string) AssetInfo {
	return AssetInfo{Kind: AssetNative, Denom: denom}
}

func TokenAsset(contract common.Address) AssetInfo {
	return AssetInfo{Kind: AssetToken, Contract: contract}
}

func (a AssetInfo) IsNative() bool { return a.Kind == AssetNative }

func (a AssetInfo) IsToken() bool { return a.Kind == AssetToken }

func (a AssetInfo) Equal(other AssetInfo) bool {
	if a.Kind != other.Kind {
		return false
	}
	switch a.Kind {
	case AssetNative:
		return a.Denom == other.Denom
	case AssetToken:
		return a.Contract == other.Contract
	default:
		return true
	}
}

func (a AssetInfo) Validate() error {
	switch a.Kind {
	case AssetNative:
		if a.Denom == "" {
			return fmt.Errorf("%w: empty native denom", ErrInvalidAddress)
		}
	case AssetToken:
		if a.Contract == (common.Address{}) {
			return fmt.Errorf("%w: empty token contract", ErrInvalidAddress)
		}
	default:
		return fmt.Errorf("%w: unknown asset kind %d", ErrInvalidAddress, a.Kind)
	}
	return nil
}

func (a AssetInfo) String() string {
	switch a.Kind {
	case AssetNative:
		return a.Denom
	case AssetToken:
		return a.Contract.Hex()
	default:
		return "unknown"
	}
}

type nativeAssetJSON struct {
	Denom string `json:"denom"`
}

type tokenAssetJSON struct {
	ContractAddr common.Address `json:"contract_addr"`
}

type assetInfoJSON struct {
	NativeToken *nativeAssetJSON `json:"native_token,omitempty"`
	Token       *tokenAssetJSON  `json:"token,omitempty"`
}

// MarshalJSON encodes {"native_token":{"denom":..}} or {"token":{"contract_addr":..}}.
func (a AssetInfo) MarshalJSON() ([]byte, error) {
	var out assetInfoJSON
	switch a.Kind {
	case AssetNative:
		out.NativeToken = &nativeAssetJSON{Denom: a.Denom}
	case AssetToken:
		out.Token = &tokenAssetJSON{ContractAddr: a.Contract}
	default:
		return nil, fmt.Errorf("marshal asset: unknown kind %d", a.Kind)
	}
	return json.Marshal(out)
}

func (a *AssetInfo) UnmarshalJSON(data []byte) error {
	var in assetInfoJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.NativeToken != nil && in.Token == nil:
		*a = NativeAsset(in.NativeToken.Denom)
	case in.Token != nil && in.NativeToken == nil:
		*a = TokenAsset(in.Token.ContractAddr)
	default:
		return fmt.Errorf("asset info must set exactly one of native_token or token")
	}
	return a.Validate()
}

// Coin is an amount of a host-native denomination.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

func NewCoin(denom string, amount *big.Int) Coin {
	return Coin{Denom: denom, Amount: new(big.Int).Set(amount)}
}

// FindCoin returns the amount of denom in funds, or zero.
func FindCoin(funds []Coin, denom string) *big.Int {
	total := new(big.Int)
	for _, c := range funds {
		if c.Denom == denom && c.Amount != nil {
			total.Add(total, c.Amount)
		}
	}
	return total
}

// OneCoin requires funds to carry exactly one non-zero coin.
func OneCoin(funds []Coin) (Coin, error) {
	if len(funds) != 1 {
		return Coin{}, fmt.Errorf("%w: expected exactly one coin, got %d", ErrInvalidFunds, len(funds))
	}
	if funds[0].Amount == nil || funds[0].Amount.Sign() <= 0 {
		return Coin{}, ErrZeroAmount
	}
	return funds[0], nil
}

// NativeSendTax is the share the host withholds when a contract forwards
// native coins it was just sent.
func NativeSendTax() Fraction {
	return NewFraction(5, 1000)
}
