package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Fraction is an exact rational rate such as a tax or reward ratio.
type Fraction struct {
	Numerator   *big.Int `json:"numerator"`
	Denominator *big.Int `json:"denominator"`
}

// NewFraction builds a fraction from small integers.
func NewFraction(num, den uint64) Fraction {
	return Fraction{
		Numerator:   new(big.Int).SetUint64(num),
		Denominator: new(big.Int).SetUint64(den),
	}
}

// ParseFraction reads the "num/den" form used by config files and the CLI.
func ParseFraction(s string) (Fraction, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Fraction{}, fmt.Errorf("%w: %q", ErrInvalidFraction, s)
	}
	num, ok := new(big.Int).SetString(strings.TrimSpace(parts[0]), 10)
	if !ok {
		return Fraction{}, fmt.Errorf("%w: numerator %q", ErrInvalidFraction, parts[0])
	}
	den, ok := new(big.Int).SetString(strings.TrimSpace(parts[1]), 10)
	if !ok {
		return Fraction{}, fmt.Errorf("%w: denominator %q", ErrInvalidFraction, parts[1])
	}
	f := Fraction{Numerator: num, Denominator: den}
	if err := f.Validate(); err != nil {
		return Fraction{}, err
	}
	return f, nil
}

// Validate rejects a zero or negative denominator and rates above one.
func (f Fraction) Validate() error {
	if f.Numerator == nil || f.Denominator == nil {
		return fmt.Errorf("%w: missing component", ErrInvalidFraction)
	}
	if f.Denominator.Sign() <= 0 || f.Numerator.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFraction, f)
	}
	if f.Numerator.Cmp(f.Denominator) > 0 {
		return fmt.Errorf("%w: %s exceeds one", ErrInvalidFraction, f)
	}
	return nil
}

func (f Fraction) IsZero() bool {
	return f.Numerator == nil || f.Numerator.Sign() == 0
}

// LessThanOne reports whether num < den.
func (f Fraction) LessThanOne() bool {
	if f.Numerator == nil || f.Denominator == nil {
		return false
	}
	return f.Numerator.Cmp(f.Denominator) < 0
}

// MulFloor returns floor(amount * num / den).
func (f Fraction) MulFloor(amount *big.Int) *big.Int {
	if amount == nil || f.IsZero() || f.Denominator == nil || f.Denominator.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, f.Numerator)
	return out.Quo(out, f.Denominator)
}

func (f Fraction) Copy() Fraction {
	out := Fraction{}
	if f.Numerator != nil {
		out.Numerator = new(big.Int).Set(f.Numerator)
	}
	if f.Denominator != nil {
		out.Denominator = new(big.Int).Set(f.Denominator)
	}
	return out
}

func (f Fraction) String() string {
	return fmt.Sprintf("%s/%s", bigString(f.Numerator), bigString(f.Denominator))
}

// UnmarshalJSON accepts either {"numerator":..,"denominator":..} or "num/den".
func (f *Fraction) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		parsed, err := ParseFraction(text)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}
	type Alias Fraction
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = Fraction(a)
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
