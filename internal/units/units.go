// Package units holds the arbitrary-precision unsigned amounts used for every
// token quantity in the pipeline. Amounts never go negative and never pass
// through floating point.
package units

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// Amount is an immutable unsigned integer of arbitrary size. The zero value is 0.
type Amount struct {
	v *big.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromUint64 builds an Amount from a uint64.
func FromUint64(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// FromInt64 builds an Amount from an int64, flooring negative values at zero.
func FromInt64(n int64) Amount {
	if n <= 0 {
		return Amount{}
	}
	return Amount{v: big.NewInt(n)}
}

// FromBig copies b into a new Amount.
func FromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// Parse reads a base-10 amount.
func Parse(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromBig(b)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// BigInt returns a copy of the underlying integer.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).Set(a.big())
}

func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

func (a Amount) Mul(b Amount) Amount {
	return Amount{v: new(big.Int).Mul(a.big(), b.big())}
}

// Div truncates toward zero. A zero divisor yields zero rather than an error;
// callers that need other semantics check IsZero first.
func (a Amount) Div(b Amount) Amount {
	if b.IsZero() {
		return Amount{}
	}
	return Amount{v: new(big.Int).Quo(a.big(), b.big())}
}

// SaturatingSub returns a-b, or zero when b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	d, ok := a.CheckedSub(b)
	if !ok {
		return Amount{}
	}
	return d
}

// CheckedSub returns a-b and false when the result would be negative.
func (a Amount) CheckedSub(b Amount) (Amount, bool) {
	if a.Cmp(b) < 0 {
		return Amount{}, false
	}
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}, true
}

func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.Cmp(b) > 0
}

func (a Amount) IsZero() bool {
	return a.v == nil || a.v.Sign() == 0
}

// Uint64 reports the value and whether it fits in a uint64.
func (a Amount) Uint64() (uint64, bool) {
	b := a.big()
	if !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}

// Int64 returns the value clamped to math.MaxInt64.
func (a Amount) Int64() int64 {
	b := a.big()
	if !b.IsInt64() {
		return 1<<63 - 1
	}
	return b.Int64()
}

func (a Amount) String() string {
	return a.big().String()
}

// MarshalJSON encodes the amount as a decimal string so values above 2^53
// survive JavaScript consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// bare numbers are accepted too
		s = string(data)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
