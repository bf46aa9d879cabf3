// Package num implements the fixed-scale decimal primitive (C1) every
// monetary quantity in the protocol is ingested as. Every arithmetic
// operation is checked: overflow and underflow are reported, never
// wrapped or panicked, and floating point is never used. The unscaled
// magnitude is held in a github.com/holiman/uint256.Int — the same
// 256-bit integer type the ecosystem uses for EVM word values, which
// gives us AddOverflow/SubOverflow/MulOverflow for free instead of
// hand-rolling overflow detection on top of math/big (see DESIGN.md).
package num

import (
	"regexp"
	"strings"

	"github.com/holiman/uint256"

	"github.com/okx/brc20index/errors"
)

// MaxScale is the maximum number of fractional digits any Num may carry.
const MaxScale = 18

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

var (
	maxU128 = uint256.MustFromDecimal("340282366920938463463374607431768211455")
	maxU64  = uint256.NewInt(^uint64(0))
)

// Num is a non-negative arbitrary-precision decimal: `value` holds the
// unscaled digits, `scale` says how many of its least-significant decimal
// digits are fractional. Subtraction is checked (fails on borrow), so a
// Num is never negative.
type Num struct {
	value *uint256.Int
	scale uint8
}

// Zero is the additive identity at scale 0.
func Zero() Num {
	return Num{value: new(uint256.Int), scale: 0}
}

// Parse accepts only `^[0-9]+(\.[0-9]+)?$`: no sign, no scientific
// notation, no leading/trailing dot, and a fractional part of at most
// MaxScale digits (§4.1).
func Parse(s string) (Num, error) {
	if !decimalPattern.MatchString(s) {
		return Num{}, errors.New(errors.ERR_INVALID_NUM, "invalid decimal string: %q", s)
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if hasFrac && len(fracPart) > MaxScale {
		return Num{}, errors.New(errors.ERR_INVALID_NUM, "decimal %q exceeds max scale %d", s, MaxScale)
	}

	digits := intPart + fracPart

	value, err := uint256.FromDecimal(digits)
	if err != nil {
		// err is the trailing param New wraps as WrappedErr, not a second
		// Sprintf arg: "decimal %q out of range" has exactly one verb, for s.
		return Num{}, errors.New(errors.ERR_INVALID_NUM, "decimal %q out of range", s, err)
	}

	return Num{value: value, scale: uint8(len(fracPart))}, nil
}

// FromUint128 builds a Num at the given scale directly from an unscaled
// integer magnitude (used by the executor when reading a stored balance
// back into decimal form, e.g. for display).
func FromUint128(v *uint256.Int, scale uint8) Num {
	return Num{value: new(uint256.Int).Set(v), scale: scale}
}

func (n Num) Scale() uint8 { return n.scale }

// Sign reports whether n is zero (0) or strictly positive (1); Num is
// never negative because subtraction is checked.
func (n Num) Sign() int {
	if n.value == nil || n.value.IsZero() {
		return 0
	}
	return 1
}

// String renders n back to its canonical decimal form.
func (n Num) String() string {
	if n.value == nil {
		return "0"
	}
	digits := n.value.Dec()
	if n.scale == 0 {
		return digits
	}

	for len(digits) <= int(n.scale) {
		digits = "0" + digits
	}

	split := len(digits) - int(n.scale)
	return digits[:split] + "." + digits[split:]
}

// rescaleValue returns n's unscaled value expressed at newScale, checking
// for overflow when the scale increases the magnitude.
func rescaleValue(n Num, newScale uint8) (*uint256.Int, error) {
	if newScale == n.scale {
		return new(uint256.Int).Set(n.value), nil
	}

	if newScale > n.scale {
		factor := pow10(uint64(newScale - n.scale))
		result := new(uint256.Int)
		if result.MulOverflow(n.value, factor) {
			return nil, errors.New(errors.ERR_OVERFLOW, "rescale overflow")
		}
		return result, nil
	}

	factor := pow10(uint64(n.scale - newScale))
	result := new(uint256.Int).Div(n.value, factor)
	return result, nil
}

// Rescale right-pads (or truncates) the fractional part so n carries
// exactly newScale fractional digits (§4.1). Truncation drops precision
// silently, matching how Deploy.max/lim are read out as integer base
// units at the token's declared number of decimals.
func (n Num) Rescale(newScale uint8) (Num, error) {
	value, err := rescaleValue(n, newScale)
	if err != nil {
		return Num{}, err
	}
	return Num{value: value, scale: newScale}, nil
}

func commonScale(a, b Num) uint8 {
	if a.scale > b.scale {
		return a.scale
	}
	return b.scale
}

// CheckedAdd returns a+b, failing on overflow.
func (a Num) CheckedAdd(b Num) (Num, error) {
	scale := commonScale(a, b)

	av, err := rescaleValue(a, scale)
	if err != nil {
		return Num{}, err
	}
	bv, err := rescaleValue(b, scale)
	if err != nil {
		return Num{}, err
	}

	result := new(uint256.Int)
	if result.AddOverflow(av, bv) {
		return Num{}, errors.New(errors.ERR_OVERFLOW, "add overflow: %s + %s", a, b)
	}

	return Num{value: result, scale: scale}, nil
}

// CheckedSub returns a-b, failing when a < b (no negative Num values exist).
func (a Num) CheckedSub(b Num) (Num, error) {
	scale := commonScale(a, b)

	av, err := rescaleValue(a, scale)
	if err != nil {
		return Num{}, err
	}
	bv, err := rescaleValue(b, scale)
	if err != nil {
		return Num{}, err
	}

	result := new(uint256.Int)
	if result.SubOverflow(av, bv) {
		return Num{}, errors.New(errors.ERR_OVERFLOW, "sub underflow: %s - %s", a, b)
	}

	return Num{value: result, scale: scale}, nil
}

// CheckedMul returns a*b at combined scale a.scale+b.scale, failing on overflow.
func (a Num) CheckedMul(b Num) (Num, error) {
	result := new(uint256.Int)
	if result.MulOverflow(a.value, b.value) {
		return Num{}, errors.New(errors.ERR_OVERFLOW, "mul overflow: %s * %s", a, b)
	}
	return Num{value: result, scale: a.scale + b.scale}, nil
}

// CheckedPow returns a^n. n=0 is the multiplicative identity (1, scale 0);
// n=1 returns a unchanged.
func (a Num) CheckedPow(n uint64) (Num, error) {
	if n == 0 {
		return Num{value: uint256.NewInt(1), scale: 0}, nil
	}
	if n == 1 {
		return a, nil
	}

	result := a
	for i := uint64(1); i < n; i++ {
		var err error
		result, err = result.CheckedMul(a)
		if err != nil {
			return Num{}, err
		}
	}
	return result, nil
}

// Cmp compares a and b after rescaling both to their common scale.
func (a Num) Cmp(b Num) int {
	scale := commonScale(a, b)
	av, _ := rescaleValue(a, scale)
	bv, _ := rescaleValue(b, scale)
	return av.Cmp(bv)
}

// ToUint128 reads n out as an unscaled integer, failing if n carries a
// fractional part or exceeds 2^128-1 (§4.1).
func (n Num) ToUint128() (*uint256.Int, error) {
	if n.scale != 0 {
		return nil, errors.New(errors.ERR_INVALID_NUM, "%s is not an integer", n)
	}
	if n.value.Cmp(maxU128) > 0 {
		return nil, errors.New(errors.ERR_OVERFLOW, "%s exceeds u128 range", n)
	}
	return new(uint256.Int).Set(n.value), nil
}

// ToUint8 is ToUint128 bounded to a byte, used for BRC20S decimals fields.
func (n Num) ToUint8() (uint8, error) {
	v, err := n.ToUint128()
	if err != nil {
		return 0, err
	}
	if v.Cmp(uint256.NewInt(255)) > 0 {
		return 0, errors.New(errors.ERR_OVERFLOW, "%s exceeds u8 range", n)
	}
	return uint8(v.Uint64()), nil
}

// FitsUint64 reports whether n's integer value is <= 2^64-1, the
// Deploy-time parse-time validation bound (§9 Open Question 1).
func (n Num) FitsUint64() bool {
	v, err := n.ToUint128()
	if err != nil {
		return false
	}
	return v.Cmp(maxU64) <= 0
}

func pow10(exp uint64) *uint256.Int {
	ten := uint256.NewInt(10)
	result := uint256.NewInt(1)
	for i := uint64(0); i < exp; i++ {
		result = new(uint256.Int).Mul(result, ten)
	}
	return result
}
