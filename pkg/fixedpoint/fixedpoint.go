// Package fixedpoint provides checked fixed-point arithmetic shared by every
// monetary computation in the engine. Nothing in this package wraps on
// overflow; every operation that could silently misbehave returns an error
// instead.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Precision constants.
const (
	PricePrecision        = 1_000_000
	QuotePrecision        = 1_000_000
	BasePrecision         = 1_000_000_000
	PegPrecision          = 1_000_000
	AMMReservePrecision   = 1_000_000_000
	FundingRatePrecision  = 1_000_000_000
	PercentagePrecision   = 1_000_000
	BidAskSpreadPrecision = 1_000_000

	// FundingRateToQuotePrecisionRatio scales a FUNDING_RATE_PRECISION
	// cumulative-funding delta down to QUOTE_PRECISION (1e9 / 1e6).
	FundingRateToQuotePrecisionRatio = FundingRatePrecision / QuotePrecision
)

var (
	ErrOverflow    = errors.New("fixedpoint: overflow")
	ErrDivByZero   = errors.New("fixedpoint: division by zero")
	ErrNegativeArg = errors.New("fixedpoint: negative argument")
)

// AddU64 returns a+b, erroring on overflow.
func AddU64(a, b uint64) (uint64, error) {
	c := a + b
	if c < a {
		return 0, ErrOverflow
	}
	return c, nil
}

// SubU64 returns a-b, erroring if the result would be negative.
func SubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// MulU64 returns a*b using a 128-bit intermediate so overflow is detected
// rather than wrapped.
func MulU64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	hi, lo := bitsMul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

func bitsMul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 1<<32 - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = t<<32 + w0
	return
}

// DivU64 returns floor(a/b).
func DivU64(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivByZero
	}
	return a / b, nil
}

// DivCeilU64 returns ceil(a/b) = (a + b - 1) / b, computed via a 128-bit
// intermediate so the a+b-1 step cannot itself overflow silently.
func DivCeilU64(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivByZero
	}
	if a == 0 {
		return 0, nil
	}
	num := new(big.Int).SetUint64(a)
	num.Add(num, new(big.Int).SetUint64(b))
	num.Sub(num, big.NewInt(1))
	den := new(big.Int).SetUint64(b)
	q := new(big.Int).Quo(num, den)
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// DivCeilI64 is the signed equivalent of DivCeilU64, used by fee/reward
// computations that operate on signed notionals.
func DivCeilI64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivByZero
	}
	if a < 0 || b < 0 {
		return 0, ErrNegativeArg
	}
	u, err := DivCeilU64(uint64(a), uint64(b))
	if err != nil {
		return 0, err
	}
	if u > 1<<62 {
		return 0, ErrOverflow
	}
	return int64(u), nil
}

// MulDivU64 computes floor(a*b/c) routing the intermediate product through
// a 256-bit accumulator so a*b need not fit in 64 bits on its own, the
// shape every reserve/peg computation needs (quote*peg/base-style ratios).
// The final quotient must fit in 64 bits; otherwise ErrOverflow is returned.
func MulDivU64(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivByZero
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quot := new(uint256.Int).Div(prod, uint256.NewInt(c))
	if !quot.IsUint64() {
		return 0, ErrOverflow
	}
	return quot.Uint64(), nil
}

// MulDivCeilU64 is the ceil-rounded variant of MulDivU64.
func MulDivCeilU64(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivByZero
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	cu := uint256.NewInt(c)
	quot, rem := new(uint256.Int).DivMod(prod, cu, new(uint256.Int))
	if !rem.IsZero() {
		quot.AddUint64(quot, 1)
	}
	if !quot.IsUint64() {
		return 0, ErrOverflow
	}
	return quot.Uint64(), nil
}

// MulDivU128 is MulDivU64 generalized to uint256-native operands, used when
// reserves themselves (base_asset_reserve, quote_asset_reserve) already
// occupy the full u128 range described in the data model.
func MulDivU128(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, ErrDivByZero
	}
	prod := new(uint256.Int).Mul(a, b)
	// Mul of two u128-range values can itself overflow a u256 if either
	// operand silently carries more than 128 bits; guard defensively.
	if prod.Lt(a) && !a.IsZero() {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Div(prod, c), nil
}

// SqrtU256 computes floor(sqrt(x)) for a uint256 value via Newton's method,
// used for sqrt_k (the AMM's geometric-mean liquidity parameter).
func SqrtU256(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return uint256.NewInt(0)
	}
	one := uint256.NewInt(1)
	// Initial guess: 2^(ceil(bitlen/2)).
	bitLen := x.BitLen()
	guess := new(uint256.Int).Lsh(one, uint(bitLen+1)/2)

	for {
		// next = (guess + x/guess) / 2
		xOverGuess := new(uint256.Int).Div(x, guess)
		sum := new(uint256.Int).Add(guess, xOverGuess)
		next := new(uint256.Int).Rsh(sum, 1)
		if next.Cmp(guess) >= 0 {
			break
		}
		guess = next
	}
	// Newton's method can overshoot by one ULP downward on perfect squares;
	// correct by stepping up while (guess+1)^2 <= x.
	for {
		upper := new(uint256.Int).Add(guess, one)
		sq := new(uint256.Int).Mul(upper, upper)
		if sq.Cmp(x) > 0 {
			break
		}
		guess = upper
	}
	return guess
}

// SqrtU64 is the uint64 convenience wrapper around SqrtU256.
func SqrtU64(x uint64) uint64 {
	return SqrtU256(uint256.NewInt(x)).Uint64()
}

// AbsI64 returns the absolute value of a signed 64-bit integer.
func AbsI64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// MinI64 / MaxI64 are small helpers used pervasively by spread/margin/
// liquidation pacing formulas.
func MinI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func MaxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func MinU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func MaxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// ClampI64 clamps x into [lo, hi].
func ClampI64(x, lo, hi int64) int64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
