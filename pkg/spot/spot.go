// Package spot implements the spot lending book: utilization
// and piecewise-linear interest-rate curve, cumulative interest accrual,
// the deposit>=borrow withdraw guard, and insurance-fund share accounting.
package spot

import "github.com/driftcore/engine/pkg/engerrors"

const (
	spotRatePrecision = 1_000_000
	oneYearSeconds     = 365 * 24 * 60 * 60
)

// BalanceType distinguishes deposit vs borrow scaled balances.
type BalanceType int8

const (
	Deposit BalanceType = iota
	Borrow
)

// Market is the subset of SpotMarket this package mutates.
type Market struct {
	Decimals uint8

	DepositBalance uint64 // scaled, AMM_RESERVE_PRECISION-style
	BorrowBalance  uint64

	CumulativeDepositInterest uint64 // SPOT_RATE_PRECISION (1e6) scaled
	CumulativeBorrowInterest  uint64

	OptimalUtilization uint32 // 1e6 precision
	OptimalBorrowRate   uint32
	MaxBorrowRate        uint32

	DepositTokenTwap uint64
	BorrowTokenTwap  uint64
	UtilizationTwap  uint64

	WithdrawGuardThreshold uint64

	LastInterestTs int64

	InsuranceFundFactor uint32 // 1e6 precision, portion of deposit interest routed to IF
	RevenuePool          uint64
}

// TokenAmount converts a scaled balance to actual token units:
// scaled * cumulative_interest / 10^(19-decimals), rounded per balance type
// (up for borrows, down for deposits).
func TokenAmount(scaledBalance uint64, balanceType BalanceType, cumulativeInterest uint64, decimals uint8) (uint64, error) {
	divisor := pow10(19 - uint64(decimals))
	num := scaledBalance
	hi, lo := bitsMul(num, cumulativeInterest)
	if hi != 0 {
		return 0, engerrors.ErrOverflow
	}
	if balanceType == Borrow {
		if lo%divisor == 0 {
			return lo / divisor, nil
		}
		return lo/divisor + 1, nil
	}
	return lo / divisor, nil
}

// ScaledBalance converts actual token units back into a scaled balance for
// persistence, the inverse of TokenAmount: scaled = tokens *
// 10^(19-decimals) / cumulative_interest, rounded per balance type (down for
// deposits, up for borrows, mirroring TokenAmount's own rounding direction).
func ScaledBalance(tokenAmount uint64, balanceType BalanceType, cumulativeInterest uint64, decimals uint8) (uint64, error) {
	if cumulativeInterest == 0 {
		return 0, engerrors.ErrDivisionByZero
	}
	mult := pow10(19 - uint64(decimals))
	hi, lo := bitsMul(tokenAmount, mult)
	if hi != 0 {
		return 0, engerrors.ErrOverflow
	}
	if balanceType == Borrow {
		if lo%cumulativeInterest == 0 {
			return lo / cumulativeInterest, nil
		}
		return lo/cumulativeInterest + 1, nil
	}
	return lo / cumulativeInterest, nil
}

func pow10(n uint64) uint64 {
	r := uint64(1)
	for i := uint64(0); i < n; i++ {
		r *= 10
	}
	return r
}

func bitsMul(a, b uint64) (hi, lo uint64) {
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

// Utilization computes u = borrow*1e6/deposit; 0 if both zero, 1e6 if
// deposits are zero and borrows positive.
func Utilization(depositTokens, borrowTokens uint64) uint64 {
	if depositTokens == 0 {
		if borrowTokens == 0 {
			return 0
		}
		return spotRatePrecision
	}
	return borrowTokens * spotRatePrecision / depositTokens
}

// BorrowRate is the piecewise-linear rate curve: linear up to the
// optimal utilization, then a steeper segment to the max rate.
func BorrowRate(utilization uint64, optimalUtilization, optimalBorrowRate, maxBorrowRate uint32) uint64 {
	u := utilization
	optU := uint64(optimalUtilization)
	optR := uint64(optimalBorrowRate)
	maxR := uint64(maxBorrowRate)

	if optU == 0 {
		return maxR
	}
	if u <= optU {
		return u * optR / optU
	}
	if spotRatePrecision == optU {
		return optR
	}
	return optR + (u-optU)*(maxR-optR)/(spotRatePrecision-optU)
}

// DepositRate = borrowRate * u/1e6 * (1 - insuranceFundFactor).
func DepositRate(borrowRate, utilization uint64, insuranceFundFactor uint32) uint64 {
	gross := borrowRate * utilization / spotRatePrecision
	ifFactor := uint64(insuranceFundFactor)
	return gross * (spotRatePrecision - ifFactor) / spotRatePrecision
}

// AccrueInterest updates m's cumulative_*_interest for the elapsed period,
// crediting the insurance-fund portion of deposit interest to the revenue
// pool:
//
//	cumulative += cumulative * rate * elapsedSeconds / ONE_YEAR / SPOT_RATE_PRECISION
func (m *Market) AccrueInterest(now int64, depositTokens, borrowTokens uint64) error {
	if m.LastInterestTs == 0 {
		m.LastInterestTs = now
		return nil
	}
	elapsed := now - m.LastInterestTs
	if elapsed <= 0 {
		return nil
	}

	u := Utilization(depositTokens, borrowTokens)
	borrowRate := BorrowRate(u, m.OptimalUtilization, m.OptimalBorrowRate, m.MaxBorrowRate)
	depositRate := DepositRate(borrowRate, u, m.InsuranceFundFactor)

	borrowDelta := accrualDelta(m.CumulativeBorrowInterest, borrowRate, uint64(elapsed))
	depositDelta := accrualDelta(m.CumulativeDepositInterest, depositRate, uint64(elapsed))

	m.CumulativeBorrowInterest += borrowDelta
	m.CumulativeDepositInterest += depositDelta

	// The insurance-fund-factor slice of deposit interest the pool would
	// otherwise have paid out is instead credited to the revenue pool: the
	// gross (non-IF-discounted) deposit rate applied to the same elapsed
	// window, minus what was actually credited to depositors.
	grossDepositRate := borrowRate * u / spotRatePrecision
	grossDelta := accrualDelta(m.CumulativeDepositInterest, grossDepositRate, uint64(elapsed))
	if grossDelta > depositDelta {
		m.RevenuePool += grossDelta - depositDelta
	}

	m.LastInterestTs = now
	return nil
}

func accrualDelta(cumulative, rate, elapsedSeconds uint64) uint64 {
	hi, lo := bitsMul(cumulative, rate)
	if hi != 0 {
		// fall back to truncated path rather than panic; monetary
		// overflow at this magnitude would already have tripped fixedpoint
		// guards upstream during token-amount conversion.
		return 0
	}
	hi2, lo2 := bitsMul(lo, elapsedSeconds)
	if hi2 != 0 {
		return 0
	}
	return lo2 / (oneYearSeconds * spotRatePrecision)
}

// WithdrawAllowed implements the withdraw guard: a withdraw is allowed iff
// deposit_tokens >= min_deposit_token AND borrow_tokens <= max_borrow_token,
// where the bounds derive from the twap-smoothed deposit/borrow token
// amounts and withdraw_guard_threshold.
func (m *Market) WithdrawAllowed(depositTokens, borrowTokens uint64) bool {
	minDeposit := m.DepositTokenTwap
	if m.WithdrawGuardThreshold < minDeposit {
		minDeposit -= m.WithdrawGuardThreshold
	} else {
		minDeposit = 0
	}
	maxBorrow := m.BorrowTokenTwap + m.WithdrawGuardThreshold

	if depositTokens < minDeposit {
		return false
	}
	if borrowTokens > maxBorrow {
		return false
	}
	return true
}

// Solvent checks the spot-market invariant token_value(deposit_balance) >=
// token_value(borrow_balance).
func Solvent(depositTokens, borrowTokens uint64) bool {
	return depositTokens >= borrowTokens
}
