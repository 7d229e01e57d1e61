// Package position implements perp position accounting: base/quote entry
// tracking, break-even adjustment, and the market-level open-interest
// counters that move alongside a position on open, reduce, flip, and
// close. quote_entry_amount and quote_break_even_amount are tracked
// separately so funding/fee adjustments to break-even never leak into the
// realized-PnL cost basis.
package position

import "github.com/driftcore/engine/pkg/fixedpoint"

// Delta is the per-fill position mutation applied by the matching package.
type Delta struct {
	BaseAssetAmount  int64
	QuoteAssetAmount int64
}

// Perp is the subset of PerpPosition this package mutates.
type Perp struct {
	BaseAssetAmount          int64
	QuoteAssetAmount         int64
	QuoteEntryAmount         int64
	QuoteBreakEvenAmount     int64
	LastCumulativeFundingRate int64
}

// UpdateResult reports what happened to the position, for the caller to
// drive market open-interest counters and number_of_users bookkeeping.
type UpdateResult struct {
	RealizedPnl int64

	// Kind describes which update branch fired.
	Kind Kind

	// WasNonZero / IsNonZero let the caller maintain number_of_users and
	// number_of_users_with_base without re-deriving sign state.
	WasNonZero bool
	IsNonZero  bool

	// QuoteIsZero reports newQuote == 0, needed alongside IsNonZero to
	// detect a full close (base and quote both returning to zero).
	QuoteIsZero bool
}

type Kind int8

const (
	KindOpen Kind = iota
	KindReduce
	KindFlip
	KindClose
)

// ApplyDelta mutates pos in place and returns the realized PnL and the
// sign-flip classification used to drive market counters and
// number_of_users/_with_base bookkeeping.
func ApplyDelta(pos *Perp, delta Delta) UpdateResult {
	wasNonZero := pos.BaseAssetAmount != 0
	oldBase := pos.BaseAssetAmount
	newBase := oldBase + delta.BaseAssetAmount
	newQuote := pos.QuoteAssetAmount + delta.QuoteAssetAmount

	var result UpdateResult
	result.WasNonZero = wasNonZero

	sameDirection := oldBase == 0 || sameSign(oldBase, delta.BaseAssetAmount)

	switch {
	case sameDirection:
		// Increasing (or opening from flat): cost basis and break-even both
		// absorb the full delta.quote.
		pos.QuoteEntryAmount += delta.QuoteAssetAmount
		pos.QuoteBreakEvenAmount += delta.QuoteAssetAmount
		result.Kind = KindOpen

	case fixedpoint.AbsI64(delta.BaseAssetAmount) <= fixedpoint.AbsI64(oldBase):
		// Reducing, not flipping: scale entry/break-even by the reduced
		// fraction; the remainder of delta.quote is realized PnL.
		reducedFrac := fixedpoint.AbsI64(delta.BaseAssetAmount)
		absOldBase := fixedpoint.AbsI64(oldBase)

		entryReduction := pos.QuoteEntryAmount * reducedFrac / absOldBase
		beReduction := pos.QuoteBreakEvenAmount * reducedFrac / absOldBase

		pos.QuoteEntryAmount -= entryReduction
		pos.QuoteBreakEvenAmount -= beReduction

		result.RealizedPnl = delta.QuoteAssetAmount - entryReduction
		if newBase == 0 {
			result.Kind = KindClose
		} else {
			result.Kind = KindReduce
		}

	default:
		// Flip: close 100% of the old position, then open the residual at
		// the fill's implied per-unit price.
		absOldBase := fixedpoint.AbsI64(oldBase)
		absDelta := fixedpoint.AbsI64(delta.BaseAssetAmount)
		residualBase := absDelta - absOldBase

		closeQuote := pos.QuoteEntryAmount
		closeQuoteBE := pos.QuoteBreakEvenAmount
		// quote attributable to closing the old side, pro-rated by the
		// fraction of delta.quote that corresponds to absOldBase units.
		closingPortion := delta.QuoteAssetAmount * absOldBase / absDelta
		residualPortion := delta.QuoteAssetAmount - closingPortion

		result.RealizedPnl = closingPortion - closeQuote
		_ = closeQuoteBE

		pos.QuoteEntryAmount = residualPortion
		pos.QuoteBreakEvenAmount = residualPortion
		result.Kind = KindFlip
		_ = residualBase
	}

	pos.BaseAssetAmount = newBase
	pos.QuoteAssetAmount = newQuote
	result.IsNonZero = newBase != 0
	result.QuoteIsZero = newQuote == 0

	if newBase > 0 {
		pos.LastCumulativeFundingRate = 0 // caller overwrites with the long-side tag
	} else if newBase < 0 {
		pos.LastCumulativeFundingRate = 0 // caller overwrites with the short-side tag
	}
	if newBase == 0 {
		pos.QuoteEntryAmount = 0
		pos.QuoteBreakEvenAmount = 0
	}

	return result
}

func sameSign(a, b int64) bool {
	if b == 0 {
		return true
	}
	return (a > 0) == (b > 0)
}

// MarketCounterDelta reports how a fill changes the market's aggregate
// base_asset_amount_long / base_asset_amount_short counters, derived from
// whether the trade added to long open interest, short open interest, or
// reduced it.
type MarketCounterDelta struct {
	DeltaLong  int64
	DeltaShort int64
}

// MarketCounters computes the long/short open-interest counter deltas for
// one fill given the position's base amount before and after.
func MarketCounters(oldBase, newBase int64) MarketCounterDelta {
	var d MarketCounterDelta
	oldLong, oldShort := splitOI(oldBase)
	newLong, newShort := splitOI(newBase)
	d.DeltaLong = newLong - oldLong
	d.DeltaShort = newShort - oldShort
	return d
}

func splitOI(base int64) (long, short int64) {
	if base > 0 {
		return base, 0
	}
	if base < 0 {
		return 0, -base
	}
	return 0, 0
}

// NumberOfUsersDelta reports the decrements to PerpMarket.number_of_users
// and number_of_users_with_base: users-with-base drops by 1 when base goes
// from non-zero to zero, and users drops by 1 when that leaves quote zero
// too. It never reports an increment, and open orders and LP shares are
// not considered.
func NumberOfUsersDelta(r UpdateResult) (usersDelta, usersWithBaseDelta int) {
	if r.WasNonZero && !r.IsNonZero && r.QuoteIsZero {
		usersDelta = -1
	}
	if r.WasNonZero && !r.IsNonZero {
		usersWithBaseDelta = -1
	}
	return usersDelta, usersWithBaseDelta
}
