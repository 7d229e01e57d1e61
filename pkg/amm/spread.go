package amm

import "github.com/driftcore/engine/pkg/fixedpoint"

// SpreadInputs bundles the signals the quote engine reads.
type SpreadInputs struct {
	ReservePrice        int64
	BaseAssetAmountWithAmm int64 // signed inventory, AMM_RESERVE_PRECISION
	SqrtK                  int64 // AMM_RESERVE_PRECISION
	MarkStd                int64 // PRICE_PRECISION
	OracleConfidence       uint64
	Last24hAvgFundingRate  int64 // FUNDING_RATE_PRECISION, signed

	BaseSpread            uint64 // BID_ASK_SPREAD_PRECISION
	MaxSpread             uint64
	MarginRatioInitial    uint64 // 1e4-scaled margin ratio (e.g. 1_000 = 10%)
}

// skewScale bounds how strongly inventory imbalance widens the heavy side.
const skewScale = 10

// Spreads computes (longSpread, shortSpread) in BID_ASK_SPREAD_PRECISION,
// per the monotone policy in the design
func Spreads(in SpreadInputs) (longSpread, shortSpread uint64) {
	half := in.BaseSpread / 2
	longSpread, shortSpread = half, half

	if in.SqrtK != 0 && in.ReservePrice != 0 {
		skew := fixedpoint.AbsI64(in.BaseAssetAmountWithAmm) * fixedpoint.BidAskSpreadPrecision / in.SqrtK
		widen := uint64(skew) * skewScale / fixedpoint.BidAskSpreadPrecision * in.BaseSpread / 100
		if in.BaseAssetAmountWithAmm > 0 {
			// Users net long means the AMM is net short base; widen the ask
			// (long-taker) side to discourage adding to the AMM's exposure and
			// favour short takers, whose trades reduce the AMM's inventory.
			longSpread += widen
		} else if in.BaseAssetAmountWithAmm < 0 {
			shortSpread += widen
		}
	}

	if in.ReservePrice != 0 && in.MarkStd != 0 {
		volTerm := uint64(in.MarkStd) * fixedpoint.BidAskSpreadPrecision / uint64(in.ReservePrice)
		longSpread += volTerm
		shortSpread += volTerm
	}

	if in.ReservePrice != 0 && in.OracleConfidence != 0 {
		confTerm := in.OracleConfidence * fixedpoint.BidAskSpreadPrecision / uint64(in.ReservePrice)
		longSpread += confTerm
		shortSpread += confTerm
	}

	// The budget clamps the sum, not each side independently
	// (long_spread + short_spread <= max_spread): a side
	// widened by inventory/vol/confidence terms must not push the total
	// past the budget even when it is individually under it. Scale both
	// sides down proportionally so the heavier side still carries more of
	// the spread than the lighter one.
	budget := in.MaxSpread
	if in.MarginRatioInitial != 0 {
		marginCap := in.MarginRatioInitial * 100
		if budget == 0 || marginCap < budget {
			budget = marginCap
		}
	}
	if budget != 0 {
		if total := longSpread + shortSpread; total > budget {
			longSpread = longSpread * budget / total
			shortSpread = shortSpread * budget / total
		}
	}

	return longSpread, shortSpread
}
