package amm

import "github.com/driftcore/engine/pkg/fixedpoint"

const secondsPerDay = 24 * 60 * 60

// FundingRate computes rate = (markTwap - oracleTwap) * periodSeconds /
// 24h, clamped to +/- capPerPeriod
func FundingRate(markTwap, oracleTwap int64, periodSeconds int64, capPerPeriod int64) int64 {
	diff := markTwap - oracleTwap
	rate := diff * periodSeconds / secondsPerDay
	if capPerPeriod > 0 {
		rate = fixedpoint.ClampI64(rate, -capPerPeriod, capPerPeriod)
	}
	return rate
}

// CumulativeFunding is the per-side accumulator carried on the market.
type CumulativeFunding struct {
	Long  int64 // FUNDING_RATE_PRECISION
	Short int64
}

// ApplyFundingRate updates the long/short cumulative accumulators for one
// funding period. When long pays short (rate > 0, mark above oracle) the
// dense side's notional determines the rate the sparse side actually
// receives, so that net paid == net received within the period's
// net_revenue_since_last_funding.
func ApplyFundingRate(cum CumulativeFunding, rate int64, longNotional, shortNotional uint64) CumulativeFunding {
	if rate == 0 || (longNotional == 0 && shortNotional == 0) {
		return cum
	}

	payingLong := rate > 0
	denseNotional, sparseNotional := longNotional, shortNotional
	if !payingLong {
		denseNotional, sparseNotional = shortNotional, longNotional
	}

	out := cum
	if payingLong {
		out.Long += rate
	} else {
		out.Short += rate
	}

	if sparseNotional == 0 || denseNotional == 0 {
		if payingLong {
			out.Short += rate
		} else {
			out.Long += rate
		}
		return out
	}

	totalPaid := fixedpoint.AbsI64(rate) * int64(denseNotional) / int64(fixedpoint.FundingRatePrecision)
	sparseRate := totalPaid * int64(fixedpoint.FundingRatePrecision) / int64(sparseNotional)

	if payingLong {
		out.Short += sparseRate
	} else {
		out.Long -= sparseRate
	}
	return out
}

// SettlePositionFunding computes the per-position funding payment delta
// and the new last_cumulative_funding_rate value:
// delta = (amm_cum_funding_side - position_last_cum) * base_amount /
// FUNDING_PRECISION_RATIO. A positive delta is owed by the position
// (subtracted from quote_asset_amount); a negative delta is credited.
func SettlePositionFunding(ammCumSide, positionLastCum, baseAmount int64) (delta int64, newLastCum int64) {
	diff := ammCumSide - positionLastCum
	delta = diff * baseAmount / int64(fixedpoint.FundingRatePrecision)
	return delta, ammCumSide
}
