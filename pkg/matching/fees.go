// Package matching implements the fill paths: vAMM fill, internal
// maker-match, external-venue fulfillment, and the tiered fee
// computation all three share.
package matching

import (
	"github.com/driftcore/engine/pkg/fixedpoint"
	"github.com/driftcore/engine/params"
)

// FillFees is the fee breakdown for one fill.
type FillFees struct {
	TakerFee        uint64
	MakerRebate     uint64
	FillerReward    uint64
	ReferrerReward  uint64
	RefereeDiscount uint64
	FeeToMarket     int64
}

// TierSelectionInput bundles the signals determine_user_fee_tier reads.
type TierSelectionInput struct {
	Total30dVolume        int64
	IfStakedGovTokenAmount int64
	HighLeverageMode       bool
}

// volumeThresholds and stakeThresholds mirror determine_perp_fee_tier's
// TIER_LENGTH=5 threshold tables (quote-precision, scaled from the
// original's named constants), selecting one of the six rows in
// params.FeeStructure.Tiers.
var volumeThresholds = [5]int64{
	2_000_000_000_000,   // 2x ONE_MILLION_QUOTE in 1e6 precision... expressed directly here in QUOTE_PRECISION units
	10_000_000_000_000,
	20_000_000_000_000,
	80_000_000_000_000,
	200_000_000_000_000,
}

var stakeThresholds = [5]int64{
	999_000_000,
	9_999_000_000,
	49_999_000_000,
	99_999_000_000,
	244_995_000_000,
}

var stakeBenefitFrac = [6]int64{0, 5, 10, 20, 30, 40}

// SelectTier implements determine_user_fee_tier: high-leverage mode pins
// to tier 0; otherwise the 30d-volume tier is looked up and then
// discounted further by the staked-governance-token benefit fraction.
func SelectTier(fs params.FeeStructure, in TierSelectionInput) params.FeeTier {
	if in.HighLeverageMode {
		t := fs.Tiers[0]
		t.TakerFeeNumerator *= 2
		return t
	}

	tierIdx := 5
	for i, threshold := range volumeThresholds {
		if in.Total30dVolume < threshold {
			tierIdx = i
			break
		}
	}

	stakeIdx := 5
	for i, threshold := range stakeThresholds {
		if in.IfStakedGovTokenAmount < threshold {
			stakeIdx = i
			break
		}
	}
	benefit := stakeBenefitFrac[stakeIdx]

	tier := fs.Tiers[tierIdx]
	if benefit > 0 {
		tier.TakerFeeNumerator -= tier.TakerFeeNumerator * benefit / 100
		tier.MakerRebateNumerator += tier.MakerRebateNumerator * benefit / 100
	}
	return tier
}

// TakerFee = qty * fee_numerator / fee_denominator, ceil-rounded, then
// adjusted by fee_adjustment (negative shrinks, positive grows the
// numerator).
func TakerFee(quoteAssetAmount uint64, tier params.FeeTier, feeAdjustment int64) (uint64, error) {
	fee, err := fixedpoint.MulDivCeilU64(quoteAssetAmount, uint64(tier.TakerFeeNumerator), uint64(tier.TakerFeeDenominator))
	if err != nil {
		return 0, err
	}
	return applyFeeAdjustment(fee, feeAdjustment, true), nil
}

// MakerRebate = qty * rebate_numerator / rebate_denominator, floor, then
// adjusted by fee_adjustment.
func MakerRebate(quoteAssetAmount uint64, tier params.FeeTier, feeAdjustment int64) (uint64, error) {
	rebate, err := fixedpoint.MulDivU64(quoteAssetAmount, uint64(tier.MakerRebateNumerator), uint64(tier.MakerRebateDenom))
	if err != nil {
		return 0, err
	}
	return applyFeeAdjustment(rebate, feeAdjustment, false), nil
}

// applyFeeAdjustment scales fee by +/-feeAdjustment/FeeAdjustmentMax,
// ceil-rounding on growth and floor-rounding on shrink (matching the
// source's safe_div_ceil on the growth branch).
func applyFeeAdjustment(fee uint64, feeAdjustment int64, ceilOnGrow bool) uint64 {
	if feeAdjustment == 0 || fee == 0 {
		return fee
	}
	abs := feeAdjustment
	if abs < 0 {
		abs = -abs
	}
	delta := fee * uint64(abs) / params.FeeAdjustmentMax
	if feeAdjustment < 0 {
		if delta > fee {
			return 0
		}
		return fee - delta
	}
	if ceilOnGrow {
		rem := fee * uint64(abs) % params.FeeAdjustmentMax
		if rem != 0 {
			delta++
		}
	}
	return fee + delta
}

// FillerReward = min(size_based, time_based).I:
//
//	size_based = fee * reward_numerator / reward_denominator
//	time_based = min_time_reward * nth_root(slots_since_order*1e8, 4) / 100
func FillerReward(fee uint64, tier params.FeeTier, slotsSinceOrder uint64, minTimeReward int64) (uint64, error) {
	sizeBased, err := fixedpoint.MulDivU64(fee, uint64(tier.FillerRewardNum), uint64(tier.FillerRewardDenom))
	if err != nil {
		return 0, err
	}
	timeBased := timeBasedReward(slotsSinceOrder, minTimeReward)
	if sizeBased < timeBased {
		return sizeBased, nil
	}
	return timeBased, nil
}

func timeBasedReward(slotsSinceOrder uint64, minTimeReward int64) uint64 {
	root := nthRoot(slotsSinceOrder*100_000_000, 4)
	return uint64(minTimeReward) * root / 100
}

// nthRoot computes floor(x^(1/n)) via Newton's method for small integer
// n, the form the design calls out for the filler time-based reward.
func nthRoot(x uint64, n uint64) uint64 {
	if x == 0 {
		return 0
	}
	guess := x
	for {
		// next = ((n-1)*guess + x/guess^(n-1)) / n
		powNMinus1 := uint64(1)
		for i := uint64(0); i < n-1; i++ {
			powNMinus1 *= guess
		}
		if powNMinus1 == 0 {
			break
		}
		next := ((n-1)*guess + x/powNMinus1) / n
		if next >= guess {
			break
		}
		guess = next
	}
	return guess
}

// RefereeDiscountAndReward computes the referee's fee discount and the
// referrer's reward from the taker fee, capped to the referrer's
// remaining per-epoch allowance.
func RefereeDiscountAndReward(fee uint64, fs params.FeeStructure, referrerEpochRemaining uint64) (refereeDiscount, referrerReward, feeAfterDiscount uint64, err error) {
	refereeDiscount, err = fixedpoint.MulDivU64(fee, uint64(fs.RefereeDiscountNum), uint64(fs.RefereeDiscountDen))
	if err != nil {
		return 0, 0, 0, err
	}
	maxReward, err := fixedpoint.MulDivU64(fee, uint64(fs.ReferrerRewardNum), uint64(fs.ReferrerRewardDen))
	if err != nil {
		return 0, 0, 0, err
	}
	referrerReward = fixedpoint.MinU64(maxReward, referrerEpochRemaining)
	feeAfterDiscount = fee - refereeDiscount
	return refereeDiscount, referrerReward, feeAfterDiscount, nil
}

// FeeToMarketPerp computes fee_to_market for the perp-AMM path:
// fee_to_market = taker_fee - filler - referrer - maker_rebate +
// quote_asset_amount_surplus.
func FeeToMarketPerp(takerFee, filler, referrer, makerRebate uint64, surplus int64) int64 {
	return int64(takerFee) - int64(filler) - int64(referrer) - int64(makerRebate) + surplus
}

// FeeToMarketForLP is the LP variant of FeeToMarket. The non-LP
// fee_to_market is the canonical conservation equation; when unsettled
// LP shares are present, the surplus is
// subtracted a second time so LPs do not double-count the maker surplus
// already credited to fee_to_market.
func FeeToMarketForLP(feeToMarket int64, surplus int64, hasUnsettledLp bool) int64 {
	if !hasUnsettledLp {
		return feeToMarket
	}
	return feeToMarket - surplus
}

// FeeToMarketSpotExternal computes fee_to_market for the
// external-venue spot path: fee_to_market = taker_fee - external_market_fee
// - filler - unsettled_referrer_rebate.
func FeeToMarketSpotExternal(takerFee, externalMarketFee, filler, unsettledReferrerRebate uint64) int64 {
	return int64(takerFee) - int64(externalMarketFee) - int64(filler) - int64(unsettledReferrerRebate)
}
