// Package liquidation implements liquidation eligibility, partial
// liquidation pacing, transfer sizing, and bankruptcy socialization.
package liquidation

import "github.com/driftcore/engine/pkg/fixedpoint"

const percentagePrecision = 1_000_000

// Eligible reports whether a user is liquidatable: maintenance total
// collateral below the maintenance requirement.
func Eligible(maintenanceCollateral, maintenanceRequirement int64) bool {
	return maintenanceCollateral < maintenanceRequirement
}

// PacingInput bundles the per-slot liberation-allowance inputs.
type PacingInput struct {
	SlotsElapsed           uint64
	LiquidationDuration    uint32 // slots
	InitialPctToLiquidate  uint32 // PERCENTAGE_PRECISION
	MarginShortage         int64
	LiquidationMarginFreed int64
}

// PacingResult is the per-slot liberation allowance.
type PacingResult struct {
	PctFreeable      int64 // PERCENTAGE_PRECISION
	MaxMarginFreed   int64
	MarginFreeable   int64
	PctToLiquidate   int64 // PERCENTAGE_PRECISION
}

// Pace implements:
//
//	pct_freeable = min(1e6, slots_elapsed*1e6/liquidation_duration + initial_pct)
//	max_margin_freed = (margin_shortage + liquidation_margin_freed) * pct_freeable / 1e6
//	margin_freeable = max_margin_freed - liquidation_margin_freed
//	pct_to_liquidate = margin_freeable * 1e6 / margin_shortage
func Pace(in PacingInput) PacingResult {
	var r PacingResult
	if in.LiquidationDuration == 0 {
		r.PctFreeable = percentagePrecision
	} else {
		r.PctFreeable = int64(in.SlotsElapsed)*percentagePrecision/int64(in.LiquidationDuration) + int64(in.InitialPctToLiquidate)
		if r.PctFreeable > percentagePrecision {
			r.PctFreeable = percentagePrecision
		}
	}

	r.MaxMarginFreed = (in.MarginShortage + in.LiquidationMarginFreed) * r.PctFreeable / percentagePrecision
	r.MarginFreeable = r.MaxMarginFreed - in.LiquidationMarginFreed
	if in.MarginShortage != 0 {
		r.PctToLiquidate = r.MarginFreeable * percentagePrecision / in.MarginShortage
	}
	return r
}

// TransferInput bundles the inputs to the base-amount-to-liquidate
// formula.
type TransferInput struct {
	MarginShortage       int64
	OraclePrice          int64
	QuoteOraclePrice     int64 // PRICE_PRECISION; 1e6 for USD-quoted perps
	MarginRatio          int64 // 1e4-scaled, caller picks initial or maintenance per tier rules
	LiquidatorFee        int64 // 1e4-scaled
	IfLiquidationFee     int64 // 1e4-scaled
	UserBaseAssetAmount  int64 // the user's actual position base amount; clamps the result
}

const ammToQuotePrecisionRatio = 1_000 // BASE_PRECISION(1e9) / QUOTE_PRECISION(1e6)

// priceTimesAmmToQuotePrecisionRatio lifts a QUOTE_PRECISION margin
// shortage to BASE_PRECISION against a PRICE_PRECISION-scaled
// per-base-unit denominator.
const priceTimesAmmToQuotePrecisionRatio = fixedpoint.PricePrecision * ammToQuotePrecisionRatio

// BaseAmountToLiquidate computes the base amount that must be liquidated
// to close the margin shortage, clamped to the user's actual base
// amount. MarginShortage is at QUOTE_PRECISION, the same scale the
// margin engine computes requirements and collateral in.
func BaseAmountToLiquidate(in TransferInput) (int64, error) {
	priceRatio := in.OraclePrice * in.QuoteOraclePrice / fixedpoint.PricePrecision
	numeratorRate := priceRatio * (in.MarginRatio - in.LiquidatorFee) / 10_000
	ifFeeTerm := in.OraclePrice * in.IfLiquidationFee / 10_000
	denominator := numeratorRate - ifFeeTerm
	if denominator <= 0 {
		return 0, nil
	}

	baseU, err := fixedpoint.MulDivU64(uint64(in.MarginShortage), priceTimesAmmToQuotePrecisionRatio, uint64(denominator))
	if err != nil {
		return 0, err
	}
	maxBase := fixedpoint.AbsI64(in.UserBaseAssetAmount)
	if baseU > uint64(maxBase) {
		return maxBase, nil
	}
	return int64(baseU), nil
}

// LiquidatorShare and IfShare split the liquidated transfer between the
// liquidator's fee and the insurance fund's liquidation fee.
func LiquidatorShare(transferValue, liquidatorFee int64) int64 {
	return transferValue * liquidatorFee / 10_000
}

func IfShare(transferValue, ifLiquidationFee int64) int64 {
	return transferValue * ifLiquidationFee / 10_000
}

// IsBankrupt reports whether collateral has fallen to or below zero after
// liquidation.
func IsBankrupt(collateralAfterLiquidation int64) bool {
	return collateralAfterLiquidation <= 0
}

// PerpBankruptcyDelta computes the cumulative-funding-rate delta that
// socializes a perp bankruptcy loss across all counterparties on the
// opposite side's funding tag:
//
//	delta = loss * AMM_RESERVE_PRECISION / (|base_long|+|base_short|)
//	        * FUNDING_RATE_TO_QUOTE_PRECISION_RATIO
func PerpBankruptcyDelta(loss int64, baseLong, baseShort int64, fundingRateToQuotePrecisionRatio int64) (int64, error) {
	totalOI := fixedpoint.AbsI64(baseLong) + fixedpoint.AbsI64(baseShort)
	if totalOI == 0 {
		return 0, nil
	}
	const ammReservePrecision = 1_000_000_000
	return loss * ammReservePrecision / totalOI * fundingRateToQuotePrecisionRatio, nil
}

// SpotBankruptcyDelta computes the cumulative-deposit-interest delta that
// socializes a spot bankruptcy loss across depositors, rounded up:
//
//	delta = cumulative_deposit_interest * borrow / total_deposits
func SpotBankruptcyDelta(cumulativeDepositInterest, borrow, totalDeposits uint64) (uint64, error) {
	if totalDeposits == 0 {
		return 0, nil
	}
	num := cumulativeDepositInterest * borrow
	if num%totalDeposits == 0 {
		return num / totalDeposits, nil
	}
	return num/totalDeposits + 1, nil
}
