// Package params carries the engine-wide configuration constants the host
// loads once and passes into every operation via engine.State.
package params

import "time"

// ValidityGuardRails bounds oracle acceptability.
type ValidityGuardRails struct {
	SlotsBeforeStaleForAmm      int64
	SlotsBeforeStaleForMargin   int64
	ConfidenceIntervalMaxSize   uint64 // in PERCENTAGE_PRECISION
	TooVolatileRatio            uint64 // numerator over 1.0, e.g. 5 = 5x
}

// PriceDivergenceGuardRails bounds mark-vs-oracle divergence.
type PriceDivergenceGuardRails struct {
	MarkOraclePercentDivergence        uint64 // PERCENTAGE_PRECISION
	OracleTwap5MinPercentDivergence    uint64 // PERCENTAGE_PRECISION
}

// ExchangeStatus is a bitmask of paused subsystems.
type ExchangeStatus uint16

const (
	StatusActive ExchangeStatus = 0
	StatusDepositPaused           ExchangeStatus = 1 << 0
	StatusWithdrawPaused          ExchangeStatus = 1 << 1
	StatusAmmPaused               ExchangeStatus = 1 << 2
	StatusFillPaused              ExchangeStatus = 1 << 3
	StatusLiqPaused               ExchangeStatus = 1 << 4
	StatusFundingPaused           ExchangeStatus = 1 << 5
	StatusSettlePnlPaused         ExchangeStatus = 1 << 6
	StatusAmmImmediateFillPaused  ExchangeStatus = 1 << 7
)

func (s ExchangeStatus) Has(flag ExchangeStatus) bool { return s&flag != 0 }

// FeeTier is one row of the taker/maker fee-tier table.
type FeeTier struct {
	MinVolume30d         int64 // quote-precision cumulative 30d volume threshold
	TakerFeeNumerator    int64
	TakerFeeDenominator  int64
	MakerRebateNumerator int64
	MakerRebateDenom     int64
	FillerRewardNum      int64
	FillerRewardDenom    int64
}

// FeeStructure holds the tiered fee table plus filler/referrer knobs for a
// market class (perp or spot).
type FeeStructure struct {
	Tiers               [6]FeeTier
	FeeAdjustment       int64 // [-FeeAdjustmentMax, +FeeAdjustmentMax]
	MinTimeRewardBps    int64
	RefereeDiscountNum  int64
	RefereeDiscountDen  int64
	ReferrerRewardNum   int64
	ReferrerRewardDen   int64
}

const FeeAdjustmentMax = 50 // percent, applied to the numerator

// State mirrorsthe `ctx`-carried State: the configuration every
// operation is invoked with, alongside the loaded account/market/oracle
// maps (see pkg/accounts).
type State struct {
	PerpFeeStructure  FeeStructure
	SpotFeeStructure  FeeStructure
	OracleGuardRails  ValidityGuardRails
	PriceDivergence   PriceDivergenceGuardRails

	LiquidationMarginBufferRatio uint32 // 1e4 precision, added on top of maintenance
	InitialPctToLiquidate        uint32 // PERCENTAGE_PRECISION, e.g. 100_000 = 10%
	LiquidationDuration          uint32 // slots over which a position becomes fully liquidatable
	SettlementDuration            uint32

	ExchangeStatus ExchangeStatus

	MinOrderQuoteAssetAmount   uint64 // ~ $0.50 in QUOTE_PRECISION
	DefaultMarketOrderTIF      uint32 // slots
	DefaultSpotAuctionDuration uint8

	MaxNumberOfSubAccounts uint16

	MaxPnlPoolExcess int64 // cap on unsettled PnL counted as collateral
}

// Default returns the constant table used when the host does not override
// anything, following the magnitude of the values named throughout the design.
func Default() State {
	tier := func(vol, takerNum, makerNum, fillerNum int64) FeeTier {
		return FeeTier{
			MinVolume30d:         vol,
			TakerFeeNumerator:    takerNum,
			TakerFeeDenominator:  1_000_000,
			MakerRebateNumerator: makerNum,
			MakerRebateDenom:     1_000_000,
			FillerRewardNum:      fillerNum,
			FillerRewardDenom:    1_000_000,
		}
	}
	perpFees := FeeStructure{
		Tiers: [6]FeeTier{
			tier(0, 100, 20, 10),
			tier(1_000_000_000_000, 90, 20, 10),
			tier(5_000_000_000_000, 80, 25, 10),
			tier(20_000_000_000_000, 70, 30, 10),
			tier(100_000_000_000_000, 60, 35, 10),
			tier(500_000_000_000_000, 50, 40, 10),
		},
		MinTimeRewardBps:   1,
		RefereeDiscountNum: 5,
		RefereeDiscountDen: 100,
		ReferrerRewardNum:  10,
		ReferrerRewardDen:  100,
	}
	spotFees := perpFees
	spotFees.Tiers[0] = tier(0, 100, 0, 10)

	return State{
		PerpFeeStructure: perpFees,
		SpotFeeStructure: spotFees,
		OracleGuardRails: ValidityGuardRails{
			SlotsBeforeStaleForAmm:    10,
			SlotsBeforeStaleForMargin: 120,
			ConfidenceIntervalMaxSize: 20_000, // 2%
			TooVolatileRatio:          5,
		},
		PriceDivergence: PriceDivergenceGuardRails{
			MarkOraclePercentDivergence:     100_000, // 10%
			OracleTwap5MinPercentDivergence: 50_000,  // 5%
		},
		LiquidationMarginBufferRatio: 200, // 2%
		InitialPctToLiquidate:        100_000,
		LiquidationDuration:          150, // ~60s at 400ms slots
		SettlementDuration:           100,
		ExchangeStatus:               StatusActive,
		MinOrderQuoteAssetAmount:     500_000, // ≈ $0.50 at QUOTE_PRECISION
		DefaultMarketOrderTIF:        300,
		DefaultSpotAuctionDuration:   10,
		MaxNumberOfSubAccounts:       8,
		MaxPnlPoolExcess:             1 << 62,
	}
}

// DefaultFundingPeriod is the standard hourly funding interval.
const DefaultFundingPeriod = time.Hour
