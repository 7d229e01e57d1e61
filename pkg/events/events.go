// Package events implements the append-only structured records the
// engine emits for fills, liquidations, funding ticks, interest accrual,
// and curve changes. An EventSink port receives each record and is free
// to log, serialize, or persist it.
package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// OrderAction mirrors the source's OrderAction enum.
type OrderAction int8

const (
	ActionPlace OrderAction = iota
	ActionCancel
	ActionFill
	ActionTrigger
	ActionExpire
)

// OrderActionExplanation narrows why an action happened (subset covering
// the engine's fulfillment paths).
type OrderActionExplanation int8

const (
	ExplainNone OrderActionExplanation = iota
	ExplainOrderFilledWithAmm
	ExplainOrderFilledWithMatch
	ExplainOrderFilledWithExternalMarket
	ExplainMarketOrderFilled
	ExplainCanceledForLiquidation
	ExplainReduceOnlyOrderIncreasedPosition
	ExplainOrderExpired
)

// OrderRecord is emitted on order placement.
type OrderRecord struct {
	Ts     int64
	User   common.Address
	Order  OrderSnapshot
}

// OrderSnapshot is a flattened copy of the fields of order.Order worth
// recording (avoids an import cycle back into the order package; the
// engine package fills this in from the live order).
type OrderSnapshot struct {
	OrderID                uint32
	MarketIndex            uint16
	MarketType             uint8
	OrderType              uint8
	Direction              uint8
	BaseAssetAmount        uint64
	BaseAssetAmountFilled  uint64
	QuoteAssetAmountFilled uint64
	Price                  uint64
}

// OrderActionRecord is emitted for every fill/cancel/trigger/expire,
// carrying both maker and taker identities, sizes, fees, and fill price.
type OrderActionRecord struct {
	// RecordID uniquely identifies this record in the append-only
	// ledger, independent of the sequential FillRecordID below.
	RecordID           uuid.UUID
	Ts                 int64
	Action             OrderAction
	ActionExplanation  OrderActionExplanation
	MarketIndex        uint16
	MarketType         uint8

	Filler       *common.Address
	FillerReward *uint64
	FillRecordID *uint64

	BaseAssetAmountFilled        *uint64
	QuoteAssetAmountFilled       *uint64
	TakerFee                     *uint64
	MakerFee                     *int64 // negative = rebate paid to maker
	ReferrerReward               *uint64
	QuoteAssetAmountSurplus      *int64
	SpotFulfillmentMethodFee     *uint64

	Taker                                            *common.Address
	TakerOrderID                                     *uint32
	TakerOrderDirection                               *uint8
	TakerOrderBaseAssetAmount                         *uint64
	TakerOrderCumulativeBaseAssetAmountFilled         *uint64
	TakerOrderCumulativeQuoteAssetAmountFilled        *uint64

	Maker                                             *common.Address
	MakerOrderID                                      *uint32
	MakerOrderDirection                                *uint8
	MakerOrderBaseAssetAmount                          *uint64
	MakerOrderCumulativeBaseAssetAmountFilled          *uint64
	MakerOrderCumulativeQuoteAssetAmountFilled         *uint64

	OraclePrice int64
}

// FundingRateRecord is emitted on each funding tick.
type FundingRateRecord struct {
	Ts                        int64
	MarketIndex               uint16
	FundingRate               int64
	FundingRateLong           int64
	FundingRateShort          int64
	CumulativeFundingRateLong  int64
	CumulativeFundingRateShort int64
	OraclePriceTwap            int64
	MarkPriceTwap               int64
	PeriodRevenue               int64
	BaseAssetAmountWithAmm       int64
	BaseAssetAmountWithUnsettledLp int64
}

// FundingPaymentRecord is emitted per user settled.
type FundingPaymentRecord struct {
	Ts                        int64
	User                      common.Address
	MarketIndex               uint16
	FundingPayment            int64
	BaseAssetAmount           int64
	UserLastCumulativeFunding  int64
	AmmCumulativeFunding       int64
}

// SettlePnlRecord is emitted on PnL settlement.
type SettlePnlRecord struct {
	Ts            int64
	User          common.Address
	MarketIndex   uint16
	Pnl           int64
	BaseAssetAmount int64
	QuoteAssetAmountAfter int64
	QuoteEntryAmount      int64
	SettlePrice           int64
}

// LiquidationType mirrors the source's enum.
type LiquidationType int8

const (
	LiquidationTypePerp LiquidationType = iota
	LiquidationTypeSpot
	LiquidationTypeBorrowForPerpPnl
	LiquidationTypePerpPnlForDeposit
	LiquidationTypePerpBankruptcy
	LiquidationTypeSpotBankruptcy
)

// LiquidationRecord carries a typed body per liquidation kind; unused
// sub-records are left zero-valued, mirroring the source's flat-struct
// approach (every sub-record field present, only the relevant one
// populated).
type LiquidationRecord struct {
	// RecordID uniquely identifies this record in the append-only ledger.
	RecordID          uuid.UUID
	Ts                int64
	LiquidationType   LiquidationType
	User              common.Address
	Liquidator        common.Address
	MarginRequirement int64
	TotalCollateral   int64
	MarginFreed       uint64
	LiquidationID     uint16
	Bankrupt          bool
	CanceledOrderIDs  []uint32

	LiquidatePerp LiquidatePerpRecord
	LiquidateSpot LiquidateSpotRecord
	PerpBankruptcy PerpBankruptcyRecord
	SpotBankruptcy SpotBankruptcyRecord
}

type LiquidatePerpRecord struct {
	MarketIndex     uint16
	OraclePrice     int64
	BaseAssetAmount int64
	QuoteAssetAmount int64
	LiquidatorFee    uint64
	IfFee            uint64
}

type LiquidateSpotRecord struct {
	AssetMarketIndex     uint16
	AssetPrice           int64
	AssetTransfer        uint64
	LiabilityMarketIndex uint16
	LiabilityPrice       int64
	LiabilityTransfer    uint64
	IfFee                uint64
}

type PerpBankruptcyRecord struct {
	MarketIndex                  uint16
	Pnl                           int64
	IfPayment                     uint64
	CumulativeFundingRateDelta    int64
}

type SpotBankruptcyRecord struct {
	MarketIndex                     uint16
	BorrowAmount                     uint64
	IfPayment                        uint64
	CumulativeDepositInterestDelta   uint64
}

// SpotInterestRecord is emitted on spot-market interest accrual ticks.
type SpotInterestRecord struct {
	Ts                         int64
	MarketIndex                uint16
	DepositBalance              uint64
	CumulativeDepositInterest   uint64
	BorrowBalance                uint64
	CumulativeBorrowInterest     uint64
	OptimalUtilization           uint32
	DepositTokenAmount           uint64
	BorrowTokenAmount            uint64
}

// InsuranceFundStakeRecord tracks IF stake/unstake actions.
type InsuranceFundStakeRecord struct {
	Ts               int64
	User             common.Address
	MarketIndex      uint16
	Action           StakeAction
	Amount           uint64
	InsuranceVaultAmountBefore uint64
	IfSharesBefore    uint64
	UserIfSharesBefore uint64
	TotalIfSharesBefore uint64
	IfSharesAfter     uint64
	UserIfSharesAfter  uint64
	TotalIfSharesAfter uint64
}

type StakeAction int8

const (
	StakeActionStake StakeAction = iota
	StakeActionUnstakeRequest
	StakeActionUnstakeCancelRequest
	StakeActionUnstake
)

// DepositRecord is emitted for deposit/withdraw operations.
type DepositRecord struct {
	Ts                int64
	User              common.Address
	Direction         DepositDirection
	MarketIndex       uint16
	Amount            uint64
	OraclePrice       int64
	MarketDepositBalance uint64
	MarketBorrowBalance  uint64
}

type DepositDirection int8

const (
	DepositDirectionDeposit DepositDirection = iota
	DepositDirectionWithdraw
)

// LPRecord is emitted on LP share mints/burns/settles.
type LPRecord struct {
	Ts              int64
	User            common.Address
	Action          LPAction
	NShares         uint64
	MarketIndex     uint16
	DeltaBaseAssetAmount  int64
	DeltaQuoteAssetAmount int64
	PnL              int64
}

type LPAction int8

const (
	LPActionAddLiquidity LPAction = iota
	LPActionRemoveLiquidity
	LPActionSettleLiquidity
)

// CurveRecord is emitted on repeg/k-change.
type CurveRecord struct {
	Ts                         int64
	MarketIndex                uint16
	PegMultiplierBefore        uint64
	PegMultiplierAfter         uint64
	BaseAssetReserveBefore     string // decimal string of the uint256 value
	BaseAssetReserveAfter      string
	QuoteAssetReserveBefore    string
	QuoteAssetReserveAfter     string
	SqrtKBefore                string
	SqrtKAfter                 string
	TotalFee                   int64
	TotalFeeMinusDistributions int64
	AdjustmentCost             int64
	OraclePrice                int64
	FillRecordID               uint64
}
