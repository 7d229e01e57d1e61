// Package order implements the order data model, per-type validation,
// and the linear auction pricer. Validation is three-tiered: type-specific
// invariants, then common size/notional checks, then the oracle- and
// AMM-dependent price guards.
package order

import "github.com/driftcore/engine/pkg/engerrors"

type MarketType int8

const (
	MarketTypePerp MarketType = iota
	MarketTypeSpot
)

type OrderType int8

const (
	TypeMarket OrderType = iota
	TypeLimit
	TypeTriggerMarket
	TypeTriggerLimit
	TypeOracle
)

type Direction int8

const (
	Long Direction = iota
	Short
)

type TriggerCondition int8

const (
	TriggerAbove TriggerCondition = iota
	TriggerBelow
	TriggerTriggeredAbove
	TriggerTriggeredBelow
)

type PostOnly int8

const (
	PostOnlyNone PostOnly = iota
	PostOnlyMust
	PostOnlyTry
)

type Status int8

const (
	StatusInit Status = iota
	StatusOpen
	StatusFilled
	StatusCanceled
)

// Order is a user-declared trading intent resting in one of the user's
// order slots.
type Order struct {
	OrderID     uint32
	UserOrderID uint8
	Slot        uint64

	MarketType  MarketType
	MarketIndex uint16
	OrderType   OrderType
	Direction   Direction

	BaseAssetAmount       uint64
	BaseAssetAmountFilled uint64
	QuoteAssetAmountFilled uint64

	Price uint64

	TriggerPrice     uint64
	TriggerCondition TriggerCondition
	Triggered        bool

	OracleOffset int32

	AuctionStartPrice int64
	AuctionEndPrice   int64
	AuctionDuration   uint8

	PostOnly          PostOnly
	ReduceOnly        bool
	ImmediateOrCancel bool

	MaxTs         int64
	TimeInForce   uint32

	Status Status
}

// MarketParams carries the per-market tick/step/min-order constraints a
// validator needs, loaded from the matching PerpMarket/SpotMarket.
type MarketParams struct {
	StepSize       uint64
	TickSize       uint64
	MinOrderSize   uint64
	MinOrderValue  uint64 // quote-precision, ~$0.50 per the design

	// OraclePrice is the current oracle reading, PRICE_PRECISION. Zero
	// disables the oracle-dependent checks below (e.g. a market where no
	// oracle reading was loaded for this slot).
	OraclePrice int64

	// MarginRatioInitial/MarginRatioMaintenance (1e4 precision) drive the
	// oracle-limit-breach check: a limit order whose price
	// deviates from OraclePrice by >= (initial - maintenance) is rejected.
	MarginRatioInitial     uint32
	MarginRatioMaintenance uint32

	// AmmFillableBase is the base amount the current AMM could fill
	// immediately against this order's side, used by the post-only
	// crossing check.
	AmmFillableBase uint64
}

// Validate dispatches to the per-type checks, then applies the common
// invariants every order type shares.
func Validate(o *Order, mp MarketParams) error {
	if err := validateType(o); err != nil {
		return err
	}
	if err := validateCommon(o, mp); err != nil {
		return err
	}
	return validatePriceGuards(o, mp)
}

// validatePriceGuards wires the two oracle/AMM-dependent rejections:
// a MustPostOnly/TryPostOnly order that would immediately
// cross the AMM, and a priced order whose limit breaches the oracle band
// by at least (margin_ratio_initial - margin_ratio_maintenance).
func validatePriceGuards(o *Order, mp MarketParams) error {
	if PostOnlyWouldCross(o, mp.AmmFillableBase, mp.OraclePrice) {
		return engerrors.ErrPostOnlyWouldCross
	}
	if o.Price != 0 && mp.OraclePrice != 0 && mp.MarginRatioInitial != 0 {
		if OracleLimitBreach(int64(o.Price), mp.OraclePrice, mp.MarginRatioInitial, mp.MarginRatioMaintenance) {
			return engerrors.ErrOracleLimitBreach
		}
	}
	return nil
}

func validateType(o *Order) error {
	switch o.OrderType {
	case TypeMarket:
		if o.AuctionStartPrice == 0 || o.AuctionEndPrice == 0 {
			return engerrors.ErrInvalidOrderParams
		}
		if !auctionOrdered(o.Direction, o.AuctionStartPrice, o.AuctionEndPrice) {
			return engerrors.ErrInvalidOrderParams
		}
		if o.TriggerPrice != 0 || o.PostOnly != PostOnlyNone || o.OracleOffset != 0 || o.ImmediateOrCancel {
			return engerrors.ErrInvalidOrderParams
		}
	case TypeLimit:
		hasPrice := o.Price > 0
		hasOffset := o.OracleOffset != 0
		if hasPrice == hasOffset {
			return engerrors.ErrInvalidOrderParams
		}
		if o.TriggerPrice != 0 {
			return engerrors.ErrInvalidOrderParams
		}
	case TypeTriggerMarket:
		if o.TriggerPrice == 0 {
			return engerrors.ErrInvalidOrderParams
		}
		if o.TriggerCondition != TriggerAbove && o.TriggerCondition != TriggerBelow {
			return engerrors.ErrInvalidOrderParams
		}
		if o.PostOnly != PostOnlyNone || o.OracleOffset != 0 {
			return engerrors.ErrInvalidOrderParams
		}
	case TypeTriggerLimit:
		if o.TriggerPrice == 0 || o.Price == 0 {
			return engerrors.ErrInvalidOrderParams
		}
		if o.TriggerCondition != TriggerAbove && o.TriggerCondition != TriggerBelow {
			return engerrors.ErrInvalidOrderParams
		}
		if o.PostOnly != PostOnlyNone {
			return engerrors.ErrInvalidOrderParams
		}
	case TypeOracle:
		if o.Price != 0 {
			return engerrors.ErrInvalidOrderParams
		}
		if o.PostOnly != PostOnlyNone || o.ImmediateOrCancel {
			return engerrors.ErrInvalidOrderParams
		}
		if !auctionOrdered(o.Direction, o.AuctionStartPrice, o.AuctionEndPrice) {
			return engerrors.ErrInvalidOrderParams
		}
	default:
		return engerrors.ErrInvalidOrderParams
	}
	return nil
}

// auctionOrdered checks the direction-ordered auction price invariant:
// long orders must have start <= end, short orders start >= end.
func auctionOrdered(dir Direction, start, end int64) bool {
	if start == 0 && end == 0 {
		return true // not an auctioning order type (e.g. plain limit)
	}
	if dir == Long {
		return start <= end
	}
	return start >= end
}

func validateCommon(o *Order, mp MarketParams) error {
	if o.BaseAssetAmount == 0 {
		return engerrors.ErrInvalidOrderParams
	}
	if mp.StepSize != 0 && o.BaseAssetAmount%mp.StepSize != 0 {
		return engerrors.ErrNotStepSizeMultiple
	}
	if mp.TickSize != 0 && o.Price != 0 && o.Price%mp.TickSize != 0 {
		return engerrors.ErrNotTickSizeMultiple
	}
	if !o.ReduceOnly && mp.MinOrderSize != 0 && o.BaseAssetAmount < mp.MinOrderSize {
		return engerrors.ErrInsufficientSize
	}
	if mp.MinOrderValue != 0 && o.Price != 0 {
		notional, err := notionalOf(o.Price, o.BaseAssetAmount)
		if err != nil {
			return err
		}
		if notional < mp.MinOrderValue {
			return engerrors.ErrNotionalTooSmall
		}
	}
	return nil
}

func notionalOf(price, base uint64) (uint64, error) {
	// price is PRICE_PRECISION, base is BASE_PRECISION; the caller's
	// MinOrderValue is expressed in the same reduced unit so a plain
	// 128-bit-safe multiply suffices at these magnitudes via uint64
	// overflow detection.
	hi, lo := bitsMul(price, base)
	if hi != 0 {
		return 0, engerrors.ErrOverflow
	}
	const basePrecision = 1_000_000_000
	return lo / basePrecision, nil
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
