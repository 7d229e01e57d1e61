package order

import "github.com/driftcore/engine/pkg/fixedpoint"

// AuctionPrice computes p(delta) = start + (end-start)*delta/duration,
// where delta = min(slot-order.slot, duration). At
// delta==0 it returns start; at delta==duration it returns end.
func AuctionPrice(o *Order, slot uint64) int64 {
	if o.AuctionDuration == 0 {
		return o.AuctionEndPrice
	}
	elapsed := int64(0)
	if slot > o.Slot {
		elapsed = int64(slot - o.Slot)
	}
	delta := fixedpoint.MinI64(elapsed, int64(o.AuctionDuration))

	span := o.AuctionEndPrice - o.AuctionStartPrice
	return o.AuctionStartPrice + span*delta/int64(o.AuctionDuration)
}

// AuctionComplete reports whether the order's auction window has elapsed
// as of slot.
func AuctionComplete(o *Order, slot uint64) bool {
	if o.AuctionDuration == 0 {
		return true
	}
	return slot >= o.Slot+uint64(o.AuctionDuration)
}

// ShouldCancelAfterFulfill implements the post-auction idle-order cancel
// rule: a market order that completed its auction and has sat unfilled for
// longer than maxIdleSlots becomes eligible for cancellation on the next
// fill attempt.
func ShouldCancelAfterFulfill(o *Order, slot uint64, maxIdleSlots uint64) bool {
	if o.OrderType != TypeMarket && o.OrderType != TypeOracle {
		return false
	}
	if o.BaseAssetAmountFilled > 0 {
		return false
	}
	if !AuctionComplete(o, slot) {
		return false
	}
	elapsed := slot - (o.Slot + uint64(o.AuctionDuration))
	return elapsed >= maxIdleSlots
}

// PostOnlyWouldCross reports whether a MustPostOnly/TryPostOnly order
// would immediately match against the AMM, given the base amount the AMM
// could currently fill at the order's limit price. The order is allowed
// to cross a stale AMM only when the oracle lies strictly on the
// favorable side of the limit.
func PostOnlyWouldCross(o *Order, ammFillableBase uint64, oraclePrice int64) bool {
	if o.PostOnly == PostOnlyNone {
		return false
	}
	if ammFillableBase == 0 {
		return false
	}
	limit := int64(o.Price)
	if limit == 0 {
		return ammFillableBase > 0
	}
	favorable := false
	if o.Direction == Long {
		favorable = oraclePrice < limit
	} else {
		favorable = oraclePrice > limit
	}
	return !favorable
}

// OracleLimitBreach implements the oracle-limit breach check: an order
// whose limit deviates from the oracle by at least
// (marginRatioInitial - marginRatioMaintenance) (both in 1e4 precision,
// PERCENTAGE_PRECISION-scaled) is rejected. The boundary is inclusive:
// a deviation exactly at the threshold breaches.
func OracleLimitBreach(limitPrice, oraclePrice int64, marginRatioInitial, marginRatioMaintenance uint32) bool {
	if oraclePrice == 0 {
		return false
	}
	diff := limitPrice - oraclePrice
	if diff < 0 {
		diff = -diff
	}
	// ratio in PERCENTAGE_PRECISION (1e6), matching margin ratios that are
	// expressed in 1e4 scaled up by 100 to share the same precision.
	ratio := diff * 1_000_000 / oraclePrice
	threshold := int64(marginRatioInitial-marginRatioMaintenance) * 100
	return ratio >= threshold
}
