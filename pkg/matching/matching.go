package matching

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/driftcore/engine/pkg/amm"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/fixedpoint"
)

// FulfillmentPath is the closed sum type selecting which counterparty a
// fill executes against, dispatched in priority order: internal maker
// orders first, then the vAMM, then an external venue.
type FulfillmentPath int8

const (
	PathMaker FulfillmentPath = iota
	PathAmm
	PathExternalVenue
)

var errAmmTradeTooSmall = errors.New("matching: trade size too small to move price")

// AmmFillResult is the outcome of a vAMM-fill computation.
type AmmFillResult struct {
	BaseFilled  uint64
	QuoteFilled uint64
	EntryPrice  int64
	// QuoteAssetAmountSurplus holds a post-only maker's surplus against the
	// AMM spread; FillAmm does not compute it and leaves it zero.
	QuoteAssetAmountSurplus int64
}

// MaxAmmFillableBase reports the base amount the AMM could fill right now
// for a taker buying (long=true) or selling (long=false) base, the same
// direction mapping FillAmm uses. Order placement's post-only crossing
// check calls this to learn whether a MustPostOnly/
// TryPostOnly order would immediately cross the AMM.
func MaxAmmFillableBase(curve *amm.Curve, long bool) uint64 {
	fillableDir := amm.Remove
	if long {
		fillableDir = amm.Add
	}
	return mustUint64(curve.MaxBaseAssetAmountFillable(fillableDir))
}

// FillAmm computes the vAMM fill for a taker buying base from the AMM
// (long=true) or selling base to the AMM (long=false), bounded by the
// curve's current max-fillable distance to the relevant spread-adjusted
// reserve.
func FillAmm(curve *amm.Curve, long bool, unfilledBase uint64) (AmmFillResult, error) {
	fillableDir := amm.Remove
	if long {
		fillableDir = amm.Add
	}
	maxFillable := curve.MaxBaseAssetAmountFillable(fillableDir)

	fillBase := uint256.NewInt(unfilledBase)
	if fillBase.Cmp(maxFillable) > 0 {
		fillBase = maxFillable.Clone()
	}
	if fillBase.IsZero() {
		return AmmFillResult{}, nil
	}

	prePrice, err := curve.ReservePrice()
	if err != nil {
		return AmmFillResult{}, err
	}

	newBaseReserve := new(uint256.Int)
	if long {
		// the AMM gives up base to the taker: its base reserve shrinks.
		newBaseReserve.Sub(curve.BaseAssetReserve, fillBase)
	} else {
		newBaseReserve.Add(curve.BaseAssetReserve, fillBase)
	}
	if newBaseReserve.IsZero() {
		return AmmFillResult{}, engerrors.ErrDivisionByZero
	}

	invariant := new(uint256.Int).Mul(curve.SqrtK, curve.SqrtK)
	newQuoteReserve := new(uint256.Int).Div(invariant, newBaseReserve)

	var quoteDeltaUnpegged *uint256.Int
	if long {
		quoteDeltaUnpegged = new(uint256.Int).Sub(newQuoteReserve, curve.QuoteAssetReserve)
	} else {
		quoteDeltaUnpegged = new(uint256.Int).Sub(curve.QuoteAssetReserve, newQuoteReserve)
	}

	peggedQuote, err := fixedpoint.MulDivU64(mustUint64(quoteDeltaUnpegged), curve.PegMultiplier, fixedpoint.AMMReservePrecision)
	if err != nil {
		return AmmFillResult{}, err
	}

	curve.BaseAssetReserve = newBaseReserve
	curve.QuoteAssetReserve = newQuoteReserve

	postPrice, err := curve.ReservePrice()
	if err != nil {
		return AmmFillResult{}, err
	}

	baseFilled := mustUint64(fillBase)
	entryPrice := int64(0)
	if baseFilled != 0 {
		entryPrice = int64(peggedQuote * fixedpoint.BasePrecision / baseFilled)
	}

	tradeDir := amm.Remove
	if long {
		tradeDir = amm.Add
	}
	if amm.TradeSizeTooSmall(prePrice, postPrice, entryPrice, tradeDir) {
		return AmmFillResult{}, errAmmTradeTooSmall
	}

	return AmmFillResult{BaseFilled: baseFilled, QuoteFilled: peggedQuote, EntryPrice: entryPrice}, nil
}

func mustUint64(x *uint256.Int) uint64 {
	if !x.IsUint64() {
		return 0
	}
	return x.Uint64()
}

// MakerOrder is the subset of a resting order the maker-match path needs.
type MakerOrder struct {
	OrderID               uint32
	Price                 uint64
	Direction             int8 // matches order.Direction values
	BaseAssetAmount       uint64
	BaseAssetAmountFilled uint64
}

// MatchResult is the outcome of matching a taker against one maker.
type MatchResult struct {
	BaseFilled  uint64
	QuoteFilled uint64
	MakerPrice  uint64
}

// MatchTaker fills a taker against a single maker at the maker's limit
// price (taker pays, maker receives rebate handled by the caller via
// FillFees); price-time priority among eligible makers is the caller's
// responsibility to enforce by iteration order. One call per maker,
// not a book-wide loop, so the engine package can interleave margin and
// fee bookkeeping between fills.
func MatchTaker(taker MakerOrder, maker *MakerOrder) (MatchResult, error) {
	makerRemaining := maker.BaseAssetAmount - maker.BaseAssetAmountFilled
	takerRemaining := taker.BaseAssetAmount - taker.BaseAssetAmountFilled
	matchBase := fixedpoint.MinU64(makerRemaining, takerRemaining)
	if matchBase == 0 {
		return MatchResult{}, nil
	}
	quote, err := fixedpoint.MulDivU64(matchBase, maker.Price, fixedpoint.BasePrecision)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{BaseFilled: matchBase, QuoteFilled: quote, MakerPrice: maker.Price}, nil
}

// ExternalSpotFill is the fill summary the ExternalVenue port returns.
type ExternalSpotFill struct {
	BaseFilled              uint64
	QuoteFilled             uint64
	BaseDirection           int8
	QuoteDirection          int8
	Fee                     uint64
	UnsettledReferrerRebate uint64
	SettledReferrerRebate   uint64
}

// ReconcileExternalFill validates a reported ExternalSpotFill against the
// order's remaining size, returning ErrExternalVenueFailed when the venue
// reports more base filled than remains. It does not touch balances.
func ReconcileExternalFill(fill ExternalSpotFill, remainingBase uint64) error {
	if fill.BaseFilled > remainingBase {
		return engerrors.ErrExternalVenueFailed
	}
	return nil
}
