// Package amm implements the constant-product virtual AMM curve, the
// spread/quote engine, and the funding engine.
package amm

import (
	"github.com/holiman/uint256"

	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/fixedpoint"
)

// Direction is the side of a constant-product swap.
type Direction int8

const (
	Add Direction = iota
	Remove
)

// AssetType selects which reserve a swap quotes against.
type AssetType int8

const (
	Quote AssetType = iota
	Base
)

// Curve is the vAMM's reserve state. Reserves are carried
// as *uint256.Int because they occupy the full AMM_RESERVE_PRECISION
// u128-scale range the original program uses.
type Curve struct {
	BaseAssetReserve  *uint256.Int
	QuoteAssetReserve *uint256.Int
	SqrtK             *uint256.Int
	PegMultiplier     uint64 // PEG_PRECISION

	// terminal reserves track what the curve would settle to with no
	// further peg adjustment, used by repeg cost and k-rescale.
	TerminalQuoteAssetReserve *uint256.Int

	// Concentration bound parameters.
	ConcentrationCoef     uint64 // PERCENTAGE_PRECISION-scaled, >= 1e6
	MinBaseAssetReserve   *uint256.Int
	MaxBaseAssetReserve   *uint256.Int

	BaseSpread uint64 // BID_ASK_SPREAD_PRECISION
	MaxSpread  uint64

	// Spread-adjusted reserves, recomputed on every curve-changing
	// operation.
	BidBaseAssetReserve   *uint256.Int
	BidQuoteAssetReserve  *uint256.Int
	AskBaseAssetReserve   *uint256.Int
	AskQuoteAssetReserve  *uint256.Int

	MinOrderSize uint64 // BASE_PRECISION
}

// invariant returns sqrt_k^2 in 256-bit precision.
func (c *Curve) invariant() *uint256.Int {
	return new(uint256.Int).Mul(c.SqrtK, c.SqrtK)
}

// ReservePrice computes reserve_price = quote*peg*PRICE_PRECISION /
// (base*PEG_PRECISION)
func (c *Curve) ReservePrice() (int64, error) {
	if c.BaseAssetReserve.IsZero() {
		return 0, engerrors.ErrDivisionByZero
	}
	num := new(uint256.Int).Mul(c.QuoteAssetReserve, uint256.NewInt(c.PegMultiplier))
	num.Mul(num, uint256.NewInt(fixedpoint.PricePrecision))
	den := new(uint256.Int).Mul(c.BaseAssetReserve, uint256.NewInt(fixedpoint.PegPrecision))
	if den.IsZero() {
		return 0, engerrors.ErrDivisionByZero
	}
	price := new(uint256.Int).Div(num, den)
	if !price.IsUint64() || price.Uint64() > 1<<62 {
		return 0, engerrors.ErrOverflow
	}
	return int64(price.Uint64()), nil
}

// SwapOutput computes the constant-product swap result for swapAmount
// applied to input reserve in the given direction, returning the new
// input and output reserves.
func (c *Curve) SwapOutput(inputReserve *uint256.Int, swapAmount *uint256.Int, dir Direction) (newInput, newOutput *uint256.Int, err error) {
	invariant := c.invariant()

	newInput = new(uint256.Int)
	switch dir {
	case Add:
		newInput.Add(inputReserve, swapAmount)
	case Remove:
		if swapAmount.Cmp(inputReserve) >= 0 {
			return nil, nil, engerrors.ErrDivisionByZero
		}
		newInput.Sub(inputReserve, swapAmount)
	}
	if newInput.IsZero() {
		return nil, nil, engerrors.ErrDivisionByZero
	}

	newOutput = new(uint256.Int).Div(invariant, newInput)
	return newInput, newOutput, nil
}

// QuoteToBaseSwapAmount converts a quote-asset swap amount into the equivalent
// unpegged base-reserve delta: unpegged = quote * AMM_RESERVE_PRECISION / peg.
func (c *Curve) QuoteToBaseSwapAmount(quoteAmount uint64) (*uint256.Int, error) {
	if c.PegMultiplier == 0 {
		return nil, engerrors.ErrDivisionByZero
	}
	unpegged, err := fixedpoint.MulDivU64(quoteAmount, fixedpoint.AMMReservePrecision, c.PegMultiplier)
	if err != nil {
		return nil, err
	}
	return uint256.NewInt(unpegged), nil
}

// TradeSizeTooSmall reports whether the implied entry price from a swap
// lies outside [min(pre,post), max(pre,post)] in the trade direction,
// which means the trade rounded to zero effective change.
func TradeSizeTooSmall(prePrice, postPrice, entryPrice int64, dir Direction) bool {
	lo, hi := prePrice, postPrice
	if lo > hi {
		lo, hi = hi, lo
	}
	if entryPrice < lo || entryPrice > hi {
		return true
	}
	return false
}

// CalculateRepegCost computes (quote_reserve - terminal_quote_reserve) *
// (new_peg - peg) / AMM_PRECISION The sign of the
// result indicates cost (positive, paid from the fee pool) versus profit
// (negative, credited to the fee pool).
func (c *Curve) CalculateRepegCost(newPeg uint64) (int64, error) {
	diffReserve := new(uint256.Int).Sub(c.QuoteAssetReserve, c.TerminalQuoteAssetReserve)
	negReserve := false
	if c.QuoteAssetReserve.Cmp(c.TerminalQuoteAssetReserve) < 0 {
		diffReserve = new(uint256.Int).Sub(c.TerminalQuoteAssetReserve, c.QuoteAssetReserve)
		negReserve = true
	}

	negPeg := newPeg < c.PegMultiplier
	var diffPeg uint64
	if negPeg {
		diffPeg = c.PegMultiplier - newPeg
	} else {
		diffPeg = newPeg - c.PegMultiplier
	}

	cost := new(uint256.Int).Mul(diffReserve, uint256.NewInt(diffPeg))
	cost.Div(cost, uint256.NewInt(fixedpoint.AMMReservePrecision))
	if !cost.IsUint64() || cost.Uint64() > 1<<62 {
		return 0, engerrors.ErrOverflow
	}
	signed := int64(cost.Uint64())
	if negReserve != negPeg {
		signed = -signed
	}
	return signed, nil
}

// ValidateRepegDirection enforces rail (i): a repeg may only move the
// terminal price toward the oracle, never away from it.
func ValidateRepegDirection(currentPeg, newPeg uint64, oracleAboveMark bool) error {
	movingUp := newPeg > currentPeg
	if oracleAboveMark && !movingUp && newPeg != currentPeg {
		return ErrInvalidRepegProfitability
	}
	if !oracleAboveMark && movingUp {
		return ErrInvalidRepegProfitability
	}
	return nil
}

// ValidateRepegBand enforces rails (ii) and (iii): the repeg must stop at
// the oracle ± confidence band and only move mark up to the far side of
// that band, never through it.
func ValidateRepegBand(newMarkPrice, oraclePrice int64, oracleConfidence uint64) error {
	band := int64(oracleConfidence)
	lo := oraclePrice - band
	hi := oraclePrice + band
	if newMarkPrice < lo || newMarkPrice > hi {
		return ErrPriceImpactInvalid
	}
	return nil
}

// OptimalPeg computes the peg_multiplier that would make ReservePrice
// exactly equal oraclePrice at the curve's current reserves: the inverse
// of ReservePrice, peg = oracle_price * base_reserve * PEG_PRECISION /
// (quote_reserve * PRICE_PRECISION). Callers clamp the actual applied peg
// to the repeg rails (ValidateRepegDirection/ValidateRepegBand) and to
// the available fee-pool budget (BudgetDeltaPeg) before assigning it.
func (c *Curve) OptimalPeg(oraclePrice int64) (uint64, error) {
	if oraclePrice <= 0 {
		return 0, engerrors.ErrNegativeSqrt
	}
	if c.QuoteAssetReserve.IsZero() {
		return 0, engerrors.ErrDivisionByZero
	}
	num := new(uint256.Int).Mul(uint256.NewInt(uint64(oraclePrice)), c.BaseAssetReserve)
	num.Mul(num, uint256.NewInt(fixedpoint.PegPrecision))
	den := new(uint256.Int).Mul(c.QuoteAssetReserve, uint256.NewInt(fixedpoint.PricePrecision))
	peg := new(uint256.Int).Div(num, den)
	if !peg.IsUint64() {
		return 0, engerrors.ErrOverflow
	}
	return peg.Uint64(), nil
}

// BudgetDeltaPeg computes budget_delta_peg = budget * PEG_PRECISION /
// per_peg_cost, used when the optimal repeg exceeds the available fee
// pool budget.
func BudgetDeltaPeg(budget uint64, perPegCost uint64) (uint64, error) {
	if perPegCost == 0 {
		return 0, engerrors.ErrDivisionByZero
	}
	return fixedpoint.MulDivU64(budget, fixedpoint.PegPrecision, perPegCost)
}

// UpdateK rescales reserves to a new sqrt_k while holding the
// quote/base ratio constant, enforcing a lower bound tied to
// userLpShares and minOrderSize.
func (c *Curve) UpdateK(newSqrtK *uint256.Int, userLpShares *uint256.Int) error {
	const lpSafetyFactorNum, lpSafetyFactorDen = 3, 2 // AMM must hold >= 1.5x the LP share

	lowerBound := new(uint256.Int).Mul(userLpShares, uint256.NewInt(lpSafetyFactorNum))
	lowerBound.Div(lowerBound, uint256.NewInt(lpSafetyFactorDen))
	minOrder := uint256.NewInt(c.MinOrderSize)
	lowerBound.Add(lowerBound, minOrder)
	if newSqrtK.Cmp(lowerBound) < 0 {
		return ErrKTooSmall
	}

	ratioNum := c.QuoteAssetReserve
	ratioDen := c.SqrtK
	if ratioDen.IsZero() {
		return engerrors.ErrDivisionByZero
	}

	newQuote := new(uint256.Int).Mul(newSqrtK, ratioNum)
	newQuote.Div(newQuote, ratioDen)
	newBase := new(uint256.Int).Mul(newSqrtK, newSqrtK)
	newBase.Div(newBase, newQuote)

	c.QuoteAssetReserve = newQuote
	c.BaseAssetReserve = newBase
	c.SqrtK = newSqrtK
	return nil
}

// UpdateSpreadReserves recomputes bid/ask reserves from the current
// reserve price and a per-side spread (BID_ASK_SPREAD_PRECISION), then
// clamps the result to the concentration bounds.
func (c *Curve) UpdateSpreadReserves(longSpread, shortSpread uint64) error {
	bidBase, bidQuote, err := c.reservesForSpread(shortSpread, true)
	if err != nil {
		return err
	}
	askBase, askQuote, err := c.reservesForSpread(longSpread, false)
	if err != nil {
		return err
	}
	c.BidBaseAssetReserve, c.BidQuoteAssetReserve = bidBase, bidQuote
	c.AskBaseAssetReserve, c.AskQuoteAssetReserve = askBase, askQuote
	return nil
}

// reservesForSpread computes synthetic reserves such that the resulting
// reserve price is reserve_price*(1-s) (down=true, the bid side) or
// reserve_price*(1+s) (down=false, the ask side), preserving sqrt_k.
func (c *Curve) reservesForSpread(spread uint64, down bool) (base, quote *uint256.Int, err error) {
	const one = fixedpoint.BidAskSpreadPrecision
	var factor uint64
	if down {
		if spread >= one {
			return nil, nil, engerrors.ErrOverflow
		}
		factor = one - spread
	} else {
		factor = one + spread
	}

	// base' = base / sqrt(factor), quote' = invariant / base', expressed
	// without floating point via a squared-factor scaling of base.
	scaledBaseSq := new(uint256.Int).Mul(c.BaseAssetReserve, c.BaseAssetReserve)
	scaledBaseSq.Mul(scaledBaseSq, uint256.NewInt(one))
	scaledBaseSq.Div(scaledBaseSq, uint256.NewInt(factor))
	base = fixedpoint.SqrtU256(scaledBaseSq)
	if base.IsZero() {
		return nil, nil, engerrors.ErrDivisionByZero
	}

	quote = new(uint256.Int).Div(c.invariant(), base)

	if c.MinBaseAssetReserve != nil && base.Cmp(c.MinBaseAssetReserve) < 0 {
		base = new(uint256.Int).Set(c.MinBaseAssetReserve)
		quote = new(uint256.Int).Div(c.invariant(), base)
	}
	if c.MaxBaseAssetReserve != nil && base.Cmp(c.MaxBaseAssetReserve) > 0 {
		base = new(uint256.Int).Set(c.MaxBaseAssetReserve)
		quote = new(uint256.Int).Div(c.invariant(), base)
	}
	return base, quote, nil
}

// MaxBaseAssetAmountFillable returns the base distance from the current
// reserve to the relevant spread-adjusted reserve, the ceiling the vAMM
// fill path may trade against.
func (c *Curve) MaxBaseAssetAmountFillable(dir Direction) *uint256.Int {
	var bound *uint256.Int
	switch dir {
	case Add: // taker buying base from the AMM: AMM gives up base down to ask
		bound = c.AskBaseAssetReserve
	case Remove: // taker selling base to the AMM: AMM absorbs base up to bid
		bound = c.BidBaseAssetReserve
	}
	if bound == nil {
		return uint256.NewInt(0)
	}
	if dir == Add {
		if c.BaseAssetReserve.Cmp(bound) <= 0 {
			return uint256.NewInt(0)
		}
		return new(uint256.Int).Sub(c.BaseAssetReserve, bound)
	}
	if bound.Cmp(c.BaseAssetReserve) <= 0 {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Sub(bound, c.BaseAssetReserve)
}
