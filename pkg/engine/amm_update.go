package engine

import (
	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/amm"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/fixedpoint"
	"github.com/driftcore/engine/pkg/storage"
)

// AmmUpdateInput bundles the per-market signals UpdateAmms needs beyond
// the stored curve: the current oracle reading and mark/oracle TWAPs the
// spread and repeg policies read.
type AmmUpdateInput struct {
	Market            *storage.PerpMarketState
	OraclePrice       int64
	OracleConfidence  uint64
	MarkStd           int64
	BaseAssetWithAmm  int64
}

// UpdateAmms ticks every curve in markets forward one slot: it recomputes
// the spread from current inventory/volatility/confidence, optionally
// repegs toward the oracle within the repeg rails (paying any repeg cost
// from the fee pool, moving only as far as its balance covers), and
// refreshes the bid/ask reserves used by the
// vAMM fill path and post-only check.
func UpdateAmms(c *Ctx, inputs []AmmUpdateInput) error {
	if c.State.ExchangeStatus.Has(params.StatusAmmPaused) {
		return engerrors.ErrExchangePaused
	}

	for _, in := range inputs {
		if err := updateOneAmm(c, in); err != nil {
			return err
		}
	}
	return nil
}

func updateOneAmm(c *Ctx, in AmmUpdateInput) error {
	market := in.Market
	curve := &market.Curve

	priceBefore, err := curve.ReservePrice()
	if err != nil {
		return err
	}
	pegBefore := curve.PegMultiplier
	baseBefore := curve.BaseAssetReserve.String()
	quoteBefore := curve.QuoteAssetReserve.String()
	sqrtKBefore := curve.SqrtK.String()

	repegCost := int64(0)
	repegged := false
	if in.OraclePrice > 0 {
		optimalPeg, err := curve.OptimalPeg(in.OraclePrice)
		if err == nil && optimalPeg != curve.PegMultiplier {
			oracleAboveMark := in.OraclePrice > priceBefore
			if dirErr := amm.ValidateRepegDirection(curve.PegMultiplier, optimalPeg, oracleAboveMark); dirErr == nil {
				cost, costErr := curve.CalculateRepegCost(optimalPeg)
				if costErr == nil {
					newPeg := optimalPeg
					if cost > 0 && uint64(cost) > market.FeePool {
						// Budget-limited repeg: move only as far toward the
						// optimal peg as the fee pool can fund.
						costPerPeg, ppErr := perPegCost(curve, optimalPeg)
						if ppErr == nil && costPerPeg > 0 {
							affordablePegDelta, bErr := amm.BudgetDeltaPeg(market.FeePool, costPerPeg)
							if bErr == nil {
								if optimalPeg > curve.PegMultiplier {
									newPeg = curve.PegMultiplier + affordablePegDelta
									if newPeg > optimalPeg {
										newPeg = optimalPeg
									}
								} else {
									newPeg = curve.PegMultiplier - fixedpoint.MinU64(affordablePegDelta, curve.PegMultiplier-optimalPeg)
								}
								cost, costErr = curve.CalculateRepegCost(newPeg)
							}
						}
					}
					if costErr == nil && newPeg != curve.PegMultiplier {
						newMarkPrice, priceErr := pegPrice(curve, newPeg)
						if priceErr == nil {
							if bandErr := amm.ValidateRepegBand(newMarkPrice, in.OraclePrice, in.OracleConfidence); bandErr == nil {
								curve.PegMultiplier = newPeg
								repegCost = cost
								repegged = true
								if cost > 0 {
									market.FeePool -= uint64(cost)
								} else {
									market.FeePool += uint64(-cost)
								}
							}
						}
					}
				}
			}
		}
	}

	priceAfter, err := curve.ReservePrice()
	if err != nil {
		return err
	}

	sqrtKForSpread := int64(1 << 62)
	if curve.SqrtK.IsUint64() {
		sqrtKForSpread = int64(fixedpoint.MinU64(curve.SqrtK.Uint64(), 1<<62))
	}
	longSpread, shortSpread := amm.Spreads(amm.SpreadInputs{
		ReservePrice:           priceAfter,
		BaseAssetAmountWithAmm: in.BaseAssetWithAmm,
		SqrtK:                  sqrtKForSpread,
		MarkStd:                in.MarkStd,
		OracleConfidence:       in.OracleConfidence,
		BaseSpread:             curve.BaseSpread,
		MaxSpread:              curve.MaxSpread,
		MarginRatioInitial:     uint64(market.MarginRatioInitial),
	})
	if err := curve.UpdateSpreadReserves(longSpread, shortSpread); err != nil {
		return err
	}

	if repegged {
		c.emit(events.CurveRecord{
			Ts:                         c.Now,
			MarketIndex:                market.MarketIndex,
			PegMultiplierBefore:        pegBefore,
			PegMultiplierAfter:         curve.PegMultiplier,
			BaseAssetReserveBefore:     baseBefore,
			BaseAssetReserveAfter:      curve.BaseAssetReserve.String(),
			QuoteAssetReserveBefore:    quoteBefore,
			QuoteAssetReserveAfter:     curve.QuoteAssetReserve.String(),
			SqrtKBefore:                sqrtKBefore,
			SqrtKAfter:                 curve.SqrtK.String(),
			AdjustmentCost:             repegCost,
			TotalFee:                   int64(market.FeePool),
			TotalFeeMinusDistributions: int64(market.FeePool),
			OraclePrice:                in.OraclePrice,
		})
	}
	return nil
}

// perPegCost approximates the marginal fee-pool cost of moving one
// PEG_PRECISION unit toward target, used to size a budget-limited repeg.
func perPegCost(curve *amm.Curve, target uint64) (uint64, error) {
	diff := target
	current := curve.PegMultiplier
	if target > current {
		diff = target - current
	} else {
		diff = current - target
	}
	if diff == 0 {
		return 0, engerrors.ErrDivisionByZero
	}
	cost, err := curve.CalculateRepegCost(target)
	if err != nil {
		return 0, err
	}
	if cost < 0 {
		cost = -cost
	}
	return fixedpoint.MulDivU64(uint64(cost), fixedpoint.PegPrecision, diff)
}

// pegPrice reports ReservePrice as if PegMultiplier were set to peg,
// without mutating curve, for repeg-band validation.
func pegPrice(curve *amm.Curve, peg uint64) (int64, error) {
	saved := curve.PegMultiplier
	curve.PegMultiplier = peg
	price, err := curve.ReservePrice()
	curve.PegMultiplier = saved
	return price, err
}
