package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/amm"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/fixedpoint"
	"github.com/driftcore/engine/pkg/metrics"
	"github.com/driftcore/engine/pkg/oracle"
	"github.com/driftcore/engine/pkg/storage"
)

// UpdateFundingRate ticks a perp market's funding accumulators forward one
// period: computes the rate from the mark/oracle TWAP spread, applies it to
// the dense/sparse open-interest split, and emits a FundingRateRecord.
func UpdateFundingRate(c *Ctx, market *storage.PerpMarketState, markTwap, oracleTwap int64, periodSeconds int64, capPerPeriod int64) error {
	if c.State.ExchangeStatus.Has(params.StatusFundingPaused) {
		return engerrors.ErrExchangePaused
	}

	rate := amm.FundingRate(markTwap, oracleTwap, periodSeconds, capPerPeriod)

	absMarkTwap := uint64(fixedpoint.AbsI64(markTwap))
	longNotional := uint64(fixedpoint.AbsI64(market.BaseAssetAmountLong)) * absMarkTwap / fixedpoint.PricePrecision
	shortNotional := uint64(fixedpoint.AbsI64(market.BaseAssetAmountShort)) * absMarkTwap / fixedpoint.PricePrecision

	before := amm.CumulativeFunding{Long: market.CumulativeFundingRateLong, Short: market.CumulativeFundingRateShort}
	after := amm.ApplyFundingRate(before, rate, longNotional, shortNotional)

	market.CumulativeFundingRateLong = after.Long
	market.CumulativeFundingRateShort = after.Short
	market.LastFundingRateTs = c.Now

	c.emit(events.FundingRateRecord{
		Ts:                         c.Now,
		MarketIndex:                market.MarketIndex,
		FundingRate:                rate,
		CumulativeFundingRateLong:  after.Long,
		CumulativeFundingRateShort: after.Short,
		OraclePriceTwap:            oracleTwap,
		MarkPriceTwap:              markTwap,
	})
	return nil
}

// SettleFundingPayment applies the market's current cumulative funding to a
// single user's perp position, crediting/debiting quote_asset_amount and
// advancing the position's last_cumulative_funding_rate tag.
func SettleFundingPayment(c *Ctx, addr common.Address, user *storage.UserAccount, market *storage.PerpMarketState) error {
	pos, ok := user.PerpPositions[market.MarketIndex]
	if !ok || pos.BaseAssetAmount == 0 {
		return nil
	}

	ammCum := market.CumulativeFundingRateShort
	if pos.BaseAssetAmount > 0 {
		ammCum = market.CumulativeFundingRateLong
	}

	delta, newLastCum := amm.SettlePositionFunding(ammCum, pos.LastCumulativeFundingRate, pos.BaseAssetAmount)
	pos.QuoteAssetAmount -= delta
	pos.QuoteBreakEvenAmount -= delta
	pos.LastCumulativeFundingRate = newLastCum
	user.PerpPositions[market.MarketIndex] = pos

	c.emit(events.FundingPaymentRecord{
		Ts:                        c.Now,
		User:                      addr,
		MarketIndex:               market.MarketIndex,
		FundingPayment:            -delta,
		BaseAssetAmount:           pos.BaseAssetAmount,
		UserLastCumulativeFunding: newLastCum,
		AmmCumulativeFunding:      ammCum,
	})
	return nil
}

// SettlePnl realizes a flat (zero base amount) position's accumulated quote
// balance against oracle price, crediting it to the user's unsettled-PnL
// pool; the caller moves UnsettledPnl into a spendable spot balance
// separately, on its own settlement cadence.
func SettlePnl(c *Ctx, addr common.Address, user *storage.UserAccount, market *storage.PerpMarketState, pd oracle.PriceData, oracleTwap int64) (int64, error) {
	if c.State.ExchangeStatus.Has(params.StatusSettlePnlPaused) {
		return 0, engerrors.ErrExchangePaused
	}
	if v := oracle.CheckValidity(pd, oracleTwap, c.State.OracleGuardRails, oracle.ActionSettlePnl); !oracle.Allowed(oracle.ActionSettlePnl, v) {
		metrics.RecordOracleInvalid("settle_pnl")
		return 0, oracle.ValidityError(v)
	}

	pos, ok := user.PerpPositions[market.MarketIndex]
	if !ok || pos.BaseAssetAmount != 0 {
		return 0, engerrors.ErrInvalidOrderParams
	}

	pnl := pos.QuoteAssetAmount
	pos.QuoteAssetAmount = 0
	pos.QuoteEntryAmount = 0
	pos.QuoteBreakEvenAmount = 0
	user.PerpPositions[market.MarketIndex] = pos
	user.UnsettledPnl += pnl

	c.emit(events.SettlePnlRecord{
		Ts:          c.Now,
		User:        addr,
		MarketIndex: market.MarketIndex,
		Pnl:         pnl,
		SettlePrice: pd.Price,
	})
	return pnl, nil
}
