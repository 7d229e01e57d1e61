package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/fixedpoint"
	"github.com/driftcore/engine/pkg/margin"
	"github.com/driftcore/engine/pkg/matching"
	"github.com/driftcore/engine/pkg/metrics"
	"github.com/driftcore/engine/pkg/oracle"
	"github.com/driftcore/engine/pkg/order"
	"github.com/driftcore/engine/pkg/position"
	"github.com/driftcore/engine/pkg/storage"
)

// MakerFillInput is the resting maker counterparty of an internal match.
type MakerFillInput struct {
	Addr         common.Address
	SubAccountID uint8
	User         *storage.UserAccount
	Order        *order.Order
}

// Fill is the result handed back to the host.
type Fill struct {
	BaseFilled  uint64
	QuoteFilled uint64
	Path        matching.FulfillmentPath
	TakerFee    uint64
	MakerRebate uint64
}

// FillPerpOrder fulfills a resting perp order against the given maker, or
// against the vAMM when maker is nil (one path per call; a maker fill does
// not fall through to the vAMM), updating position/order/market state and emitting
// an OrderActionRecord. It validates pd against the oracle guard rails
// for ActionFillOrderAmm/ActionFillOrderMatch before touching any state.
func FillPerpOrder(c *Ctx, addr common.Address, subAccountID uint8, orderID uint32, user *storage.UserAccount, market *storage.PerpMarketState, markets MarketSet, oracles OraclePrices, pd oracle.PriceData, oracleTwap int64, maker *MakerFillInput, filler *common.Address) (Fill, error) {
	if c.State.ExchangeStatus.Has(params.StatusFillPaused) {
		return Fill{}, engerrors.ErrExchangePaused
	}

	action := oracle.ActionFillOrderAmm
	actionLabel := "fill_order_amm"
	if maker != nil {
		action = oracle.ActionFillOrderMatch
		actionLabel = "fill_order_match"
	}
	if v := oracle.CheckValidity(pd, oracleTwap, c.State.OracleGuardRails, action); !oracle.Allowed(action, v) {
		metrics.RecordOracleInvalid(actionLabel)
		return Fill{}, oracle.ValidityError(v)
	}

	taker, err := loadOrder(c, addr, subAccountID, orderID)
	if err != nil {
		return Fill{}, err
	}
	if taker.Status != order.StatusOpen {
		return Fill{}, engerrors.ErrInvalidOrderParams
	}

	remaining := taker.BaseAssetAmount - taker.BaseAssetAmountFilled
	if remaining == 0 {
		return Fill{}, engerrors.ErrInsufficientSize
	}

	var fill Fill
	if maker != nil {
		makerOrd := matching.MakerOrder{
			OrderID:               maker.Order.OrderID,
			Price:                 maker.Order.Price,
			Direction:             int8(maker.Order.Direction),
			BaseAssetAmount:       maker.Order.BaseAssetAmount,
			BaseAssetAmountFilled: maker.Order.BaseAssetAmountFilled,
		}
		takerOrd := matching.MakerOrder{
			BaseAssetAmount:       taker.BaseAssetAmount,
			BaseAssetAmountFilled: taker.BaseAssetAmountFilled,
		}
		res, err := matching.MatchTaker(takerOrd, &makerOrd)
		if err != nil {
			return Fill{}, err
		}
		fill.BaseFilled, fill.QuoteFilled, fill.Path = res.BaseFilled, res.QuoteFilled, matching.PathMaker
	} else {
		res, err := matching.FillAmm(&market.Curve, taker.Direction == order.Long, remaining)
		if err != nil {
			return Fill{}, err
		}
		fill.BaseFilled, fill.QuoteFilled, fill.Path = res.BaseFilled, res.QuoteFilled, matching.PathAmm
	}
	if fill.BaseFilled == 0 {
		return Fill{}, nil
	}

	tier := matching.SelectTier(c.State.PerpFeeStructure, matching.TierSelectionInput{
		Total30dVolume:         user.Total30dVolume,
		IfStakedGovTokenAmount: user.IfStakedGovTokenAmount,
		HighLeverageMode:       user.HighLeverageMode,
	})
	takerFee, err := matching.TakerFee(fill.QuoteFilled, tier, c.State.PerpFeeStructure.FeeAdjustment)
	if err != nil {
		return Fill{}, err
	}
	fill.TakerFee = takerFee

	takerDeltaQuote := -int64(fill.QuoteFilled) - int64(takerFee)
	if taker.Direction == order.Short {
		takerDeltaQuote = int64(fill.QuoteFilled) - int64(takerFee)
	}
	takerDeltaBase := int64(fill.BaseFilled)
	if taker.Direction == order.Short {
		takerDeltaBase = -takerDeltaBase
	}

	takerPos := user.PerpPositions[market.MarketIndex]
	takerResult := position.ApplyDelta(&takerPos, position.Delta{BaseAssetAmount: takerDeltaBase, QuoteAssetAmount: takerDeltaQuote})
	user.PerpPositions[market.MarketIndex] = takerPos

	counters := position.MarketCounters(takerPos.BaseAssetAmount-takerDeltaBase, takerPos.BaseAssetAmount)
	market.BaseAssetAmountLong += counters.DeltaLong
	market.BaseAssetAmountShort += counters.DeltaShort
	usersDelta, usersWithBaseDelta := position.NumberOfUsersDelta(takerResult)
	market.NumberOfUsers = uint32(int64(market.NumberOfUsers) + int64(usersDelta))
	market.NumberOfUsersWithBase = uint32(int64(market.NumberOfUsersWithBase) + int64(usersWithBaseDelta))

	taker.BaseAssetAmountFilled += fill.BaseFilled
	taker.QuoteAssetAmountFilled += fill.QuoteFilled
	if taker.BaseAssetAmountFilled >= taker.BaseAssetAmount {
		taker.Status = order.StatusFilled
	}

	var makerRebate uint64
	if maker != nil {
		makerTier := matching.SelectTier(c.State.PerpFeeStructure, matching.TierSelectionInput{
			Total30dVolume:         maker.User.Total30dVolume,
			IfStakedGovTokenAmount: maker.User.IfStakedGovTokenAmount,
		})
		makerRebate, err = matching.MakerRebate(fill.QuoteFilled, makerTier, c.State.PerpFeeStructure.FeeAdjustment)
		if err != nil {
			return Fill{}, err
		}
		fill.MakerRebate = makerRebate

		makerDeltaBase := int64(fill.BaseFilled)
		if maker.Order.Direction == order.Short {
			makerDeltaBase = -makerDeltaBase
		}
		makerDeltaQuote := -int64(fill.QuoteFilled) + int64(makerRebate)
		if maker.Order.Direction == order.Short {
			makerDeltaQuote = int64(fill.QuoteFilled) + int64(makerRebate)
		}
		makerPos := maker.User.PerpPositions[market.MarketIndex]
		position.ApplyDelta(&makerPos, position.Delta{BaseAssetAmount: makerDeltaBase, QuoteAssetAmount: makerDeltaQuote})
		maker.User.PerpPositions[market.MarketIndex] = makerPos

		maker.Order.BaseAssetAmountFilled += fill.BaseFilled
		maker.Order.QuoteAssetAmountFilled += fill.QuoteFilled
		if maker.Order.BaseAssetAmountFilled >= maker.Order.BaseAssetAmount {
			maker.Order.Status = order.StatusFilled
		}
		if err := c.Store.SaveOrder(maker.Addr, maker.SubAccountID, maker.Order); err != nil {
			return Fill{}, err
		}
	} else {
		market.FeePool += takerFee
	}

	if taker.Status == order.StatusFilled {
		if err := c.Store.DeleteOrder(addr, subAccountID, orderID); err != nil {
			return Fill{}, err
		}
	} else if err := c.Store.SaveOrder(addr, subAccountID, taker); err != nil {
		return Fill{}, err
	}

	ok, err := margin.MeetsInitialMarginRequirement(buildMarginAccount(user, markets, oracles))
	if err != nil {
		return Fill{}, err
	}
	if !taker.ReduceOnly && !ok {
		return Fill{}, engerrors.ErrInsufficientInitialMargin
	}

	baseFilled, quoteFilled := fill.BaseFilled, fill.QuoteFilled
	explanation := events.ExplainOrderFilledWithAmm
	if maker != nil {
		explanation = events.ExplainOrderFilledWithMatch
	}
	rec := events.OrderActionRecord{
		RecordID:               uuid.New(),
		Ts:                     c.Now,
		Action:                 events.ActionFill,
		ActionExplanation:      explanation,
		MarketIndex:            market.MarketIndex,
		MarketType:             uint8(order.MarketTypePerp),
		Filler:                 filler,
		BaseAssetAmountFilled:  &baseFilled,
		QuoteAssetAmountFilled: &quoteFilled,
		TakerFee:               &takerFee,
		Taker:                  &addr,
		TakerOrderID:           &orderID,
		OraclePrice:            pd.Price,
	}
	if maker != nil {
		makerFeeSigned := -int64(makerRebate)
		rec.MakerFee = &makerFeeSigned
		rec.Maker = &maker.Addr
		rec.MakerOrderID = &maker.Order.OrderID
	}
	c.emit(rec)

	return fill, nil
}

// FillSpotOrder fulfills a spot order through the ExternalVenue port only
// (ErrFulfillmentDisabled when none is configured; there is no internal
// maker path), checking the reported fill against the order's remaining
// size before applying it.
func FillSpotOrder(c *Ctx, addr common.Address, subAccountID uint8, orderID uint32, user *storage.UserAccount, baseMarket, quoteMarket *storage.SpotMarketState, markets MarketSet, oracles OraclePrices) (Fill, error) {
	if c.State.ExchangeStatus.Has(params.StatusFillPaused) {
		return Fill{}, engerrors.ErrExchangePaused
	}
	if c.Venue == nil {
		return Fill{}, engerrors.ErrFulfillmentDisabled
	}

	taker, err := loadOrder(c, addr, subAccountID, orderID)
	if err != nil {
		return Fill{}, err
	}
	remaining := taker.BaseAssetAmount - taker.BaseAssetAmountFilled
	if remaining == 0 {
		return Fill{}, engerrors.ErrInsufficientSize
	}

	maxQuote, err := fixedpoint.MulDivU64(remaining, taker.Price, fixedpoint.BasePrecision)
	if err != nil {
		return Fill{}, err
	}
	venueFill, err := c.Venue.Fulfill(int8(taker.Direction), taker.Price, remaining, maxQuote)
	if err != nil {
		return Fill{}, err
	}
	if err := matching.ReconcileExternalFill(venueFill, remaining); err != nil {
		return Fill{}, err
	}

	taker.BaseAssetAmountFilled += venueFill.BaseFilled
	taker.QuoteAssetAmountFilled += venueFill.QuoteFilled
	if taker.BaseAssetAmountFilled >= taker.BaseAssetAmount {
		taker.Status = order.StatusFilled
		if err := c.Store.DeleteOrder(addr, subAccountID, orderID); err != nil {
			return Fill{}, err
		}
	} else if err := c.Store.SaveOrder(addr, subAccountID, taker); err != nil {
		return Fill{}, err
	}

	tier := matching.SelectTier(c.State.SpotFeeStructure, matching.TierSelectionInput{
		Total30dVolume:         user.Total30dVolume,
		IfStakedGovTokenAmount: user.IfStakedGovTokenAmount,
		HighLeverageMode:       user.HighLeverageMode,
	})
	takerFee, err := matching.TakerFee(venueFill.QuoteFilled, tier, c.State.SpotFeeStructure.FeeAdjustment)
	if err != nil {
		return Fill{}, err
	}

	baseDelta := int64(venueFill.BaseFilled)
	quoteDelta := -int64(venueFill.QuoteFilled) - int64(takerFee)
	if taker.Direction == order.Short {
		baseDelta = -baseDelta
		quoteDelta = int64(venueFill.QuoteFilled) - int64(takerFee)
	}

	baseBal := user.SpotBalances[taker.MarketIndex]
	if err := applySpotDelta(&baseBal, baseMarket, baseDelta); err != nil {
		return Fill{}, err
	}
	user.SpotBalances[taker.MarketIndex] = baseBal

	quoteBal := user.SpotBalances[quoteMarket.MarketIndex]
	if err := applySpotDelta(&quoteBal, quoteMarket, quoteDelta); err != nil {
		return Fill{}, err
	}
	user.SpotBalances[quoteMarket.MarketIndex] = quoteBal

	feeToMarket := matching.FeeToMarketSpotExternal(takerFee, venueFill.Fee, 0, venueFill.UnsettledReferrerRebate)
	if feeToMarket > 0 {
		quoteMarket.Market.RevenuePool += uint64(feeToMarket)
	}

	ok, err := margin.MeetsInitialMarginRequirement(buildMarginAccount(user, markets, oracles))
	if err != nil {
		return Fill{}, err
	}
	if !taker.ReduceOnly && !ok {
		return Fill{}, engerrors.ErrInsufficientInitialMargin
	}

	baseFilled, quoteFilled := venueFill.BaseFilled, venueFill.QuoteFilled
	c.emit(events.OrderActionRecord{
		RecordID:               uuid.New(),
		Ts:                     c.Now,
		Action:                 events.ActionFill,
		ActionExplanation:      events.ExplainOrderFilledWithExternalMarket,
		MarketIndex:            taker.MarketIndex,
		MarketType:             uint8(order.MarketTypeSpot),
		BaseAssetAmountFilled:  &baseFilled,
		QuoteAssetAmountFilled: &quoteFilled,
		TakerFee:               &takerFee,
		Taker:                  &addr,
		TakerOrderID:           &orderID,
	})

	return Fill{BaseFilled: venueFill.BaseFilled, QuoteFilled: venueFill.QuoteFilled, Path: matching.PathExternalVenue, TakerFee: takerFee}, nil
}
