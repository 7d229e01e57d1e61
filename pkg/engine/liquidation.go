package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/fixedpoint"
	"github.com/driftcore/engine/pkg/liquidation"
	"github.com/driftcore/engine/pkg/margin"
	"github.com/driftcore/engine/pkg/position"
	"github.com/driftcore/engine/pkg/spot"
	"github.com/driftcore/engine/pkg/storage"
)

// LiquidationResult reports what LiquidatePerp/LiquidateSpot actually
// transferred, for the host to feed its own bookkeeping (e.g. liquidator
// fee payouts over the token vault).
type LiquidationResult struct {
	BaseAmount      int64
	QuoteTransfer   int64
	LiquidatorFee   uint64
	IfFee           uint64
	Bankrupt        bool
}

// enterLiquidation flags the user as being-liquidated on first entry and
// resets the pacing counters.
func enterLiquidation(c *Ctx, user *storage.UserAccount) {
	if !user.IsBeingLiquidated {
		user.IsBeingLiquidated = true
		user.LiquidationMarginFreed = 0
	}
}

// exitLiquidationIfHealthy clears the being-liquidated flag once the
// account meets its maintenance margin requirement again.
func exitLiquidationIfHealthy(user *storage.UserAccount, acc margin.Account) error {
	ok, err := margin.MeetsMaintenanceMarginRequirement(acc)
	if err != nil {
		return err
	}
	if ok {
		user.IsBeingLiquidated = false
		user.LiquidationMarginFreed = 0
	}
	return nil
}

// LiquidatePerp implements the partial-liquidation path for a
// single perp position: it checks maintenance-margin eligibility, paces
// the liberated fraction by slots elapsed since the user's last activity,
// computes the base amount to transfer at the liquidator/insurance-fund
// fee split, and applies it via the same position-accounting rules a
// taker fill uses.
func LiquidatePerp(c *Ctx, addr common.Address, user *storage.UserAccount, liquidator common.Address, market *storage.PerpMarketState, markets MarketSet, oracles OraclePrices, oraclePrice int64, maxBaseAssetAmount int64) (LiquidationResult, error) {
	if c.State.ExchangeStatus.Has(params.StatusLiqPaused) {
		return LiquidationResult{}, engerrors.ErrExchangePaused
	}
	if user.IsBankrupt {
		return LiquidationResult{}, engerrors.ErrBankruptUserRestricted
	}

	acc := buildMarginAccount(user, markets, oracles)
	collateral, requirement, err := margin.TotalCollateralAndRequirement(acc, margin.Maintenance)
	if err != nil {
		return LiquidationResult{}, err
	}
	bufferedRequirement := requirement + requirement*int64(c.State.LiquidationMarginBufferRatio)/10_000
	if !liquidation.Eligible(collateral, bufferedRequirement) {
		return LiquidationResult{}, engerrors.ErrNotLiquidatable
	}

	pos, ok := user.PerpPositions[market.MarketIndex]
	if !ok || pos.BaseAssetAmount == 0 {
		return LiquidationResult{}, engerrors.ErrInvalidOrderParams
	}

	enterLiquidation(c, user)

	marginShortage := bufferedRequirement - collateral
	if marginShortage <= 0 {
		return LiquidationResult{}, engerrors.ErrNotLiquidatable
	}

	slotsElapsed := uint64(0)
	if c.Slot > user.LastActiveSlot {
		slotsElapsed = c.Slot - user.LastActiveSlot
	}
	pacing := liquidation.Pace(liquidation.PacingInput{
		SlotsElapsed:           slotsElapsed,
		LiquidationDuration:    c.State.LiquidationDuration,
		InitialPctToLiquidate:  c.State.InitialPctToLiquidate,
		MarginShortage:         marginShortage,
		LiquidationMarginFreed: int64(user.LiquidationMarginFreed),
	})

	base, err := liquidation.BaseAmountToLiquidate(liquidation.TransferInput{
		MarginShortage:      marginShortage * pacing.PctToLiquidate / 1_000_000,
		OraclePrice:         oraclePrice,
		QuoteOraclePrice:    fixedpoint.PricePrecision,
		MarginRatio:         int64(market.MarginRatioMaintenance),
		LiquidatorFee:       int64(market.LiquidatorFeeRatio),
		IfLiquidationFee:    int64(market.IfLiquidationFeeRatio),
		UserBaseAssetAmount: pos.BaseAssetAmount,
	})
	if err != nil {
		return LiquidationResult{}, err
	}
	if maxBaseAssetAmount != 0 && fixedpoint.AbsI64(base) > fixedpoint.AbsI64(maxBaseAssetAmount) {
		base = fixedpoint.AbsI64(maxBaseAssetAmount)
	}
	if base == 0 {
		return LiquidationResult{}, engerrors.ErrInsufficientSize
	}

	// Transfer closes base toward zero: same sign as -position.
	deltaBase := -base
	if pos.BaseAssetAmount < 0 {
		deltaBase = base
	}
	quoteValueU, err := fixedpoint.MulDivU64(uint64(fixedpoint.AbsI64(deltaBase)), uint64(oraclePrice), fixedpoint.BasePrecision)
	if err != nil {
		return LiquidationResult{}, err
	}
	quoteValue := int64(quoteValueU)
	deltaQuote := quoteValue
	if deltaBase < 0 {
		deltaQuote = -quoteValue
	}

	liquidatorFee := liquidation.LiquidatorShare(quoteValue, int64(market.LiquidatorFeeRatio))
	ifFee := liquidation.IfShare(quoteValue, int64(market.IfLiquidationFeeRatio))

	result := position.ApplyDelta(&pos, position.Delta{BaseAssetAmount: deltaBase, QuoteAssetAmount: deltaQuote - liquidatorFee - ifFee})
	counters := position.MarketCounters(pos.BaseAssetAmount-deltaBase, pos.BaseAssetAmount)
	market.BaseAssetAmountLong += counters.DeltaLong
	market.BaseAssetAmountShort += counters.DeltaShort
	usersDelta, usersWithBaseDelta := position.NumberOfUsersDelta(result)
	market.NumberOfUsers = uint32(int64(market.NumberOfUsers) + int64(usersDelta))
	market.NumberOfUsersWithBase = uint32(int64(market.NumberOfUsersWithBase) + int64(usersWithBaseDelta))
	user.PerpPositions[market.MarketIndex] = pos

	market.InsuranceFund.VaultBalance += uint64(ifFee)
	user.LiquidationMarginFreed += uint64(pacing.MarginFreeable)

	acc = buildMarginAccount(user, markets, oracles)
	collateralAfter, _, err := margin.TotalCollateralAndRequirement(acc, margin.Maintenance)
	if err != nil {
		return LiquidationResult{}, err
	}
	bankrupt := liquidation.IsBankrupt(collateralAfter)
	user.IsBankrupt = bankrupt
	if !bankrupt {
		if err := exitLiquidationIfHealthy(user, acc); err != nil {
			return LiquidationResult{}, err
		}
	}

	c.emit(events.LiquidationRecord{
		RecordID:          uuid.New(),
		Ts:                c.Now,
		LiquidationType:   events.LiquidationTypePerp,
		User:              addr,
		Liquidator:        liquidator,
		MarginRequirement: bufferedRequirement,
		TotalCollateral:   collateral,
		MarginFreed:       uint64(pacing.MarginFreeable),
		Bankrupt:          bankrupt,
		LiquidatePerp: events.LiquidatePerpRecord{
			MarketIndex:      market.MarketIndex,
			OraclePrice:      oraclePrice,
			BaseAssetAmount:  deltaBase,
			QuoteAssetAmount: deltaQuote,
			LiquidatorFee:    uint64(liquidatorFee),
			IfFee:            uint64(ifFee),
		},
	})

	return LiquidationResult{
		BaseAmount:    deltaBase,
		QuoteTransfer: deltaQuote,
		LiquidatorFee: uint64(liquidatorFee),
		IfFee:         uint64(ifFee),
		Bankrupt:      bankrupt,
	}, nil
}

// LiquidateSpot implements the spot-liability/asset swap path: the
// liquidator repays the user's liability-market debt (all of it, or at
// most maxLiabilityTransfer when that is non-zero) in exchange for a
// discounted transfer of the user's asset-market deposit, capped at the
// user's asset tokens. Unlike LiquidatePerp, the transfer is not paced by
// the slots elapsed since liquidation began.
func LiquidateSpot(c *Ctx, addr common.Address, user *storage.UserAccount, liquidator common.Address, assetMarket, liabilityMarket *storage.SpotMarketState, markets MarketSet, oracles OraclePrices, assetPrice, liabilityPrice int64, maxLiabilityTransfer uint64) (LiquidationResult, error) {
	if c.State.ExchangeStatus.Has(params.StatusLiqPaused) {
		return LiquidationResult{}, engerrors.ErrExchangePaused
	}
	if user.IsBankrupt {
		return LiquidationResult{}, engerrors.ErrBankruptUserRestricted
	}

	acc := buildMarginAccount(user, markets, oracles)
	collateral, requirement, err := margin.TotalCollateralAndRequirement(acc, margin.Maintenance)
	if err != nil {
		return LiquidationResult{}, err
	}
	if !liquidation.Eligible(collateral, requirement) {
		return LiquidationResult{}, engerrors.ErrNotLiquidatable
	}

	assetBal := user.SpotBalances[assetMarket.MarketIndex]
	liabilityBal := user.SpotBalances[liabilityMarket.MarketIndex]

	assetTokens, err := spotTokenAmount(assetBal, assetMarket)
	if err != nil {
		return LiquidationResult{}, err
	}
	liabilityTokens, err := spotTokenAmount(liabilityBal, liabilityMarket)
	if err != nil {
		return LiquidationResult{}, err
	}

	enterLiquidation(c, user)

	liabilityTransfer := liabilityTokens
	if maxLiabilityTransfer != 0 && maxLiabilityTransfer < liabilityTransfer {
		liabilityTransfer = maxLiabilityTransfer
	}
	liabilityValue, err := fixedpoint.MulDivU64(liabilityTransfer, uint64(liabilityPrice), fixedpoint.PricePrecision)
	if err != nil {
		return LiquidationResult{}, err
	}

	liquidatorFee := liquidation.LiquidatorShare(int64(liabilityValue), int64(liabilityMarket.LiquidatorFeeRatio))
	ifFee := liquidation.IfShare(int64(liabilityValue), int64(liabilityMarket.IfLiquidationFeeRatio))

	assetValue := liabilityValue + uint64(liquidatorFee)
	assetTransfer, err := fixedpoint.MulDivU64(assetValue, fixedpoint.PricePrecision, uint64(assetPrice))
	if err != nil {
		return LiquidationResult{}, err
	}
	if assetTransfer > assetTokens {
		assetTransfer = assetTokens
	}

	if err := applySpotDelta(&liabilityBal, liabilityMarket, int64(liabilityTransfer)); err != nil {
		return LiquidationResult{}, err
	}
	user.SpotBalances[liabilityMarket.MarketIndex] = liabilityBal

	if err := applySpotDelta(&assetBal, assetMarket, -int64(assetTransfer)); err != nil {
		return LiquidationResult{}, err
	}
	user.SpotBalances[assetMarket.MarketIndex] = assetBal

	assetMarket.InsuranceFund.VaultBalance += uint64(ifFee)

	acc = buildMarginAccount(user, markets, oracles)
	collateralAfter, _, err := margin.TotalCollateralAndRequirement(acc, margin.Maintenance)
	if err != nil {
		return LiquidationResult{}, err
	}
	bankrupt := liquidation.IsBankrupt(collateralAfter)
	user.IsBankrupt = bankrupt
	if !bankrupt {
		if err := exitLiquidationIfHealthy(user, acc); err != nil {
			return LiquidationResult{}, err
		}
	}

	c.emit(events.LiquidationRecord{
		RecordID:          uuid.New(),
		Ts:                c.Now,
		LiquidationType:   events.LiquidationTypeSpot,
		User:              addr,
		Liquidator:        liquidator,
		MarginRequirement: requirement,
		TotalCollateral:   collateral,
		Bankrupt:          bankrupt,
		LiquidateSpot: events.LiquidateSpotRecord{
			AssetMarketIndex:     assetMarket.MarketIndex,
			AssetPrice:           assetPrice,
			AssetTransfer:        assetTransfer,
			LiabilityMarketIndex: liabilityMarket.MarketIndex,
			LiabilityPrice:       liabilityPrice,
			LiabilityTransfer:    liabilityTransfer,
			IfFee:                uint64(ifFee),
		},
	})

	return LiquidationResult{
		BaseAmount:    int64(assetTransfer),
		QuoteTransfer: int64(liabilityValue),
		LiquidatorFee: uint64(liquidatorFee),
		IfFee:         uint64(ifFee),
		Bankrupt:      bankrupt,
	}, nil
}

// ResolvePerpBankruptcy socializes a bankrupt user's residual perp loss
// across the market's counterparties via a cumulative-funding-rate delta
// and clears the user's bankrupt/being-liquidated flags once the deficit
// is absorbed.
func ResolvePerpBankruptcy(c *Ctx, addr common.Address, user *storage.UserAccount, market *storage.PerpMarketState) error {
	if !user.IsBankrupt {
		return engerrors.ErrBankruptUserRestricted
	}

	pos, ok := user.PerpPositions[market.MarketIndex]
	if !ok {
		return engerrors.ErrInvalidOrderParams
	}
	loss := pos.QuoteAssetAmount
	if loss >= 0 {
		return engerrors.ErrBankruptUserRestricted
	}

	delta, err := liquidation.PerpBankruptcyDelta(-loss, market.BaseAssetAmountLong, market.BaseAssetAmountShort, fixedpoint.FundingRateToQuotePrecisionRatio)
	if err != nil {
		return err
	}

	// The loss-bearing side's cumulative rate absorbs the deficit: if
	// longs are the counterparty of a short bankrupt user, longs' funding
	// tag increases (they are charged); for a long bankrupt user the
	// shorts' tag decreases, which charges them since their base is
	// negative in SettlePositionFunding.
	if pos.BaseAssetAmount <= 0 {
		market.CumulativeFundingRateLong += delta
	} else {
		market.CumulativeFundingRateShort -= delta
	}

	ifPayment := uint64(0)
	if ifAvail := market.InsuranceFund.VaultBalance; ifAvail > 0 {
		ifPayment = ifAvail
		if uint64(-loss) < ifPayment {
			ifPayment = uint64(-loss)
		}
		market.InsuranceFund.VaultBalance -= ifPayment
	}

	pos.QuoteAssetAmount = 0
	pos.QuoteEntryAmount = 0
	pos.QuoteBreakEvenAmount = 0
	user.PerpPositions[market.MarketIndex] = pos
	user.IsBankrupt = false
	user.IsBeingLiquidated = false
	user.LiquidationMarginFreed = 0

	c.emit(events.LiquidationRecord{
		RecordID:        uuid.New(),
		Ts:              c.Now,
		LiquidationType: events.LiquidationTypePerpBankruptcy,
		User:            addr,
		Bankrupt:        true,
		PerpBankruptcy: events.PerpBankruptcyRecord{
			MarketIndex:                market.MarketIndex,
			Pnl:                        loss,
			IfPayment:                  ifPayment,
			CumulativeFundingRateDelta: delta,
		},
	})
	return nil
}

// ResolveSpotBankruptcy socializes a bankrupt user's residual borrow
// balance across the spot market's depositors via a cumulative-deposit-
// interest delta.
func ResolveSpotBankruptcy(c *Ctx, addr common.Address, user *storage.UserAccount, market *storage.SpotMarketState) error {
	if !user.IsBankrupt {
		return engerrors.ErrBankruptUserRestricted
	}

	bal, ok := user.SpotBalances[market.MarketIndex]
	if !ok || bal.BalanceType != spot.Borrow {
		return engerrors.ErrInvalidOrderParams
	}
	borrowTokens, err := spotTokenAmount(bal, market)
	if err != nil {
		return err
	}
	if borrowTokens == 0 {
		return engerrors.ErrBankruptUserRestricted
	}

	depositTokens, _, err := marketDepositBorrowTokens(market)
	if err != nil {
		return err
	}
	delta, err := liquidation.SpotBankruptcyDelta(market.Market.CumulativeDepositInterest, borrowTokens, depositTokens)
	if err != nil {
		return err
	}
	market.Market.CumulativeDepositInterest += delta
	market.Market.BorrowBalance -= bal.ScaledBalance

	ifPayment := uint64(0)
	if ifAvail := market.InsuranceFund.VaultBalance; ifAvail > 0 {
		ifPayment = ifAvail
		if borrowTokens < ifPayment {
			ifPayment = borrowTokens
		}
		market.InsuranceFund.VaultBalance -= ifPayment
	}

	delete(user.SpotBalances, market.MarketIndex)
	user.IsBankrupt = false
	user.IsBeingLiquidated = false
	user.LiquidationMarginFreed = 0

	c.emit(events.LiquidationRecord{
		RecordID:        uuid.New(),
		Ts:              c.Now,
		LiquidationType: events.LiquidationTypeSpotBankruptcy,
		User:            addr,
		Bankrupt:        true,
		SpotBankruptcy: events.SpotBankruptcyRecord{
			MarketIndex:                    market.MarketIndex,
			BorrowAmount:                   borrowTokens,
			IfPayment:                      ifPayment,
			CumulativeDepositInterestDelta: delta,
		},
	})
	return nil
}
