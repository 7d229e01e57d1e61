package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/position"
	"github.com/driftcore/engine/pkg/spot"
	"github.com/driftcore/engine/pkg/storage"
)

func testCtx(sink *events.MemorySink) *Ctx {
	st := params.Default()
	return &Ctx{Now: 1_000, Slot: 150, State: &st, Sink: sink}
}

// TestLiquidatePerpPartial exercises the maintenance-margin-shortfall path
// with a single perp position and no spot collateral: the user is
// liquidatable, the full pacing window has elapsed so one round closes
// exactly the shortage, and the account exits liquidation healthy.
//
// Hand trace: requirement = 5e9*1e8/1e9 * 500/1e4 = 25_000_000; buffered
// +2% = 25_500_000; collateral 24_800_000 -> shortage 700_000. Slot 150 of
// a 150-slot duration frees 100%. Denominator = 1e8*(500-100)/1e4 -
// 1e8*50/1e4 = 3_500_000, so base = 700_000*1e9/3.5e6 = 200_000_000.
func TestLiquidatePerpPartial(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)

	market := &storage.PerpMarketState{
		MarketIndex:            0,
		MarginRatioMaintenance: 500, // 5%
		LiquidatorFeeRatio:     100, // 1%
		IfLiquidationFeeRatio:  50,  // 0.5%
		BaseAssetAmountLong:    5_000_000_000,
	}
	user := &storage.UserAccount{
		Address: common.HexToAddress("0x1"),
		PerpPositions: map[uint16]position.Perp{
			0: {BaseAssetAmount: 5_000_000_000, QuoteEntryAmount: -500_000_000, QuoteBreakEvenAmount: -500_000_000, QuoteAssetAmount: -450_000_000},
		},
		SpotBalances:   map[uint16]storage.SpotBalance{},
		UnsettledPnl:   24_800_000,
		LastActiveSlot: 0,
	}
	markets := MarketSet{Perps: map[uint16]*storage.PerpMarketState{0: market}}
	oracles := OraclePrices{Perp: map[uint16]int64{0: 100_000_000}}

	res, err := LiquidatePerp(c, user.Address, user, common.HexToAddress("0x2"), market, markets, oracles, 100_000_000, 0)
	if err != nil {
		t.Fatalf("LiquidatePerp: %v", err)
	}

	if res.BaseAmount != -200_000_000 {
		t.Errorf("BaseAmount = %d, want -200000000", res.BaseAmount)
	}
	if res.LiquidatorFee != 200_000 {
		t.Errorf("LiquidatorFee = %d, want 200000", res.LiquidatorFee)
	}
	if res.IfFee != 100_000 {
		t.Errorf("IfFee = %d, want 100000", res.IfFee)
	}
	if res.Bankrupt {
		t.Errorf("user should not be bankrupt after a partial liquidation")
	}
	if user.IsBeingLiquidated {
		t.Errorf("closing the full shortage should restore health and clear the flag")
	}
	if market.InsuranceFund.VaultBalance != 100_000 {
		t.Errorf("InsuranceFund.VaultBalance = %d, want 100000", market.InsuranceFund.VaultBalance)
	}
	pos := user.PerpPositions[0]
	if pos.BaseAssetAmount != 4_800_000_000 {
		t.Errorf("position BaseAssetAmount = %d, want 4800000000", pos.BaseAssetAmount)
	}
	if market.BaseAssetAmountLong != 4_800_000_000 {
		t.Errorf("market BaseAssetAmountLong = %d, want 4800000000", market.BaseAssetAmountLong)
	}

	if len(sink.Records) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.Records))
	}
	rec, ok := sink.Records[0].(events.LiquidationRecord)
	if !ok {
		t.Fatalf("expected LiquidationRecord, got %T", sink.Records[0])
	}
	if rec.LiquidationType != events.LiquidationTypePerp {
		t.Errorf("LiquidationType = %v, want LiquidationTypePerp", rec.LiquidationType)
	}
	if rec.LiquidatePerp.BaseAssetAmount != res.BaseAmount {
		t.Errorf("event BaseAssetAmount mismatch: %d vs %d", rec.LiquidatePerp.BaseAssetAmount, res.BaseAmount)
	}
}

// TestLiquidatePerpExchangePaused confirms the liq-paused status bit short
// circuits before touching the user or market at all.
func TestLiquidatePerpExchangePaused(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)
	c.State.ExchangeStatus = params.StatusLiqPaused

	market := &storage.PerpMarketState{MarketIndex: 0}
	user := &storage.UserAccount{PerpPositions: map[uint16]position.Perp{}}

	_, err := LiquidatePerp(c, common.Address{}, user, common.Address{}, market, MarketSet{}, OraclePrices{}, 1, 0)
	if err == nil {
		t.Fatal("expected ErrExchangePaused")
	}
	if len(sink.Records) != 0 {
		t.Errorf("expected no events when liquidation is paused")
	}
}

// TestLiquidateSpotDrainsCappedByAssetCollateral exercises the spot
// liability/asset swap path when the liquidator's nominal liability-value
// payout exceeds the user's remaining asset-market deposit: the transfer
// clamps to the available asset tokens and the account ends up exactly
// drained (bankrupt).
func TestLiquidateSpotDrainsCappedByAssetCollateral(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)

	assetMarket := &storage.SpotMarketState{
		MarketIndex:            1,
		AssetWeightMaintenance: 9_000,
		LiquidatorFeeRatio:     100,
		IfLiquidationFeeRatio:  50,
	}
	assetMarket.Market.Decimals = 6
	assetMarket.Market.CumulativeDepositInterest = 1_000_000
	assetMarket.Market.DepositBalance = 100_000_000_000

	liabilityMarket := &storage.SpotMarketState{
		MarketIndex:                2,
		LiabilityWeightMaintenance: 11_000,
		LiquidatorFeeRatio:         100,
		IfLiquidationFeeRatio:      50,
	}
	liabilityMarket.Market.Decimals = 6
	liabilityMarket.Market.CumulativeBorrowInterest = 1_000_000
	liabilityMarket.Market.BorrowBalance = 120_000_000_000

	user := &storage.UserAccount{
		Address: common.HexToAddress("0x3"),
		SpotBalances: map[uint16]storage.SpotBalance{
			1: {ScaledBalance: 100_000_000_000, BalanceType: spot.Deposit},
			2: {ScaledBalance: 120_000_000_000, BalanceType: spot.Borrow},
		},
		PerpPositions: map[uint16]position.Perp{},
	}
	markets := MarketSet{Spots: map[uint16]*storage.SpotMarketState{1: assetMarket, 2: liabilityMarket}}
	oracles := OraclePrices{Spot: map[uint16]int64{1: 1_000_000, 2: 1_000_000}}

	res, err := LiquidateSpot(c, user.Address, user, common.HexToAddress("0x4"), assetMarket, liabilityMarket, markets, oracles, 1_000_000, 1_000_000, 0)
	if err != nil {
		t.Fatalf("LiquidateSpot: %v", err)
	}

	if res.BaseAmount != 10_000 {
		t.Errorf("asset transfer = %d, want 10000 (clamped to available deposit)", res.BaseAmount)
	}
	if res.LiquidatorFee != 120 {
		t.Errorf("LiquidatorFee = %d, want 120", res.LiquidatorFee)
	}
	if res.IfFee != 60 {
		t.Errorf("IfFee = %d, want 60", res.IfFee)
	}
	if !res.Bankrupt {
		t.Errorf("draining all collateral to repay the liability should leave the account bankrupt")
	}
	if assetMarket.InsuranceFund.VaultBalance != 60 {
		t.Errorf("assetMarket.InsuranceFund.VaultBalance = %d, want 60", assetMarket.InsuranceFund.VaultBalance)
	}

	assetBal := user.SpotBalances[1]
	if assetBal.ScaledBalance != 0 {
		t.Errorf("asset balance should be fully drained, got scaled=%d", assetBal.ScaledBalance)
	}
	liabilityBal := user.SpotBalances[2]
	if liabilityBal.BalanceType != spot.Deposit || liabilityBal.ScaledBalance != 0 {
		t.Errorf("liability balance should be fully repaid, got %+v", liabilityBal)
	}
}

// TestResolvePerpBankruptcySocializesLoss exercises the perp bankruptcy
// socialization path: a bankrupt short's residual loss is charged to the
// long side's cumulative funding tag, the insurance fund pays what it can,
// and the user's flags clear.
func TestResolvePerpBankruptcySocializesLoss(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)

	market := &storage.PerpMarketState{
		MarketIndex:          0,
		BaseAssetAmountLong:  10_000_000_000,
		BaseAssetAmountShort: -4_000_000_000,
	}
	market.InsuranceFund.VaultBalance = 500_000

	user := &storage.UserAccount{
		Address:    common.HexToAddress("0x5"),
		IsBankrupt: true,
		PerpPositions: map[uint16]position.Perp{
			0: {BaseAssetAmount: -2_000_000_000, QuoteAssetAmount: -1_000_000},
		},
	}

	if err := ResolvePerpBankruptcy(c, user.Address, user, market); err != nil {
		t.Fatalf("ResolvePerpBankruptcy: %v", err)
	}

	if market.CumulativeFundingRateLong != 71_428_000 {
		t.Errorf("CumulativeFundingRateLong = %d, want 71428000", market.CumulativeFundingRateLong)
	}
	if market.InsuranceFund.VaultBalance != 0 {
		t.Errorf("InsuranceFund.VaultBalance = %d, want 0", market.InsuranceFund.VaultBalance)
	}
	if user.IsBankrupt || user.IsBeingLiquidated {
		t.Errorf("user flags should be cleared after bankruptcy resolution")
	}
	pos := user.PerpPositions[0]
	if pos.QuoteAssetAmount != 0 {
		t.Errorf("position quote should be zeroed, got %d", pos.QuoteAssetAmount)
	}

	if len(sink.Records) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.Records))
	}
	rec := sink.Records[0].(events.LiquidationRecord)
	if rec.LiquidationType != events.LiquidationTypePerpBankruptcy {
		t.Errorf("LiquidationType = %v, want LiquidationTypePerpBankruptcy", rec.LiquidationType)
	}
	if rec.PerpBankruptcy.IfPayment != 500_000 {
		t.Errorf("IfPayment = %d, want 500000", rec.PerpBankruptcy.IfPayment)
	}
}

// TestResolveSpotBankruptcySocializesBorrow exercises the spot bankruptcy
// socialization path: a bankrupt borrower's residual debt is socialized
// across depositors via a cumulative-deposit-interest bump, the insurance
// fund covers what it can, and the user's borrow balance is cleared.
func TestResolveSpotBankruptcySocializesBorrow(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)

	market := &storage.SpotMarketState{MarketIndex: 2}
	market.Market.Decimals = 6
	market.Market.CumulativeDepositInterest = 1_000_000
	market.Market.CumulativeBorrowInterest = 1_000_000
	market.Market.DepositBalance = 200_000_000_000 // 20,000 tokens
	market.Market.BorrowBalance = 50_000_000_000    // 5,000 tokens
	market.InsuranceFund.VaultBalance = 2_000

	user := &storage.UserAccount{
		Address:    common.HexToAddress("0x6"),
		IsBankrupt: true,
		SpotBalances: map[uint16]storage.SpotBalance{
			2: {ScaledBalance: 50_000_000_000, BalanceType: spot.Borrow},
		},
	}

	if err := ResolveSpotBankruptcy(c, user.Address, user, market); err != nil {
		t.Fatalf("ResolveSpotBankruptcy: %v", err)
	}

	if market.Market.CumulativeDepositInterest != 1_250_000 {
		t.Errorf("CumulativeDepositInterest = %d, want 1250000", market.Market.CumulativeDepositInterest)
	}
	if market.Market.BorrowBalance != 0 {
		t.Errorf("BorrowBalance = %d, want 0", market.Market.BorrowBalance)
	}
	if market.InsuranceFund.VaultBalance != 0 {
		t.Errorf("InsuranceFund.VaultBalance = %d, want 0", market.InsuranceFund.VaultBalance)
	}
	if _, ok := user.SpotBalances[2]; ok {
		t.Errorf("bankrupt borrow balance should be deleted")
	}
	if user.IsBankrupt || user.IsBeingLiquidated {
		t.Errorf("user flags should be cleared after bankruptcy resolution")
	}

	rec := sink.Records[0].(events.LiquidationRecord)
	if rec.SpotBankruptcy.BorrowAmount != 5_000 {
		t.Errorf("BorrowAmount = %d, want 5000", rec.SpotBankruptcy.BorrowAmount)
	}
	if rec.SpotBankruptcy.IfPayment != 2_000 {
		t.Errorf("IfPayment = %d, want 2000", rec.SpotBankruptcy.IfPayment)
	}
}
