package engine

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/amm"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/storage"
)

func balancedMarket(marketIndex uint16) *storage.PerpMarketState {
	base := uint256.NewInt(1_000_000_000_000)
	quote := uint256.NewInt(1_000_000_000_000)
	return &storage.PerpMarketState{
		MarketIndex: marketIndex,
		Curve: amm.Curve{
			BaseAssetReserve:          base,
			QuoteAssetReserve:         quote,
			SqrtK:                     new(uint256.Int).Set(base),
			PegMultiplier:             1_000_000,
			TerminalQuoteAssetReserve: new(uint256.Int).Set(quote),
			MinBaseAssetReserve:       uint256.NewInt(1),
			MaxBaseAssetReserve:       uint256.NewInt(1_000_000_000_000_000),
			BaseSpread:                1_000,
			MaxSpread:                 50_000,
			MinOrderSize:              1_000_000,
		},
		MarginRatioInitial: 1_000,
	}
}

// TestUpdateAmmsRepegsTowardOracleAndEmits exercises the repeg branch when
// the fee pool can fully fund moving the peg to the oracle price: the
// curve's peg updates, the fee pool is debited by the repeg cost, and a
// CurveRecord is emitted.
func TestUpdateAmmsRepegsTowardOracleAndEmits(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)

	market := balancedMarket(0)
	market.Curve.TerminalQuoteAssetReserve = uint256.NewInt(900_000_000_000)
	market.FeePool = 50_000_000

	err := UpdateAmms(c, []AmmUpdateInput{{
		Market:           market,
		OraclePrice:      1_100_000,
		OracleConfidence: 10_000,
	}})
	if err != nil {
		t.Fatalf("UpdateAmms: %v", err)
	}

	if market.Curve.PegMultiplier != 1_100_000 {
		t.Errorf("PegMultiplier = %d, want 1100000", market.Curve.PegMultiplier)
	}
	if market.FeePool != 40_000_000 {
		t.Errorf("FeePool = %d, want 40000000 (50000000 - 10000000 repeg cost)", market.FeePool)
	}

	if len(sink.Records) != 1 {
		t.Fatalf("expected 1 CurveRecord, got %d", len(sink.Records))
	}
	rec, ok := sink.Records[0].(events.CurveRecord)
	if !ok {
		t.Fatalf("expected CurveRecord, got %T", sink.Records[0])
	}
	if rec.AdjustmentCost != 10_000_000 {
		t.Errorf("AdjustmentCost = %d, want 10000000", rec.AdjustmentCost)
	}
	if rec.PegMultiplierBefore != 1_000_000 || rec.PegMultiplierAfter != 1_100_000 {
		t.Errorf("peg before/after = %d/%d, want 1000000/1100000", rec.PegMultiplierBefore, rec.PegMultiplierAfter)
	}

	if market.Curve.AskBaseAssetReserve == nil || market.Curve.BidBaseAssetReserve == nil {
		t.Errorf("expected spread reserves to be recomputed")
	}
}

// TestUpdateAmmsNoOpWhenAlreadyAtOracle confirms a curve already priced at
// the oracle doesn't repeg or emit a CurveRecord, but still refreshes its
// spread reserves.
func TestUpdateAmmsNoOpWhenAlreadyAtOracle(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)

	market := balancedMarket(0)
	market.FeePool = 1_000_000

	if err := UpdateAmms(c, []AmmUpdateInput{{
		Market:           market,
		OraclePrice:      1_000_000,
		OracleConfidence: 10_000,
	}}); err != nil {
		t.Fatalf("UpdateAmms: %v", err)
	}

	if market.Curve.PegMultiplier != 1_000_000 {
		t.Errorf("PegMultiplier should not change, got %d", market.Curve.PegMultiplier)
	}
	if market.FeePool != 1_000_000 {
		t.Errorf("FeePool should not change, got %d", market.FeePool)
	}
	if len(sink.Records) != 0 {
		t.Errorf("expected no CurveRecord when already at the oracle price, got %d", len(sink.Records))
	}
}

// TestUpdateAmmsPausedReturnsError confirms the amm-paused status bit short
// circuits before touching any curve.
func TestUpdateAmmsPausedReturnsError(t *testing.T) {
	sink := &events.MemorySink{}
	c := testCtx(sink)
	c.State.ExchangeStatus = params.StatusAmmPaused

	market := balancedMarket(0)
	err := UpdateAmms(c, []AmmUpdateInput{{Market: market, OraclePrice: 1_100_000}})
	if err == nil {
		t.Fatal("expected ErrExchangePaused")
	}
	if market.Curve.PegMultiplier != 1_000_000 {
		t.Errorf("curve should be untouched when amm updates are paused")
	}
}
