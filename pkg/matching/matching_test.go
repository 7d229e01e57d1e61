package matching

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/driftcore/engine/pkg/amm"
	"github.com/driftcore/engine/pkg/fixedpoint"
)

func newTestCurve() *amm.Curve {
	base := new(uint256.Int).Mul(uint256.NewInt(100_000), uint256.NewInt(fixedpoint.AMMReservePrecision))
	quote := new(uint256.Int).Set(base)
	sqrtK := fixedpoint.SqrtU256(new(uint256.Int).Mul(base, quote))
	c := &amm.Curve{
		BaseAssetReserve:  base,
		QuoteAssetReserve: quote,
		SqrtK:             sqrtK,
		PegMultiplier:     fixedpoint.PegPrecision,
		MinOrderSize:      1,
	}
	c.AskBaseAssetReserve = new(uint256.Int).Sub(base, uint256.NewInt(1_000*fixedpoint.AMMReservePrecision))
	c.BidBaseAssetReserve = new(uint256.Int).Add(base, uint256.NewInt(1_000*fixedpoint.AMMReservePrecision))
	return c
}

func TestFillAmmLongShrinksBaseReserve(t *testing.T) {
	c := newTestCurve()
	preBase := new(uint256.Int).Set(c.BaseAssetReserve)

	res, err := FillAmm(c, true, 500*fixedpoint.AMMReservePrecision)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BaseFilled == 0 {
		t.Fatal("expected nonzero fill")
	}
	if c.BaseAssetReserve.Cmp(preBase) >= 0 {
		t.Fatal("long fill should shrink the AMM base reserve")
	}
	if res.EntryPrice <= 0 {
		t.Fatalf("expected positive entry price, got %d", res.EntryPrice)
	}
}

func TestFillAmmShortGrowsBaseReserve(t *testing.T) {
	c := newTestCurve()
	preBase := new(uint256.Int).Set(c.BaseAssetReserve)

	res, err := FillAmm(c, false, 500*fixedpoint.AMMReservePrecision)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BaseFilled == 0 {
		t.Fatal("expected nonzero fill")
	}
	if c.BaseAssetReserve.Cmp(preBase) <= 0 {
		t.Fatal("short fill should grow the AMM base reserve")
	}
}

func TestFillAmmBoundedByMaxFillable(t *testing.T) {
	c := newTestCurve()
	res, err := FillAmm(c, true, 10_000_000*fixedpoint.AMMReservePrecision)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	maxFillable := uint256.NewInt(1_000 * fixedpoint.AMMReservePrecision)
	if res.BaseFilled > maxFillable.Uint64() {
		t.Fatalf("fill %d exceeded max fillable bound %d", res.BaseFilled, maxFillable.Uint64())
	}
}

func TestFillAmmZeroUnfilledReturnsEmpty(t *testing.T) {
	c := newTestCurve()
	res, err := FillAmm(c, true, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BaseFilled != 0 || res.QuoteFilled != 0 {
		t.Fatal("expected empty result for zero unfilled base")
	}
}

func TestMatchTakerFillsMinOfBothSides(t *testing.T) {
	taker := MakerOrder{BaseAssetAmount: 10 * fixedpoint.BasePrecision}
	maker := &MakerOrder{Price: 100 * fixedpoint.PricePrecision, BaseAssetAmount: 4 * fixedpoint.BasePrecision}

	res, err := MatchTaker(taker, maker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BaseFilled != 4*fixedpoint.BasePrecision {
		t.Fatalf("expected fill capped at maker size, got %d", res.BaseFilled)
	}
	if res.MakerPrice != maker.Price {
		t.Fatalf("expected maker price %d, got %d", maker.Price, res.MakerPrice)
	}
}

func TestMatchTakerZeroRemainingReturnsEmpty(t *testing.T) {
	taker := MakerOrder{BaseAssetAmount: 5, BaseAssetAmountFilled: 5}
	maker := &MakerOrder{Price: 100, BaseAssetAmount: 5}

	res, err := MatchTaker(taker, maker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BaseFilled != 0 {
		t.Fatal("expected zero fill when taker is fully filled")
	}
}

func TestReconcileExternalFillRejectsOverfill(t *testing.T) {
	fill := ExternalSpotFill{BaseFilled: 100}
	if err := ReconcileExternalFill(fill, 50); err == nil {
		t.Fatal("expected error when reported fill exceeds remaining size")
	}
}

func TestReconcileExternalFillAcceptsExactFill(t *testing.T) {
	fill := ExternalSpotFill{BaseFilled: 50}
	if err := ReconcileExternalFill(fill, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
