package amm

import (
	"testing"

	"github.com/holiman/uint256"
)

func newTestCurve() *Curve {
	base := uint256.NewInt(1_000_000_000_000) // 1000 base at BASE_PRECISION
	quote := uint256.NewInt(1_000_000_000_000)
	sqrtK := new(uint256.Int).Set(base) // base == quote => sqrt_k == base for a balanced pool
	return &Curve{
		BaseAssetReserve:          base,
		QuoteAssetReserve:         quote,
		SqrtK:                     sqrtK,
		PegMultiplier:             1_000_000, // 1.0
		TerminalQuoteAssetReserve: new(uint256.Int).Set(quote),
		MinBaseAssetReserve:       uint256.NewInt(1),
		MaxBaseAssetReserve:       uint256.NewInt(1_000_000_000_000_000),
		BaseSpread:                1_000, // 0.1%
		MaxSpread:                 50_000,
		MinOrderSize:              1_000_000,
	}
}

func TestReservePrice(t *testing.T) {
	c := newTestCurve()
	price, err := c.ReservePrice()
	if err != nil {
		t.Fatal(err)
	}
	if price != 1_000_000 { // peg 1.0 at balanced reserves -> price 1.0 at PRICE_PRECISION
		t.Errorf("ReservePrice = %d, want 1_000_000", price)
	}
}

func TestSwapOutputAdd(t *testing.T) {
	c := newTestCurve()
	swapAmount := uint256.NewInt(100_000_000_000) // add 100 base
	newInput, newOutput, err := c.SwapOutput(c.BaseAssetReserve, swapAmount, Add)
	if err != nil {
		t.Fatal(err)
	}
	wantInput := uint256.NewInt(1_100_000_000_000)
	if newInput.Cmp(wantInput) != 0 {
		t.Errorf("newInput = %s, want %s", newInput, wantInput)
	}
	// invariant / newInput should be less than original quote reserve
	if newOutput.Cmp(c.QuoteAssetReserve) >= 0 {
		t.Errorf("expected output reserve to shrink after adding to input side")
	}
}

func TestSwapOutputRemoveTooLarge(t *testing.T) {
	c := newTestCurve()
	swapAmount := new(uint256.Int).Set(c.BaseAssetReserve)
	if _, _, err := c.SwapOutput(c.BaseAssetReserve, swapAmount, Remove); err == nil {
		t.Fatal("expected error removing the entire reserve")
	}
}

func TestCalculateRepegCostPositiveWhenPaid(t *testing.T) {
	c := newTestCurve()
	// terminal reserve below quote reserve and peg increasing => cost positive (paid)
	c.TerminalQuoteAssetReserve = uint256.NewInt(900_000_000_000)
	cost, err := c.CalculateRepegCost(1_100_000)
	if err != nil {
		t.Fatal(err)
	}
	if cost <= 0 {
		t.Errorf("expected positive repeg cost, got %d", cost)
	}
}

func TestValidateRepegDirection(t *testing.T) {
	if err := ValidateRepegDirection(1_000_000, 1_100_000, true); err != nil {
		t.Errorf("moving peg up toward an above-mark oracle should be valid: %v", err)
	}
	if err := ValidateRepegDirection(1_000_000, 900_000, true); err == nil {
		t.Errorf("moving peg down away from an above-mark oracle should be rejected")
	}
}

func TestValidateRepegBand(t *testing.T) {
	if err := ValidateRepegBand(100_500_000, 100_000_000, 1_000_000); err != nil {
		t.Errorf("price within confidence band should be valid: %v", err)
	}
	if err := ValidateRepegBand(105_000_000, 100_000_000, 1_000_000); err == nil {
		t.Errorf("price outside confidence band should be rejected")
	}
}

func TestUpdateKRejectsBelowLpBound(t *testing.T) {
	c := newTestCurve()
	tooSmall := uint256.NewInt(10)
	if err := c.UpdateK(tooSmall, uint256.NewInt(1_000_000_000)); err != ErrKTooSmall {
		t.Fatalf("expected ErrKTooSmall, got %v", err)
	}
}

func TestUpdateKScalesReserves(t *testing.T) {
	c := newTestCurve()
	newSqrtK := uint256.NewInt(2_000_000_000_000)
	if err := c.UpdateK(newSqrtK, uint256.NewInt(0)); err != nil {
		t.Fatal(err)
	}
	if c.SqrtK.Cmp(newSqrtK) != 0 {
		t.Errorf("SqrtK not updated")
	}
	price, err := c.ReservePrice()
	if err != nil {
		t.Fatal(err)
	}
	if price != 1_000_000 {
		t.Errorf("k-rescale should preserve reserve price, got %d", price)
	}
}

func TestUpdateSpreadReservesWidensOnBothSides(t *testing.T) {
	c := newTestCurve()
	if err := c.UpdateSpreadReserves(5_000, 5_000); err != nil {
		t.Fatal(err)
	}
	if c.AskBaseAssetReserve.Cmp(c.BaseAssetReserve) >= 0 {
		t.Errorf("ask base reserve should be below spot reserve")
	}
	if c.BidBaseAssetReserve.Cmp(c.BaseAssetReserve) <= 0 {
		t.Errorf("bid base reserve should be above spot reserve")
	}
}

func TestMaxBaseAssetAmountFillable(t *testing.T) {
	c := newTestCurve()
	if err := c.UpdateSpreadReserves(5_000, 5_000); err != nil {
		t.Fatal(err)
	}
	fillable := c.MaxBaseAssetAmountFillable(Add)
	if fillable.IsZero() {
		t.Errorf("expected nonzero fillable amount toward the ask reserve")
	}
}
