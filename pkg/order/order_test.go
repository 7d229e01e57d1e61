package order

import "testing"

func TestValidateMarketOrder(t *testing.T) {
	o := &Order{
		OrderType:         TypeMarket,
		Direction:         Long,
		BaseAssetAmount:   1_000_000_000,
		AuctionStartPrice: 100_000_000,
		AuctionEndPrice:   100_500_000,
		AuctionDuration:   10,
	}
	mp := MarketParams{StepSize: 1_000_000, MinOrderSize: 1_000_000}
	if err := Validate(o, mp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMarketOrderBadAuctionOrder(t *testing.T) {
	o := &Order{
		OrderType:         TypeMarket,
		Direction:         Long,
		BaseAssetAmount:   1_000_000_000,
		AuctionStartPrice: 100_500_000,
		AuctionEndPrice:   100_000_000,
		AuctionDuration:   10,
	}
	mp := MarketParams{StepSize: 1_000_000}
	if err := Validate(o, mp); err == nil {
		t.Fatal("expected error for misordered auction prices")
	}
}

func TestStepSizeBoundary(t *testing.T) {
	mp := MarketParams{StepSize: 100}
	ok := &Order{OrderType: TypeLimit, Price: 10, BaseAssetAmount: 100}
	if err := Validate(ok, mp); err != nil {
		t.Fatalf("base==step_size should be accepted: %v", err)
	}
	bad := &Order{OrderType: TypeLimit, Price: 10, BaseAssetAmount: 99}
	if err := Validate(bad, mp); err == nil {
		t.Fatal("step_size-1 should be rejected")
	}
}

func TestTickSizeBoundary(t *testing.T) {
	mp := MarketParams{TickSize: 10, StepSize: 1}
	ok := &Order{OrderType: TypeLimit, Price: 10, BaseAssetAmount: 1}
	if err := Validate(ok, mp); err != nil {
		t.Fatalf("price==tick_size should be accepted: %v", err)
	}
	bad := &Order{OrderType: TypeLimit, Price: 9, BaseAssetAmount: 1}
	if err := Validate(bad, mp); err == nil {
		t.Fatal("tick_size-1 should be rejected")
	}
}

func TestAuctionPriceBoundaries(t *testing.T) {
	o := &Order{Slot: 100, AuctionStartPrice: 100_000_000, AuctionEndPrice: 100_500_000, AuctionDuration: 10}
	if p := AuctionPrice(o, 100); p != 100_000_000 {
		t.Fatalf("delta=0 should return start, got %d", p)
	}
	if p := AuctionPrice(o, 110); p != 100_500_000 {
		t.Fatalf("delta=duration should return end, got %d", p)
	}
	if p := AuctionPrice(o, 105); p != 100_250_000 {
		t.Fatalf("midpoint got %d, want 100250000", p)
	}
}

func TestOracleLimitBreachBoundary(t *testing.T) {
	// init=555 (5.55%), maint=500 (5%) -> threshold = 55*100 = 5500 (0.55%)
	oracle := int64(100_000_000)
	limit := oracle + oracle*5500/1_000_000
	if !OracleLimitBreach(limit, oracle, 555, 500) {
		t.Fatal("exact threshold should breach (>= is inclusive)")
	}
}
