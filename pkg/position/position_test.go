package position

import "testing"

// Sign-flip matrix for ApplyDelta: open, add, reduce, close, and flip in
// both directions, checking entry/break-even scaling and realized PnL.
func TestApplyDelta(t *testing.T) {
	cases := []struct {
		name       string
		pos        Perp
		delta      Delta
		wantBase   int64
		wantKind   Kind
		wantClosed bool
	}{
		{
			name:     "open from flat",
			pos:      Perp{},
			delta:    Delta{BaseAssetAmount: 10, QuoteAssetAmount: -1000},
			wantBase: 10,
			wantKind: KindOpen,
		},
		{
			name:     "increase same direction",
			pos:      Perp{BaseAssetAmount: 10, QuoteAssetAmount: -1000, QuoteEntryAmount: -1000, QuoteBreakEvenAmount: -1000},
			delta:    Delta{BaseAssetAmount: 5, QuoteAssetAmount: -520},
			wantBase: 15,
			wantKind: KindOpen,
		},
		{
			name:     "partial reduce",
			pos:      Perp{BaseAssetAmount: 10, QuoteAssetAmount: -1000, QuoteEntryAmount: -1000, QuoteBreakEvenAmount: -1000},
			delta:    Delta{BaseAssetAmount: -4, QuoteAssetAmount: 440},
			wantBase: 6,
			wantKind: KindReduce,
		},
		{
			name:       "full close",
			pos:        Perp{BaseAssetAmount: 10, QuoteAssetAmount: -1000, QuoteEntryAmount: -1000, QuoteBreakEvenAmount: -1000},
			delta:      Delta{BaseAssetAmount: -10, QuoteAssetAmount: 1100},
			wantBase:   0,
			wantKind:   KindClose,
			wantClosed: true,
		},
		{
			name:     "flip long to short",
			pos:      Perp{BaseAssetAmount: 10, QuoteAssetAmount: -1000, QuoteEntryAmount: -1000, QuoteBreakEvenAmount: -1000},
			delta:    Delta{BaseAssetAmount: -15, QuoteAssetAmount: 1650},
			wantBase: -5,
			wantKind: KindFlip,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := tc.pos
			res := ApplyDelta(&pos, tc.delta)
			if pos.BaseAssetAmount != tc.wantBase {
				t.Fatalf("base = %d, want %d", pos.BaseAssetAmount, tc.wantBase)
			}
			if res.Kind != tc.wantKind {
				t.Fatalf("kind = %v, want %v", res.Kind, tc.wantKind)
			}
			if tc.wantClosed && pos.QuoteEntryAmount != 0 {
				t.Fatalf("closed position should zero entry, got %d", pos.QuoteEntryAmount)
			}
		})
	}
}

func TestMarketCounters(t *testing.T) {
	d := MarketCounters(10, -5)
	if d.DeltaLong != -10 {
		t.Fatalf("deltaLong = %d, want -10", d.DeltaLong)
	}
	if d.DeltaShort != 5 {
		t.Fatalf("deltaShort = %d, want 5", d.DeltaShort)
	}
}

func TestNumberOfUsersDelta(t *testing.T) {
	// Base and quote both returned to zero: full close, both counters drop.
	r := UpdateResult{WasNonZero: true, IsNonZero: false, QuoteIsZero: true}
	u, ub := NumberOfUsersDelta(r)
	if u != -1 || ub != -1 {
		t.Fatalf("got (%d,%d), want (-1,-1)", u, ub)
	}

	// Base flat but quote still non-zero: only users-with-base drops.
	r = UpdateResult{WasNonZero: true, IsNonZero: false, QuoteIsZero: false}
	u, ub = NumberOfUsersDelta(r)
	if u != 0 || ub != -1 {
		t.Fatalf("got (%d,%d), want (0,-1)", u, ub)
	}
}
