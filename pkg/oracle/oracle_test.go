package oracle

import (
	"crypto/ed25519"
	"testing"

	"github.com/driftcore/engine/params"
)

func TestScaleToPricePrecision(t *testing.T) {
	cases := []struct {
		value    int64
		exponent int32
		want     int64
	}{
		{100, 6, 100},         // already at target precision
		{100, 8, 1},           // 10^8 -> 10^6, shrink
		{100, 4, 10_000},      // 10^4 -> 10^6, grow
		{-250, 4, -25_000},
	}
	for _, c := range cases {
		got, err := ScaleToPricePrecision(c.value, c.exponent)
		if err != nil {
			t.Fatalf("ScaleToPricePrecision(%d, %d) error: %v", c.value, c.exponent, err)
		}
		if got != c.want {
			t.Errorf("ScaleToPricePrecision(%d, %d) = %d, want %d", c.value, c.exponent, got, c.want)
		}
	}
}

func TestCheckValidityStale(t *testing.T) {
	rails := params.Default().OracleGuardRails
	pd := PriceData{
		Price:             100_000_000,
		Confidence:        100_000,
		DelaySlots:        200,
		HasSufficientData: true,
	}
	v := CheckValidity(pd, 100_000_000, rails, ActionSettlePnl)
	if v != StaleForMargin {
		t.Fatalf("expected StaleForMargin, got %v", v)
	}
	if Allowed(ActionSettlePnl, v) {
		t.Fatalf("settle_pnl must not tolerate stale-for-margin oracle data")
	}
}

func TestCheckValidityTooVolatile(t *testing.T) {
	rails := params.Default().OracleGuardRails
	pd := PriceData{
		Price:             600_000_000,
		Confidence:        1_000,
		DelaySlots:        0,
		HasSufficientData: true,
	}
	v := CheckValidity(pd, 100_000_000, rails, ActionFillOrderAmm)
	if v != TooVolatile {
		t.Fatalf("expected TooVolatile, got %v", v)
	}
}

func TestCheckValidityValid(t *testing.T) {
	rails := params.Default().OracleGuardRails
	pd := PriceData{
		Price:             100_100_000,
		Confidence:        50_000,
		DelaySlots:        1,
		HasSufficientData: true,
	}
	v := CheckValidity(pd, 100_000_000, rails, ActionFillOrderAmm)
	if v != Valid {
		t.Fatalf("expected Valid, got %v", v)
	}
}

func TestValidityErrorMapping(t *testing.T) {
	if err := ValidityError(Valid); err != nil {
		t.Fatalf("expected nil error for Valid, got %v", err)
	}
	if err := ValidityError(TooVolatile); err == nil {
		t.Fatalf("expected non-nil error for TooVolatile")
	}
}

// Mirrors the signed-oracle-aggregation walkthrough: three signed
// submissions for a feed at values {100.00, 100.05, 99.95} (x1e6);
// min_samples = 2. Expected median = 100_000_000, aggregate accepted.
func TestAggregateMedianThreeSubmissions(t *testing.T) {
	feedID := [32]byte{1}
	pub1, priv1, _ := ed25519.GenerateKey(nil)
	pub2, priv2, _ := ed25519.GenerateKey(nil)
	pub3, priv3, _ := ed25519.GenerateKey(nil)

	mk := func(pub ed25519.PublicKey, priv ed25519.PrivateKey, oracleID byte, value int64) Submission {
		msg := []byte{oracleID}
		sig := ed25519.Sign(priv, msg)
		return Submission{
			OracleID:  [32]byte{oracleID},
			Message:   msg,
			Signature: sig,
			PublicKey: pub,
			Slot:      100,
			Entries: []FeedEntry{
				{FeedID: feedID, Value: value, MinOracleSamples: 2},
			},
		}
	}

	subs := []Submission{
		mk(pub1, priv1, 1, 100_000_000), // 100.00
		mk(pub2, priv2, 2, 100_050_000), // 100.05
		mk(pub3, priv3, 3, 99_950_000),  // 99.95
	}

	results := Aggregate(subs, StdlibVerifier{}, 100, 10)
	res, ok := results[feedID]
	if !ok {
		t.Fatalf("expected a result for feed")
	}
	if !res.Available {
		t.Fatalf("expected aggregate to be available, got %+v", res)
	}
	if res.Value != 100_000_000 {
		t.Errorf("median = %d, want 100_000_000", res.Value)
	}
	if res.NumSamples != 3 {
		t.Errorf("NumSamples = %d, want 3", res.NumSamples)
	}
}

func TestAggregateRejectsBadSignature(t *testing.T) {
	feedID := [32]byte{9}
	pub, _, _ := ed25519.GenerateKey(nil)
	sub := Submission{
		OracleID:  [32]byte{1},
		Message:   []byte("msg"),
		Signature: make([]byte, ed25519.SignatureSize),
		PublicKey: pub,
		Slot:      10,
		Entries:   []FeedEntry{{FeedID: feedID, Value: 1, MinOracleSamples: 1}},
	}
	results := Aggregate([]Submission{sub}, StdlibVerifier{}, 10, 5)
	if res, ok := results[feedID]; ok && res.Available {
		t.Fatalf("expected unsigned/bad-signature submission to be dropped, got %+v", res)
	}
}

func TestAggregateInsufficientSamples(t *testing.T) {
	feedID := [32]byte{7}
	pub, priv, _ := ed25519.GenerateKey(nil)
	msg := []byte{1}
	sig := ed25519.Sign(priv, msg)
	sub := Submission{
		OracleID:  [32]byte{1},
		Message:   msg,
		Signature: sig,
		PublicKey: pub,
		Slot:      10,
		Entries:   []FeedEntry{{FeedID: feedID, Value: 100, MinOracleSamples: 2}},
	}
	results := Aggregate([]Submission{sub}, StdlibVerifier{}, 10, 5)
	res := results[feedID]
	if res.Available {
		t.Fatalf("expected single submission below min_samples=2 to be unavailable")
	}
}

func TestMedianEvenOdd(t *testing.T) {
	if got := Median([]int64{1, 2, 3}); got != 2 {
		t.Errorf("odd median = %d, want 2", got)
	}
	if got := Median([]int64{1, 2, 3, 4}); got != 2 {
		t.Errorf("even median = %d, want 2", got)
	}
}

func TestUpdateTwap(t *testing.T) {
	got := UpdateTwap(100, 200, 30, 60)
	want := (int64(100)*30 + int64(200)*30) / 60
	if got != want {
		t.Errorf("UpdateTwap = %d, want %d", got, want)
	}
	if got := UpdateTwap(100, 300, 60, 60); got != 300 {
		t.Errorf("full-window refresh should return new sample, got %d", got)
	}
}

func TestIsTooVolatileSymmetric(t *testing.T) {
	if !IsTooVolatile(600, 100, 5) {
		t.Errorf("600 vs 100 at ratio 5 should be too volatile")
	}
	if IsTooVolatile(100, 600, 5) != IsTooVolatile(600, 100, 5) {
		t.Errorf("IsTooVolatile should be symmetric in its two price args")
	}
	if IsTooVolatile(400, 100, 5) {
		t.Errorf("400 vs 100 at ratio 5 should not be too volatile")
	}
}
