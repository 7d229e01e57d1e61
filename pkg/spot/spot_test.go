package spot

import "testing"

// Utilization and rate-curve checks at the optimal-utilization corner.
func TestUtilizationAndRates(t *testing.T) {
	depositTokens := uint64(1e12)
	borrowTokens := uint64(7e11)

	u := Utilization(depositTokens, borrowTokens)
	if u != 700_000 {
		t.Fatalf("utilization = %d, want 700000", u)
	}

	rate := BorrowRate(u, 700_000, 150_000, 2_000_000)
	if rate != 150_000 {
		t.Fatalf("borrow rate = %d, want 150000 (at the kink)", rate)
	}

	depositRate := DepositRate(rate, u, 0)
	want := rate * u / spotRatePrecision
	if depositRate != want {
		t.Fatalf("deposit rate = %d, want %d", depositRate, want)
	}
}

func TestUtilizationZeroDeposits(t *testing.T) {
	if u := Utilization(0, 0); u != 0 {
		t.Fatalf("zero/zero utilization = %d, want 0", u)
	}
	if u := Utilization(0, 5); u != spotRatePrecision {
		t.Fatalf("zero-deposit-nonzero-borrow utilization = %d, want 1e6", u)
	}
}

func TestWithdrawAllowed(t *testing.T) {
	m := &Market{DepositTokenTwap: 1000, BorrowTokenTwap: 500, WithdrawGuardThreshold: 100}
	if !m.WithdrawAllowed(950, 550) {
		t.Fatal("within guard band should be allowed")
	}
	if m.WithdrawAllowed(800, 550) {
		t.Fatal("below min deposit should be rejected")
	}
	if m.WithdrawAllowed(950, 700) {
		t.Fatal("above max borrow should be rejected")
	}
}

func TestSolvency(t *testing.T) {
	if !Solvent(100, 100) {
		t.Fatal("equal deposit/borrow should be solvent")
	}
	if Solvent(99, 100) {
		t.Fatal("borrow exceeding deposit should be insolvent")
	}
}

func TestVaultAmountToShares(t *testing.T) {
	shares, err := VaultAmountToShares(1000, 0, 0)
	if err != nil || shares != 1000 {
		t.Fatalf("first staker should mint 1:1, got %d, %v", shares, err)
	}
	shares2, err := VaultAmountToShares(500, 1000, 1000)
	if err != nil || shares2 != 500 {
		t.Fatalf("got %d, %v, want 500", shares2, err)
	}
}
