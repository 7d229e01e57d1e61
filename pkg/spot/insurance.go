package spot

import "github.com/driftcore/engine/pkg/engerrors"

// InsuranceFund tracks the shared capital pool absorbing protocol
// losses: share accounting, a stake cooldown, and a per-epoch cap on
// revenue-pool-to-vault transfers.
type InsuranceFund struct {
	TotalShares  uint64
	VaultBalance uint64

	LastRevenueSettleTs int64
	RevenueSettlePeriod int64
	MaxInsuranceForTier uint64

	UnstakingPeriod int64 // cooldown duration once unstake is requested
}

// Stake is one user's position in the insurance fund.
type Stake struct {
	Shares             uint64
	LastWithdrawRequestShares uint64
	LastWithdrawRequestTs     int64
	LastWithdrawRequestValue  uint64
}

// VaultAmountToShares converts a deposit amount into IF shares:
// amount * total_shares / vault_balance.
func VaultAmountToShares(amount, totalShares, vaultBalance uint64) (uint64, error) {
	if vaultBalance == 0 {
		if totalShares != 0 {
			return 0, engerrors.ErrOverflow
		}
		return amount, nil
	}
	hi, lo := bitsMul(amount, totalShares)
	if hi != 0 {
		return 0, engerrors.ErrOverflow
	}
	return lo / vaultBalance, nil
}

// SharesToVaultAmount is the inverse conversion: shares * vault_balance /
// total_shares.
func SharesToVaultAmount(shares, totalShares, vaultBalance uint64) (uint64, error) {
	if totalShares == 0 {
		return 0, engerrors.ErrDivisionByZero
	}
	hi, lo := bitsMul(shares, vaultBalance)
	if hi != 0 {
		return 0, engerrors.ErrOverflow
	}
	return lo / totalShares, nil
}

// AddStake deposits amount into the fund, minting shares at the current
// vault_balance/total_shares ratio.
func (f *InsuranceFund) AddStake(amount uint64) (uint64, error) {
	shares, err := VaultAmountToShares(amount, f.TotalShares, f.VaultBalance)
	if err != nil {
		return 0, err
	}
	f.TotalShares += shares
	f.VaultBalance += amount
	return shares, nil
}

// RequestUnstake records the intent to withdraw shares, starting the
// cooldown; actual removal happens in FinishUnstake once the cooldown has
// elapsed.
func (s *Stake) RequestUnstake(shares uint64, now int64) error {
	if shares > s.Shares {
		return engerrors.ErrOverflow
	}
	s.LastWithdrawRequestShares = shares
	s.LastWithdrawRequestTs = now
	return nil
}

// FinishUnstake removes the requested shares from both the stake and the
// fund once the cooldown has elapsed, returning the withdrawn amount.
func (f *InsuranceFund) FinishUnstake(s *Stake, now int64) (uint64, error) {
	if s.LastWithdrawRequestShares == 0 {
		return 0, nil
	}
	if now-s.LastWithdrawRequestTs < f.UnstakingPeriod {
		return 0, engerrors.ErrInsufficientSize // cooldown not elapsed
	}
	amount, err := SharesToVaultAmount(s.LastWithdrawRequestShares, f.TotalShares, f.VaultBalance)
	if err != nil {
		return 0, err
	}
	f.TotalShares -= s.LastWithdrawRequestShares
	f.VaultBalance -= amount
	s.Shares -= s.LastWithdrawRequestShares
	s.LastWithdrawRequestShares = 0
	return amount, nil
}

// SettleRevenueToInsuranceFund transfers revenue-pool excess into the IF
// vault at most once per RevenueSettlePeriod, capped so the vault does not
// exceed MaxInsuranceForTier; there is no other per-period amount limit.
func (f *InsuranceFund) SettleRevenueToInsuranceFund(revenuePool uint64, now int64) (transferred uint64, settled bool) {
	if f.RevenueSettlePeriod > 0 && now-f.LastRevenueSettleTs < f.RevenueSettlePeriod {
		return 0, false
	}
	amount := revenuePool
	if f.MaxInsuranceForTier > 0 {
		room := uint64(0)
		if f.MaxInsuranceForTier > f.VaultBalance {
			room = f.MaxInsuranceForTier - f.VaultBalance
		}
		if amount > room {
			amount = room
		}
	}
	f.VaultBalance += amount
	f.LastRevenueSettleTs = now
	return amount, true
}
