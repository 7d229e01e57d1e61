package engine

import (
	"github.com/driftcore/engine/pkg/spot"
	"github.com/driftcore/engine/pkg/storage"
)

func spotTokenAmount(bal storage.SpotBalance, m *storage.SpotMarketState) (uint64, error) {
	cumulative := m.Market.CumulativeDepositInterest
	if bal.BalanceType == spot.Borrow {
		cumulative = m.Market.CumulativeBorrowInterest
	}
	return spot.TokenAmount(bal.ScaledBalance, bal.BalanceType, cumulative, m.Market.Decimals)
}

func marketDepositBorrowTokens(m *storage.SpotMarketState) (depositTokens, borrowTokens uint64, err error) {
	depositTokens, err = spot.TokenAmount(m.Market.DepositBalance, spot.Deposit, m.Market.CumulativeDepositInterest, m.Market.Decimals)
	if err != nil {
		return 0, 0, err
	}
	borrowTokens, err = spot.TokenAmount(m.Market.BorrowBalance, spot.Borrow, m.Market.CumulativeBorrowInterest, m.Market.Decimals)
	if err != nil {
		return 0, 0, err
	}
	return depositTokens, borrowTokens, nil
}

// applySpotDelta applies a signed token-amount change (positive = receive,
// negative = pay) to a user balance in market m, switching BalanceType and
// moving the market's deposit/borrow pools when the net position crosses
// zero, the same deposit<->borrow flip a withdraw past zero triggers.
func applySpotDelta(bal *storage.SpotBalance, m *storage.SpotMarketState, tokenDelta int64) error {
	before, err := spotTokenAmount(*bal, m)
	if err != nil {
		return err
	}
	signedBefore := int64(before)
	if bal.BalanceType == spot.Borrow {
		signedBefore = -signedBefore
	}

	switch bal.BalanceType {
	case spot.Deposit:
		m.Market.DepositBalance -= bal.ScaledBalance
	case spot.Borrow:
		m.Market.BorrowBalance -= bal.ScaledBalance
	}

	signedAfter := signedBefore + tokenDelta
	newType := spot.Deposit
	newTokens := uint64(signedAfter)
	if signedAfter < 0 {
		newType = spot.Borrow
		newTokens = uint64(-signedAfter)
	}

	cumulative := m.Market.CumulativeDepositInterest
	if newType == spot.Borrow {
		cumulative = m.Market.CumulativeBorrowInterest
	}
	newScaled := uint64(0)
	if newTokens != 0 {
		newScaled, err = spot.ScaledBalance(newTokens, newType, cumulative, m.Market.Decimals)
		if err != nil {
			return err
		}
	}

	bal.BalanceType = newType
	bal.ScaledBalance = newScaled

	switch newType {
	case spot.Deposit:
		m.Market.DepositBalance += newScaled
	case spot.Borrow:
		m.Market.BorrowBalance += newScaled
	}
	return nil
}
