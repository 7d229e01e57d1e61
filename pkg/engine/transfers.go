package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/margin"
	"github.com/driftcore/engine/pkg/spot"
	"github.com/driftcore/engine/pkg/storage"
)

// Deposit credits a user's spot balance and pulls the tokens into the
// vault.
func Deposit(c *Ctx, addr common.Address, userATA [20]byte, vault [20]byte, user *storage.UserAccount, market *storage.SpotMarketState, amount uint64, oraclePrice int64) error {
	if c.State.ExchangeStatus.Has(params.StatusDepositPaused) {
		return engerrors.ErrExchangePaused
	}
	if amount == 0 {
		return engerrors.ErrInsufficientSize
	}

	if c.Vault != nil {
		if err := c.Vault.TransferIn(userATA, vault, amount); err != nil {
			return err
		}
	}

	bal := user.SpotBalances[market.MarketIndex]
	if err := applySpotDelta(&bal, market, int64(amount)); err != nil {
		return err
	}
	user.SpotBalances[market.MarketIndex] = bal

	c.emit(events.DepositRecord{
		Ts:                   c.Now,
		User:                 addr,
		Direction:            events.DepositDirectionDeposit,
		MarketIndex:          market.MarketIndex,
		Amount:               amount,
		OraclePrice:          oraclePrice,
		MarketDepositBalance: market.Market.DepositBalance,
		MarketBorrowBalance:  market.Market.BorrowBalance,
	})
	return nil
}

// Withdraw debits a user's spot balance and releases tokens from the vault,
// enforcing both the per-market withdraw guard and the user's own
// post-withdraw initial margin requirement.
func Withdraw(c *Ctx, addr common.Address, signerNonce uint64, userATA [20]byte, vault [20]byte, user *storage.UserAccount, market *storage.SpotMarketState, markets MarketSet, oracles OraclePrices, amount uint64, oraclePrice int64) error {
	if c.State.ExchangeStatus.Has(params.StatusWithdrawPaused) {
		return engerrors.ErrExchangePaused
	}
	if amount == 0 {
		return engerrors.ErrInsufficientSize
	}

	depositTokens, borrowTokens, err := marketDepositBorrowTokens(market)
	if err != nil {
		return err
	}
	if !market.Market.WithdrawAllowed(depositTokens, borrowTokens) {
		return engerrors.ErrInvalidOrderParams
	}

	bal := user.SpotBalances[market.MarketIndex]
	if err := applySpotDelta(&bal, market, -int64(amount)); err != nil {
		return err
	}
	user.SpotBalances[market.MarketIndex] = bal

	depositTokens, borrowTokens, err = marketDepositBorrowTokens(market)
	if err != nil {
		return err
	}
	if !spot.Solvent(depositTokens, borrowTokens) {
		return engerrors.ErrInvalidOrderParams
	}

	ok, err := margin.MeetsInitialMarginRequirement(buildMarginAccount(user, markets, oracles))
	if err != nil {
		return err
	}
	if !ok {
		return engerrors.ErrInsufficientInitialMargin
	}

	if c.Vault != nil {
		if err := c.Vault.TransferOut(vault, signerNonce, userATA, amount); err != nil {
			return err
		}
	}

	c.emit(events.DepositRecord{
		Ts:                   c.Now,
		User:                 addr,
		Direction:            events.DepositDirectionWithdraw,
		MarketIndex:          market.MarketIndex,
		Amount:               amount,
		OraclePrice:          oraclePrice,
		MarketDepositBalance: market.Market.DepositBalance,
		MarketBorrowBalance:  market.Market.BorrowBalance,
	})
	return nil
}
