package engine

import (
	"github.com/driftcore/engine/pkg/margin"
	"github.com/driftcore/engine/pkg/storage"
)

// MarketSet is the bounded set of markets one operation touches, built by
// the host from its loaded account snapshots (the accounts.Maps pattern
// narrowed to the concrete pointer types the engine package
// mutates instead of accounts.Maps' discriminator-validated `any`
// payloads; that validation already happened one layer up, in
// accounts.BuildMaps).
type MarketSet struct {
	Perps map[uint16]*storage.PerpMarketState
	Spots map[uint16]*storage.SpotMarketState
}

// OraclePrices is the current slot's oracle reading per market index, one
// map per market type since perp and spot market indices are independent
// namespaces.
type OraclePrices struct {
	Perp map[uint16]int64
	Spot map[uint16]int64
}

// buildMarginAccount assembles a margin.Account from a user's full
// position set so a fill/withdraw/liquidation check sees the user's
// entire cross-margin exposure, not just the market being touched.
func buildMarginAccount(user *storage.UserAccount, markets MarketSet, oracles OraclePrices) margin.Account {
	var acc margin.Account
	acc.MaxPnlExcess = 0

	for idx, pos := range user.PerpPositions {
		m, ok := markets.Perps[idx]
		if !ok {
			continue
		}
		price := oracles.Perp[idx]
		acc.Perps = append(acc.Perps, margin.PerpPositionInput{
			BaseAssetAmount:        pos.BaseAssetAmount,
			MarkPrice:              price,
			MarginRatioInitial:     m.MarginRatioInitial,
			MarginRatioMaintenance: m.MarginRatioMaintenance,
			Isolated:               user.IsolatedMargin.IsIsolated(idx),
			MarketIndex:            idx,
		})
	}

	for idx, bal := range user.SpotBalances {
		m, ok := markets.Spots[idx]
		if !ok {
			continue
		}
		tokens, err := spotTokenAmount(bal, m)
		if err != nil {
			continue
		}
		signed := int64(tokens)
		if bal.BalanceType != 0 { // spot.Borrow
			signed = -signed
		}
		acc.Spots = append(acc.Spots, margin.SpotPositionInput{
			TokenAmount:                signed,
			OraclePrice:                oracles.Spot[idx],
			AssetWeightInitial:         m.AssetWeightInitial,
			AssetWeightMaintenance:     m.AssetWeightMaintenance,
			LiabilityWeightInitial:     m.LiabilityWeightInitial,
			LiabilityWeightMaintenance: m.LiabilityWeightMaintenance,
		})
	}

	acc.UnsettledPnl = user.UnsettledPnl
	return acc
}
