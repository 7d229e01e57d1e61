// Package margin implements the per-position margin requirement and
// cross/isolated collateral aggregation: equity-vs-requirement
// comparison with worst-case open-order notional.
package margin

import "github.com/driftcore/engine/pkg/fixedpoint"

// Tier selects which margin ratio (initial or maintenance) a computation
// uses.
type Tier int8

const (
	Initial Tier = iota
	Maintenance
)

// PerpPositionInput is the subset of PerpPosition+PerpMarket a margin
// computation needs.
type PerpPositionInput struct {
	BaseAssetAmount int64
	OpenBids        int64
	OpenAsks        int64

	MarkPrice              int64  // PRICE_PRECISION
	MarginRatioInitial     uint32 // 1e4 precision
	MarginRatioMaintenance uint32

	Isolated bool
	MarketIndex uint16
}

// PerpRequirement computes perp_req = |base| * mark_price * margin_ratio
// / 1e4, plus the worst-case open-order notional.
func PerpRequirement(p PerpPositionInput, tier Tier) (int64, error) {
	ratio := int64(p.MarginRatioInitial)
	if tier == Maintenance {
		ratio = int64(p.MarginRatioMaintenance)
	}

	worstCaseBase := worstCase(p.BaseAssetAmount, p.OpenBids, p.OpenAsks)
	notional := fixedpoint.AbsI64(worstCaseBase) * p.MarkPrice / fixedpoint.BasePrecision
	return notional * ratio / 10_000, nil
}

// worstCase returns the larger-magnitude of base+openBids and
// base+openAsks, the "worst case" base the margin requirement prices.
func worstCase(base, openBids, openAsks int64) int64 {
	withBids := base + openBids
	withAsks := base + openAsks
	if fixedpoint.AbsI64(withBids) > fixedpoint.AbsI64(withAsks) {
		return withBids
	}
	return withAsks
}

// SpotPositionInput is the subset of SpotPosition+SpotMarket a margin
// computation needs.
type SpotPositionInput struct {
	TokenAmount int64 // signed: positive deposit, negative borrow (worst case after open orders)
	OraclePrice int64 // PRICE_PRECISION

	AssetWeightInitial     uint32 // 1e4 precision
	AssetWeightMaintenance uint32
	LiabilityWeightInitial     uint32
	LiabilityWeightMaintenance uint32
}

// SpotCollateralValue returns the signed quote-equivalent contribution of
// a spot position: positive (weighted asset value) for deposits, negative
// (weighted liability value) for borrows.
func SpotCollateralValue(s SpotPositionInput, tier Tier) int64 {
	value := s.TokenAmount * s.OraclePrice / fixedpoint.PricePrecision
	if value >= 0 {
		w := int64(s.AssetWeightInitial)
		if tier == Maintenance {
			w = int64(s.AssetWeightMaintenance)
		}
		return value * w / 10_000
	}
	w := int64(s.LiabilityWeightInitial)
	if tier == Maintenance {
		w = int64(s.LiabilityWeightMaintenance)
	}
	return value * w / 10_000
}

// Account aggregates a user's positions for a margin check.
type Account struct {
	Perps         []PerpPositionInput
	Spots         []SpotPositionInput
	UnsettledPnl  int64
	MaxPnlExcess  int64
}

// TotalCollateralAndRequirement computes cross total collateral and the
// total margin requirement: collateral is the sum of
// spot deposit asset value + bounded unsettled PnL minus spot borrow
// liability value; requirement is the sum of per-position perp
// requirements (isolated positions excluded from the cross pool).
func TotalCollateralAndRequirement(a Account, tier Tier) (collateral, requirement int64, err error) {
	for _, s := range a.Spots {
		collateral += SpotCollateralValue(s, tier)
	}

	pnlBound := a.UnsettledPnl
	if a.MaxPnlExcess != 0 && pnlBound > a.MaxPnlExcess {
		pnlBound = a.MaxPnlExcess
	}
	collateral += pnlBound

	for _, p := range a.Perps {
		if p.Isolated {
			continue
		}
		req, rerr := PerpRequirement(p, tier)
		if rerr != nil {
			return 0, 0, rerr
		}
		requirement += req
	}
	return collateral, requirement, nil
}

// MeetsInitialMarginRequirement reports total_collateral >= perp_req +
// spot_req using Initial-tier ratios/weights.
func MeetsInitialMarginRequirement(a Account) (bool, error) {
	collateral, requirement, err := TotalCollateralAndRequirement(a, Initial)
	if err != nil {
		return false, err
	}
	return collateral >= requirement, nil
}

// MeetsMaintenanceMarginRequirement is the Maintenance-tier analogue.
func MeetsMaintenanceMarginRequirement(a Account) (bool, error) {
	collateral, requirement, err := TotalCollateralAndRequirement(a, Maintenance)
	if err != nil {
		return false, err
	}
	return collateral >= requirement, nil
}

// IsolatedMarginSet tracks which markets a user has flagged isolated,
// one bit per market index.
type IsolatedMarginSet uint64

func (s IsolatedMarginSet) IsIsolated(marketIndex uint16) bool {
	if marketIndex >= 64 {
		return false
	}
	return s&(1<<marketIndex) != 0
}

func (s IsolatedMarginSet) WithIsolated(marketIndex uint16, isolated bool) IsolatedMarginSet {
	if marketIndex >= 64 {
		return s
	}
	if isolated {
		return s | (1 << marketIndex)
	}
	return s &^ (1 << marketIndex)
}

// IsolatedRequirement computes the margin check for a single isolated
// position against only that market's segregated deposit; cross
// collateral never backs an isolated position.
func IsolatedRequirement(p PerpPositionInput, isolatedDeposit int64, tier Tier) (collateral, requirement int64, err error) {
	req, err := PerpRequirement(p, tier)
	if err != nil {
		return 0, 0, err
	}
	return isolatedDeposit, req, nil
}
