// Package storage persists the engine's account-state entities to
// Pebble, keyed by discriminator-style prefixes: JSON-encode, Set/Get by
// prefixed key, Sync on write.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/driftcore/engine/pkg/amm"
	"github.com/driftcore/engine/pkg/margin"
	"github.com/driftcore/engine/pkg/order"
	"github.com/driftcore/engine/pkg/position"
	"github.com/driftcore/engine/pkg/spot"
)

// Store is the Pebble-backed persistence layer for every account-state
// entity the engine mutates.
type Store struct {
	db *pebble.DB
}

func NewStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SpotBalance is one market-scoped balance slot inside a UserAccount.
type SpotBalance struct {
	ScaledBalance uint64
	BalanceType   spot.BalanceType
}

// UserAccount is the persisted User entity: positions, spot
// balances, and the isolated-margin bitset it carries.
type UserAccount struct {
	Address      common.Address
	SubAccountID uint8

	PerpPositions map[uint16]position.Perp
	SpotBalances  map[uint16]SpotBalance

	IsolatedMargin margin.IsolatedMarginSet

	UnsettledPnl   int64
	NumberOfOrders uint32

	Total30dVolume         int64
	IfStakedGovTokenAmount int64
	HighLeverageMode       bool

	IsBeingLiquidated      bool
	IsBankrupt             bool
	LastActiveSlot         uint64
	LiquidationMarginFreed uint64
}

// PerpMarketState is the persisted PerpMarket entity: its curve plus the
// margin/open-interest bookkeeping the margin and position packages read.
type PerpMarketState struct {
	MarketIndex uint16
	Curve       amm.Curve

	MarginRatioInitial     uint32
	MarginRatioMaintenance uint32

	BaseAssetAmountLong  int64
	BaseAssetAmountShort int64

	NumberOfUsers         uint32
	NumberOfUsersWithBase uint32

	FeePool        uint64
	CumulativeFundingRateLong  int64
	CumulativeFundingRateShort int64
	LastFundingRateTs          int64

	// Liquidation knobs, 1e4 precision.
	LiquidatorFeeRatio    uint32
	IfLiquidationFeeRatio uint32

	InsuranceFund spot.InsuranceFund
}

// SpotMarketState is the persisted SpotMarket entity.
type SpotMarketState struct {
	MarketIndex uint16
	Market      spot.Market

	AssetWeightInitial         uint32
	AssetWeightMaintenance     uint32
	LiabilityWeightInitial     uint32
	LiabilityWeightMaintenance uint32

	// Liquidation knobs, 1e4 precision.
	LiquidatorFeeRatio    uint32
	IfLiquidationFeeRatio uint32

	InsuranceFund spot.InsuranceFund
}

// OracleFeedState is the persisted oracle feed: the pubkey/source identity
// alongside the last-aggregated reading.
type OracleFeedState struct {
	Pubkey common.Address
	Source uint8

	Price      int64
	Confidence uint64
	Twap       int64
	LastSlot   uint64
}

func setJSON(db *pebble.DB, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal: %w", err)
	}
	if err := db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: set: %w", err)
	}
	return nil
}

func getJSON(db *pebble.DB, key []byte, v any) (bool, error) {
	data, closer, err := db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: get: %w", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("storage: unmarshal: %w", err)
	}
	return true, nil
}

// SaveUser persists a UserAccount.
func (s *Store) SaveUser(u *UserAccount) error {
	return setJSON(s.db, userKey(u.Address, u.SubAccountID), u)
}

// LoadUser loads a UserAccount, returning (nil, nil) if absent.
func (s *Store) LoadUser(addr common.Address, subAccountID uint8) (*UserAccount, error) {
	var u UserAccount
	ok, err := getJSON(s.db, userKey(addr, subAccountID), &u)
	if err != nil || !ok {
		return nil, err
	}
	if u.PerpPositions == nil {
		u.PerpPositions = make(map[uint16]position.Perp)
	}
	if u.SpotBalances == nil {
		u.SpotBalances = make(map[uint16]SpotBalance)
	}
	return &u, nil
}

// LoadAllSubAccounts loads every sub-account a user address has opened.
func (s *Store) LoadAllSubAccounts(addr common.Address) ([]*UserAccount, error) {
	prefix := userPrefix(addr)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*UserAccount
	for iter.First(); iter.Valid(); iter.Next() {
		var u UserAccount
		if err := json.Unmarshal(iter.Value(), &u); err != nil {
			continue
		}
		out = append(out, &u)
	}
	return out, nil
}

// SavePerpMarket persists a PerpMarketState.
func (s *Store) SavePerpMarket(m *PerpMarketState) error {
	return setJSON(s.db, perpMarketKey(m.MarketIndex), m)
}

// LoadPerpMarket loads a PerpMarketState, returning (nil, nil) if absent.
func (s *Store) LoadPerpMarket(marketIndex uint16) (*PerpMarketState, error) {
	var m PerpMarketState
	ok, err := getJSON(s.db, perpMarketKey(marketIndex), &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// SaveSpotMarket persists a SpotMarketState.
func (s *Store) SaveSpotMarket(m *SpotMarketState) error {
	return setJSON(s.db, spotMarketKey(m.MarketIndex), m)
}

// LoadSpotMarket loads a SpotMarketState, returning (nil, nil) if absent.
func (s *Store) LoadSpotMarket(marketIndex uint16) (*SpotMarketState, error) {
	var m SpotMarketState
	ok, err := getJSON(s.db, spotMarketKey(marketIndex), &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// SaveOracleFeed persists an OracleFeedState.
func (s *Store) SaveOracleFeed(o *OracleFeedState) error {
	return setJSON(s.db, oracleKey(o.Pubkey, o.Source), o)
}

// LoadOracleFeed loads an OracleFeedState, returning (nil, nil) if absent.
func (s *Store) LoadOracleFeed(pubkey common.Address, source uint8) (*OracleFeedState, error) {
	var o OracleFeedState
	ok, err := getJSON(s.db, oracleKey(pubkey, source), &o)
	if err != nil || !ok {
		return nil, err
	}
	return &o, nil
}

// SaveOrder persists a resting order.
func (s *Store) SaveOrder(addr common.Address, subAccountID uint8, o *order.Order) error {
	return setJSON(s.db, orderKey(addr, subAccountID, o.OrderID), o)
}

// DeleteOrder removes an order once it is filled or canceled.
func (s *Store) DeleteOrder(addr common.Address, subAccountID uint8, orderID uint32) error {
	if err := s.db.Delete(orderKey(addr, subAccountID, orderID), pebble.Sync); err != nil {
		return fmt.Errorf("storage: delete order: %w", err)
	}
	return nil
}

// LoadOpenOrders loads every resting order for a sub-account.
func (s *Store) LoadOpenOrders(addr common.Address, subAccountID uint8) ([]*order.Order, error) {
	prefix := orderPrefix(addr, subAccountID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*order.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o order.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue
		}
		if o.Status == order.StatusOpen || o.Status == order.StatusInit {
			orders = append(orders, &o)
		}
	}
	return orders, nil
}
