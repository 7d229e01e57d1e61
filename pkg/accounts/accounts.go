// Package accounts builds the bounded lookup maps of markets/oracles/users
// from a host-loaded sequence of account snapshots. A single BuildMaps
// call surfaces every discriminator/writable-lock violation at once
// instead of failing on the first one found.
package accounts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"
)

// Discriminator is the fixed 8-byte type tag every persisted entity
// carries.
type Discriminator [8]byte

var (
	DiscriminatorPerpMarket  = Discriminator{'p', 'm', 'k', 't', 0, 0, 0, 0}
	DiscriminatorSpotMarket  = Discriminator{'s', 'm', 'k', 't', 0, 0, 0, 0}
	DiscriminatorUser        = Discriminator{'u', 's', 'e', 'r', 0, 0, 0, 0}
	DiscriminatorOracleFeed  = Discriminator{'o', 'r', 'c', 'l', 0, 0, 0, 0}
)

var (
	ErrDiscriminatorMismatch = errors.New("accounts: account discriminator does not match requested type")
	ErrNotWritable           = errors.New("accounts: account requested writable was loaded read-only")
	ErrOracleMismatch        = errors.New("accounts: declared oracle does not match market's stored oracle")
	ErrDuplicateWritableLock = errors.New("accounts: account has conflicting writable locks")
)

// OracleKey identifies a submitted oracle account by pubkey and source,
// matching the data model's (pubkey, source) oracle_map key.
type OracleKey struct {
	Pubkey common.Address
	Source uint8
}

// LoadedAccount is one entry in the host-supplied flat sequence of
// snapshots: a typed payload plus the writability/discriminator metadata
// the map builder must validate.
type LoadedAccount struct {
	Discriminator Discriminator
	Key           common.Address
	Writable      bool
	Payload       any
}

// Request describes what the calling operation expects to find: which
// markets must be loaded writable, and which oracle each market declares.
type Request struct {
	WritablePerpMarkets map[uint16]bool
	WritableSpotMarkets map[uint16]bool
	MarketOracles       map[uint16]OracleKey // market_index -> declared oracle
}

// Maps is the built-out lookup surface an operation consumes.
type Maps struct {
	PerpMarkets map[uint16]any
	SpotMarkets map[uint16]any
	Oracles     map[OracleKey]any
	Users       map[common.Address]any
}

// BuildMaps validates and indexes a flat snapshot sequence into Maps,
// aggregating every violation it finds via multierr rather than
// short-circuiting on the first one.
func BuildMaps(snapshots []LoadedAccount, req Request, perpIndexOf func(any) uint16, spotIndexOf func(any) uint16, oracleKeyOf func(any) OracleKey, userAddrOf func(any) common.Address) (Maps, error) {
	maps := Maps{
		PerpMarkets: make(map[uint16]any),
		SpotMarkets: make(map[uint16]any),
		Oracles:     make(map[OracleKey]any),
		Users:       make(map[common.Address]any),
	}

	var errs error
	writableLocks := make(map[common.Address]bool)

	for _, snap := range snapshots {
		if locked, seen := writableLocks[snap.Key]; seen && locked != snap.Writable {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrDuplicateWritableLock, snap.Key.Hex()))
		}
		writableLocks[snap.Key] = snap.Writable

		switch snap.Discriminator {
		case DiscriminatorPerpMarket:
			idx := perpIndexOf(snap.Payload)
			if req.WritablePerpMarkets[idx] && !snap.Writable {
				errs = multierr.Append(errs, fmt.Errorf("%w: perp market %d", ErrNotWritable, idx))
			}
			maps.PerpMarkets[idx] = snap.Payload
		case DiscriminatorSpotMarket:
			idx := spotIndexOf(snap.Payload)
			if req.WritableSpotMarkets[idx] && !snap.Writable {
				errs = multierr.Append(errs, fmt.Errorf("%w: spot market %d", ErrNotWritable, idx))
			}
			maps.SpotMarkets[idx] = snap.Payload
		case DiscriminatorOracleFeed:
			key := oracleKeyOf(snap.Payload)
			maps.Oracles[key] = snap.Payload
		case DiscriminatorUser:
			addr := userAddrOf(snap.Payload)
			maps.Users[addr] = snap.Payload
		default:
			errs = multierr.Append(errs, fmt.Errorf("%w: unrecognized discriminator for key %s", ErrDiscriminatorMismatch, snap.Key.Hex()))
		}
	}

	for marketIdx, declaredOracle := range req.MarketOracles {
		if _, ok := maps.Oracles[declaredOracle]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: market %d declares oracle %s not present in snapshots", ErrOracleMismatch, marketIdx, declaredOracle.Pubkey.Hex()))
		}
	}

	if errs != nil {
		return Maps{}, errs
	}
	return maps, nil
}
