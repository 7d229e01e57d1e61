// Package engine wires the fixedpoint/oracle/amm/spot/order/matching/
// position/margin/liquidation/events packages behind the operation entry
// points a host ledger calls once per instruction. Every
// function here borrows its account/market snapshots exclusively for the
// call's duration and returns an error rather than panicking on anything
// that is not a programmer mistake.
package engine

import (
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/matching"
)

// ClockReading is the host-provided time source.
type ClockReading struct {
	UnixTimestamp int64
	Slot          uint64
	Epoch         uint64
}

// TokenVault moves real tokens on the host ledger; the engine only calls
// it, never implements it.
type TokenVault interface {
	TransferIn(fromATA, vault [20]byte, amount uint64) error
	TransferOut(vault [20]byte, signerNonce uint64, toATA [20]byte, amount uint64) error
	Reload(vault [20]byte) (uint64, error)
}

// ExternalVenue is the spot fulfillment port.
type ExternalVenue interface {
	Fulfill(takerDirection int8, takerPrice, takerBase, takerMaxQuote uint64) (matching.ExternalSpotFill, error)
	BestBidAsk() (bid, ask *uint64)
}

// SignatureVerifier backs the multi-oracle aggregator;
// oracle.StdlibVerifier satisfies this directly.
type SignatureVerifier interface {
	VerifyEd25519(pubkey, message, signature []byte) bool
}

// EventSink is the host's append-only record consumer.
// events.Sink already has this exact shape.
type EventSink = events.Sink
