package engine

import (
	"go.uber.org/zap"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/storage"
)

// Ctx bundles the call-scoped inputs every operation entry point needs:
// the clock reading, the exchange-wide State the host loaded, and the
// host-provided ports. Ctx carries no mutable account state itself; each
// operation takes the concrete snapshot pointers it mutates as explicit
// parameters rather than reaching into shared state.
type Ctx struct {
	Now  int64
	Slot uint64

	State *params.State

	Vault    TokenVault
	Venue    ExternalVenue
	Verifier SignatureVerifier
	Sink     EventSink

	Store *storage.Store

	Log *zap.Logger
}

func (c *Ctx) emit(record any) {
	if c.Sink != nil {
		c.Sink.Emit(record)
	}
}

func (c *Ctx) warn(msg string, fields ...zap.Field) {
	if c.Log != nil {
		c.Log.Warn(msg, fields...)
	}
}

func (c *Ctx) info(msg string, fields ...zap.Field) {
	if c.Log != nil {
		c.Log.Info(msg, fields...)
	}
}
