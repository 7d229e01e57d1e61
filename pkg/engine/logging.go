package engine

import (
	"go.uber.org/zap"

	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/util"
)

// NewDefaultLogger builds the production zap.Logger a host passes to Ctx.Log
// when it has no logging stack of its own, per util.NewLogger's JSON/ISO8601
// config.
func NewDefaultLogger() (*zap.Logger, error) {
	return util.NewLogger()
}

// NewDefaultEventSink builds the EventSink a host falls back to when it has
// no persistence layer of its own: every record is logged at Info via
// NewDefaultLogger instead of being dropped.
func NewDefaultEventSink() (EventSink, error) {
	logger, err := NewDefaultLogger()
	if err != nil {
		return nil, err
	}
	return events.NewLogSink(logger), nil
}
