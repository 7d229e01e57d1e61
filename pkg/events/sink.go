package events

import "go.uber.org/zap"

// Sink is the host-provided EventSink port: emit accepts
// any of the record types in this package. Records are append-only and
// must be reconstructable in order by consumers from a ledger of them.
type Sink interface {
	Emit(record any)
}

// LogSink is a Sink that logs every record at Info as structured zap
// fields. It is the engine's default EventSink when the host does not
// supply a persistence
// layer, and is also useful for tests that want to assert on emitted
// records via a captured zap core.
type LogSink struct {
	Logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Emit(record any) {
	s.Logger.Info("event", zap.Any("record", record))
}

// MemorySink accumulates every emitted record in order, for tests that
// want to assert on the event ledger without standing up a logger.
type MemorySink struct {
	Records []any
}

func (s *MemorySink) Emit(record any) {
	s.Records = append(s.Records, record)
}
