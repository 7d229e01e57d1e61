package engine

import "testing"

func TestNewDefaultEventSinkLogsRecords(t *testing.T) {
	sink, err := NewDefaultEventSink()
	if err != nil {
		t.Fatalf("NewDefaultEventSink: %v", err)
	}
	if sink == nil {
		t.Fatal("expected non-nil sink")
	}
	sink.Emit(struct{ Foo string }{Foo: "bar"})
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("NewDefaultLogger: %v", err)
	}
	logger.Sync()
}
