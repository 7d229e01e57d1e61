package events

import "testing"

func TestMemorySinkAppendsInOrder(t *testing.T) {
	s := &MemorySink{}
	s.Emit(OrderRecord{Ts: 1})
	s.Emit(FundingRateRecord{Ts: 2})
	if len(s.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(s.Records))
	}
	if _, ok := s.Records[0].(OrderRecord); !ok {
		t.Fatal("first record should be OrderRecord")
	}
	if _, ok := s.Records[1].(FundingRateRecord); !ok {
		t.Fatal("second record should be FundingRateRecord")
	}
}
