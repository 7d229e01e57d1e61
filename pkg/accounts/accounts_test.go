package accounts

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeMarket struct{ idx uint16 }

func TestBuildMapsHappyPath(t *testing.T) {
	snaps := []LoadedAccount{
		{Discriminator: DiscriminatorPerpMarket, Key: common.HexToAddress("0x1"), Writable: true, Payload: fakeMarket{idx: 0}},
	}
	req := Request{WritablePerpMarkets: map[uint16]bool{0: true}}
	maps, err := BuildMaps(snaps, req,
		func(a any) uint16 { return a.(fakeMarket).idx },
		func(a any) uint16 { return a.(fakeMarket).idx },
		func(a any) OracleKey { return OracleKey{} },
		func(a any) common.Address { return common.Address{} },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := maps.PerpMarkets[0]; !ok {
		t.Fatal("expected perp market 0 to be present")
	}
}

func TestBuildMapsRejectsNonWritableRequested(t *testing.T) {
	snaps := []LoadedAccount{
		{Discriminator: DiscriminatorPerpMarket, Key: common.HexToAddress("0x1"), Writable: false, Payload: fakeMarket{idx: 0}},
	}
	req := Request{WritablePerpMarkets: map[uint16]bool{0: true}}
	_, err := BuildMaps(snaps, req,
		func(a any) uint16 { return a.(fakeMarket).idx },
		func(a any) uint16 { return a.(fakeMarket).idx },
		func(a any) OracleKey { return OracleKey{} },
		func(a any) common.Address { return common.Address{} },
	)
	if !errors.Is(err, ErrNotWritable) {
		t.Fatalf("expected ErrNotWritable, got %v", err)
	}
}

func TestBuildMapsAggregatesMultipleViolations(t *testing.T) {
	snaps := []LoadedAccount{
		{Discriminator: DiscriminatorPerpMarket, Key: common.HexToAddress("0x1"), Writable: false, Payload: fakeMarket{idx: 0}},
		{Discriminator: Discriminator{'b', 'a', 'd'}, Key: common.HexToAddress("0x2"), Writable: false, Payload: nil},
	}
	req := Request{WritablePerpMarkets: map[uint16]bool{0: true}}
	_, err := BuildMaps(snaps, req,
		func(a any) uint16 {
			if a == nil {
				return 0
			}
			return a.(fakeMarket).idx
		},
		func(a any) uint16 { return 0 },
		func(a any) OracleKey { return OracleKey{} },
		func(a any) common.Address { return common.Address{} },
	)
	if !errors.Is(err, ErrNotWritable) || !errors.Is(err, ErrDiscriminatorMismatch) {
		t.Fatalf("expected both violations aggregated, got %v", err)
	}
}
