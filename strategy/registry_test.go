package strategy

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func TestRegistryFallsBackToGeneric(t *testing.T) {
	reg := NewRegistry()
	if got := reg.StrategyFor(contractAddr).Kind; got != KindGenericFallback {
		t.Fatalf("kind = %s, want generic", got)
	}
	reg.Register("0x00000000000000000000000000000000000000C1", Direct("getVestingListByHolder"))
	if got := reg.StrategyFor(contractAddr).Kind; got != KindDirectMethod {
		t.Fatalf("lookup must ignore address case, got %s", got)
	}
}

func TestRegisterSpecs(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterSpecs([]Spec{
		{Address: contractAddr, Kind: "direct", Method: "getVestingListByHolder"},
		{
			Address: "0x00000000000000000000000000000000000000c2",
			Kind:    "custom",
			Attempts: []AttemptSpec{
				{
					Type:      "raw",
					Signature: "getVestingSchedules(address)",
					Outputs: []abi.ArgumentMarshaling{{
						Name: "schedules", Type: "tuple[]",
						Components: []abi.ArgumentMarshaling{{Name: "amount", Type: "uint256"}},
					}},
				},
				{Type: "index", CountMethod: "count", ByIndexMethod: "scheduleAt"},
			},
		},
	})
	if err != nil {
		t.Fatalf("RegisterSpecs: %v", err)
	}
	direct := reg.StrategyFor(contractAddr)
	if direct.Kind != KindDirectMethod || len(direct.OnEmpty) != 2 {
		t.Fatalf("unexpected direct strategy %+v", direct)
	}
	custom := reg.StrategyFor("0x00000000000000000000000000000000000000c2")
	if custom.Kind != KindCustomSequence || len(custom.Attempts) != 2 {
		t.Fatalf("unexpected custom strategy %+v", custom)
	}
	if custom.Attempts[0].NeedsABI() {
		t.Fatalf("raw attempts do not need an abi")
	}
}

func TestRegisterSpecsRejectsInvalid(t *testing.T) {
	tcs := []Spec{
		{Address: "not-an-address", Kind: "direct", Method: "m"},
		{Address: contractAddr, Kind: "direct"},
		{Address: contractAddr, Kind: "custom"},
		{Address: contractAddr, Kind: "custom", Attempts: []AttemptSpec{{Type: "bogus"}}},
		{Address: contractAddr, Kind: "sideways"},
	}
	for _, spec := range tcs {
		if err := NewRegistry().RegisterSpecs([]Spec{spec}); err == nil {
			t.Errorf("expected an error for %+v", spec)
		}
	}
}
