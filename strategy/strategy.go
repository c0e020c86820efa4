// Package strategy maps vesting contracts to the way their schedules are
// read on chain and executes that plan against a contract handle.
//
// A Strategy is data: a kind plus an ordered list of attempts. New
// contracts are supported by registering a Strategy, either in code or in
// the service configuration, never by adding branches here.
package strategy

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/vesting"
)

// ErrTimeout is returned when an on-chain read exceeded its deadline.
var ErrTimeout = errors.New("on-chain read timed out")

// ContractHandle is a contract connected to a chain provider.
type ContractHandle interface {
	Address() string
	// Method returns the ABI description of name, if the contract's ABI
	// has it.
	Method(name string) (abi.Method, bool)
	Call(ctx context.Context, method string, args ...interface{}) (common.CallResult, error)
	CallRaw(ctx context.Context, data []byte) ([]byte, error)
}

type Kind uint8

const (
	// KindGenericFallback is used for contracts without a registration.
	KindGenericFallback Kind = iota
	KindDirectMethod
	KindCustomSequence
)

func (k Kind) String() string {
	switch k {
	case KindDirectMethod:
		return "direct"
	case KindCustomSequence:
		return "custom"
	default:
		return "generic"
	}
}

// Attempt is one way of reading a beneficiary's schedules.
type Attempt interface {
	// Name identifies the attempt in logs, e.g. "direct:getVestingListByHolder".
	Name() string
	// Kind is the attempt type used as a metric label: direct, raw or index.
	Kind() string
	NeedsABI() bool
	Fetch(ctx context.Context, h ContractHandle, beneficiary gethcommon.Address) ([]vesting.RawVestingEntry, error)
}

// Strategy is the retrieval plan of one contract.
//
// A direct method strategy runs its single attempt. When that attempt
// succeeds with no entries the OnEmpty attempts run before concluding the
// beneficiary has no vestings, since some contracts answer that accessor
// unreliably.
//
// Custom and generic strategies run their attempts in order until one
// returns entries. An attempt that errors or comes back empty lets the
// next one run. They differ once every attempt has failed: a custom
// sequence reports the errors, the generic fallback reports no vestings.
// A timeout is always reported.
type Strategy struct {
	Kind     Kind
	Attempts []Attempt
	OnEmpty  []Attempt
}

// NeedsABI reports whether any attempt needs the contract ABI.
func (s Strategy) NeedsABI() bool {
	for _, a := range s.Attempts {
		if a.NeedsABI() {
			return true
		}
	}
	for _, a := range s.OnEmpty {
		if a.NeedsABI() {
			return true
		}
	}
	return false
}

// DefaultEnumeration are the count then fetch by index patterns tried when
// a direct accessor comes back empty.
func DefaultEnumeration() []Attempt {
	return []Attempt{
		IndexEnumeration{
			CountMethod:   "getVestingSchedulesCountByBeneficiary",
			ByIndexMethod: "getVestingScheduleByAddressAndIndex",
		},
		IndexEnumeration{
			CountMethod:   "getVestingSchedulesCountByBeneficiary",
			IDMethod:      "computeVestingScheduleIdForAddressAndIndex",
			ByIndexMethod: "getVestingSchedule",
		},
	}
}

// Generic is the strategy of contracts without a registration.
func Generic() Strategy {
	return Strategy{
		Kind:     KindGenericFallback,
		Attempts: append([]Attempt{DirectMethod{Method: "getVestingListByHolder"}}, DefaultEnumeration()...),
	}
}

// Direct returns a direct method strategy for method with the default
// enumeration as its empty result alternative.
func Direct(method string) Strategy {
	return Strategy{
		Kind:     KindDirectMethod,
		Attempts: []Attempt{DirectMethod{Method: method}},
		OnEmpty:  DefaultEnumeration(),
	}
}

// Custom returns a custom sequence strategy.
func Custom(attempts ...Attempt) Strategy {
	return Strategy{
		Kind:     KindCustomSequence,
		Attempts: attempts,
	}
}
