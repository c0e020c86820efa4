package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/tranvictor/vestingscope/common"
)

const scheduleTuple = `{"name":"","type":"tuple","components":[
	{"name":"beneficiary","type":"address"},
	{"name":"start","type":"uint256"},
	{"name":"cliff","type":"uint256"},
	{"name":"duration","type":"uint256"},
	{"name":"amountTotal","type":"uint256"},
	{"name":"released","type":"uint256"}]}`

var vestingABIJSON = `[
{"type":"function","name":"getVestingListByHolder","stateMutability":"view",
 "inputs":[{"name":"holder","type":"address"}],
 "outputs":[` + strings.Replace(scheduleTuple, `"type":"tuple"`, `"type":"tuple[]"`, 1) + `]},
{"type":"function","name":"getVestingSchedulesCountByBeneficiary","stateMutability":"view",
 "inputs":[{"name":"beneficiary","type":"address"}],
 "outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getVestingScheduleByAddressAndIndex","stateMutability":"view",
 "inputs":[{"name":"holder","type":"address"},{"name":"index","type":"uint256"}],
 "outputs":[` + scheduleTuple + `]},
{"type":"function","name":"computeVestingScheduleIdForAddressAndIndex","stateMutability":"pure",
 "inputs":[{"name":"holder","type":"address"},{"name":"index","type":"uint256"}],
 "outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"getVestingSchedule","stateMutability":"view",
 "inputs":[{"name":"vestingScheduleId","type":"bytes32"}],
 "outputs":[` + scheduleTuple + `]}
]`

const (
	contractAddr = "0x00000000000000000000000000000000000000c1"
	holderAddr   = "0x00000000000000000000000000000000000000aa"
)

var holder = gethcommon.HexToAddress(holderAddr)

// schedule mirrors scheduleTuple for packing.
type schedule struct {
	Beneficiary gethcommon.Address
	Start       *big.Int
	Cliff       *big.Int
	Duration    *big.Int
	AmountTotal *big.Int
	Released    *big.Int
}

func newSchedule(total, released int64) schedule {
	return schedule{
		Beneficiary: holder,
		Start:       big.NewInt(1_700_000_000),
		Cliff:       big.NewInt(0),
		Duration:    big.NewInt(1000),
		AmountTotal: big.NewInt(total),
		Released:    big.NewInt(released),
	}
}

type responder func(ctx context.Context, args []interface{}) ([]interface{}, error)

var errReverted = errors.New("execution reverted")

// fakeContract answers calls by packing the responder's values with the
// method outputs and unpacking them again, the way a node round trip would.
type fakeContract struct {
	abi       *abi.ABI
	responses map[string]responder
	raw       func(ctx context.Context, data []byte) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func newFakeContract(t *testing.T, withABI bool) *fakeContract {
	t.Helper()
	f := &fakeContract{responses: map[string]responder{}}
	if withABI {
		a, err := abi.JSON(strings.NewReader(vestingABIJSON))
		if err != nil {
			t.Fatalf("parsing test abi: %v", err)
		}
		f.abi = &a
	}
	return f
}

func (f *fakeContract) on(method string, r responder) *fakeContract {
	f.responses[method] = r
	return f
}

func (f *fakeContract) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeContract) Address() string { return contractAddr }

func (f *fakeContract) Method(name string) (abi.Method, bool) {
	if f.abi == nil {
		return abi.Method{}, false
	}
	m, found := f.abi.Methods[name]
	return m, found
}

func (f *fakeContract) Call(ctx context.Context, method string, args ...interface{}) (common.CallResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
	m, found := f.Method(method)
	if !found {
		return common.CallResult{}, fmt.Errorf("%s: %w", method, common.ErrMethodNotInABI)
	}
	r, found := f.responses[method]
	if !found {
		return common.CallResult{}, errReverted
	}
	values, err := r(ctx, args)
	if err != nil {
		return common.CallResult{}, err
	}
	data, err := m.Outputs.Pack(values...)
	if err != nil {
		return common.CallResult{}, fmt.Errorf("test packing %s: %w", method, err)
	}
	unpacked, err := m.Outputs.Unpack(data)
	if err != nil {
		return common.CallResult{}, err
	}
	return common.CallResult{Outputs: m.Outputs, Values: unpacked}, nil
}

func (f *fakeContract) CallRaw(ctx context.Context, data []byte) ([]byte, error) {
	if f.raw == nil {
		return nil, errReverted
	}
	return f.raw(ctx, data)
}

func returns(values ...interface{}) responder {
	return func(ctx context.Context, args []interface{}) ([]interface{}, error) {
		return values, nil
	}
}

func fails(err error) responder {
	return func(ctx context.Context, args []interface{}) ([]interface{}, error) {
		return nil, err
	}
}

func hangs() responder {
	return func(ctx context.Context, args []interface{}) ([]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func newTestDispatcher(r *Registry) *Dispatcher {
	l, _ := test.NewNullLogger()
	return NewDispatcher(r, DefaultCallTimeout, l, nil)
}
