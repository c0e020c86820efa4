package resolver

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/tranvictor/vestingscope/abiresolver"
	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/store/memory"
	"github.com/tranvictor/vestingscope/strategy"
	"github.com/tranvictor/vestingscope/vesting"
)

const (
	walletAddr = "0x00000000000000000000000000000000000000aa"
	contractA  = "0x00000000000000000000000000000000000000a1"
	contractB  = "0x00000000000000000000000000000000000000b2"
	contractC  = "0x00000000000000000000000000000000000000c3"
	network    = "base"

	listABI = `[{"type":"function","name":"getVestingListByHolder","stateMutability":"view",
	"inputs":[{"name":"holder","type":"address"}],
	"outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"beneficiary","type":"address"},
		{"name":"start","type":"uint256"},
		{"name":"duration","type":"uint256"},
		{"name":"amountTotal","type":"uint256"},
		{"name":"released","type":"uint256"}]}]}]`
)

var (
	clock = time.Unix(1_700_000_500, 0).UTC()
	token = vesting.TokenContext{TokenID: "acme", Network: network, Symbol: "ACME", Decimals: 0}
)

type schedule struct {
	Beneficiary gethcommon.Address
	Start       *big.Int
	Duration    *big.Int
	AmountTotal *big.Int
	Released    *big.Int
}

func sched(total, released int64) schedule {
	return schedule{
		Beneficiary: gethcommon.HexToAddress(walletAddr),
		Start:       big.NewInt(1_700_000_000),
		Duration:    big.NewInt(1000),
		AmountTotal: big.NewInt(total),
		Released:    big.NewInt(released),
	}
}

type scheduleSource func(ctx context.Context, holder gethcommon.Address) ([]schedule, error)

func fixed(s ...schedule) scheduleSource {
	return func(ctx context.Context, holder gethcommon.Address) ([]schedule, error) {
		return s, nil
	}
}

func hanging(ctx context.Context, holder gethcommon.Address) ([]schedule, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeChain serves getVestingListByHolder of every contract from an in
// memory table.
type fakeChain struct {
	mu        sync.Mutex
	contracts map[string]scheduleSource
	calls     map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{contracts: map[string]scheduleSource{}, calls: map[string]int{}}
}

func (f *fakeChain) set(address string, s scheduleSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts[strings.ToLower(address)] = s
}

func (f *fakeChain) callsTo(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ToLower(address)]
}

func (f *fakeChain) Contract(network, address string, a *abi.ABI) (strategy.ContractHandle, error) {
	return &fakeHandle{chain: f, address: strings.ToLower(address), abi: a}, nil
}

func (f *fakeChain) TokenIdentity(ctx context.Context, network, token string) (string, uint8, error) {
	return "ACME", 18, nil
}

type fakeHandle struct {
	chain   *fakeChain
	address string
	abi     *abi.ABI
}

func (h *fakeHandle) Address() string { return h.address }

func (h *fakeHandle) Method(name string) (abi.Method, bool) {
	if h.abi == nil {
		return abi.Method{}, false
	}
	m, found := h.abi.Methods[name]
	return m, found
}

func (h *fakeHandle) Call(ctx context.Context, method string, args ...interface{}) (common.CallResult, error) {
	m, found := h.Method(method)
	if !found {
		return common.CallResult{}, fmt.Errorf("%s: %w", method, common.ErrMethodNotInABI)
	}
	h.chain.mu.Lock()
	h.chain.calls[h.address]++
	source := h.chain.contracts[h.address]
	h.chain.mu.Unlock()
	if source == nil {
		return common.CallResult{}, fmt.Errorf("execution reverted")
	}
	schedules, err := source(ctx, args[0].(gethcommon.Address))
	if err != nil {
		return common.CallResult{}, err
	}
	return common.CallResult{Outputs: m.Outputs, Values: []interface{}{schedules}}, nil
}

func (h *fakeHandle) CallRaw(ctx context.Context, data []byte) ([]byte, error) {
	return nil, fmt.Errorf("execution reverted")
}

// fakeABIs resolves every contract to listABI except the failing ones.
type fakeABIs struct {
	parsed  *abi.ABI
	failing map[string]bool
	calls   int
}

func newFakeABIs(t *testing.T) *fakeABIs {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(listABI))
	if err != nil {
		t.Fatalf("parsing test abi: %v", err)
	}
	return &fakeABIs{parsed: &a, failing: map[string]bool{}}
}

func (f *fakeABIs) Resolve(ctx context.Context, req abiresolver.Request) (abiresolver.Resolution, error) {
	f.calls++
	if f.failing[strings.ToLower(req.Address)] {
		return abiresolver.Resolution{}, fmt.Errorf("%w for %s", abiresolver.ErrNoABI, req.Address)
	}
	return abiresolver.Resolution{ABI: f.parsed}, nil
}

type countingLimiter struct {
	waits int
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.waits++
	return nil
}

type fixture struct {
	store    *memory.Memory
	chain    *fakeChain
	abis     *fakeABIs
	limiter  *countingLimiter
	registry *strategy.Registry
	resolver *Resolver
}

func newFixture(t *testing.T, contracts ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		chain:    newFakeChain(),
		abis:     newFakeABIs(t),
		limiter:  &countingLimiter{},
		registry: strategy.NewRegistry(),
	}
	base := time.Unix(1_600_000_000, 0).UTC()
	for i, c := range contracts {
		f.store.SaveVestingContract(vesting.VestingContract{
			TokenID:   token.TokenID,
			Address:   c,
			Network:   network,
			Name:      fmt.Sprintf("Vesting %d", i+1),
			Active:    true,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		f.registry.Register(c, strategy.Direct("getVestingListByHolder"))
	}
	f.resolver = f.build(t, strategy.DefaultCallTimeout)
	return f
}

func (f *fixture) build(t *testing.T, callTimeout time.Duration) *Resolver {
	l, _ := test.NewNullLogger()
	return New(Deps{
		Contracts:  f.store,
		Vestings:   f.store,
		ABIs:       f.abis,
		Dispatcher: strategy.NewDispatcher(f.registry, callTimeout, l, nil),
		Chain:      f.chain,
		Limiter:    f.limiter,
		Logger:     l,
		Now:        func() time.Time { return clock },
		BatchSize:  5,
	})
}
