package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tranvictor/vestingscope/abiresolver"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/strategy"
	"github.com/tranvictor/vestingscope/vesting"
)

func key(contract string) store.Key {
	return store.Key{TokenID: token.TokenID, Contract: contract, Beneficiary: walletAddr, Network: network}
}

func outcomes(s vesting.WalletVestingSummary) []vesting.Outcome {
	result := []vesting.Outcome{}
	for _, o := range s.Outcomes {
		result = append(result, o.Outcome)
	}
	return result
}

func TestTwoSchedulesAggregate(t *testing.T) {
	f := newFixture(t, contractA)
	f.chain.set(contractA, fixed(sched(100, 20), sched(50, 50)))

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if len(summary.Contracts) != 1 {
		t.Fatalf("expected 1 contract, got %d", len(summary.Contracts))
	}
	agg := summary.Contracts[0].Aggregate
	for _, tc := range []struct {
		name string
		got  decimal.Decimal
		want int64
	}{
		{"total", agg.Total, 150},
		{"released", agg.Released, 70},
		{"remaining", agg.Remaining, 80},
		{"wallet total", summary.Total, 150},
	} {
		if !tc.got.Equal(decimal.NewFromInt(tc.want)) {
			t.Errorf("%s = %s, want %d", tc.name, tc.got, tc.want)
		}
	}
	if summary.FromCache {
		t.Fatalf("a fresh fetch must not be reported as cached")
	}
	if got := outcomes(summary); len(got) != 1 || got[0] != vesting.OutcomeFreshFetch {
		t.Fatalf("unexpected outcomes %v", got)
	}
	if f.store.Writes(key(contractA)) != 1 {
		t.Fatalf("expected the aggregate to be persisted")
	}
}

func TestSecondCallIsCacheRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, contractA, contractB)
	f.chain.set(contractA, fixed(sched(100, 20)))
	f.chain.set(contractB, fixed(sched(10, 0)))

	if _, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false); err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	third, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if f.chain.callsTo(contractA) != 1 || f.chain.callsTo(contractB) != 1 {
		t.Fatalf("cached calls must not reach the chain")
	}
	if !second.FromCache {
		t.Fatalf("expected the second summary to come from cache")
	}
	a, _ := json.Marshal(second)
	b, _ := json.Marshal(third)
	if string(a) != string(b) {
		t.Fatalf("repeated cache reads differ\n%s\n%s", a, b)
	}
}

func TestHollowRecordIsRefetched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, contractA)
	f.chain.set(contractA, fixed(sched(40, 0)))
	if err := f.store.ReplaceAll(ctx, key(contractA), vesting.Aggregate(walletAddr, nil)); err != nil {
		t.Fatalf("seeding hollow record: %v", err)
	}

	summary, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if f.chain.callsTo(contractA) != 1 {
		t.Fatalf("a hollow record must trigger a live fetch")
	}
	if summary.FromCache || !summary.Total.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected summary fromCache=%v total=%s", summary.FromCache, summary.Total)
	}
	stored, _ := f.store.Lookup(ctx, key(contractA))
	if stored.IsHollow() {
		t.Fatalf("the hollow record must be overwritten")
	}
}

func TestForceRefreshOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, contractA)
	f.chain.set(contractA, fixed(sched(100, 20)))
	if _, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false); err != nil {
		t.Fatalf("warming cache: %v", err)
	}
	revision := f.store.Revision(key(contractA))

	summary, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, true)
	if err != nil {
		t.Fatalf("forced call: %v", err)
	}
	if f.chain.callsTo(contractA) != 2 {
		t.Fatalf("force must bypass the cache")
	}
	if summary.FromCache {
		t.Fatalf("a forced summary is chain derived")
	}
	if f.store.Writes(key(contractA)) != 2 || f.store.Revision(key(contractA)) == revision {
		t.Fatalf("force must overwrite the stored aggregate even when unchanged")
	}
}

func TestFailingContractIsIsolated(t *testing.T) {
	f := newFixture(t, contractA, contractB)
	f.abis.failing[contractA] = true
	f.chain.set(contractB, fixed(sched(10, 0)))

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if len(summary.Contracts) != 1 || summary.Contracts[0].Contract.Address != contractB {
		t.Fatalf("expected only the healthy contract, got %+v", summary.Contracts)
	}
	got := outcomes(summary)
	if len(got) != 2 || got[0] != vesting.OutcomeError || got[1] != vesting.OutcomeFreshFetch {
		t.Fatalf("unexpected outcomes %v", got)
	}
	if !strings.Contains(summary.DebugLog[0], abiresolver.ErrNoABI.Error()) {
		t.Fatalf("debug log must name the abi failure, got %q", summary.DebugLog[0])
	}
	if f.store.Writes(key(contractA)) != 0 {
		t.Fatalf("nothing must be stored for a failed contract")
	}
}

func TestTimeoutIsRecordedPerContract(t *testing.T) {
	f := newFixture(t, contractA, contractB)
	f.resolver = f.build(t, 20*time.Millisecond)
	f.chain.set(contractA, hanging)
	f.chain.set(contractB, fixed(sched(10, 0)))

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if summary.Outcomes[0].Outcome != vesting.OutcomeError || !strings.Contains(summary.Outcomes[0].Error, strategy.ErrTimeout.Error()) {
		t.Fatalf("expected a timeout outcome, got %+v", summary.Outcomes[0])
	}
	if len(summary.Contracts) != 1 {
		t.Fatalf("the other contract must still resolve")
	}
}

func TestLimiterOnlyBetweenLiveFetches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, contractA, contractB, contractC)
	for _, c := range []string{contractA, contractB, contractC} {
		f.chain.set(c, fixed(sched(10, 0)))
	}

	if _, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if f.limiter.waits != 2 {
		t.Fatalf("three live fetches need two waits, got %d", f.limiter.waits)
	}

	f.limiter.waits = 0
	if _, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false); err != nil {
		t.Fatalf("cached call: %v", err)
	}
	if f.limiter.waits != 0 {
		t.Fatalf("cache hits must not wait, got %d", f.limiter.waits)
	}

	if err := f.store.ReplaceAll(ctx, key(contractB), vesting.Aggregate(walletAddr, nil)); err != nil {
		t.Fatalf("hollowing: %v", err)
	}
	if _, err := f.resolver.ResolveWalletVesting(ctx, token, walletAddr, network, false); err != nil {
		t.Fatalf("single refetch: %v", err)
	}
	if f.limiter.waits != 0 {
		t.Fatalf("a single live fetch must not wait, got %d", f.limiter.waits)
	}
}

func TestPersistenceFailureStillReturnsData(t *testing.T) {
	f := newFixture(t, contractA)
	f.chain.set(contractA, fixed(sched(100, 20)))
	f.store.FailWrites = errors.New("connection reset")

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if len(summary.Contracts) != 1 || !summary.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("the fetched data must be returned, got %+v", summary)
	}
	if summary.Outcomes[0].Outcome != vesting.OutcomeFreshFetch {
		t.Fatalf("a failed cache write is not a contract error")
	}
	found := false
	for _, line := range summary.DebugLog {
		found = found || strings.Contains(line, "cache write failed")
	}
	if !found {
		t.Fatalf("expected the failed write in the debug log, got %v", summary.DebugLog)
	}
}

func TestNoVestingsIsNotAnError(t *testing.T) {
	f := newFixture(t, contractA)
	f.chain.set(contractA, fixed())

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	agg := summary.Contracts[0].Aggregate
	if !agg.NoVestings || agg.Failed() {
		t.Fatalf("expected a no vestings aggregate, got %+v", agg)
	}
}

func TestContractOrderFollowsCreation(t *testing.T) {
	f := newFixture(t, contractC, contractA)
	f.chain.set(contractA, fixed(sched(1, 0)))
	f.chain.set(contractC, fixed(sched(1, 0)))

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if summary.Contracts[0].Contract.Address != contractC || summary.Contracts[1].Contract.Address != contractA {
		t.Fatalf("contracts must follow creation order")
	}
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, contractA)
	ctx := context.Background()
	if _, err := f.resolver.ResolveWalletVesting(ctx, vesting.TokenContext{}, walletAddr, network, false); !errors.Is(err, ErrNoTokenContext) {
		t.Fatalf("expected ErrNoTokenContext, got %v", err)
	}
	if _, err := f.resolver.ResolveWalletVesting(ctx, token, "0x1234", network, false); !errors.Is(err, ErrInvalidWallet) {
		t.Fatalf("expected ErrInvalidWallet, got %v", err)
	}
}

func TestTokenIdentityFromChain(t *testing.T) {
	f := newFixture(t, contractA)
	f.chain.set(contractA, fixed(sched(1, 0)))
	tc := vesting.TokenContext{TokenID: "acme", Address: "0x00000000000000000000000000000000000000ee", Network: network}

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), tc, walletAddr, "", false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	got := summary.Contracts[0].Token
	if got.Symbol != "ACME" || got.Decimals != 18 {
		t.Fatalf("expected the token identity from chain, got %+v", got)
	}
}

type namer struct{ calls int }

func (n *namer) ContractName(ctx context.Context, address, network string, keys vesting.ExplorerKeys) (string, error) {
	n.calls++
	return "TokenVesting", nil
}

func TestUnnamedContractUsesVerifiedName(t *testing.T) {
	f := newFixture(t)
	f.store.SaveVestingContract(vesting.VestingContract{TokenID: token.TokenID, Address: contractA, Network: network, Active: true})
	f.registry.Register(contractA, strategy.Direct("getVestingListByHolder"))
	f.chain.set(contractA, fixed(sched(1, 0)))
	n := &namer{}
	f.resolver.namer = n

	summary, err := f.resolver.ResolveWalletVesting(context.Background(), token, walletAddr, network, false)
	if err != nil {
		t.Fatalf("ResolveWalletVesting: %v", err)
	}
	if summary.Contracts[0].Contract.Name != "TokenVesting" {
		t.Fatalf("name = %q", summary.Contracts[0].Contract.Name)
	}
}

func TestRefreshBeneficiary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, contractA, contractB)
	f.chain.set(contractA, fixed(sched(100, 20)))
	f.chain.set(contractB, fixed(sched(10, 0)))

	cv, err := f.resolver.RefreshBeneficiary(ctx, token, contractA, walletAddr, network)
	if err != nil {
		t.Fatalf("RefreshBeneficiary: %v", err)
	}
	if !cv.Aggregate.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("total = %s", cv.Aggregate.Total)
	}
	if f.store.Writes(key(contractA)) != 1 || f.store.Writes(key(contractB)) != 0 {
		t.Fatalf("only the refreshed contract may be written")
	}
	if _, err := f.resolver.RefreshBeneficiary(ctx, token, contractC, walletAddr, network); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown contract, got %v", err)
	}
}
