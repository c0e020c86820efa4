// Package resolver orchestrates vesting resolution for a wallet: per active
// vesting contract it serves the cached beneficiary aggregate or fetches,
// normalizes, aggregates and persists a fresh one.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/abiresolver"
	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/metrics"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/strategy"
	"github.com/tranvictor/vestingscope/util/limiter"
	"github.com/tranvictor/vestingscope/vesting"
)

var (
	ErrNoTokenContext = errors.New("no token context")
	ErrInvalidWallet  = errors.New("invalid wallet address")
)

const DefaultBatchSize = 10

type ABIResolver interface {
	Resolve(ctx context.Context, req abiresolver.Request) (abiresolver.Resolution, error)
}

// ContractNamer supplies display names of contracts registered without one.
type ContractNamer interface {
	ContractName(ctx context.Context, address, network string, keys vesting.ExplorerKeys) (string, error)
}

type ChainProvider interface {
	Contract(network, address string, a *abi.ABI) (strategy.ContractHandle, error)
	TokenIdentity(ctx context.Context, network, token string) (symbol string, decimals uint8, err error)
}

// Deps are the collaborators of a Resolver. Limiter, Namer, Metrics and Now
// are optional.
type Deps struct {
	Contracts  store.ContractStore
	Vestings   store.VestingStore
	ABIs       ABIResolver
	Dispatcher *strategy.Dispatcher
	Chain      ChainProvider
	Limiter    limiter.Limiter
	Namer      ContractNamer
	Logger     logrus.FieldLogger
	Metrics    *metrics.Metrics
	Now        func() time.Time
	BatchSize  int
}

type Resolver struct {
	contracts  store.ContractStore
	vestings   store.VestingStore
	abis       ABIResolver
	dispatcher *strategy.Dispatcher
	chain      ChainProvider
	limiter    limiter.Limiter
	namer      ContractNamer
	l          logrus.FieldLogger
	metrics    *metrics.Metrics
	now        func() time.Time
	batchSize  int
}

func New(d Deps) *Resolver {
	r := &Resolver{
		contracts:  d.Contracts,
		vestings:   d.Vestings,
		abis:       d.ABIs,
		dispatcher: d.Dispatcher,
		chain:      d.Chain,
		limiter:    d.Limiter,
		namer:      d.Namer,
		l:          d.Logger,
		metrics:    d.Metrics,
		now:        d.Now,
		batchSize:  d.BatchSize,
	}
	if r.limiter == nil {
		r.limiter = limiter.Noop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.batchSize <= 0 {
		r.batchSize = DefaultBatchSize
	}
	return r
}

// fetchSession spaces out the live fetches of one request: every live
// fetch after the first waits on the limiter.
type fetchSession struct {
	limiter limiter.Limiter
	live    int
}

func (s *fetchSession) begin(ctx context.Context) error {
	s.live++
	if s.live == 1 {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (r *Resolver) checkRequest(tc vesting.TokenContext, wallet, network string) (string, string, error) {
	if tc.TokenID == "" {
		return "", "", ErrNoTokenContext
	}
	if !common.IsAddress(wallet) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWallet, wallet)
	}
	if network == "" {
		network = tc.Network
	}
	if network == "" {
		return "", "", fmt.Errorf("no network for token %s", tc.TokenID)
	}
	return common.NormalizeAddress(wallet), strings.ToLower(network), nil
}

// withTokenIdentity completes a token context that lacks its symbol from
// the token contract itself.
func (r *Resolver) withTokenIdentity(ctx context.Context, tc vesting.TokenContext, network string) vesting.TokenContext {
	if tc.Symbol != "" || tc.Address == "" || r.chain == nil {
		return tc
	}
	symbol, decimals, err := r.chain.TokenIdentity(ctx, network, tc.Address)
	if err != nil {
		r.l.WithFields(logrus.Fields{
			"token":   tc.TokenID,
			"network": network,
		}).WithError(err).Warn("couldn't read token identity")
		return tc
	}
	tc.Symbol = symbol
	if tc.Decimals == 0 {
		tc.Decimals = decimals
	}
	return tc
}

func (r *Resolver) displayName(ctx context.Context, c vesting.VestingContract, tc vesting.TokenContext) vesting.VestingContract {
	if c.Name != "" || r.namer == nil {
		return c
	}
	name, err := r.namer.ContractName(ctx, c.Address, c.Network, tc.Keys)
	if err != nil {
		r.l.WithField("contract", c.Address).WithError(err).Debug("no verified contract name")
		return c
	}
	c.Name = name
	return c
}

// cached returns the stored aggregate of k when it is a valid hit. Hollow
// records and read errors count as misses.
func (r *Resolver) cached(ctx context.Context, l logrus.FieldLogger, k store.Key) (vesting.BeneficiaryAggregate, bool) {
	agg, err := r.vestings.Lookup(ctx, k)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.metrics.CacheLookup("miss")
		return vesting.BeneficiaryAggregate{}, false
	case err != nil:
		r.metrics.CacheLookup("miss")
		l.WithError(err).Warn("cache lookup failed")
		return vesting.BeneficiaryAggregate{}, false
	case agg.IsHollow():
		r.metrics.CacheLookup("hollow")
		l.Debug("cached aggregate is hollow, fetching again")
		return vesting.BeneficiaryAggregate{}, false
	}
	r.metrics.CacheLookup("hit")
	return agg, true
}

// fetch reads, normalizes and aggregates the schedules of beneficiary in
// contract c from the chain.
func (r *Resolver) fetch(ctx context.Context, tc vesting.TokenContext, c vesting.VestingContract, beneficiary, network string) (vesting.BeneficiaryAggregate, error) {
	defer r.metrics.ObserveFetch(time.Now())

	var contractABI *abi.ABI
	if r.dispatcher.StrategyFor(c.Address).NeedsABI() {
		res, err := r.abis.Resolve(ctx, abiresolver.Request{
			Address: c.Address,
			Network: network,
			TokenID: tc.TokenID,
			Keys:    tc.Keys,
		})
		if err != nil {
			return vesting.BeneficiaryAggregate{}, err
		}
		contractABI = res.ABI
	}
	h, err := r.chain.Contract(network, c.Address, contractABI)
	if err != nil {
		return vesting.BeneficiaryAggregate{}, err
	}
	entries, err := r.dispatcher.FetchRawEntries(ctx, h, c.Address, beneficiary)
	if err != nil {
		return vesting.BeneficiaryAggregate{}, err
	}

	now := r.now()
	schedules := make([]vesting.NormalizedSchedule, 0, len(entries))
	for _, e := range entries {
		schedules = append(schedules, vesting.Normalize(e, tc.Decimals, now))
	}
	agg := vesting.Aggregate(beneficiary, schedules)
	agg.UpdatedAt = now.UTC().Truncate(time.Second)
	return agg, nil
}

// persist writes a fresh aggregate. A failed write is logged and counted
// but never fails the request.
func (r *Resolver) persist(ctx context.Context, l logrus.FieldLogger, k store.Key, agg vesting.BeneficiaryAggregate, write func(context.Context, store.Key, vesting.BeneficiaryAggregate) error) error {
	if err := write(ctx, k, agg); err != nil {
		r.metrics.PersistenceFailure()
		l.WithError(err).Error("persisting vesting aggregate failed")
		return err
	}
	return nil
}

// ResolveWalletVesting builds the vesting summary of wallet across every
// active vesting contract of the token. Contracts are processed one at a
// time in creation order. A failing contract is recorded in the outcomes
// and debug log and contributes no entry.
func (r *Resolver) ResolveWalletVesting(ctx context.Context, tc vesting.TokenContext, wallet, network string, force bool) (vesting.WalletVestingSummary, error) {
	wallet, network, err := r.checkRequest(tc, wallet, network)
	if err != nil {
		return vesting.WalletVestingSummary{}, err
	}
	contracts, err := r.contracts.ListActiveVestingContracts(ctx, tc.TokenID, network)
	if err != nil {
		return vesting.WalletVestingSummary{}, fmt.Errorf("listing vesting contracts: %w", err)
	}
	tc = r.withTokenIdentity(ctx, tc, network)

	session := &fetchSession{limiter: r.limiter}
	results := []vesting.ContractVesting{}
	outcomes := []vesting.ContractOutcome{}
	debugLog := []string{}

	for _, c := range contracts {
		l := r.l.WithFields(logrus.Fields{
			"token":       tc.TokenID,
			"contract":    c.Address,
			"beneficiary": wallet,
			"network":     network,
		})
		k := store.Key{TokenID: tc.TokenID, Contract: c.Address, Beneficiary: wallet, Network: network}

		if !force {
			if agg, hit := r.cached(ctx, l, k); hit {
				results = append(results, vesting.ContractVesting{
					Contract:  r.displayName(ctx, c, tc),
					Token:     tc,
					Aggregate: agg,
					FromCache: true,
				})
				outcomes = append(outcomes, vesting.ContractOutcome{ContractAddress: c.Address, Outcome: vesting.OutcomeCacheHit})
				debugLog = append(debugLog, fmt.Sprintf("%s: served from cache", c.Address))
				r.metrics.ContractOutcome(string(vesting.OutcomeCacheHit))
				continue
			}
		}

		if err := session.begin(ctx); err != nil {
			outcomes = append(outcomes, vesting.ContractOutcome{ContractAddress: c.Address, Outcome: vesting.OutcomeError, Error: err.Error()})
			debugLog = append(debugLog, fmt.Sprintf("%s: not fetched: %s", c.Address, err))
			r.metrics.ContractOutcome(string(vesting.OutcomeError))
			continue
		}
		agg, err := r.fetch(ctx, tc, c, wallet, network)
		if err != nil {
			l.WithError(err).Warn("resolving vesting failed")
			outcomes = append(outcomes, vesting.ContractOutcome{ContractAddress: c.Address, Outcome: vesting.OutcomeError, Error: err.Error()})
			debugLog = append(debugLog, fmt.Sprintf("%s: error: %s", c.Address, err))
			r.metrics.ContractOutcome(string(vesting.OutcomeError))
			continue
		}
		if err := r.persist(ctx, l, k, agg, r.vestings.ReplaceAll); err != nil {
			debugLog = append(debugLog, fmt.Sprintf("%s: cache write failed: %s", c.Address, err))
		}
		results = append(results, vesting.ContractVesting{
			Contract:  r.displayName(ctx, c, tc),
			Token:     tc,
			Aggregate: agg,
		})
		outcomes = append(outcomes, vesting.ContractOutcome{ContractAddress: c.Address, Outcome: vesting.OutcomeFreshFetch})
		debugLog = append(debugLog, fmt.Sprintf("%s: fetched %d schedules from chain", c.Address, len(agg.Schedules)))
		r.metrics.ContractOutcome(string(vesting.OutcomeFreshFetch))
		l.WithField("schedules", len(agg.Schedules)).Info("resolved vesting from chain")
	}

	summary := vesting.AggregateWallet(wallet, network, results)
	summary.Outcomes = outcomes
	summary.DebugLog = debugLog
	return summary, nil
}

// RefreshBeneficiary fetches one beneficiary of one contract from the chain
// and rewrites its cached aggregate, leaving the rest of the contract's
// cache alone.
func (r *Resolver) RefreshBeneficiary(ctx context.Context, tc vesting.TokenContext, contractAddress, beneficiary, network string) (vesting.ContractVesting, error) {
	beneficiary, network, err := r.checkRequest(tc, beneficiary, network)
	if err != nil {
		return vesting.ContractVesting{}, err
	}
	c, err := r.contracts.GetVestingContract(ctx, tc.TokenID, contractAddress, network)
	if err != nil {
		return vesting.ContractVesting{}, fmt.Errorf("vesting contract %s: %w", contractAddress, err)
	}
	tc = r.withTokenIdentity(ctx, tc, network)
	l := r.l.WithFields(logrus.Fields{
		"token":       tc.TokenID,
		"contract":    c.Address,
		"beneficiary": beneficiary,
		"network":     network,
	})
	agg, err := r.fetch(ctx, tc, c, beneficiary, network)
	if err != nil {
		return vesting.ContractVesting{}, err
	}
	k := store.Key{TokenID: tc.TokenID, Contract: c.Address, Beneficiary: beneficiary, Network: network}
	_ = r.persist(ctx, l, k, agg, r.vestings.RefreshOne)
	return vesting.ContractVesting{
		Contract:  r.displayName(ctx, c, tc),
		Token:     tc,
		Aggregate: agg,
	}, nil
}
