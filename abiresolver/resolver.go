// Package abiresolver finds the ABI of a vesting contract. Sources are tried
// in order: the persisted ABI of the tenant, the seed dataset, the primary
// explorer and the secondary explorer. ABIs served by an explorer are
// persisted so the next resolution stops at the first source.
package abiresolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/metrics"
	"github.com/tranvictor/vestingscope/networks"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/util/cache"
	"github.com/tranvictor/vestingscope/util/explorers"
	"github.com/tranvictor/vestingscope/vesting"
)

// ErrNoABI is returned when no source could provide the ABI.
var (
	ErrNoABI      = errors.New("no ABI available")
	ErrInvalidABI = errors.New("invalid abi")
)

const sourcePersisted = "persisted"

// ExplorersFunc returns the primary and secondary explorer of a network.
type ExplorersFunc func(network string) (primary, secondary explorers.BlockExplorer, err error)

// NetworkExplorers looks explorers up in the network registry.
func NetworkExplorers(network string) (explorers.BlockExplorer, explorers.BlockExplorer, error) {
	n, err := networks.GetNetwork(network)
	if err != nil {
		return nil, nil, err
	}
	return n.GetPrimaryExplorer(), n.GetSecondaryExplorer(), nil
}

// Request identifies the contract to resolve. TokenID is optional; without
// it the persisted cache is neither read nor written.
type Request struct {
	Address string
	Network string
	TokenID string
	Keys    vesting.ExplorerKeys
}

type Resolution struct {
	ABI    *abi.ABI
	Record vesting.ContractAbi
}

type Resolver struct {
	abis        store.AbiStore
	seeds       Seeds
	explorers   ExplorersFunc
	parsed      *cache.ABICache
	defaultKeys vesting.ExplorerKeys
	l           logrus.FieldLogger
	metrics     *metrics.Metrics

	namesMu sync.Mutex
	names   map[string]string
}

type Option func(*Resolver)

func WithExplorers(f ExplorersFunc) Option {
	return func(r *Resolver) { r.explorers = f }
}

// WithDefaultKeys sets the explorer keys used when the tenant has none.
func WithDefaultKeys(keys vesting.ExplorerKeys) Option {
	return func(r *Resolver) { r.defaultKeys = keys }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func WithCache(c *cache.ABICache) Option {
	return func(r *Resolver) { r.parsed = c }
}

func New(abis store.AbiStore, seeds Seeds, l logrus.FieldLogger, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		abis:      abis,
		seeds:     seeds,
		explorers: NetworkExplorers,
		l:         l,
		names:     map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parsed == nil {
		c, err := cache.NewABICache(cache.DefaultSize)
		if err != nil {
			return nil, err
		}
		r.parsed = c
	}
	return r, nil
}

func (r *Resolver) keyFor(tenant, fallback string) string {
	if tenant != "" {
		return tenant
	}
	return fallback
}

// Resolve returns the ABI of req.Address on req.Network, or an error
// wrapping ErrNoABI when every source failed.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	address := strings.ToLower(req.Address)
	network := strings.ToLower(req.Network)
	l := r.l.WithFields(logrus.Fields{
		"contract": address,
		"network":  network,
		"token":    req.TokenID,
	})
	errs := []error{}

	if r.abis != nil && req.TokenID != "" {
		record, err := r.abis.GetContractAbi(ctx, req.TokenID, address, network)
		switch {
		case err == nil:
			parsed, perr := r.parsed.Parse(record.ABI)
			if perr == nil {
				r.metrics.ABIResolution(sourcePersisted)
				return Resolution{ABI: parsed, Record: record}, nil
			}
			l.WithError(perr).Warn("persisted abi does not parse, resolving again")
			errs = append(errs, fmt.Errorf("persisted: %w", perr))
		case errors.Is(err, store.ErrNotFound):
		default:
			l.WithError(err).Warn("reading persisted abi failed")
			errs = append(errs, fmt.Errorf("persisted: %w", err))
		}
	}

	if seed, found := r.seeds.Get(address); found {
		parsed, err := r.parsed.Parse(seed)
		if err == nil {
			l.WithField("source", vesting.SourceCacheLegacy).Info("using seeded abi")
			r.metrics.ABIResolution(string(vesting.SourceCacheLegacy))
			return Resolution{
				ABI: parsed,
				Record: vesting.ContractAbi{
					TokenID:         req.TokenID,
					ContractAddress: address,
					Network:         network,
					ABI:             seed,
					Source:          vesting.SourceCacheLegacy,
				},
			}, nil
		}
		errs = append(errs, fmt.Errorf("seed: %w", err))
	}

	primary, secondary, err := r.explorers(network)
	if err != nil {
		errs = append(errs, err)
	} else {
		candidates := []explorers.BlockExplorer{
			primary.WithAPIKey(r.keyFor(req.Keys.Primary, r.defaultKeys.Primary)),
			secondary.WithAPIKey(r.keyFor(req.Keys.Secondary, r.defaultKeys.Secondary)),
		}
		for _, e := range candidates {
			res, err := r.fromExplorer(ctx, l, e, req.TokenID, address, network)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
				continue
			}
			return res, nil
		}
	}

	r.metrics.ABIResolution("failed")
	return Resolution{}, fmt.Errorf("%w for %s on %s: %w", ErrNoABI, address, network, errors.Join(errs...))
}

func (r *Resolver) fromExplorer(ctx context.Context, l logrus.FieldLogger, e explorers.BlockExplorer, tokenID, address, network string) (Resolution, error) {
	l = l.WithField("source", e.Name())
	abiJSON, err := e.GetABIString(ctx, address)
	if err != nil {
		l.WithError(err).Info("explorer has no abi")
		return Resolution{}, err
	}
	if strings.TrimSpace(abiJSON) == "" {
		return Resolution{}, fmt.Errorf("empty abi")
	}
	parsed, err := r.parsed.Parse(abiJSON)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrInvalidABI, err)
	}
	record := vesting.ContractAbi{
		TokenID:         tokenID,
		ContractAddress: address,
		Network:         network,
		ABI:             abiJSON,
		Source:          vesting.Source(e.Name()),
	}
	r.metrics.ABIResolution(e.Name())
	if r.abis != nil && tokenID != "" {
		if err := r.abis.SaveContractAbi(ctx, record); err != nil {
			r.metrics.PersistenceFailure()
			l.WithError(err).Warn("persisting abi failed")
		}
	}
	l.Info("resolved abi from explorer")
	return Resolution{ABI: parsed, Record: record}, nil
}

// Upload stores a user supplied ABI for a contract of a token, replacing
// whatever was persisted before.
func (r *Resolver) Upload(ctx context.Context, a vesting.ContractAbi) (vesting.ContractAbi, error) {
	if r.abis == nil {
		return vesting.ContractAbi{}, fmt.Errorf("no abi store configured")
	}
	if a.TokenID == "" || a.ContractAddress == "" || a.Network == "" {
		return vesting.ContractAbi{}, store.ErrInvalidRecord
	}
	if _, err := r.parsed.Parse(a.ABI); err != nil {
		return vesting.ContractAbi{}, fmt.Errorf("%w: %v", ErrInvalidABI, err)
	}
	a.ContractAddress = strings.ToLower(a.ContractAddress)
	a.Network = strings.ToLower(a.Network)
	a.Source = vesting.SourceUploaded
	if err := r.abis.SaveContractAbi(ctx, a); err != nil {
		return vesting.ContractAbi{}, err
	}
	r.metrics.ABIResolution(string(vesting.SourceUploaded))
	return a, nil
}

// ContractName returns the verified source name of a contract, asking the
// primary explorer then the secondary one. Names are remembered for the
// life of the resolver.
func (r *Resolver) ContractName(ctx context.Context, address, network string, keys vesting.ExplorerKeys) (string, error) {
	address = strings.ToLower(address)
	network = strings.ToLower(network)
	cacheKey := network + "/" + address
	r.namesMu.Lock()
	name, found := r.names[cacheKey]
	r.namesMu.Unlock()
	if found {
		return name, nil
	}

	primary, secondary, err := r.explorers(network)
	if err != nil {
		return "", err
	}
	errs := []error{}
	for _, e := range []explorers.BlockExplorer{
		primary.WithAPIKey(r.keyFor(keys.Primary, r.defaultKeys.Primary)),
		secondary.WithAPIKey(r.keyFor(keys.Secondary, r.defaultKeys.Secondary)),
	} {
		name, err := e.GetContractName(ctx, address)
		if err == nil && name == "" {
			err = explorers.ErrNotVerified
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		r.namesMu.Lock()
		r.names[cacheKey] = name
		r.namesMu.Unlock()
		return name, nil
	}
	return "", errors.Join(errs...)
}
