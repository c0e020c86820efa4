package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tranvictor/vestingscope/abiresolver"
	"github.com/tranvictor/vestingscope/config"
	"github.com/tranvictor/vestingscope/metrics"
	"github.com/tranvictor/vestingscope/networks"
	"github.com/tranvictor/vestingscope/resolver"
	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/store/db"
	"github.com/tranvictor/vestingscope/strategy"
	"github.com/tranvictor/vestingscope/util/cache"
	"github.com/tranvictor/vestingscope/util/explorers"
	"github.com/tranvictor/vestingscope/util/limiter"
	"github.com/tranvictor/vestingscope/util/reader"
	"github.com/tranvictor/vestingscope/vesting"
)

// engine is the wired set of services every command works with.
type engine struct {
	conf     config.ServiceConfig
	l        *logrus.Logger
	db       store.DB
	abis     *abiresolver.Resolver
	resolver *resolver.Resolver
	chain    *reader.Provider
	metrics  *metrics.Metrics
}

func newEngine(ctx context.Context, reg prometheus.Registerer) (*engine, error) {
	conf, err := config.Load(config.ConfigFile)
	if err != nil {
		return nil, err
	}
	l, err := conf.Log.Logger()
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	for _, n := range conf.Networks {
		if _, err := networks.Register(n); err != nil {
			return nil, fmt.Errorf("registering network %s: %w", n.Name, err)
		}
	}
	networks.SetExplorerHTTPClient(explorers.NewHTTPClient(conf.Explorers.RequestsPerSecond, conf.Explorers.Burst))

	m := metrics.New(reg)

	database, err := db.New(ctx, conf.DB.Type, conf.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", conf.DB.Type, err)
	}

	seeds := abiresolver.DefaultSeeds()
	if conf.ABISeeds != "" {
		if seeds, err = abiresolver.LoadSeeds(conf.ABISeeds); err != nil {
			database.Close()
			return nil, err
		}
	}
	size := conf.ABICacheSize
	if size <= 0 {
		size = cache.DefaultSize
	}
	abiCache, err := cache.NewABICache(size)
	if err != nil {
		database.Close()
		return nil, err
	}
	abis, err := abiresolver.New(database, seeds, l.WithField("component", "abiresolver"),
		abiresolver.WithDefaultKeys(vesting.ExplorerKeys{
			Primary:   conf.Explorers.PrimaryAPIKey,
			Secondary: conf.Explorers.SecondaryAPIKey,
		}),
		abiresolver.WithMetrics(m),
		abiresolver.WithCache(abiCache),
	)
	if err != nil {
		database.Close()
		return nil, err
	}

	registry := strategy.NewRegistry()
	if err := registry.RegisterSpecs(conf.Strategies); err != nil {
		database.Close()
		return nil, err
	}
	dispatcher := strategy.NewDispatcher(registry, conf.Resolver.CallTimeout, l.WithField("component", "strategy"), m)

	chain := reader.NewProvider(conf.Nodes)
	r := resolver.New(resolver.Deps{
		Contracts:  database,
		Vestings:   database,
		ABIs:       abis,
		Dispatcher: dispatcher,
		Chain:      chain,
		Limiter:    limiter.NewInterval(conf.Resolver.InterContractDelay),
		Namer:      abis,
		Logger:     l.WithField("component", "resolver"),
		Metrics:    m,
		BatchSize:  conf.Resolver.BatchSize,
	})

	return &engine{
		conf:     conf,
		l:        l,
		db:       database,
		abis:     abis,
		resolver: r,
		chain:    chain,
		metrics:  m,
	}, nil
}

func (e *engine) Close() {
	if err := e.db.Close(); err != nil {
		e.l.WithError(err).Warn("closing store")
	}
}

// tokenContext reads the token given with --token.
func (e *engine) tokenContext(ctx context.Context) (vesting.TokenContext, error) {
	if config.TokenID == "" {
		return vesting.TokenContext{}, fmt.Errorf("--token is required")
	}
	tc, err := e.db.GetToken(ctx, config.TokenID)
	if err != nil {
		return vesting.TokenContext{}, fmt.Errorf("token %s: %w", config.TokenID, err)
	}
	return tc, nil
}
