package explorers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tranvictor/vestingscope/util/limiter"
)

var ErrNotVerified = errors.New("contract source code not verified")

// BlockExplorer is the subset of an explorer API the engine consumes.
type BlockExplorer interface {
	// Name is the provenance label recorded with ABIs this explorer served.
	Name() string
	GetABIString(ctx context.Context, address string) (string, error)
	GetContractName(ctx context.Context, address string) (string, error)
	// WithAPIKey returns a copy of the explorer authenticating with key.
	// An empty key returns the explorer unchanged.
	WithAPIKey(key string) BlockExplorer
}

const (
	EtherscanV2API  = "https://api.etherscan.io/v2"
	RoutescanAPIFmt = "https://api.routescan.io/v2/network/%s/evm/%d/etherscan"

	DefaultRequestsPerSecond = 4
	DefaultBurst             = 4
	DefaultHTTPTimeout       = 15 * time.Second
)

// NewHTTPClient returns an explorer HTTP client throttled to rps requests
// per second.
func NewHTTPClient(rps float64, burst int) *http.Client {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return limiter.NewHTTPClient(limiter.NewTokenBucket(rps, burst), DefaultHTTPTimeout)
}

// NewEtherscanV2 returns the multichain Etherscan API for chainID. Its
// ABIs are recorded under the provenance name given, e.g. BASESCAN.
func NewEtherscanV2(name string, chainID uint64, apiKey string, client *http.Client) *EtherscanLikeExplorer {
	result := NewEtherscanLikeExplorer(name, EtherscanV2API, apiKey, client)
	result.ChainID = chainID
	return result
}

// NewRoutescan returns Routescan's etherscan compatible API for chainID.
// The chain is part of the path so no chainid parameter is sent.
func NewRoutescan(name string, testnet bool, chainID uint64, apiKey string, client *http.Client) *EtherscanLikeExplorer {
	env := "mainnet"
	if testnet {
		env = "testnet"
	}
	return NewEtherscanLikeExplorer(name, fmt.Sprintf(RoutescanAPIFmt, env, chainID), apiKey, client)
}
