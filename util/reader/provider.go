package reader

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/tranvictor/vestingscope/networks"
	"github.com/tranvictor/vestingscope/strategy"
)

// Provider hands out one EthReader per network, built lazily from the
// network registry.
type Provider struct {
	mu        sync.Mutex
	readers   map[string]*EthReader
	overrides map[string]map[string]string
}

// NewProvider returns a provider. overrides maps a network name to the
// nodes to use instead of the registry's.
func NewProvider(overrides map[string]map[string]string) *Provider {
	if overrides == nil {
		overrides = map[string]map[string]string{}
	}
	return &Provider{
		readers:   map[string]*EthReader{},
		overrides: overrides,
	}
}

func (p *Provider) Reader(network string) (*EthReader, error) {
	nw, err := networks.GetNetwork(network)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, found := p.readers[nw.GetName()]; found {
		return r, nil
	}
	nodes := nw.GetNodes()
	if override, found := p.overrides[nw.GetName()]; found && len(override) > 0 {
		nodes = override
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no rpc nodes configured for %s", nw.GetName())
	}
	r := NewEthReaderGeneric(nodes)
	p.readers[nw.GetName()] = r
	return r, nil
}

func (p *Provider) Contract(network, address string, a *abi.ABI) (strategy.ContractHandle, error) {
	r, err := p.Reader(network)
	if err != nil {
		return nil, err
	}
	return NewBoundContract(r, address, a), nil
}

func (p *Provider) TokenIdentity(ctx context.Context, network, token string) (string, uint8, error) {
	r, err := p.Reader(network)
	if err != nil {
		return "", 0, err
	}
	symbol, err := r.ERC20Symbol(ctx, token)
	if err != nil {
		return "", 0, fmt.Errorf("reading symbol of %s: %w", token, err)
	}
	decimals, err := r.ERC20Decimal(ctx, token)
	if err != nil {
		return "", 0, fmt.Errorf("reading decimals of %s: %w", token, err)
	}
	return symbol, decimals, nil
}
