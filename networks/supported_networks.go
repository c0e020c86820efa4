package networks

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Insert more Network implementation here to support
// more chains
var supportedNetworks = []Network{
	BaseMainnet,
	BaseSepolia,
	EthereumMainnet,
}

var (
	globalSupportedNetworks = newSupportedNetworks()
	ErrNetworkNotFound      = fmt.Errorf("network not found")
)

type networks struct {
	mu           sync.RWMutex
	networks     map[string]Network
	networksByID map[uint64]Network
}

func (n *networks) add(nw Network, override bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := append([]string{nw.GetName()}, nw.GetAlternativeNames()...)
	if !override {
		for _, name := range names {
			if _, found := n.networks[strings.ToLower(name)]; found {
				return fmt.Errorf("network with name or alternative name of '%s' already exists", name)
			}
		}
	}
	for _, name := range names {
		n.networks[strings.ToLower(name)] = nw
	}
	n.networksByID[nw.GetChainID()] = nw
	return nil
}

func (n *networks) getNetwork(name string) (Network, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	res, found := n.networks[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return nil, fmt.Errorf("network name '%s': %w", name, ErrNetworkNotFound)
	}
	return res, nil
}

func (n *networks) getNetworkByID(id uint64) (Network, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	res, found := n.networksByID[id]
	if !found {
		return nil, fmt.Errorf("network id %d: %w", id, ErrNetworkNotFound)
	}
	return res, nil
}

func newSupportedNetworks() *networks {
	result := &networks{
		networks:     map[string]Network{},
		networksByID: map[uint64]Network{},
	}
	for _, n := range supportedNetworks {
		if err := result.add(n, false); err != nil {
			panic(err)
		}
	}
	return result
}

// Register adds a network defined in configuration. A network with the same
// name replaces the built in one.
func Register(config GenericEtherscanNetworkConfig) (Network, error) {
	if config.Name == "" || config.ChainID == 0 {
		return nil, fmt.Errorf("network config needs a name and a chain id")
	}
	nw := NewGenericEtherscanNetwork(config)
	return nw, globalSupportedNetworks.add(nw, true)
}

func GetNetwork(name string) (Network, error) {
	return globalSupportedNetworks.getNetwork(name)
}

func GetNetworkByID(id uint64) (Network, error) {
	return globalSupportedNetworks.getNetworkByID(id)
}

func GetSupportedNetworkNames() []string {
	globalSupportedNetworks.mu.RLock()
	defer globalSupportedNetworks.mu.RUnlock()
	res := []string{}
	for name := range globalSupportedNetworks.networks {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}
