package networks

import (
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/tranvictor/vestingscope/util/explorers"
	"github.com/tranvictor/vestingscope/vesting"
)

var (
	clientMu       sync.RWMutex
	explorerClient = explorers.NewHTTPClient(explorers.DefaultRequestsPerSecond, explorers.DefaultBurst)
)

// SetExplorerHTTPClient replaces the throttled client every network's
// explorers share.
func SetExplorerHTTPClient(c *http.Client) {
	clientMu.Lock()
	defer clientMu.Unlock()
	explorerClient = c
}

func sharedExplorerClient() *http.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return explorerClient
}

type GenericEtherscanNetworkConfig struct {
	Name                                string            `json:"name" yaml:"name"`
	AlternativeNames                    []string          `json:"alternative_names" yaml:"alternative_names"`
	ChainID                             uint64            `json:"chain_id" yaml:"chain_id"`
	Testnet                             bool              `json:"testnet" yaml:"testnet"`
	NodeVariableName                    string            `json:"node_variable_name" yaml:"node_variable_name"`
	DefaultNodes                        map[string]string `json:"default_nodes" yaml:"default_nodes"`
	BlockExplorerAPIKeyVariableName     string            `json:"block_explorer_api_key_variable_name" yaml:"block_explorer_api_key_variable_name"`
	SecondaryExplorerAPIKeyVariableName string            `json:"secondary_explorer_api_key_variable_name" yaml:"secondary_explorer_api_key_variable_name"`
}

// GenericEtherscanNetwork is a network whose primary explorer is the
// Etherscan v2 multichain API and whose secondary explorer is Routescan's
// etherscan compatible API.
type GenericEtherscanNetwork struct {
	config GenericEtherscanNetworkConfig
}

func NewGenericEtherscanNetwork(config GenericEtherscanNetworkConfig) *GenericEtherscanNetwork {
	return &GenericEtherscanNetwork{config: config}
}

func (gn *GenericEtherscanNetwork) GetName() string {
	return gn.config.Name
}

func (gn *GenericEtherscanNetwork) GetChainID() uint64 {
	return gn.config.ChainID
}

func (gn *GenericEtherscanNetwork) GetAlternativeNames() []string {
	return gn.config.AlternativeNames
}

func (gn *GenericEtherscanNetwork) IsTestnet() bool {
	return gn.config.Testnet
}

func (gn *GenericEtherscanNetwork) GetNodeVariableName() string {
	return gn.config.NodeVariableName
}

func (gn *GenericEtherscanNetwork) GetDefaultNodes() map[string]string {
	return gn.config.DefaultNodes
}

func (gn *GenericEtherscanNetwork) GetNodes() map[string]string {
	if gn.config.NodeVariableName != "" {
		if node := strings.TrimSpace(os.Getenv(gn.config.NodeVariableName)); node != "" {
			return map[string]string{"env-node": node}
		}
	}
	return gn.config.DefaultNodes
}

func envKey(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

func (gn *GenericEtherscanNetwork) GetPrimaryExplorer() explorers.BlockExplorer {
	return explorers.NewEtherscanV2(
		string(vesting.SourceBasescan),
		gn.config.ChainID,
		envKey(gn.config.BlockExplorerAPIKeyVariableName),
		sharedExplorerClient(),
	)
}

func (gn *GenericEtherscanNetwork) GetSecondaryExplorer() explorers.BlockExplorer {
	return explorers.NewRoutescan(
		string(vesting.SourceRoutescan),
		gn.config.Testnet,
		gn.config.ChainID,
		envKey(gn.config.SecondaryExplorerAPIKeyVariableName),
		sharedExplorerClient(),
	)
}
