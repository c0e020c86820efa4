package networks

import (
	"github.com/tranvictor/vestingscope/util/explorers"
)

type Network interface {
	GetName() string
	GetChainID() uint64
	GetAlternativeNames() []string
	IsTestnet() bool

	GetNodeVariableName() string
	GetDefaultNodes() map[string]string
	// GetNodes returns the RPC nodes to read from: the node in the
	// network's environment variable when set, the defaults otherwise.
	GetNodes() map[string]string

	GetPrimaryExplorer() explorers.BlockExplorer
	GetSecondaryExplorer() explorers.BlockExplorer
}
