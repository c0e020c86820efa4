package networks

var EthereumMainnet Network = NewGenericEtherscanNetwork(GenericEtherscanNetworkConfig{
	Name:             "mainnet",
	AlternativeNames: []string{"ethereum"},
	ChainID:          1,
	NodeVariableName: "ETHEREUM_MAINNET_NODE",
	DefaultNodes: map[string]string{
		"public-llamarpc":   "https://eth.llamarpc.com",
		"public-publicnode": "https://ethereum-rpc.publicnode.com",
	},
	BlockExplorerAPIKeyVariableName:     "ETHERSCAN_API_KEY",
	SecondaryExplorerAPIKeyVariableName: "ROUTESCAN_API_KEY",
})
