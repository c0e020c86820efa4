package networks

var BaseMainnet Network = NewGenericEtherscanNetwork(GenericEtherscanNetworkConfig{
	Name:             "base",
	AlternativeNames: []string{"base-mainnet"},
	ChainID:          8453,
	NodeVariableName: "BASE_MAINNET_NODE",
	DefaultNodes: map[string]string{
		"public-base": "https://mainnet.base.org",
	},
	BlockExplorerAPIKeyVariableName:     "ETHERSCAN_API_KEY",
	SecondaryExplorerAPIKeyVariableName: "ROUTESCAN_API_KEY",
})

var BaseSepolia Network = NewGenericEtherscanNetwork(GenericEtherscanNetworkConfig{
	Name:             "base-sepolia",
	AlternativeNames: []string{"base-testnet"},
	ChainID:          84532,
	Testnet:          true,
	NodeVariableName: "BASE_SEPOLIA_NODE",
	DefaultNodes: map[string]string{
		"public-base-sepolia": "https://sepolia.base.org",
	},
	BlockExplorerAPIKeyVariableName:     "ETHERSCAN_API_KEY",
	SecondaryExplorerAPIKeyVariableName: "ROUTESCAN_API_KEY",
})
