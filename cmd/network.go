package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tranvictor/vestingscope/config"
	"github.com/tranvictor/vestingscope/networks"
	"github.com/tranvictor/vestingscope/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show the supported networks",
	Long:  `Networks defined in the networks section of the config file are listed too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(config.ConfigFile)
		if err != nil {
			return err
		}
		for _, n := range conf.Networks {
			if _, err := networks.Register(n); err != nil {
				return err
			}
		}
		rows := [][]string{}
		seen := map[uint64]bool{}
		for _, name := range networks.GetSupportedNetworkNames() {
			n, err := networks.GetNetwork(name)
			if err != nil || seen[n.GetChainID()] {
				continue
			}
			seen[n.GetChainID()] = true
			rows = append(rows, []string{
				n.GetName(),
				fmt.Sprintf("%d", n.GetChainID()),
				n.GetNodeVariableName(),
				n.GetPrimaryExplorer().Name(),
				n.GetSecondaryExplorer().Name(),
			})
		}
		ui.NewTerminalUI().AlignRight(1).Table([]string{"Network", "Chain ID", "Node env var", "Primary explorer", "Secondary explorer"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(networkCmd)
}
