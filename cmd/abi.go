package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tranvictor/vestingscope/abiresolver"
	"github.com/tranvictor/vestingscope/config"
	"github.com/tranvictor/vestingscope/ui"
	"github.com/tranvictor/vestingscope/vesting"
)

var abiCmd = &cobra.Command{
	Use:   "abi [contract]",
	Short: "Resolve the ABI of a contract, or upload one with --upload",
	Args:  checkAddressArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEngine(ctx, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer e.Close()
		u := ui.NewTerminalUI()

		tc, tokenErr := e.tokenContext(ctx)
		network := config.Network
		if network == "" {
			network = tc.Network
		}

		if config.UploadFile != "" {
			if tokenErr != nil {
				return tokenErr
			}
			content, err := os.ReadFile(config.UploadFile)
			if err != nil {
				return err
			}
			saved, err := e.abis.Upload(ctx, vesting.ContractAbi{
				TokenID:         tc.TokenID,
				ContractAddress: args[0],
				Network:         network,
				ABI:             string(content),
			})
			if err != nil {
				return err
			}
			u.Success("Stored ABI of %s on %s", saved.ContractAddress, saved.Network)
			return nil
		}

		if network == "" {
			return fmt.Errorf("--network or --token is required")
		}
		if r, err := e.chain.Reader(network); err == nil {
			if isContract, err := r.IsContract(ctx, args[0]); err == nil && !isContract {
				u.Warn("%s has no code on %s", args[0], network)
			}
		}
		res, err := e.abis.Resolve(ctx, abiresolver.Request{
			Address: args[0],
			Network: network,
			TokenID: tc.TokenID,
			Keys:    tc.Keys,
		})
		if err != nil {
			return err
		}
		if config.JSONOutput {
			return printJSON(res.Record)
		}
		u.KeyValue([][2]string{
			{"Contract", args[0]},
			{"Network", network},
			{"Source", string(res.Record.Source)},
		})
		rows := [][]string{}
		for name, m := range res.ABI.Methods {
			inputs := make([]string, 0, len(m.Inputs))
			for _, in := range m.Inputs {
				inputs = append(inputs, in.Type.String())
			}
			rows = append(rows, []string{name, strings.Join(inputs, ", "), string(m.StateMutability)})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		u.Table([]string{"Method", "Inputs", "Mutability"}, rows)
		return nil
	},
}

func init() {
	abiCmd.Flags().StringVarP(&config.UploadFile, "upload", "u", "", "json file holding the ABI to store for the contract")
	abiCmd.Flags().BoolVarP(&config.JSONOutput, "json", "j", false, "print the stored record as json")
	rootCmd.AddCommand(abiCmd)
}
