package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tranvictor/vestingscope/api"
	"github.com/tranvictor/vestingscope/common"
	"github.com/tranvictor/vestingscope/config"
	"github.com/tranvictor/vestingscope/ui"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkAddressArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one address, got %d", len(args))
	}
	if !common.IsAddress(args[0]) {
		return fmt.Errorf("%s is not a valid address", args[0])
	}
	return nil
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [wallet]",
	Short: "Show the vesting of a wallet across every vesting contract of the token",
	Long: `Reads the vesting schedules the wallet holds in every active vesting contract
of the token. Cached results are used unless --force is given.`,
	Args: checkAddressArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEngine(ctx, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer e.Close()
		tc, err := e.tokenContext(ctx)
		if err != nil {
			return err
		}

		u := ui.NewTerminalUI()
		stop := u.Spinner(fmt.Sprintf("Reading vesting of %s...", common.ShortAddress(args[0])))
		summary, err := e.resolver.ResolveWalletVesting(ctx, tc, args[0], config.Network, config.ForceRefresh)
		stop()
		if err != nil {
			return err
		}
		if config.JSONOutput {
			return printJSON(api.NewVestingInfo(summary))
		}
		ui.PrintWalletSummary(u, summary)
		ui.PrintDebugLog(u, summary)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [wallet]",
	Short: "Refetch the vesting of a wallet in one contract from chain",
	Args:  checkAddressArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !common.IsAddress(config.Contract) {
			return fmt.Errorf("--contract must be a valid address")
		}
		ctx := cmd.Context()
		e, err := newEngine(ctx, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer e.Close()
		tc, err := e.tokenContext(ctx)
		if err != nil {
			return err
		}

		u := ui.NewTerminalUI()
		stop := u.Spinner("Refreshing from chain...")
		cv, err := e.resolver.RefreshBeneficiary(ctx, tc, config.Contract, args[0], config.Network)
		stop()
		if err != nil {
			return err
		}
		if config.JSONOutput {
			return printJSON(cv)
		}
		if cv.Aggregate.Failed() {
			u.Error("%s", cv.Aggregate.Error)
			return nil
		}
		u.Success("Refreshed %s in %s", args[0], cv.Contract.Address)
		u.KeyValue([][2]string{
			{"Total", ui.FormatAmount(cv.Aggregate.Total, ui.AmountPlaces) + " " + cv.Token.Symbol},
			{"Claimable", ui.FormatAmount(cv.Aggregate.Releasable, ui.AmountPlaces)},
			{"Released", ui.FormatAmount(cv.Aggregate.Released, ui.AmountPlaces)},
			{"Remaining", ui.FormatAmount(cv.Aggregate.Remaining, ui.AmountPlaces)},
			{"Schedules", fmt.Sprintf("%d", len(cv.Aggregate.Schedules))},
		})
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [contract]",
	Short: "Show the vesting of many beneficiaries of one contract",
	Args:  checkAddressArg,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(config.Beneficiaries) == 0 {
			return fmt.Errorf("at least one --beneficiary is required")
		}
		ctx := cmd.Context()
		e, err := newEngine(ctx, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer e.Close()
		tc, err := e.tokenContext(ctx)
		if err != nil {
			return err
		}

		u := ui.NewTerminalUI()
		stop := u.Spinner(fmt.Sprintf("Reading %d beneficiaries...", len(config.Beneficiaries)))
		summary, err := e.resolver.ResolveContractBeneficiaries(ctx, tc, args[0], config.Network, config.Beneficiaries, config.ForceRefresh)
		stop()
		if err != nil {
			return err
		}
		if config.JSONOutput {
			return printJSON(summary)
		}
		ui.PrintContractSummary(u, summary)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{inspectCmd, refreshCmd, summaryCmd} {
		c.Flags().BoolVarP(&config.JSONOutput, "json", "j", false, "print the result as json")
	}
	inspectCmd.Flags().BoolVarP(&config.ForceRefresh, "force", "f", false, "ignore cached results and read from chain")
	summaryCmd.Flags().BoolVarP(&config.ForceRefresh, "force", "f", false, "ignore cached results and read from chain")
	summaryCmd.Flags().StringSliceVarP(&config.Beneficiaries, "beneficiary", "b", nil, "beneficiary addresses, repeated or comma separated")
	refreshCmd.Flags().StringVarP(&config.Contract, "contract", "a", "", "vesting contract to refresh")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(summaryCmd)
}
