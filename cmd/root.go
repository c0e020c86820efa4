// Copyright © 2018 Victor Tran
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tranvictor/vestingscope/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vestingscope",
	Short: "Resolve and cache token vesting schedules of on-chain vesting contracts",
	Long: fmt.Sprintf(`vestingscope reads the vesting schedules a wallet holds across every vesting
contract registered for a token, normalizes them into totals, released,
claimable and remaining amounts, and caches the result per beneficiary.

It works both as a command line tool and as an HTTP service (vestingscope serve).

Configuration is read from the file given with --config, then overridden by
env vars prefixed with %s, for example:
	%sDB_TYPE, %sDB_DSN
	%sPRIMARY_API_KEY, %sSECONDARY_API_KEY
	%sINTER_CONTRACT_DELAY, %sCALL_TIMEOUT

Contract ABIs are looked up in the database first, then in the bundled seeds,
then on the primary explorer and finally on the secondary explorer. RPC nodes
of a network can be overridden with the env var named by its
node_variable_name setting.`,
		config.EnvPrefix, config.EnvPrefix, config.EnvPrefix, config.EnvPrefix,
		config.EnvPrefix, config.EnvPrefix, config.EnvPrefix,
	),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().StringVarP(&config.ConfigFile, "config", "c", "", "path to the yaml config file")
	rootCmd.PersistentFlags().StringVarP(&config.Network, "network", "k", "", "network of the vesting contracts. Defaults to the network of the token.")
	rootCmd.PersistentFlags().StringVarP(&config.TokenID, "token", "t", "", "id of the token whose vesting contracts are read")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
