package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tranvictor/vestingscope/api"
	"github.com/tranvictor/vestingscope/store/db"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the vesting API over http",
	Long: `Serves the vesting API:
	GET  /vesting-info?wallet=<address>&network=<name>&force=<bool>
	POST /vesting-info/refresh?wallet=<address>&contract=<address>
	GET  /vesting-summary?contract=<address>&beneficiary=<address>,...
	POST /abi {"contractAddress": ..., "network": ..., "abi": [...]}
	GET  /metrics
	GET  /health
The token is given with the X-Token-Id header or the token query param.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := newEngine(ctx, prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := db.Migrate(ctx, e.db); err != nil {
			return err
		}

		s := api.New(e.resolver, e.abis, e.db, prometheus.DefaultGatherer, e.l.WithField("component", "api"))
		s.ReadTimeout = e.conf.HTTP.ReadTimeout
		s.WriteTimeout = e.conf.HTTP.WriteTimeout
		return s.ListenAndServe(ctx, e.conf.HTTP.Address())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := newEngine(ctx, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer e.Close()
		if err := db.Migrate(ctx, e.db); err != nil {
			return err
		}
		e.l.WithField("db", e.conf.DB.Type).Info("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
