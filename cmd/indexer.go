package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/indexer"
	"github.com/pointscan-io/pointscan/log"
	"github.com/pointscan-io/pointscan/metrics"
	"github.com/pointscan-io/pointscan/orm"
	"github.com/pointscan-io/pointscan/sentry"
)

func indexerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Run the points accrual indexer",
		Long: `
Run the points accrual indexer.

This command follows the tracked token's Transfer events, maintains a point
snapshot per touched account and re-accrues all registered accounts on the
sweep interval.

Database, chain, accrual and logging options come from environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetConfig()
			if err != nil {
				return err
			}

			logger := log.NewLogger(cfg)

			if err := sentry.Init(cfg); err != nil {
				return err
			}
			defer sentry.Flush()

			metrics.Init(cfg.GetChainId())
			metricsServer := metrics.NewServer(cfg, logger)
			go func() {
				if err := metricsServer.Start(); err != nil {
					logger.Error("metrics server stopped", slog.Any("error", err))
				}
			}()

			db, err := orm.OpenDB(cfg.GetDBConfig(), logger)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			if err := db.Migrate(); err != nil {
				return err
			}
			if sqlDB, err := db.SqlDB(); err == nil {
				metrics.RegisterDBStats(sqlDB)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return indexer.New(cfg, logger, db).Run(ctx)
		},
	}

	return cmd
}
