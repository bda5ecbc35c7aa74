package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pointscan-io/pointscan/api"
	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/log"
	"github.com/pointscan-io/pointscan/orm"
)

func apiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the points API server",
		Long: `
Run the points API server.

This command serves the indexed point snapshots over HTTP: current points and
snapshot history per account, plus indexer status.

Database, chain, logging, and server options come from environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.GetConfig()
			if err != nil {
				return err
			}

			logger := log.NewLogger(cfg)

			db, err := orm.OpenDB(cfg.GetDBConfig(), logger)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			server := api.New(cfg, logger, db)

			// graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				logger.Info("shutting down API server...")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
					os.Exit(1)
				}
				os.Exit(0)
			}()

			return server.Start()
		},
	}

	return cmd
}
