package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pointscan-io/pointscan/config"
)

func SetVersion(version, commitHash string) {
	config.SetBuildInfo(version, commitHash)
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pointscan",
		Short:   "Token points accrual indexer",
		Version: config.Version,
	}

	cmd.AddCommand(indexerCmd())
	cmd.AddCommand(apiCmd())

	return cmd
}
