package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-pipeline/internal/observability"
)

var statusCommand = &cobra.Command{
	Use:   "status",
	Short: "Show the job index with per-status counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusAll bool

func init() {
	statusCommand.Flags().BoolVarP(&statusAll, "all", "a", false, "List completed jobs too")

	rootCmd.AddCommand(statusCommand)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(os.Stderr)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	idx, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintIndex(idx, statusAll)
	return nil
}
