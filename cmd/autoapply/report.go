package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/observability"
)

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Print the applied and not-applied logs",
	RunE:  reportCmd,
}

var reportFailedOnly bool

func init() {
	reportCommand.Flags().BoolVar(&reportFailedOnly, "failed-only", false, "Only print listings that were not applied to")

	rootCmd.AddCommand(reportCommand)
}

func reportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	st, err := openStore(ctx, cfg, cfg.NewLogger(os.Stderr))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	printer := observability.NewPrinter(cmd.OutOrStdout())

	if !reportFailedOnly {
		applied, err := st.ListApplied(ctx)
		if err != nil {
			return fmt.Errorf("failed to read applied log: %w", err)
		}
		printer.PrintAppliedLog(applied)
	}

	failed, err := st.ListFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to read failed log: %w", err)
	}
	printer.PrintFailedLog(failed)
	return nil
}
