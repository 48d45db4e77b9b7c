package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/config"
	"github.com/jonathan/autoapply/internal/observability"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Search every configured portal and apply to matching listings",
	Long: `Logs in to each portal named in the config's searches (once per portal), runs every
search in order and pushes each new listing through its application form until the
apply limit is reached.

Command-line flags override config file values.`,
	RunE: runCmd,
}

var (
	runLimit    int
	runMaxYears int
	runHeadless bool
)

func init() {
	runCommand.Flags().IntVar(&runLimit, "limit", 0, "Maximum successful applications this run")
	runCommand.Flags().IntVar(&runMaxYears, "max-years", 0, "Skip listings asking for more years of experience")
	runCommand.Flags().BoolVar(&runHeadless, "headless", false, "Run Chrome without a window")

	rootCmd.AddCommand(runCommand)
}

// applyRunOverrides copies explicitly set flags onto cfg.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("limit") {
		cfg.ApplyLimit = runLimit
	}
	if cmd.Flags().Changed("max-years") {
		cfg.MaxExperienceYears = runMaxYears
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = runHeadless
	}
}

func runCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Searches) == 0 {
		return fmt.Errorf("no searches configured: add a 'searches' list to the config file")
	}

	logger := cfg.NewLogger(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e, err := startEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	logger.Info("starting run", "run_id", e.orch.RunID(), "searches", len(cfg.Searches),
		"portals", cfg.Portals(), "limit", cfg.ApplyLimit)
	sum, runErr := e.orch.Run(ctx, cfg.Searches)

	observability.NewPrinter(cmd.OutOrStdout()).PrintRunSummary(sum, cfg.ApplyLimit)
	return runErr
}
