package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/observability"
	"github.com/jonathan/autoapply/internal/portal"
	"github.com/jonathan/autoapply/internal/types"
)

var paginateCommand = &cobra.Command{
	Use:   "paginate",
	Short: "Apply page by page through a portal's filtered results",
	Long: `Logs in with EMAIL and PASSWORD (or the portal's own variables), opens the filtered
results URL and applies to every eligible card, moving to the next results page until
the last page or the apply limit is reached.`,
	RunE: paginateCmd,
}

var (
	paginateURL    string
	paginatePortal string
	paginateLimit  int
)

func init() {
	paginateCommand.Flags().StringVar(&paginateURL, "url", "", "Filtered results URL (defaults to filtered_jobs_url from the config)")
	paginateCommand.Flags().StringVar(&paginatePortal, "portal", "", "Portal to paginate (detected from the URL when omitted)")
	paginateCommand.Flags().IntVar(&paginateLimit, "limit", 0, "Maximum successful applications this run")

	rootCmd.AddCommand(paginateCommand)
}

// resolvePaginateTarget picks the results URL and its portal.
func resolvePaginateTarget(url, portalName string) (string, types.Portal, error) {
	if url == "" {
		return "", "", fmt.Errorf("no results URL: pass --url or set filtered_jobs_url in the config")
	}
	if portalName != "" {
		p, err := types.ParsePortal(portalName)
		if err != nil {
			return "", "", err
		}
		return url, p, nil
	}
	p, ok := portal.Detect(url)
	if !ok {
		return "", "", fmt.Errorf("cannot detect portal for %s: pass --portal", url)
	}
	return url, p, nil
}

func paginateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("url") {
		cfg.FilteredJobsURL = paginateURL
	}
	if cmd.Flags().Changed("limit") {
		cfg.ApplyLimit = paginateLimit
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	url, p, err := resolvePaginateTarget(cfg.FilteredJobsURL, paginatePortal)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e, err := startEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	logger.Info("starting paginated run", "run_id", e.orch.RunID(), "portal", p, "url", url, "limit", cfg.ApplyLimit)
	sum, runErr := e.orch.Paginate(ctx, p, url)

	observability.NewPrinter(cmd.OutOrStdout()).PrintRunSummary(sum, cfg.ApplyLimit)
	return runErr
}
