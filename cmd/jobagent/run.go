package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/pipeline"
)

var (
	runCriteria string
	runDryRun   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: "Authenticates, scrapes postings from the last fresh window, extracts and scores them, then sends a digest.\n" +
		"With --dry-run it stops after scraping: no model calls, no notifications.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCriteria, "criteria", "", "criteria id to run (default: every enabled criteria)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "scrape only; skip extraction, scoring and notification")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	criteria, err := a.criteria(runCriteria)
	if err != nil {
		return err
	}
	n := a.notifier()
	orch, err := a.orchestrator(n, !runDryRun)
	if err != nil {
		return err
	}

	for _, c := range criteria {
		run, err := orch.Run(ctx, c, pipeline.RunOptions{DryRun: runDryRun})
		if err != nil {
			a.alertFailure(ctx, n, run, err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d found, %d processed, %d matched (run %s)\n",
			c.DisplayName(), run.JobsFound, run.JobsProcessed, run.JobsScored, run.ID)
	}
	return nil
}
