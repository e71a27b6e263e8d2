package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/ui"
)

var scoreCriteria string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score stored jobs without scraping",
	Long:  "Scores the jobs already stored for a criteria against the current profile, reusing cached scores.",
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreCriteria, "criteria", "", "criteria id (default: every enabled criteria)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	criteria, err := a.criteria(scoreCriteria)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(a.notifier(), true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, c := range criteria {
		jobs, err := orch.ScoreStored(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d jobs at or above %d\n", c.DisplayName(), len(jobs), a.cfg.Scoring.MinScore)
		if len(jobs) > 0 {
			fmt.Fprintln(out, ui.JobsTable(jobs))
		}
	}
	return nil
}
