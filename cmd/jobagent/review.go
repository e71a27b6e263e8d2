package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
	"github.com/PaterSantyago/agent-null-null-job/internal/ui"
)

var reviewCriteria string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse stored jobs and their scores (TUI)",
	Long:  "Read-only browser: matches at or above scoring.min_score next to everything stored for the criteria.",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewCriteria, "criteria", "", "criteria id (default: all stored jobs)")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	if !ui.Interactive() {
		return errors.New("review needs an interactive terminal")
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	// Log lines would corrupt the alt screen.
	a, err := newApp(ctx, appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	title := "all criteria"
	if reviewCriteria != "" {
		c, ok := a.cfg.FindCriteria(reviewCriteria)
		if !ok {
			_, err := a.criteria(reviewCriteria)
			return err
		}
		title = c.DisplayName()
	}

	var jobs []model.Job
	err = ui.Spin(ctx, "Loading stored jobs...", func(ctx context.Context) error {
		var lerr error
		jobs, lerr = a.store.ListJobs(ctx, reviewCriteria)
		return lerr
	})
	if err != nil {
		return err
	}
	return ui.RunReview(title, jobs, a.cfg.Scoring.MinScore)
}
