package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
	"github.com/PaterSantyago/agent-null-null-job/internal/pipeline"
	"github.com/PaterSantyago/agent-null-null-job/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run every enabled criteria on the configured cron schedule",
	Long:  "Runs once immediately, then on each schedule.cron tick, until SIGINT/SIGTERM. Holds the run lock for its whole lifetime.",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	n := a.notifier()
	orch, err := a.orchestrator(n, true)
	if err != nil {
		return err
	}

	runOne := func(ctx context.Context, c model.JobCriteria) error {
		run, err := orch.Run(ctx, c, pipeline.RunOptions{})
		if err != nil {
			a.alertFailure(ctx, n, run, err)
		}
		return err
	}
	sched, err := scheduler.New(a.cfg.Schedule.Cron, a.cfg.EnabledCriteria(), runOne, a.logger)
	if err != nil {
		return err
	}

	if err := n.SendStatusUpdate(ctx, fmt.Sprintf("jobagent scheduler started (%s)", a.cfg.Schedule.Cron)); err != nil {
		a.logger.Warn("status update failed", "error", err)
	}
	if err := sched.Run(ctx); err != nil {
		return err
	}
	a.logger.Info("goodbye")
	return nil
}
