package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/lock"
	"github.com/PaterSantyago/agent-null-null-job/internal/ui"
)

const statusRuns = 10

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, lock, store and recent runs",
	Long:  "Read-only overview. Does not take the run lock and does not contact the job site.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.sessions(nil).Inspect(ctx)
	if err != nil {
		return err
	}
	counts, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	runs, err := a.store.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) > statusRuns {
		runs = runs[:statusRuns]
	}

	report := ui.StatusReport{
		Session: ui.SessionInfo{
			Present:   sess.Present,
			Usable:    sess.Usable,
			ExpiresAt: sess.ExpiresAt,
			Age:       sess.Age,
		},
		Counts:   counts,
		Runs:     runs,
		Criteria: a.cfg.Criteria,
		Now:      time.Now(),
	}
	if holder, held := lock.Status(a.cfg.Lock.Path); held {
		report.Lock = ui.LockInfo{Held: true, PID: holder.PID, StartedAt: holder.StartedAt}
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderStatus(report))
	return nil
}
