package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sendCriteria string

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a digest of stored matches",
	Long:  "Sends a digest, and alerts if enabled, for stored jobs whose score reaches scoring.min_score.",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendCriteria, "criteria", "", "criteria id (default: every enabled criteria)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	criteria, err := a.criteria(sendCriteria)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator(a.notifier(), false)
	if err != nil {
		return err
	}

	for _, c := range criteria {
		jobs, err := orch.SendStored(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: sent digest with %d jobs\n", c.DisplayName(), len(jobs))
	}
	return nil
}
