package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a status update through the configured notifier.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	text := fmt.Sprintf("jobagent test message (%s notifier, %s)", a.cfg.Notification.Type, time.Now().Format(time.DateTime))
	if err := a.notifier().SendStatusUpdate(ctx, text); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "test notification sent")
	return nil
}
