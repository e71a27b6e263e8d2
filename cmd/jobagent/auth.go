package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var authForce bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to the job site",
	Long:  "Checks the stored session against the site and, if it is missing or rejected, asks you to log in and paste the session cookie.",
	RunE:  runAuth,
}

func init() {
	authCmd.Flags().BoolVar(&authForce, "force", false, "discard the stored session and log in again")
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.sessions(a.scraper()).Authenticate(ctx, authForce)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "authenticated; session valid until %s\n", s.ExpiresAt.Local().Format(time.DateTime))
	return nil
}
