package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

var purgeType string

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Clear cached state",
	Long: "--type cache clears the score history and the seen-set, so postings are scraped and scored again.\n" +
		"--type all clears everything, including stored jobs, runs and the session.",
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().StringVar(&purgeType, "type", string(model.PurgeCache), "what to clear: cache or all")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	scope := model.PurgeScope(purgeType)
	if scope != model.PurgeCache && scope != model.PurgeAll {
		return model.NewError(model.StageConfig, model.KindConfigInvalid, fmt.Sprintf("--type must be cache or all, got %q", purgeType), nil)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := newApp(ctx, appOptions{lock: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Purge(ctx, scope); err != nil {
		return err
	}
	a.logger.Info("store purged", "scope", scope)
	fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", scope)
	return nil
}
