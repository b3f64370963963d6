package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akrasniqi/calpush/internal/schedule"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the schedule to Google Calendar",
	Long: `Push the schedule file to Google Calendar, skipping entries that were
already pushed (matched by source key) and repairing colors that drifted
from the configured scheme.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(syncDryRun)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Plan only; issue no writes")
	rootCmd.AddCommand(syncCmd)
}

func runSync(dryRun bool) error {
	entries, err := schedule.Load(schedulePath)
	if err != nil {
		return err
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}

	_, result, err := engine.Sync(entries, dryRun)
	if err != nil {
		return err
	}

	// Per-item failures were already logged; they don't fail the run.
	if len(result.Failed) > 0 {
		fmt.Printf("Completed with %d failure(s): created %d, skipped %d\n",
			len(result.Failed), result.Created, result.Skipped)
	}
	return nil
}
