package cli

import (
	"github.com/spf13/cobra"
)

var clearDryRun bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every event this tool created",
	Long: `Delete all remote events carrying the calpush marker property,
regardless of the current schedule. Events created by anything else are
never touched, even in the same date range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClear(clearDryRun)
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearDryRun, "dry-run", false, "List what would be deleted without deleting")
	rootCmd.AddCommand(clearCmd)
}

func runClear(dryRun bool) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	_, err = engine.Clear(dryRun)
	return err
}
