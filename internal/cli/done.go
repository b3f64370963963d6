package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doneUndo bool

var doneCmd = &cobra.Command{
	Use:   "done NAME",
	Short: "Mark today's event as done",
	Long: `Mark today's event matching NAME as done, using the completion
strategy from the config: recolor to the done color, or prefix the title.

Examples:
  calpush done "Deep Work 1"
  calpush done "Gym" --undo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDone(args[0], doneUndo)
	},
}

func init() {
	doneCmd.Flags().BoolVar(&doneUndo, "undo", false, "Reverse the completion transform instead")
	rootCmd.AddCommand(doneCmd)
}

func runDone(name string, undo bool) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}

	if undo {
		ev, err := engine.UndoDone(name)
		if err != nil {
			return err
		}
		fmt.Printf("○ Reopened: %s\n", ev.Summary)
		return nil
	}

	ev, err := engine.MarkDone(name)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Marked done: %s\n", ev.Summary)
	return nil
}
