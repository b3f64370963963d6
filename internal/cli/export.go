package cli

import (
	"fmt"
	"os"

	gcal "google.golang.org/api/calendar/v3"
	"github.com/spf13/cobra"

	"github.com/akrasniqi/calpush/internal/event"
	"github.com/akrasniqi/calpush/internal/ics"
	"github.com/akrasniqi/calpush/internal/schedule"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the schedule as an iCalendar file",
	Long: `Map the schedule through the configured color scheme and timezone and
write the result as an .ics file. No network access; useful for checking
what a sync would push, or for importing the schedule elsewhere.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport()
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "schedule.ics", "Output file")
	rootCmd.AddCommand(exportCmd)
}

func runExport() error {
	cfg, loc, err := loadSettings()
	if err != nil {
		return err
	}
	entries, err := schedule.Load(schedulePath)
	if err != nil {
		return err
	}

	var events []*gcal.Event
	for _, entry := range entries {
		ev, err := event.Map(entry, cfg.ColorScheme, loc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping invalid entry %q: %v\n", entry.Name, err)
			continue
		}
		events = append(events, ev)
	}

	f, err := os.Create(exportOut)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := ics.Write(f, events); err != nil {
		return err
	}
	fmt.Printf("Wrote %d event(s) to %s\n", len(events), exportOut)
	return nil
}
