// Package cli wires the cobra commands: sync (the default), clear, done,
// export and login.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/akrasniqi/calpush/internal/auth"
	calclient "github.com/akrasniqi/calpush/internal/calendar"
	"github.com/akrasniqi/calpush/internal/config"
	"github.com/akrasniqi/calpush/internal/sync"
)

var (
	configPath      string
	credentialsPath string
	tokenPath       string
	schedulePath    string
	verbose         bool

	// Legacy-style mode flags on the root command, so
	// `calpush --dry-run`, `calpush --clear` and `calpush --mark-done NAME`
	// all work without a subcommand.
	rootDryRun   bool
	rootClear    bool
	rootMarkDone string
)

var rootCmd = &cobra.Command{
	Use:   "calpush",
	Short: "Push a recurring schedule to Google Calendar",
	Long: `calpush batch-synchronizes a schedule file with Google Calendar:
it creates events, colors them by category, skips duplicates it already
pushed, and can mark events done or clear everything it created.

Run without a subcommand to sync the schedule.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case rootClear:
			return runClear(rootDryRun)
		case rootMarkDone != "":
			return runDone(rootMarkDone, false)
		default:
			return runSync(rootDryRun)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "credentials.json", "Path to the Google OAuth credentials file")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token", "token.json", "Path to the stored OAuth token")
	rootCmd.PersistentFlags().StringVar(&schedulePath, "schedule", "schedule.json", "Path to the schedule file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (show DEBUG logs)")

	rootCmd.Flags().BoolVar(&rootDryRun, "dry-run", false, "Plan only; issue no writes")
	rootCmd.Flags().BoolVar(&rootClear, "clear", false, "Delete every event this tool created")
	rootCmd.Flags().StringVar(&rootMarkDone, "mark-done", "", "Mark today's event with this name as done")
}

// Execute runs the CLI. Setup failures and mark-done targeting failures exit
// non-zero; partial per-item failures are reported but still exit zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings loads the run's read-only context: config plus its resolved
// location. Config problems are fatal before any write happens.
func loadSettings() (*config.Config, *time.Location, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve timezone: %w", err)
	}
	return cfg, loc, nil
}

// newEngine performs the full setup chain: config, auth, gateway, engine.
// Everything here runs before the first calendar write, so any failure aborts
// the invocation cleanly.
func newEngine() (*sync.Engine, error) {
	cfg, loc, err := loadSettings()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	oauthConfig, err := auth.OAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	httpClient, err := auth.Client(ctx, oauthConfig, auth.NewFileTokenStore(tokenPath))
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	client, err := calclient.NewClient(ctx, httpClient)
	if err != nil {
		return nil, err
	}

	return sync.NewEngine(client, cfg, loc, verbose), nil
}
