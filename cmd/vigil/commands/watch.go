package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/example/vigil/am"
	"github.com/example/vigil/control"
	"github.com/example/vigil/logger"
	"github.com/example/vigil/trigger"
	"github.com/example/vigil/watch"
)

// WatchCmd represents the watch command - watch lifecycle management
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watches",
	Long: `Watch management.

A watch polls a trigger until it fires, then runs the action prompt once.
Watches end in exactly one terminal state: fired, expired or cancelled.

Commands:
  vigil watch add <trigger> [params...]  # Register a watch
  vigil watch ls                         # List watches
  vigil watch status <id>                # Show watch details
  vigil watch cancel <id>                # Cancel an active watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// WatchAddCmd registers a new watch
var WatchAddCmd = &cobra.Command{
	Use:   "add <trigger> [params...]",
	Short: "Register a new watch",
	Long: `Register a watch polling the given trigger.

The prompt may contain {{key}} placeholders filled from the JSON payload
the trigger emits when it fires.

Examples:
  vigil watch add npm-release lodash \
    --prompt "Summarize what changed in lodash {{version}}"
  vigil watch add ci-green --prompt "Merge the release PR" \
    --interval 60 --ttl 12 --dir ~/src/myrepo`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		workingDir, _ := cmd.Flags().GetString("dir")
		interval, _ := cmd.Flags().GetInt("interval")
		ttl, _ := cmd.Flags().GetInt("ttl")

		api, cleanup, err := openControlAPI()
		if err != nil {
			return err
		}
		defer cleanup()

		w, err := api.Register(control.RegisterRequest{
			Trigger:         args[0],
			Params:          args[1:],
			PromptTemplate:  prompt,
			WorkingDir:      workingDir,
			IntervalSeconds: interval,
			TTLHours:        ttl,
		})
		if err != nil {
			return err
		}

		pterm.Printf("%s Watch %s registered\n", pterm.LightGreen("✓"), pterm.LightMagenta(w.ID))
		pterm.Printf("  Trigger:  %s %v\n", w.Trigger, w.Params)
		pterm.Printf("  Interval: %ds\n", w.IntervalSeconds)
		pterm.Printf("  Expires:  %s\n", w.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

// WatchLsCmd lists watches
var WatchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List watches",
	Long: `List watches, newest first.

Status filters:
  active    - Being polled on schedule
  fired     - Trigger condition met, action executed
  expired   - TTL elapsed without firing
  cancelled - Cancelled before firing

Examples:
  vigil watch ls                  # All watches
  vigil watch ls --status active  # Only active watches`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		api, cleanup, err := openControlAPI()
		if err != nil {
			return err
		}
		defer cleanup()

		watches, err := api.List(status)
		if err != nil {
			return err
		}

		if len(watches) == 0 {
			fmt.Println("No watches found")
			return nil
		}

		fmt.Printf("%-18s %-10s %-20s %-10s %s\n", "WATCH ID", "STATUS", "TRIGGER", "INTERVAL", "CREATED")
		fmt.Printf("%-18s %-10s %-20s %-10s %s\n", "--------", "------", "-------", "--------", "-------")
		for _, w := range watches {
			fmt.Printf("%-18s %-10s %-20s %-10s %s\n",
				w.ID,
				colorStatus(w.Status),
				truncate(w.Trigger, 20),
				fmt.Sprintf("%ds", w.IntervalSeconds),
				w.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Printf("\nTotal: %d watch(es)\n", len(watches))
		return nil
	},
}

// WatchStatusCmd shows a single watch
var WatchStatusCmd = &cobra.Command{
	Use:   "status <watch-id>",
	Short: "Show watch details",
	Long: `Display detailed information for a watch.

Example:
  vigil watch status WCH_a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		api, cleanup, err := openControlAPI()
		if err != nil {
			return err
		}
		defer cleanup()

		w, err := api.Status(args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			data, err := json.MarshalIndent(w, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Watch %s\n", w.ID)
		fmt.Printf("  Status:   %s\n", colorStatus(w.Status))
		fmt.Printf("  Trigger:  %s %v\n", w.Trigger, w.Params)
		fmt.Printf("  Prompt:   %s\n", w.PromptTemplate)
		if w.WorkingDir != "" {
			fmt.Printf("  Dir:      %s\n", w.WorkingDir)
		}
		fmt.Printf("  Interval: %ds\n", w.IntervalSeconds)
		fmt.Printf("\n")
		fmt.Printf("  Created:  %s\n", w.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  Expires:  %s\n", w.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
		if w.LastCheckedAt != nil {
			fmt.Printf("  Checked:  %s\n", w.LastCheckedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if w.FiredAt != nil {
			fmt.Printf("  Fired:    %s\n", w.FiredAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// WatchCancelCmd cancels an active watch
var WatchCancelCmd = &cobra.Command{
	Use:   "cancel <watch-id>",
	Short: "Cancel an active watch",
	Long: `Cancel an active watch. Cancellation is terminal: the watch is never
polled again and cannot be reactivated.

Example:
  vigil watch cancel WCH_a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, cleanup, err := openControlAPI()
		if err != nil {
			return err
		}
		defer cleanup()

		w, err := api.Cancel(args[0])
		if err != nil {
			return err
		}

		pterm.Printf("%s Watch %s cancelled\n", pterm.LightGreen("✓"), pterm.LightMagenta(w.ID))
		return nil
	},
}

func init() {
	WatchAddCmd.Flags().String("prompt", "", "Action prompt template ({{key}} filled from trigger payload)")
	WatchAddCmd.Flags().String("dir", "", "Working directory for the action process")
	WatchAddCmd.Flags().Int("interval", 0, "Polling interval in seconds (default from config)")
	WatchAddCmd.Flags().Int("ttl", 0, "Hours until expiry (default from config)")
	WatchAddCmd.MarkFlagRequired("prompt")

	WatchLsCmd.Flags().String("status", "", "Filter by status (active, fired, expired, cancelled)")
	WatchStatusCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	WatchCmd.AddCommand(WatchAddCmd)
	WatchCmd.AddCommand(WatchLsCmd)
	WatchCmd.AddCommand(WatchStatusCmd)
	WatchCmd.AddCommand(WatchCancelCmd)
}

// openControlAPI wires a control API over the configured database and
// trigger directory. The returned cleanup closes the database.
func openControlAPI() (*control.API, func(), error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("failed to create storage directories: %w", err)
	}

	database, err := openDatabase("")
	if err != nil {
		return nil, nil, err
	}

	store := watch.NewStore(database)
	runner := trigger.NewRunner(cfg.TriggersDir(), cfg.ExecTimeout(), logger.Logger)
	registry := trigger.NewRegistry(runner, logger.Logger)
	api := control.NewAPI(store, registry, cfg, logger.Logger)

	return api, func() { database.Close() }, nil
}

// colorStatus renders a watch status with its conventional color
func colorStatus(status string) string {
	switch status {
	case watch.StatusActive:
		return pterm.LightGreen(status)
	case watch.StatusFired:
		return pterm.LightMagenta(status)
	case watch.StatusExpired:
		return pterm.Yellow(status)
	case watch.StatusCancelled:
		return pterm.Gray(status)
	}
	return status
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
