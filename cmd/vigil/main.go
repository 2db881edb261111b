package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/vigil/cmd/vigil/commands"
	"github.com/example/vigil/logger"
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Vigil - watch lifecycle engine",
	Long: `Vigil - deferred-intent watches for agent workflows.

A watch pairs a trigger (an executable polled on a schedule) with an action
(a prompt handed to an AI agent process once the trigger fires). The daemon
polls active watches, fires at most once per watch, and persists the action
result for later pickup.

Available commands:
  daemon   - Run the polling daemon
  watch    - Register, list, inspect and cancel watches
  triggers - List installed triggers
  mcp      - Serve the control API over Model Context Protocol
  db       - Database operations

Examples:
  vigil daemon start                                # Run daemon in foreground
  vigil watch add npm-release lodash \
    --prompt "Summarize what changed in {{version}}"
  vigil watch ls --status active                    # List active watches
  vigil watch cancel WCH_a1b2c3d4e5f6               # Cancel a watch
  vigil triggers ls                                 # List installed triggers`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// MCP talks JSON-RPC on stdout; keep logs machine-readable on stderr
		jsonLogs := cmd.Name() == "serve"
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.TriggersCmd)
	rootCmd.AddCommand(commands.McpCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
