package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/vigil/control"
	"github.com/example/vigil/logger"
	"github.com/example/vigil/version"
)

// McpCmd represents the mcp command - MCP control surface
var McpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol control surface",
	Long: `Expose watch management over the Model Context Protocol.

An MCP-capable agent connected to this server can register, list, inspect
and cancel watches with tool calls instead of shelling out to the CLI.

Tools:
  watch_register - Register a watch
  watch_list     - List watches
  watch_status   - Get a single watch
  watch_cancel   - Cancel a watch
  trigger_list   - List available triggers

Example:
  vigil mcp serve    # Serve MCP over stdio`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// McpServeCmd serves the control API over stdio
var McpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API over MCP stdio transport",
	Long: `Serve the control API over MCP stdio transport.

Runs until the client closes the connection. Logs go to stderr as JSON so
stdout stays clean for the protocol.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, cleanup, err := openControlAPI()
		if err != nil {
			return err
		}
		defer cleanup()

		// Triggers dropped in or removed mid-session must show up in
		// trigger_list; keep the registry cache fresh for as long as we serve
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := api.WatchTriggers(ctx); err != nil {
			logger.Warnw("Trigger directory watching unavailable", "error", err)
		}

		mcpServer := control.NewMCPServer(api, version.Get().Version)
		return mcpServer.Serve()
	},
}

func init() {
	McpCmd.AddCommand(McpServeCmd)
}
