package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kballard/go-shellquote"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/example/vigil/errors"
)

// MCPServer exposes the control API via Model Context Protocol so a
// tool-calling agent can manage watches directly.
type MCPServer struct {
	api    *API
	server *server.MCPServer
}

// NewMCPServer creates an MCP server over the control API.
func NewMCPServer(api *API, version string) *MCPServer {
	s := &MCPServer{api: api}

	s.server = server.NewMCPServer(
		"vigil",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools()
	return s
}

// registerTools registers all MCP tools for watch operations
func (s *MCPServer) registerTools() {
	registerTool := mcp.NewTool("watch_register",
		mcp.WithDescription("Register a watch: poll a trigger until it fires, then run the action prompt"),
		mcp.WithString("trigger",
			mcp.Required(),
			mcp.Description("Trigger name (an executable in the triggers directory)"),
		),
		mcp.WithString("prompt_template",
			mcp.Required(),
			mcp.Description("Action prompt; {{key}} placeholders are filled from the trigger payload"),
		),
		mcp.WithString("params",
			mcp.Description("Arguments passed to the trigger, shell-quoted (quote an argument to keep spaces in it)"),
		),
		mcp.WithString("working_dir",
			mcp.Description("Working directory for the action process"),
		),
		mcp.WithNumber("interval_seconds",
			mcp.Description("Polling interval (default from config)"),
		),
		mcp.WithNumber("ttl_hours",
			mcp.Description("Hours until the watch expires unfired (default from config)"),
		),
	)
	s.server.AddTool(registerTool, s.handleRegister)

	listTool := mcp.NewTool("watch_list",
		mcp.WithDescription("List watches, newest first"),
		mcp.WithString("status",
			mcp.Description("Filter by status: active, fired, expired or cancelled"),
		),
	)
	s.server.AddTool(listTool, s.handleList)

	statusTool := mcp.NewTool("watch_status",
		mcp.WithDescription("Get a single watch by ID"),
		mcp.WithString("watch_id",
			mcp.Required(),
			mcp.Description("Watch ID (WCH_...)"),
		),
	)
	s.server.AddTool(statusTool, s.handleStatus)

	cancelTool := mcp.NewTool("watch_cancel",
		mcp.WithDescription("Cancel an active watch"),
		mcp.WithString("watch_id",
			mcp.Required(),
			mcp.Description("Watch ID (WCH_...)"),
		),
	)
	s.server.AddTool(cancelTool, s.handleCancel)

	triggersTool := mcp.NewTool("trigger_list",
		mcp.WithDescription("List available triggers with their metadata"),
	)
	s.server.AddTool(triggersTool, s.handleListTriggers)
}

// handleRegister handles watch_register tool calls
func (s *MCPServer) handleRegister(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	triggerName, err := request.RequireString("trigger")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	promptTemplate, err := request.RequireString("prompt_template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := RegisterRequest{
		Trigger:         triggerName,
		PromptTemplate:  promptTemplate,
		WorkingDir:      request.GetString("working_dir", ""),
		IntervalSeconds: request.GetInt("interval_seconds", 0),
		TTLHours:        request.GetInt("ttl_hours", 0),
	}
	if params := request.GetString("params", ""); params != "" {
		// Shell-style splitting so a single argument may contain spaces
		split, err := shellquote.Split(params)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid params: %v", err)), nil
		}
		req.Params = split
	}

	w, err := s.api.Register(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to register watch: %v", err)), nil
	}

	return jsonResult(w)
}

// handleList handles watch_list tool calls
func (s *MCPServer) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := request.GetString("status", "")

	watches, err := s.api.List(status)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list watches: %v", err)), nil
	}

	if len(watches) == 0 {
		return mcp.NewToolResultText("No watches found"), nil
	}

	return jsonResult(watches)
}

// handleStatus handles watch_status tool calls
func (s *MCPServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	watchID, err := request.RequireString("watch_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	w, err := s.api.Status(watchID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return mcp.NewToolResultError(fmt.Sprintf("Watch %s not found", watchID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get watch: %v", err)), nil
	}

	return jsonResult(w)
}

// handleCancel handles watch_cancel tool calls
func (s *MCPServer) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	watchID, err := request.RequireString("watch_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	w, err := s.api.Cancel(watchID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel watch: %v", err)), nil
	}

	return jsonResult(w)
}

// handleListTriggers handles trigger_list tool calls
func (s *MCPServer) handleListTriggers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	triggers, err := s.api.ListTriggers()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list triggers: %v", err)), nil
	}

	if len(triggers) == 0 {
		return mcp.NewToolResultText("No triggers installed"), nil
	}

	return jsonResult(triggers)
}

// jsonResult renders v as an indented JSON tool result
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Serve starts the MCP server using stdio transport
func (s *MCPServer) Serve() error {
	return server.ServeStdio(s.server)
}
