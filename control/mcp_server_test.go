package control

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vigil/watch"
)

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestMCPRegisterQuotedParams(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "issue-labeled")
	server := NewMCPServer(api, "test")

	// A quoted argument keeps its spaces; the rest split as usual
	result, err := server.handleRegister(context.Background(), toolRequest("watch_register", map[string]any{
		"trigger":         "issue-labeled",
		"prompt_template": "Triage it",
		"params":          `owner/repo "help wanted"`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	watches, err := api.List(watch.StatusActive)
	require.NoError(t, err)
	require.Len(t, watches, 1)
	assert.Equal(t, []string{"owner/repo", "help wanted"}, watches[0].Params)
}

func TestMCPRegisterBadQuoting(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "ping")
	server := NewMCPServer(api, "test")

	result, err := server.handleRegister(context.Background(), toolRequest("watch_register", map[string]any{
		"trigger":         "ping",
		"prompt_template": "p",
		"params":          `"unterminated`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	watches, err := api.List("")
	require.NoError(t, err)
	assert.Empty(t, watches)
}

func TestMCPRegisterMissingRequired(t *testing.T) {
	api, _ := newTestAPI(t)
	server := NewMCPServer(api, "test")

	result, err := server.handleRegister(context.Background(), toolRequest("watch_register", map[string]any{
		"trigger": "ping",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPStatusNotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	server := NewMCPServer(api, "test")

	result, err := server.handleStatus(context.Background(), toolRequest("watch_status", map[string]any{
		"watch_id": "WCH_000000000000",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
