package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/vigil/am"
	"github.com/example/vigil/errors"
	vigiltesting "github.com/example/vigil/internal/testing"
	"github.com/example/vigil/trigger"
	"github.com/example/vigil/watch"
)

func newTestAPI(t *testing.T) (*API, string) {
	t.Helper()

	conn := vigiltesting.CreateTestDB(t)
	store := watch.NewStore(conn)

	triggerDir := t.TempDir()
	logger := zap.NewNop().Sugar()
	runner := trigger.NewRunner(triggerDir, time.Second, logger)
	registry := trigger.NewRegistry(runner, logger)

	cfg := &am.Config{
		Watch: am.WatchConfig{
			DefaultTTLHours:        48,
			DefaultIntervalSeconds: 30,
		},
	}

	return NewAPI(store, registry, cfg, logger), triggerDir
}

func writeTrigger(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 1\n"), 0o755))
}

func TestRegister(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "npm-release")

	before := time.Now().UTC()
	w, err := api.Register(RegisterRequest{
		Trigger:        "npm-release",
		Params:         []string{"lodash"},
		PromptTemplate: "Summarize lodash {{version}}",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^WCH_[0-9a-f]{12}$`, w.ID)
	assert.Equal(t, watch.StatusActive, w.Status)
	assert.Equal(t, []string{"lodash"}, w.Params)
	assert.Equal(t, 30, w.IntervalSeconds, "config default applied")
	assert.WithinDuration(t, before.Add(48*time.Hour), w.ExpiresAt, 5*time.Second, "config TTL applied")
	assert.Nil(t, w.LastCheckedAt)

	// And it is durably stored
	got, err := api.Status(w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}

func TestRegisterExplicitOverrides(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "ping")

	w, err := api.Register(RegisterRequest{
		Trigger:         "ping",
		PromptTemplate:  "p",
		IntervalSeconds: 120,
		TTLHours:        2,
	})
	require.NoError(t, err)
	assert.Equal(t, 120, w.IntervalSeconds)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), w.ExpiresAt, 5*time.Second)
}

func TestRegisterValidation(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "ping")

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing trigger", RegisterRequest{PromptTemplate: "p"}},
		{"missing prompt", RegisterRequest{Trigger: "ping"}},
		{"negative interval", RegisterRequest{Trigger: "ping", PromptTemplate: "p", IntervalSeconds: -5}},
		{"negative ttl", RegisterRequest{Trigger: "ping", PromptTemplate: "p", TTLHours: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := api.Register(tt.req)
			assert.True(t, errors.IsInvalidRequestError(err), "want invalid request, got %v", err)
		})
	}

	// Unknown trigger is a not-found, with the name in the message
	_, err := api.Register(RegisterRequest{Trigger: "nope", PromptTemplate: "p"})
	assert.True(t, errors.IsNotFoundError(err), "want not found, got %v", err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRegisterNewlyDroppedTrigger(t *testing.T) {
	api, triggerDir := newTestAPI(t)

	// Warm the listing cache while the directory is empty
	listed, err := api.ListTriggers()
	require.NoError(t, err)
	assert.Empty(t, listed)

	// A trigger dropped in afterwards is registrable without any cache refresh
	writeTrigger(t, triggerDir, "fresh")
	_, err = api.Register(RegisterRequest{Trigger: "fresh", PromptTemplate: "p"})
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "ping")

	a, err := api.Register(RegisterRequest{Trigger: "ping", PromptTemplate: "p"})
	require.NoError(t, err)
	b, err := api.Register(RegisterRequest{Trigger: "ping", PromptTemplate: "p"})
	require.NoError(t, err)

	_, err = api.Cancel(b.ID)
	require.NoError(t, err)

	all, err := api.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := api.List(watch.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	_, err = api.List("pending")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestStatusNotFound(t *testing.T) {
	api, _ := newTestAPI(t)

	_, err := api.Status("WCH_000000000000")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = api.Status("")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestCancel(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "ping")

	w, err := api.Register(RegisterRequest{Trigger: "ping", PromptTemplate: "p"})
	require.NoError(t, err)

	cancelled, err := api.Cancel(w.ID)
	require.NoError(t, err)
	assert.Equal(t, watch.StatusCancelled, cancelled.Status)

	// Terminal watches cannot be cancelled again; the error names the status
	_, err = api.Cancel(w.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "cancelled")

	_, err = api.Cancel("WCH_000000000000")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestWatchTriggersRefreshesListings(t *testing.T) {
	api, triggerDir := newTestAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, api.WatchTriggers(ctx))

	// Warm the cache while the directory is empty
	listed, err := api.ListTriggers()
	require.NoError(t, err)
	assert.Empty(t, listed)

	// A trigger added during the session must appear without any manual
	// cache refresh
	writeTrigger(t, triggerDir, "late-arrival")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		listed, err = api.ListTriggers()
		require.NoError(t, err)
		if len(listed) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.Len(t, listed, 1, "listing should refresh after directory change")
	assert.Equal(t, "late-arrival", listed[0].Name)
}

func TestListTriggers(t *testing.T) {
	api, triggerDir := newTestAPI(t)
	writeTrigger(t, triggerDir, "bbb")
	writeTrigger(t, triggerDir, "aaa")

	triggers, err := api.ListTriggers()
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.Equal(t, "aaa", triggers[0].Name)
	assert.Equal(t, "bbb", triggers[1].Name)
}
