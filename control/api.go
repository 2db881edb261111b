// Package control is the management surface for watches: registration,
// listing, status, and cancellation. The same API backs the CLI commands and
// the MCP server.
package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/vigil/am"
	"github.com/example/vigil/errors"
	"github.com/example/vigil/trigger"
	"github.com/example/vigil/watch"
)

// API exposes watch lifecycle operations over the store and the trigger
// registry.
type API struct {
	store    *watch.Store
	triggers *trigger.Registry
	cfg      *am.Config
	logger   *zap.SugaredLogger
}

// NewAPI creates a control API.
func NewAPI(store *watch.Store, triggers *trigger.Registry, cfg *am.Config, logger *zap.SugaredLogger) *API {
	return &API{
		store:    store,
		triggers: triggers,
		cfg:      cfg,
		logger:   logger.Named("control"),
	}
}

// RegisterRequest describes a new watch. Zero IntervalSeconds and TTLHours
// take the configured defaults.
type RegisterRequest struct {
	Trigger         string   `json:"trigger"`
	Params          []string `json:"params,omitempty"`
	PromptTemplate  string   `json:"prompt_template"`
	WorkingDir      string   `json:"working_dir,omitempty"`
	IntervalSeconds int      `json:"interval_seconds,omitempty"`
	TTLHours        int      `json:"ttl_hours,omitempty"`
}

// Register validates the request and creates an active watch.
func (a *API) Register(req RegisterRequest) (*watch.Watch, error) {
	if req.Trigger == "" {
		return nil, errors.NewInvalidRequestError("trigger is required")
	}
	if req.PromptTemplate == "" {
		return nil, errors.NewInvalidRequestError("prompt_template is required")
	}
	if req.IntervalSeconds < 0 {
		return nil, errors.NewInvalidRequestError("interval_seconds must not be negative")
	}
	if req.TTLHours < 0 {
		return nil, errors.NewInvalidRequestError("ttl_hours must not be negative")
	}
	if !a.triggers.Exists(req.Trigger) {
		return nil, errors.NewNotFoundError("trigger not found: no executable named %q in %s", req.Trigger, a.triggers.Dir())
	}

	interval := req.IntervalSeconds
	if interval == 0 {
		interval = a.cfg.Watch.DefaultIntervalSeconds
	}
	ttl := time.Duration(req.TTLHours) * time.Hour
	if ttl == 0 {
		ttl = a.cfg.DefaultTTL()
	}

	now := time.Now().UTC()
	w := &watch.Watch{
		ID:              watch.NewID(),
		Trigger:         req.Trigger,
		Params:          req.Params,
		PromptTemplate:  req.PromptTemplate,
		WorkingDir:      req.WorkingDir,
		Status:          watch.StatusActive,
		IntervalSeconds: interval,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}

	if err := a.store.Insert(w); err != nil {
		return nil, errors.Wrap(err, "failed to register watch")
	}

	a.logger.Infow("Watch registered",
		"watch_id", w.ID,
		"trigger", w.Trigger,
		"interval_seconds", w.IntervalSeconds,
		"expires_at", w.ExpiresAt.Format(time.RFC3339))

	return w, nil
}

// List returns watches newest-first, optionally filtered by status.
func (a *API) List(status string) ([]*watch.Watch, error) {
	if status != "" && !watch.ValidStatus(status) {
		return nil, errors.NewInvalidRequestError("unknown status %q: want active, fired, expired or cancelled", status)
	}
	return a.store.List(status)
}

// Status returns a single watch by ID.
func (a *API) Status(id string) (*watch.Watch, error) {
	if id == "" {
		return nil, errors.NewInvalidRequestError("watch id is required")
	}
	return a.store.GetByID(id)
}

// Cancel moves an active watch to cancelled. Watches already in a terminal
// state cannot be cancelled; the conditional update in the store decides,
// so a concurrent fire or expiry from the daemon process cannot be
// overwritten here.
func (a *API) Cancel(id string) (*watch.Watch, error) {
	if id == "" {
		return nil, errors.NewInvalidRequestError("watch id is required")
	}

	if err := a.store.Cancel(id); err != nil {
		return nil, err
	}

	a.logger.Infow("Watch cancelled", "watch_id", id)
	return a.store.GetByID(id)
}

// ListTriggers returns the available triggers with any sidecar metadata.
func (a *API) ListTriggers() ([]trigger.Trigger, error) {
	return a.triggers.List()
}

// WatchTriggers keeps trigger listings fresh for the lifetime of ctx by
// invalidating the registry cache when the trigger directory changes.
// Long-running consumers of ListTriggers call this; one-shot callers don't
// need it.
func (a *API) WatchTriggers(ctx context.Context) error {
	return a.triggers.Watch(ctx)
}
