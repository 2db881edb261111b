package trigger

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/example/vigil/errors"
)

// Registry caches trigger discovery over a Runner and invalidates the cache
// when the trigger directory changes on disk. Existence checks always go to
// the filesystem so a freshly dropped trigger is registrable immediately.
type Registry struct {
	runner *Runner
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	cached []Trigger
	valid  bool
}

// NewRegistry creates a registry over the given runner.
func NewRegistry(runner *Runner, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		runner: runner,
		logger: logger,
	}
}

// List returns the discovered triggers, rescanning only when the cache has
// been invalidated.
func (r *Registry) List() ([]Trigger, error) {
	r.mu.RLock()
	if r.valid {
		cached := r.cached
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	triggers, err := r.runner.List()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cached = triggers
	r.valid = true
	r.mu.Unlock()

	return triggers, nil
}

// Exists reports whether name resolves to an executable trigger. Goes to the
// filesystem directly; never trusts the cache.
func (r *Registry) Exists(name string) bool {
	return r.runner.Exists(name)
}

// Dir returns the directory the underlying runner scans.
func (r *Registry) Dir() string {
	return r.runner.Dir()
}

// Invalidate drops the cached listing.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.valid = false
	r.cached = nil
	r.mu.Unlock()
}

// Watch invalidates the cache whenever the trigger directory changes.
// Runs until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create trigger directory watcher")
	}

	if err := watcher.Add(r.runner.Dir()); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch trigger directory %s", r.runner.Dir())
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if r.logger != nil {
					r.logger.Debugw("Trigger directory changed",
						"op", event.Op.String(),
						"path", event.Name)
				}
				r.Invalidate()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if r.logger != nil {
					r.logger.Warnw("Trigger directory watch error", "error", err)
				}
			}
		}
	}()

	return nil
}
