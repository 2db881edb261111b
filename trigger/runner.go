package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/vigil/errors"
)

// Outcome is the ephemeral result of one trigger poll.
//
// Err carries execution-level failures (missing binary, spawn failure,
// timeout) when Fired is false. When Fired is true, Err may still carry a
// non-fatal warning: the trigger exited 0 but its stdout was not valid JSON.
// A non-zero exit is neither - it is the normal "still waiting" outcome.
type Outcome struct {
	Fired   bool           `json:"fired"`
	Payload map[string]any `json:"payload"`
	Err     string         `json:"error,omitempty"`
}

// Runner resolves trigger names to executables under a single directory and
// runs them with a bounded timeout.
type Runner struct {
	dir     string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewRunner creates a trigger runner over the given directory.
func NewRunner(dir string, timeout time.Duration, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		dir:     dir,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs the named trigger with params as argv and interprets the
// result. Execution failures are reported in Outcome.Err, never as a Go
// error: the scheduler treats them as retryable per-watch faults.
func (r *Runner) Execute(ctx context.Context, name string, params []string) Outcome {
	path, ok := r.resolve(name)
	if !ok {
		return Outcome{Err: "trigger not found: " + name}
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, path, params...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// Stderr is diagnostic output, never a failure by itself
	if stderr.Len() > 0 && r.logger != nil {
		r.logger.Debugw("Trigger stderr",
			"trigger", name,
			"stderr", strings.TrimSpace(stderr.String()))
	}

	if execCtx.Err() == context.DeadlineExceeded {
		return Outcome{Err: "trigger timed out after " + r.timeout.String()}
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// Non-zero exit: the condition is unmet. Normal, not an error.
			return Outcome{Fired: false}
		}
		return Outcome{Err: "trigger execution failed: " + err.Error()}
	}

	// Exit 0: the condition is met. Parse stdout as the payload.
	payload := map[string]any{}
	warning := ""
	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) > 0 {
		if err := json.Unmarshal(out, &payload); err != nil {
			// Fired with unusable payload: report the fire anyway and let
			// the caller decide what to do with the warning
			payload = map[string]any{}
			warning = "trigger stdout is not valid JSON: " + err.Error()
			if r.logger != nil {
				r.logger.Warnw("Trigger fired with unparseable payload",
					"trigger", name,
					"error", err)
			}
		}
	}

	return Outcome{Fired: true, Payload: payload, Err: warning}
}

// List scans the trigger directory and returns all discovered triggers with
// any sidecar metadata, sorted by name. Dotfiles, sidecar files, and files
// lacking execute permission are skipped.
func (r *Runner) List() ([]Trigger, error) {
	names, err := r.scan()
	if err != nil {
		return nil, err
	}

	triggers := make([]Trigger, 0, len(names))
	for _, name := range names {
		meta, err := loadSidecar(r.dir, name)
		if err != nil {
			// A broken sidecar never hides the trigger itself
			if r.logger != nil {
				r.logger.Warnw("Ignoring unreadable trigger sidecar",
					"trigger", name,
					"error", err)
			}
			meta = nil
		}
		triggers = append(triggers, Trigger{Name: name, Meta: meta})
	}

	return triggers, nil
}

// Exists reports whether name resolves to an executable trigger.
func (r *Runner) Exists(name string) bool {
	_, ok := r.resolve(name)
	return ok
}

// Dir returns the trigger directory.
func (r *Runner) Dir() string {
	return r.dir
}

// resolve maps a canonical trigger name to its executable path.
func (r *Runner) resolve(name string) (string, bool) {
	// Canonical names never contain path separators
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", false
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		base := entry.Name()
		if !eligible(base) {
			continue
		}
		if canonicalName(base) != name {
			continue
		}
		path := filepath.Join(r.dir, base)
		if isExecutable(path) {
			return path, true
		}
	}

	return "", false
}

// scan returns the sorted canonical names of all executable triggers.
func (r *Runner) scan() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan trigger directory %s", r.dir)
	}

	seen := map[string]bool{}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		base := entry.Name()
		if !eligible(base) {
			continue
		}
		if !isExecutable(filepath.Join(r.dir, base)) {
			continue
		}
		name := canonicalName(base)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// eligible rejects dotfiles and sidecar files.
func eligible(base string) bool {
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	for _, sidecar := range sidecarExtensions {
		if ext == sidecar {
			return false
		}
	}
	return true
}

// canonicalName strips the extension: "pr-merged.sh" -> "pr-merged".
func canonicalName(base string) string {
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
