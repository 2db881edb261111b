// Package action runs the follow-up process for a fired watch and persists
// its artifacts: an append-only per-watch transcript log and a one-shot JSON
// result file.
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/example/vigil/errors"
	"github.com/example/vigil/watch"
)

// Spec is the action half of a watch: what to say, and where to say it.
type Spec struct {
	PromptTemplate string
	WorkingDir     string // empty = runner default
}

// Runner spawns the configured action command with an interpolated prompt as
// its final argument.
type Runner struct {
	command    string
	baseArgs   []string
	defaultDir string
	logsDir    string
	resultsDir string
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

// NewRunner creates an action runner.
func NewRunner(command string, baseArgs []string, defaultDir, logsDir, resultsDir string, timeout time.Duration, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		command:    command,
		baseArgs:   baseArgs,
		defaultDir: defaultDir,
		logsDir:    logsDir,
		resultsDir: resultsDir,
		timeout:    timeout,
		logger:     logger,
	}
}

// Run interpolates the prompt, spawns the action process, and appends a
// transcript record regardless of how the process ends. "The action ran and
// failed" is data: failures are captured in the Outcome (exit code -1 for
// spawn failures and timeouts), and the error return is reserved for
// transcript write faults.
func (r *Runner) Run(ctx context.Context, watchID string, spec Spec, payload map[string]any) (watch.ActionOutcome, error) {
	prompt := Interpolate(spec.PromptTemplate, payload)

	workDir := spec.WorkingDir
	if workDir == "" {
		workDir = r.defaultDir
	}

	args := append(append([]string{}, r.baseArgs...), prompt)
	commandLine := shellquote.Join(append([]string{r.command}, args...)...)

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.command, args...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	completed := time.Now()

	outcome := watch.ActionOutcome{
		PromptUsed:  prompt,
		WorkingDir:  workDir,
		ExitCode:    0,
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		CompletedAt: completed.UTC(),
	}

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		outcome.ExitCode = -1
		outcome.Stderr = appendLine(outcome.Stderr, "action timed out after "+r.timeout.String())
		if r.logger != nil {
			r.logger.Errorw("Action timed out",
				"watch_id", watchID,
				"timeout", r.timeout)
		}
	case runErr != nil:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			outcome.ExitCode = exitErr.ExitCode()
		} else {
			outcome.ExitCode = -1
			outcome.Stderr = appendLine(outcome.Stderr, runErr.Error())
		}
		if r.logger != nil {
			r.logger.Warnw("Action completed with failure",
				"watch_id", watchID,
				"exit_code", outcome.ExitCode)
		}
	}

	if err := r.appendTranscript(watchID, commandLine, prompt, outcome, started); err != nil {
		return outcome, err
	}

	return outcome, nil
}

// PersistResult serializes a WatchResult to results/{watch_id}.json.
// Overwrite semantics: each watch fires at most once.
func (r *Runner) PersistResult(result *watch.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode result for watch %s", result.WatchID)
	}

	path := r.ResultPath(result.WatchID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write result file %s", path)
	}

	if r.logger != nil {
		r.logger.Infow("Watch result persisted",
			"watch_id", result.WatchID,
			"path", path)
	}

	return nil
}

// ResultPath returns the canonical result file path for a watch.
func (r *Runner) ResultPath(watchID string) string {
	return filepath.Join(r.resultsDir, watchID+".json")
}

// LogPath returns the transcript log path for a watch.
func (r *Runner) LogPath(watchID string) string {
	return filepath.Join(r.logsDir, watchID+".log")
}

// appendTranscript writes one invocation record to the watch's append-only
// log: start marker, resolved command and prompt, captured output, and a
// completion marker with the exit code.
func (r *Runner) appendTranscript(watchID, commandLine, prompt string, outcome watch.ActionOutcome, started time.Time) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "=== ACTION START %s watch=%s ===\n", started.UTC().Format(time.RFC3339), watchID)
	fmt.Fprintf(&b, "$ %s\n", commandLine)
	fmt.Fprintf(&b, "--- prompt ---\n%s\n", prompt)
	fmt.Fprintf(&b, "--- stdout ---\n%s", ensureNewline(outcome.Stdout))
	fmt.Fprintf(&b, "--- stderr ---\n%s", ensureNewline(outcome.Stderr))
	fmt.Fprintf(&b, "=== ACTION END exit=%d %s ===\n\n", outcome.ExitCode, outcome.CompletedAt.Format(time.RFC3339))

	path := r.LogPath(watchID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open transcript log %s", path)
	}
	defer f.Close()

	if _, err := f.Write(b.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to append transcript log %s", path)
	}

	return nil
}

func ensureNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}

func appendLine(s, line string) string {
	if s == "" {
		return line + "\n"
	}
	return ensureNewline(s) + line + "\n"
}
