// Package daemon runs the watch polling loop: it decides which active
// watches are due, invokes their triggers, and drives fired watches through
// action execution and result persistence.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/vigil/action"
	"github.com/example/vigil/errors"
	"github.com/example/vigil/trigger"
	"github.com/example/vigil/watch"
)

// Config contains scheduler tuning knobs.
type Config struct {
	TickInterval    time.Duration // minimum sleep between watch passes
	ExpiryInterval  time.Duration // cadence of the TTL sweep
	Workers         int           // concurrent watch pipelines; <=1 is strictly sequential
	SpawnsPerSecond float64       // trigger subprocess spawn rate limit
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:    5 * time.Second,
		ExpiryInterval:  60 * time.Second,
		Workers:         1,
		SpawnsPerSecond: 4,
	}
}

// Scheduler polls active watches on a fixed tick. Per-watch faults are
// isolated: a failing trigger or action never stops the loop, and the watch
// stays active for the next tick to retry.
type Scheduler struct {
	store    *watch.Store
	triggers *trigger.Runner
	actions  *action.Runner
	cfg      Config
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	lastActiveCount int
	inflight        map[string]bool // per-watch mutual exclusion for worker mode
}

// NewScheduler creates a scheduler.
func NewScheduler(store *watch.Store, triggers *trigger.Runner, actions *action.Runner, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return NewSchedulerWithContext(context.Background(), store, triggers, actions, cfg, logger)
}

// NewSchedulerWithContext creates a scheduler bound to a parent context.
func NewSchedulerWithContext(ctx context.Context, store *watch.Store, triggers *trigger.Runner, actions *action.Runner, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	schedCtx, cancel := context.WithCancel(ctx)

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = 60 * time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	limit := rate.Inf
	if cfg.SpawnsPerSecond > 0 {
		limit = rate.Limit(cfg.SpawnsPerSecond)
	}

	return &Scheduler{
		store:    store,
		triggers: triggers,
		actions:  actions,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.Named("daemon"),
		ctx:      schedCtx,
		cancel:   cancel,
		inflight: make(map[string]bool),
	}
}

// Start begins the polling loop and the expiry sweep.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.run()
	go s.runExpirySweep()
	s.logger.Infow("Scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"expiry_interval", s.cfg.ExpiryInterval,
		"workers", s.cfg.Workers)
}

// Stop gracefully stops the scheduler. The loop finishes its current tick;
// in-flight trigger/action subprocesses are not forcibly killed - they run
// under their own timeout-bounded contexts and are drained before return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Infow("Scheduler stopped")
}

// run is the main polling loop.
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case tickTime := <-ticker.C:
			s.mu.Lock()
			s.lastTickAt = tickTime
			s.ticksSinceStart++
			tick := s.ticksSinceStart
			s.mu.Unlock()

			if err := s.checkWatches(tickTime); err != nil {
				// Don't spam logs - a tick error is retried next tick anyway
				s.logger.Warnw("Tick error", "error", err, "tick", tick)
			}
		}
	}
}

// runExpirySweep expires active watches past their deadline on an
// independent, longer period.
func (s *Scheduler) runExpirySweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ExpiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			count, err := s.store.ExpireActivePastDeadline(now)
			if err != nil {
				s.logger.Warnw("Expiry sweep failed", "error", err)
				continue
			}
			if count > 0 {
				s.logger.Infow("Expired watches past deadline", "count", count)
			}
		}
	}
}

// checkWatches runs one pass over the active watches.
func (s *Scheduler) checkWatches(now time.Time) error {
	watches, err := s.store.ListActive()
	if err != nil {
		return errors.Wrap(err, "failed to list active watches")
	}

	s.logActivity(watches, now)

	for _, w := range watches {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		default:
		}

		if !due(w, now) {
			continue
		}

		if s.cfg.Workers <= 1 {
			// Base mode: strictly sequential - a watch's whole pipeline runs
			// to completion before the next watch is considered
			s.pollWatch(w, now)
			continue
		}

		s.dispatch(w, now)
	}

	return nil
}

// dispatch hands a due watch to the worker pool. A watch never runs on more
// than one worker at a time.
func (s *Scheduler) dispatch(w *watch.Watch, now time.Time) {
	s.mu.Lock()
	if s.inflight[w.ID] || len(s.inflight) >= s.cfg.Workers {
		s.mu.Unlock()
		return
	}
	s.inflight[w.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, w.ID)
			s.mu.Unlock()
		}()
		s.pollWatch(w, now)
	}()
}

// pollWatch runs one watch through its pipeline: record the poll, execute
// the trigger, and on fire run the action and persist the result. Every
// failure path logs and returns; the watch stays active for the next tick.
func (s *Scheduler) pollWatch(w *watch.Watch, now time.Time) {
	if err := s.limiter.Wait(s.ctx); err != nil {
		return // shutting down
	}

	// Record the poll before executing so a crash mid-poll cannot cause a
	// tight retry loop
	if err := s.store.UpdateLastChecked(w.ID, now); err != nil {
		s.logger.Errorw("Failed to record poll time",
			"watch_id", w.ID,
			"error", err)
		return
	}

	// Subprocesses run under their own timeout-bounded context, detached
	// from the scheduler context, so Stop() drains instead of killing
	outcome := s.triggers.Execute(context.Background(), w.Trigger, w.Params)

	if !outcome.Fired {
		if outcome.Err != "" {
			// Execution fault: watch stays active, next tick retries
			s.logger.Warnw("Trigger execution fault",
				"watch_id", w.ID,
				"trigger", w.Trigger,
				"error", outcome.Err)
		}
		return
	}

	if outcome.Err != "" {
		s.logger.Warnw("Trigger fired with warning",
			"watch_id", w.ID,
			"trigger", w.Trigger,
			"warning", outcome.Err)
	}

	firedAt := time.Now()
	if err := s.store.MarkFired(w.ID, firedAt); err != nil {
		// Lost the race against a concurrent cancel or expiry sweep
		s.logger.Warnw("Could not mark watch fired",
			"watch_id", w.ID,
			"error", err)
		return
	}

	s.logger.Infow("Watch fired",
		"watch_id", w.ID,
		"trigger", w.Trigger,
		"fired_at", firedAt.UTC().Format(time.RFC3339))

	actionOutcome, err := s.actions.Run(context.Background(), w.ID, action.Spec{
		PromptTemplate: w.PromptTemplate,
		WorkingDir:     w.WorkingDir,
	}, outcome.Payload)
	if err != nil {
		s.logger.Errorw("Action transcript fault",
			"watch_id", w.ID,
			"error", err)
	}

	result := &watch.Result{
		WatchID:        w.ID,
		Trigger:        w.Trigger,
		Params:         w.Params,
		TriggerPayload: outcome.Payload,
		Action:         actionOutcome,
		FiredAt:        firedAt.UTC(),
	}
	if err := s.actions.PersistResult(result); err != nil {
		s.logger.Errorw("Failed to persist watch result",
			"watch_id", w.ID,
			"error", err)
	}
}

// logActivity logs a status line when the active watch count changes,
// including the next due check and memory pressure.
func (s *Scheduler) logActivity(watches []*watch.Watch, now time.Time) {
	s.mu.Lock()
	changed := len(watches) != s.lastActiveCount
	s.lastActiveCount = len(watches)
	s.mu.Unlock()

	if !changed {
		return
	}

	if len(watches) == 0 {
		s.logger.Infow("vigil - no active watches")
		return
	}

	nextID, nextIn := nextDue(watches, now)
	msg := fmt.Sprintf("vigil - %d active, next check '%s' in %s", len(watches), nextID, nextIn.Round(time.Second))

	if vm, err := mem.VirtualMemory(); err == nil {
		msg += fmt.Sprintf(" │ Mem: %.1f/%.1fGB (%.0f%%)",
			float64(vm.Used)/1e9, float64(vm.Total)/1e9, vm.UsedPercent)
	}

	s.logger.Infow(msg)
}

// GetStats returns scheduler statistics.
func (s *Scheduler) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"last_tick_at":      s.lastTickAt,
		"ticks_since_start": s.ticksSinceStart,
		"tick_interval":     s.cfg.TickInterval,
		"workers":           s.cfg.Workers,
	}
}

// due reports whether a watch is owed a poll at now.
func due(w *watch.Watch, now time.Time) bool {
	if w.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*w.LastCheckedAt) >= w.Interval()
}

// nextDue returns the watch whose next check comes soonest.
func nextDue(watches []*watch.Watch, now time.Time) (string, time.Duration) {
	bestID := ""
	var bestIn time.Duration
	for _, w := range watches {
		in := time.Duration(0)
		if w.LastCheckedAt != nil {
			in = w.LastCheckedAt.Add(w.Interval()).Sub(now)
			if in < 0 {
				in = 0
			}
		}
		if bestID == "" || in < bestIn {
			bestID = w.ID
			bestIn = in
		}
	}
	return bestID, bestIn
}
