package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/vigil/action"
	"github.com/example/vigil/am"
	"github.com/example/vigil/daemon"
	"github.com/example/vigil/logger"
	"github.com/example/vigil/trigger"
	"github.com/example/vigil/watch"
)

// DaemonCmd represents the daemon command - the watch polling loop
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the vigil daemon (watch poller + action runner)",
	Long: `Vigil daemon - the watch polling loop.

The daemon:
- Polls each active watch on its own interval
- Runs trigger executables and inspects their exit code
- On fire: interpolates the prompt, spawns the action process,
  and persists the result for later pickup
- Expires watches whose TTL elapsed without firing
- Runs until interrupted (Ctrl+C); in-flight executions are drained

Example:
  vigil daemon start              # Start daemon in foreground
  vigil daemon start --workers 3  # Poll up to 3 watches concurrently`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// DaemonStartCmd starts the daemon in foreground
var DaemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the vigil daemon",
	Long: `Start the vigil daemon in foreground mode.

Polling is strictly sequential by default: one watch's whole pipeline
(trigger, action, result) completes before the next is considered. Pass
--workers above 1 to poll watches concurrently; a single watch never runs
on more than one worker at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := am.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.EnsureDirs(); err != nil {
			return fmt.Errorf("failed to create storage directories: %w", err)
		}

		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		store := watch.NewStore(database)
		triggers := trigger.NewRunner(cfg.TriggersDir(), cfg.ExecTimeout(), logger.Logger)
		actions := action.NewRunner(
			cfg.Exec.ActionCommand,
			cfg.Exec.ActionArgs,
			cfg.Storage.Root,
			cfg.LogsDir(),
			cfg.ResultsDir(),
			cfg.ExecTimeout(),
			logger.Logger,
		)

		schedCfg := daemon.Config{
			TickInterval:    time.Duration(cfg.Daemon.TickIntervalSeconds) * time.Second,
			ExpiryInterval:  time.Duration(cfg.Daemon.ExpirySweepSeconds) * time.Second,
			Workers:         cfg.Daemon.Workers,
			SpawnsPerSecond: cfg.Daemon.SpawnsPerSecond,
		}
		if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
			schedCfg.Workers = workers
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		scheduler := daemon.NewSchedulerWithContext(ctx, store, triggers, actions, schedCfg, logger.Logger)
		scheduler.Start()

		fmt.Println("vigil daemon started")
		fmt.Printf("  Storage root:  %s\n", cfg.Storage.Root)
		fmt.Printf("  Triggers dir:  %s\n", cfg.TriggersDir())
		fmt.Printf("  Tick interval: %v\n", schedCfg.TickInterval)
		fmt.Printf("  Workers:       %d\n", schedCfg.Workers)
		fmt.Printf("\nPress Ctrl+C for graceful shutdown\n\n")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Println("\nShutting down, draining in-flight executions...")
		scheduler.Stop()
		cancel()

		fmt.Println("vigil daemon stopped")
		return nil
	},
}

func init() {
	DaemonStartCmd.Flags().Int("workers", 0, "Concurrent watch pipelines (overrides config; 1 = sequential)")
	DaemonCmd.AddCommand(DaemonStartCmd)
}
