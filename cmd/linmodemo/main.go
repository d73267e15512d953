// Command linmodemo boots a linmo.Kernel and runs spec.md §8 end-to-end
// scenario 1: three tasks pinned at CRIT, NORMAL, and IDLE priority each
// spin incrementing their own counter and yielding, and after a
// configurable number of ticks the demo reports the three counters and
// prints their ratios next to the ratios the per-level time slices
// (1, 5, 15) predict.
//
// Flag parsing and signal-driven shutdown are grounded on
// cmd/ublk-mem/main.go's structure: parse flags, build the subsystem,
// run it, handle Ctrl+C with a bounded cleanup window.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linmogo/linmo"
	"github.com/linmogo/linmo/internal/logging"
)

func main() {
	var (
		ticks      = flag.Uint("ticks", 1000, "number of scheduler ticks to run before reporting")
		preemptive = flag.Bool("preemptive", true, "run the scheduler in preemptive (time-sliced) mode")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := linmo.DefaultConfig()
	cfg.Preemptive = *preemptive
	k := linmo.New(cfg)
	defer k.Stop()

	var critCount, normalCount, idleCount uint64

	spawnCounter := func(counter *uint64) {
		for {
			*counter++
			k.Yield()
		}
	}

	critID := k.Spawn(func() { spawnCounter(&critCount) }, linmo.DefaultTaskStackSize)
	normalID := k.Spawn(func() { spawnCounter(&normalCount) }, linmo.DefaultTaskStackSize)
	idleID := k.Spawn(func() { spawnCounter(&idleCount) }, linmo.DefaultTaskStackSize)

	if err := k.Priority(critID, linmo.Crit); err != nil {
		logger.Error("failed to set CRIT priority", "error", err)
		os.Exit(1)
	}
	if err := k.Priority(idleID, linmo.Idle); err != nil {
		logger.Error("failed to set IDLE priority", "error", err)
		os.Exit(1)
	}
	// normalID already spawns at Normal, the scheduler's default.

	logger.Info("kernel starting", "ticks", *ticks, "preemptive", *preemptive)
	k.Start()

	if *verbose {
		for _, info := range k.Snapshot() {
			logger.Debug("task", "id", info.ID, "priority", info.Priority, "state", info.State)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	deadline := time.After(time.Duration(*ticks) * linmo.TickPeriod * 2)
	for k.Ticks() < uint32(*ticks) {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal before reaching tick target")
			k.Stop()
			os.Exit(1)
		case <-deadline:
			logger.Warn("timed out waiting for tick target", "ticks_reached", k.Ticks())
			goto report
		default:
			time.Sleep(time.Millisecond)
		}
	}

report:
	_ = k.Cancel(critID)
	_ = k.Cancel(normalID)
	_ = k.Cancel(idleID)

	fmt.Printf("ticks elapsed: %d\n", k.Ticks())
	fmt.Printf("CRIT counter:   %d\n", critCount)
	fmt.Printf("NORMAL counter: %d\n", normalCount)
	fmt.Printf("IDLE counter:   %d\n", idleCount)
	if normalCount > 0 {
		fmt.Printf("CRIT/NORMAL ratio: %.2f (expect ~%.2f)\n",
			float64(critCount)/float64(normalCount), float64(5)/float64(1))
	}
	if idleCount > 0 {
		fmt.Printf("NORMAL/IDLE ratio: %.2f (expect ~%.2f)\n",
			float64(normalCount)/float64(idleCount), float64(15)/float64(5))
	}

	snap := k.Metrics().Snapshot()
	fmt.Printf("context switches: %d, preemptions: %d, yields: %d\n",
		snap.ContextSwitches, snap.Preemptions, snap.Yields)
}
