package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - The daemon loop is the only place that executes side effects
//     (pactl calls, icon rendering, display updates, listener control).
//   - Effect results are turned into Events and fed back into the reducer.
//   - Every other goroutine (listener, IPC, HTTP, NATS, evdev) only sends
//     Events on the events channel.
//
// ============================================================================

// DaemonConfig is the loop's timing configuration.
type DaemonConfig struct {
	Reducer      ReducerConfig
	TickInterval time.Duration
}

// runDaemon is the main daemon loop that:
//   - Receives Events from multiple sources
//   - Emits Tick events on a fixed cadence
//   - Reduces events into (state, commands)
//   - Executes commands and feeds observations back into the reducer
//
// Shutdown semantics:
//   - When ctx is canceled a Destroy is reduced and executed first so the
//     listener subprocess is always reaped, then the loop exits
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	fx *Effects,
	state *DaemonState,
	cfg DaemonConfig,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	interval := cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickMS * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg.Reducer)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
		}
	}

	// effCtx outlives ctx so the shutdown Destroy can still run its effects.
	effCtx := context.WithoutCancel(ctx)

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			logger.Debug("executing command", "command", cmd.String())
			runEffect(effCtx, fx, cmd, enqueueEvent)

			// Observations should be reduced promptly to keep state coherent and
			// allow the reducer to emit follow-up commands (if any).
			flushEvents()
		}
	}

	step := func(ev Event) {
		enqueueEvent(ev)
		flushEvents()
		flushCommands()
	}

	shutdown := func(reason string) {
		logger.Info("daemon stopping", "reason", reason)
		step(TimedEvent{Event: Destroy{}, At: time.Now()})
	}

	for {
		select {
		case <-ctx.Done():
			shutdown("context canceled")
			return

		case ev, ok := <-events:
			if !ok {
				shutdown("events channel closed")
				return
			}
			step(stampEvent(ev, time.Now()))

		case now := <-ticker.C:
			step(Tick{Now: now})
		}
	}
}
