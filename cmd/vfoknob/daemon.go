package main

import (
	"context"
	"log/slog"
	"time"

	"vfoknob/encoder"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon loop is the only goroutine that owns DaemonState. It:
//   - receives Events from IPC, the websocket server and the button inputs
//   - drains the encoder step slot whenever the sampler pokes notify
//   - emits Tick events on a fixed cadence
//   - reduces events into (state, commands, broadcasts)
//   - executes commands and feeds the observations back into the reducer
//
// It exits when ctx is canceled or the events channel is closed.
// ============================================================================

func runDaemon(
	ctx context.Context,
	events <-chan Event,
	steps *encoder.StepSlot,
	notify <-chan struct{},
	deps effectDeps,
	cfg ReducerConfig,
	state *DaemonState,
	updateHz int,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(updateHz))
	defer ticker.Stop()

	// Explicit queues: no nested or re-entrant execution.
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bs {
			select {
			case broadcasts <- b:
			default:
				logger.Debug("broadcast queue full; dropping", "broadcast", b)
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(deps, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	drainSteps := func(now time.Time) {
		if steps == nil {
			return
		}
		if n := steps.Take(); n != 0 {
			enqueueEvent(TimedEvent{Event: EncoderTurn{Steps: n}, At: now})
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case <-notify:
			drainSteps(time.Now())
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			// A poke can be dropped when notify is full; the tick picks up
			// whatever is left in the slot.
			drainSteps(now)
			enqueueEvent(Tick{Now: now})
			flushEvents()
			flushCommands()
		}
	}
}
