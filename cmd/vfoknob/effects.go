package main

import (
	"errors"
	"log/slog"
	"time"
)

// effectDeps are the external systems commands act on. Any of them may be
// nil; the matching commands then fail.
type effectDeps struct {
	synth Synthesizer
	tx    TxOutput
	store StateStore
}

var (
	errNoSynth = errors.New("no synthesizer")
	errNoTx    = errors.New("no TX output")
	errNoStore = errors.New("no state store")
)

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }

// runEffect executes a single reducer-emitted Command and reports the outcome
// as an observation Event via onEvent.
//
// It may perform I/O but never calls Reduce; the daemon loop sequences
// Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(deps effectDeps, cmd Command, logger *slog.Logger, onEvent func(Event)) {
	if onEvent == nil {
		return
	}

	now := time.Now()
	fail := func(err error) {
		onEvent(CommandFailed{Command: cmd, Err: err, At: now})
	}

	switch c := cmd.(type) {
	case CmdSetFrequency:
		if deps.synth == nil {
			fail(errNoSynth)
			return
		}
		if err := deps.synth.SetFrequency(c.Hz); err != nil {
			logger.Error("synth SetFrequency failed", "error", err, "hz", c.Hz)
			fail(err)
			return
		}
		onEvent(SynthFrequencyObserved{Hz: c.Hz, At: now})

	case CmdSetTransmit:
		if deps.tx == nil {
			fail(errNoTx)
			return
		}
		if err := deps.tx.SetTransmit(c.On); err != nil {
			logger.Error("TX switch failed", "error", err, "on", c.On)
			fail(err)
			return
		}
		onEvent(TransmitObserved{On: c.On, At: now})

	case CmdSaveState:
		if deps.store == nil {
			fail(errNoStore)
			return
		}
		if err := deps.store.Save(c.State); err != nil {
			logger.Error("state save failed", "error", err)
			fail(err)
			return
		}
		logger.Debug("state saved", "hz", c.State.FrequencyHz, "band", c.State.Band)
		onEvent(StateSaved{Saved: c.State, At: now})

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the daemon loop on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		fail(errUnknownCommand{cmd: cmd})
	}
}
