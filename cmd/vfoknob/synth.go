package main

import "log/slog"

// Synthesizer is the oscillator the VFO drives.
type Synthesizer interface {
	SetFrequency(hz int64) error
	Close() error
}

// logSynth is the "none" driver: it only logs. Useful on a desk without
// hardware and for the replay tool.
type logSynth struct {
	logger *slog.Logger
}

func (s logSynth) SetFrequency(hz int64) error {
	s.logger.Info("synth frequency", "hz", hz)
	return nil
}

func (logSynth) Close() error { return nil }
