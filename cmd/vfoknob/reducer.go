package main

import (
	"maps"
	"time"

	"vfoknob/encoder"
)

// This file implements the reducer:
//
//   - Events: inputs (encoder turns, buttons, IPC requests, ticks, observations)
//   - Commands: side effects (synthesizer, TX line, state file, snapshot replies)
//   - Broadcasts: state changes pushed to websocket clients
//
// Reduce performs no I/O. The daemon loop executes Commands and feeds the
// resulting observations back as Events.

// ReducerConfig is the policy the reducer applies. Built from Config.
type ReducerConfig struct {
	MinHz     int64
	MaxHz     int64
	StepSizes []int64
	Bands     []BandConfig

	SaveDelay time.Duration

	DebounceMS encoder.Tick
	TxDelayMS  encoder.Tick
}

func (c ReducerConfig) band(i int) (BandConfig, bool) {
	if i < 0 || i >= len(c.Bands) {
		return BandConfig{}, false
	}
	return c.Bands[i], true
}

func (c ReducerConfig) bandIndex(name string) int {
	for i, b := range c.Bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// bandFor returns the band containing hz, or -1.
func (c ReducerConfig) bandFor(hz int64) int {
	for i, b := range c.Bands {
		if hz >= b.LowHz && hz <= b.HighHz {
			return i
		}
	}
	return -1
}

// clamp limits hz to the active band, or to the global range when no band
// is active.
func (c ReducerConfig) clamp(hz int64, band int) int64 {
	lo, hi := c.MinHz, c.MaxHz
	if b, ok := c.band(band); ok {
		lo, hi = max(lo, b.LowHz), min(hi, b.HighHz)
	}
	return min(max(hz, lo), hi)
}

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a reducer-emitted, externally visible state change.
type StateBroadcast interface {
	broadcastMarker()
}

type BroadcastFrequencyChanged struct {
	Hz        int64
	Direction string
	At        time.Time
}

type BroadcastTransmitChanged struct {
	On bool
	At time.Time
}

type BroadcastBandChanged struct {
	Band string // empty when tuning freely
	At   time.Time
}

type BroadcastStepChanged struct {
	StepHz int64
	At     time.Time
}

func (BroadcastFrequencyChanged) broadcastMarker() {}
func (BroadcastTransmitChanged) broadcastMarker()  {}
func (BroadcastBandChanged) broadcastMarker()      {}
func (BroadcastStepChanged) broadcastMarker()      {}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the next state plus the side effects and broadcasts it
// requires. Frequency and TX commands are coalesced into at most one each
// per tick.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer. It must not perform I/O or block.
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewDaemonState(cfg, cfg.MinHz, nil)
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		e, at = te.Event, te.At
	}
	if at.IsZero() {
		at = time.Now()
	}

	r := ReduceResult{State: s}

	switch ev := e.(type) {
	case Tick:
		reduceTick(s, ev.Now, cfg, &r)

	case EncoderTurn:
		if ev.Steps == 0 {
			break
		}
		if ev.Steps > 0 {
			s.Tuning.LastDirection = encoder.Clockwise
		} else {
			s.Tuning.LastDirection = encoder.CounterClockwise
		}
		tuneTo(s, cfg, s.Tuning.FrequencyHz+int64(ev.Steps)*s.Tuning.StepHz, at)

	case StepFrequency:
		tuneTo(s, cfg, s.Tuning.FrequencyHz+int64(ev.Steps)*s.Tuning.StepHz, at)

	case SetFrequency:
		// An absolute frequency outside the active band follows the band
		// plan: pick the band containing it, or tune freely.
		if b, ok := cfg.band(s.Tuning.Band); !ok || ev.Hz < b.LowHz || ev.Hz > b.HighHz {
			switchBand(s, cfg, cfg.bandFor(ev.Hz), at, &r)
		}
		tuneTo(s, cfg, ev.Hz, at)

	case SelectBand:
		if ev.Name == "" {
			switchBand(s, cfg, -1, at, &r)
			break
		}
		i := cfg.bandIndex(ev.Name)
		if i < 0 {
			break
		}
		if switchBand(s, cfg, i, at, &r) {
			tuneTo(s, cfg, bandEntryHz(s, cfg.Bands[i]), at)
		}

	case BandNext, BandPrev:
		i := adjacentBand(s, cfg, ev == BandNext{})
		if i >= 0 && switchBand(s, cfg, i, at, &r) {
			tuneTo(s, cfg, bandEntryHz(s, cfg.Bands[i]), at)
		}

	case CycleStepSize:
		if len(cfg.StepSizes) == 0 {
			break
		}
		next := (s.Tuning.StepIndex + 1) % len(cfg.StepSizes)
		s.Tuning.StepIndex, s.Tuning.StepHz = next, cfg.StepSizes[next]
		s.MarkDirty(at)
		r.Broadcasts = append(r.Broadcasts, BroadcastStepChanged{StepHz: s.Tuning.StepHz, At: at})

	case SetStepSize:
		if ev.Hz <= 0 || ev.Hz == s.Tuning.StepHz {
			break
		}
		s.setStep(cfg, ev.Hz)
		s.MarkDirty(at)
		r.Broadcasts = append(r.Broadcasts, BroadcastStepChanged{StepHz: s.Tuning.StepHz, At: at})

	case KeyInput:
		s.Keyer.Input(ev.Down, millisTick(at.UnixMilli()))

	case SetTransmit:
		s.ManualTX = ev.On

	case RequestStateSnapshot:
		r.Commands = append(r.Commands, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(cfg, at),
		})

	case SynthFrequencyObserved:
		changed := !s.Synth.Known || s.Synth.FrequencyHz != ev.Hz
		s.SetObservedFrequency(ev.Hz, ev.At)
		if changed {
			r.Broadcasts = append(r.Broadcasts, BroadcastFrequencyChanged{
				Hz:        ev.Hz,
				Direction: s.Tuning.LastDirection.String(),
				At:        ev.At,
			})
		}

	case TransmitObserved:
		changed := !s.TX.Known || s.TX.On != ev.On
		s.SetObservedTransmit(ev.On, ev.At)
		if changed {
			r.Broadcasts = append(r.Broadcasts, BroadcastTransmitChanged{On: ev.On, At: ev.At})
		}

	case StateSaved:
		s.Persist.Saved = ev.Saved
		s.Persist.SavedOK = true

	case CommandFailed:
		switch ev.Command.(type) {
		case CmdSetTransmit:
			// Forget the observed level so the next tick retries.
			s.TX.Known = false
		case CmdSaveState:
			s.MarkDirty(ev.At)
		}

	default:
		// Unknown event type: no-op.
	}

	return r
}

func reduceTick(s *DaemonState, now time.Time, cfg ReducerConfig, r *ReduceResult) {
	// Key timing and the TX line.
	keyed := s.Keyer.Poll(millisTick(now.UnixMilli()))
	want := keyed || s.ManualTX
	if !s.TX.Known || s.TX.On != want {
		s.SetDesiredTransmit(want)
	}

	// Flush intents into commands (coalesced latest-wins).
	if s.Intent.DesiredFrequencyHz != nil {
		hz := *s.Intent.DesiredFrequencyHz
		s.Intent.DesiredFrequencyHz = nil
		if !s.Synth.Known || s.Synth.FrequencyHz != hz {
			r.Commands = append(r.Commands, CmdSetFrequency{Hz: hz})
		}
	}
	if s.Intent.DesiredTransmit != nil {
		on := *s.Intent.DesiredTransmit
		s.Intent.DesiredTransmit = nil
		r.Commands = append(r.Commands, CmdSetTransmit{On: on})
	}

	// Persist after a quiet period.
	if s.Persist.Dirty && now.Sub(s.Persist.ChangedAt) >= cfg.SaveDelay {
		s.Persist.Dirty = false
		p := s.Persisted(cfg)
		if !s.Persist.SavedOK || !p.Equal(s.Persist.Saved) {
			r.Commands = append(r.Commands, CmdSaveState{State: p})
		}
	}
}

// tuneTo clamps hz and records it as the new dial frequency.
func tuneTo(s *DaemonState, cfg ReducerConfig, hz int64, at time.Time) {
	hz = cfg.clamp(hz, s.Tuning.Band)
	if hz == s.Tuning.FrequencyHz {
		return
	}
	s.Tuning.FrequencyHz = hz
	if b, ok := cfg.band(s.Tuning.Band); ok {
		s.Tuning.BandMemory[b.Name] = hz
	}
	s.SetDesiredFrequency(hz)
	s.MarkDirty(at)
}

// switchBand activates band i (-1 for none). It reports whether the band
// actually changed.
func switchBand(s *DaemonState, cfg ReducerConfig, i int, at time.Time, r *ReduceResult) bool {
	if i == s.Tuning.Band {
		return false
	}
	if s.Tuning.BandMemory == nil {
		s.Tuning.BandMemory = make(map[string]int64)
	}
	if b, ok := cfg.band(s.Tuning.Band); ok {
		s.Tuning.BandMemory[b.Name] = s.Tuning.FrequencyHz
	}
	s.Tuning.Band = i
	s.MarkDirty(at)

	name := ""
	if b, ok := cfg.band(i); ok {
		name = b.Name
	}
	r.Broadcasts = append(r.Broadcasts, BroadcastBandChanged{Band: name, At: at})
	return true
}

// bandEntryHz is where tuning lands when entering a band: the remembered
// frequency, else the band default, else the bottom edge.
func bandEntryHz(s *DaemonState, b BandConfig) int64 {
	if hz, ok := s.Tuning.BandMemory[b.Name]; ok {
		return hz
	}
	if b.DefaultHz != 0 {
		return b.DefaultHz
	}
	return b.LowHz
}

// adjacentBand picks the next or previous band. When tuning freely it picks
// the nearest band above or below the dial.
func adjacentBand(s *DaemonState, cfg ReducerConfig, next bool) int {
	n := len(cfg.Bands)
	if n == 0 {
		return -1
	}
	if s.Tuning.Band >= 0 {
		if next {
			return (s.Tuning.Band + 1) % n
		}
		return (s.Tuning.Band - 1 + n) % n
	}

	hz := s.Tuning.FrequencyHz
	if next {
		for i, b := range cfg.Bands {
			if b.LowHz > hz {
				return i
			}
		}
		return 0
	}
	for i := n - 1; i >= 0; i-- {
		if cfg.Bands[i].HighHz < hz {
			return i
		}
	}
	return n - 1
}

// Equal reports whether two persisted states carry the same values.
func (p PersistedState) Equal(o PersistedState) bool {
	return p.FrequencyHz == o.FrequencyHz &&
		p.StepHz == o.StepHz &&
		p.Band == o.Band &&
		maps.Equal(p.BandMemory, o.BandMemory)
}
