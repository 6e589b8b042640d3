package main

import (
	"maps"
	"time"

	"vfoknob/encoder"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. Other goroutines get copies through
// StateSnapshot.
type DaemonState struct {
	// Tuning is what the operator asked for.
	Tuning TuningState

	// Synth and TX are what the hardware last confirmed.
	Synth SynthState
	TX    TransmitState

	// Keyer turns raw key edges into the keyed TX line.
	Keyer Keyer

	// ManualTX is the PTT override from IPC.
	ManualTX bool

	Persist PersistState

	Intent DaemonIntent
}

// TuningState is the reducer-owned VFO position.
type TuningState struct {
	FrequencyHz int64
	StepHz      int64
	StepIndex   int // index into ReducerConfig.StepSizes, -1 for an explicit size

	// Band is an index into ReducerConfig.Bands, -1 when tuning freely.
	Band       int
	BandMemory map[string]int64

	// LastDirection is the direction of the latest encoder turn.
	LastDirection encoder.Direction
}

// SynthState is the cached view of the synthesizer.
type SynthState struct {
	FrequencyHz int64
	Known       bool
	At          time.Time
}

// TransmitState is the cached view of the TX output.
type TransmitState struct {
	On    bool
	Known bool
	At    time.Time
}

// PersistState tracks whether the tuning state needs writing to disk.
type PersistState struct {
	Dirty     bool
	ChangedAt time.Time
	Saved     PersistedState
	SavedOK   bool
}

// DaemonIntent captures pending changes. Tick flushes them into commands,
// latest-wins.
type DaemonIntent struct {
	DesiredFrequencyHz *int64
	DesiredTransmit    *bool
}

// NewDaemonState seeds the state from config and whatever was restored from
// disk. The initial frequency is queued so the first tick programs the
// synthesizer.
func NewDaemonState(cfg ReducerConfig, initialHz int64, restored *PersistedState) *DaemonState {
	s := &DaemonState{
		Tuning: TuningState{
			FrequencyHz: initialHz,
			Band:        -1,
			BandMemory:  make(map[string]int64),
		},
		Keyer: NewKeyer(cfg.DebounceMS, cfg.TxDelayMS),
	}
	s.Tuning.StepIndex, s.Tuning.StepHz = 0, cfg.StepSizes[0]

	if restored != nil {
		if restored.StepHz > 0 {
			s.setStep(cfg, restored.StepHz)
		}
		maps.Copy(s.Tuning.BandMemory, restored.BandMemory)
		if restored.Band != "" {
			if i := cfg.bandIndex(restored.Band); i >= 0 {
				s.Tuning.Band = i
			}
		}
		if restored.FrequencyHz > 0 {
			s.Tuning.FrequencyHz = restored.FrequencyHz
		}
		s.Persist.Saved = *restored
		s.Persist.SavedOK = true
	}

	s.Tuning.FrequencyHz = cfg.clamp(s.Tuning.FrequencyHz, s.Tuning.Band)
	s.SetDesiredFrequency(s.Tuning.FrequencyHz)
	return s
}

func (s *DaemonState) setStep(cfg ReducerConfig, hz int64) {
	s.Tuning.StepHz = hz
	s.Tuning.StepIndex = -1
	for i, v := range cfg.StepSizes {
		if v == hz {
			s.Tuning.StepIndex = i
			break
		}
	}
}

// SetDesiredFrequency records a frequency intent.
func (s *DaemonState) SetDesiredFrequency(hz int64) {
	s.Intent.DesiredFrequencyHz = &hz
}

// SetDesiredTransmit records a TX intent.
func (s *DaemonState) SetDesiredTransmit(on bool) {
	s.Intent.DesiredTransmit = &on
}

// SetObservedFrequency updates the cached synthesizer frequency.
func (s *DaemonState) SetObservedFrequency(hz int64, now time.Time) {
	s.Synth.FrequencyHz = hz
	s.Synth.Known = true
	s.Synth.At = now
}

// SetObservedTransmit updates the cached TX output state.
func (s *DaemonState) SetObservedTransmit(on bool, now time.Time) {
	s.TX.On = on
	s.TX.Known = true
	s.TX.At = now
}

// MarkDirty schedules a state save.
func (s *DaemonState) MarkDirty(now time.Time) {
	s.Persist.Dirty = true
	s.Persist.ChangedAt = now
}

// Persisted returns the subset of state that survives restarts.
func (s *DaemonState) Persisted(cfg ReducerConfig) PersistedState {
	p := PersistedState{
		FrequencyHz: s.Tuning.FrequencyHz,
		StepHz:      s.Tuning.StepHz,
		BandMemory:  maps.Clone(s.Tuning.BandMemory),
	}
	if b, ok := cfg.band(s.Tuning.Band); ok {
		p.Band = b.Name
	}
	return p
}

// StateSnapshot is an immutable copy of the daemon state for other
// goroutines (websocket clients, the display renderer).
type StateSnapshot struct {
	FrequencyHz   int64
	DesiredHz     int64
	SynthKnown    bool
	SynthAt       time.Time
	StepHz        int64
	Band          string
	Transmitting  bool
	TXKnown       bool
	KeyDown       bool
	LastDirection string
	At            time.Time
}

// Snapshot builds a StateSnapshot.
func (s *DaemonState) Snapshot(cfg ReducerConfig, now time.Time) StateSnapshot {
	snap := StateSnapshot{
		FrequencyHz:   s.Synth.FrequencyHz,
		DesiredHz:     s.Tuning.FrequencyHz,
		SynthKnown:    s.Synth.Known,
		SynthAt:       s.Synth.At,
		StepHz:        s.Tuning.StepHz,
		Transmitting:  s.TX.On,
		TXKnown:       s.TX.Known,
		KeyDown:       s.Keyer.Down(),
		LastDirection: s.Tuning.LastDirection.String(),
		At:            now,
	}
	if !snap.SynthKnown {
		snap.FrequencyHz = s.Tuning.FrequencyHz
	}
	if b, ok := cfg.band(s.Tuning.Band); ok {
		snap.Band = b.Name
	}
	return snap
}
