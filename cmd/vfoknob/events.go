package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - reducer inputs
// ============================================================================
// Events carry intent from the sources (encoder sampler, evdev buttons, IPC,
// the websocket server) and observations from the effects stage. Payload
// types stay free of timestamps; the daemon wraps them in TimedEvent.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent attaches the daemon's receive time to a payload event.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop at a fixed cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// EncoderTurn carries velocity-scaled detents drained from the step slot.
// Positive is clockwise.
type EncoderTurn struct {
	Steps int32 `json:"steps"`
}

func (EncoderTurn) eventMarker() {}

// StepFrequency moves the dial by Steps × the current step size, without
// velocity scaling.
type StepFrequency struct {
	Steps int `json:"steps"`
}

func (StepFrequency) eventMarker() {}

// SetFrequency tunes to an absolute frequency.
type SetFrequency struct {
	Hz     int64  `json:"hz"`
	Origin string `json:"origin,omitempty"`
}

func (SetFrequency) eventMarker() {}

// SelectBand activates a band by name; an empty name leaves band mode.
type SelectBand struct {
	Name string `json:"name"`
}

func (SelectBand) eventMarker() {}

type BandNext struct{}
type BandPrev struct{}

func (BandNext) eventMarker() {}
func (BandPrev) eventMarker() {}

// CycleStepSize advances to the next configured step size.
type CycleStepSize struct{}

func (CycleStepSize) eventMarker() {}

// SetStepSize sets an explicit step size.
type SetStepSize struct {
	Hz int64 `json:"hz"`
}

func (SetStepSize) eventMarker() {}

// KeyInput is a raw (undebounced) key level change.
type KeyInput struct {
	Down bool `json:"down"`
}

func (KeyInput) eventMarker() {}

// SetTransmit is a manual PTT override, ORed with the keyed state.
type SetTransmit struct {
	On bool `json:"on"`
}

func (SetTransmit) eventMarker() {}

// RequestStateSnapshot asks the daemon to publish its state to Reply.
// It never crosses the IPC socket.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// Observations from the effects stage
// ============================================================================

// SynthFrequencyObserved is emitted after the synthesizer accepted a frequency.
type SynthFrequencyObserved struct {
	Hz int64
	At time.Time
}

func (SynthFrequencyObserved) eventMarker() {}

// TransmitObserved is emitted after the TX output changed.
type TransmitObserved struct {
	On bool
	At time.Time
}

func (TransmitObserved) eventMarker() {}

// StateSaved is emitted after the state file was written.
type StateSaved struct {
	Saved PersistedState
	At    time.Time
}

func (StateSaved) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ============================================================================
// JSON envelope (IPC wire format)
// ============================================================================

// EventEnvelope wraps events with a type discriminator for JSON.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// decodeInto unmarshals env.Data into a fresh T.
func decodeInto[T Event](env EventEnvelope) (Event, error) {
	var v T
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Only events that make sense from outside the daemon are accepted.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "step_frequency":
		return decodeInto[StepFrequency](env)
	case "set_frequency":
		return decodeInto[SetFrequency](env)
	case "select_band":
		return decodeInto[SelectBand](env)
	case "band_next":
		return BandNext{}, nil
	case "band_prev":
		return BandPrev{}, nil
	case "cycle_step_size":
		return CycleStepSize{}, nil
	case "set_step_size":
		return decodeInto[SetStepSize](env)
	case "key_input":
		return decodeInto[KeyInput](env)
	case "set_transmit":
		return decodeInto[SetTransmit](env)
	case "encoder_turn":
		return decodeInto[EncoderTurn](env)
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope
	var payload any

	switch e := e.(type) {
	case StepFrequency:
		env.Type, payload = "step_frequency", e
	case SetFrequency:
		env.Type, payload = "set_frequency", e
	case SelectBand:
		env.Type, payload = "select_band", e
	case BandNext:
		env.Type = "band_next"
	case BandPrev:
		env.Type = "band_prev"
	case CycleStepSize:
		env.Type = "cycle_step_size"
	case SetStepSize:
		env.Type, payload = "set_step_size", e
	case KeyInput:
		env.Type, payload = "key_input", e
	case SetTransmit:
		env.Type, payload = "set_transmit", e
	case EncoderTurn:
		env.Type, payload = "encoder_turn", e
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
