package main

import (
	"strings"
	"testing"
)

// TestEventEnvelope_RoundTrip tests that every IPC event survives the wire.
func TestEventEnvelope_RoundTrip(t *testing.T) {
	events := []Event{
		StepFrequency{Steps: -3},
		SetFrequency{Hz: 7_074_000, Origin: "test"},
		SelectBand{Name: "20m"},
		BandNext{},
		BandPrev{},
		CycleStepSize{},
		SetStepSize{Hz: 100},
		KeyInput{Down: true},
		SetTransmit{On: true},
		EncoderTurn{Steps: 120},
	}
	for _, ev := range events {
		b, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("%T: marshal: %v", ev, err)
		}
		got, err := UnmarshalEvent(b)
		if err != nil {
			t.Fatalf("%T: unmarshal %s: %v", ev, b, err)
		}
		if got != ev {
			t.Errorf("expected %#v, got %#v", ev, got)
		}
	}
}

// TestUnmarshalEvent_Errors tests malformed input.
func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`not json`, "envelope"},
		{`{"type":"launch_missiles"}`, "unknown event type"},
		{`{"type":"set_frequency"}`, "missing data"},
		{`{"type":"set_frequency","data":{"hz":"fast"}}`, "unmarshal set_frequency"},
	}
	for _, tc := range tests {
		_, err := UnmarshalEvent([]byte(tc.in))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected error containing %q, got %v", tc.in, tc.want, err)
		}
	}
}

// TestMarshalEvent_InternalRejected tests that daemon-internal events never
// go on the wire.
func TestMarshalEvent_InternalRejected(t *testing.T) {
	for _, ev := range []Event{Tick{}, RequestStateSnapshot{}, SynthFrequencyObserved{}} {
		if _, err := MarshalEvent(ev); err == nil {
			t.Errorf("%T: expected an error", ev)
		}
	}
}
