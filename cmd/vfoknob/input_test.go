package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"vfoknob/encoder"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// cwQuadrature is one full clockwise cycle from rest.
var cwQuadrature = []encoder.PinSample{0b01, 0b11, 0b10, 0b00}

func newTestSampler(t *testing.T, activeLow bool) (*Sampler, *encoder.StepSlot, chan struct{}) {
	t.Helper()
	enc, err := encoder.New(encoder.Config{PulsesPerRevolution: 250, Granularity: encoder.FullStep})
	if err != nil {
		t.Fatal(err)
	}
	slot := &encoder.StepSlot{}
	notify := make(chan struct{}, 1)
	return NewSampler(enc, slot, notify, activeLow), slot, notify
}

// TestSampler_FeedsSlot tests that a full cycle lands in the slot and pokes
// the daemon.
func TestSampler_FeedsSlot(t *testing.T) {
	s, slot, notify := newTestSampler(t, false)

	var got []int16
	for i, p := range cwQuadrature {
		got = append(got, s.Feed(PinEvent{Pins: p, Tick: encoder.Tick(i * 100)}))
	}
	if got[3] != 1 {
		t.Errorf("expected a slow first detent (1), got %v", got)
	}
	if slot.Take() != 1 {
		t.Errorf("expected 1 step pending")
	}
	select {
	case <-notify:
	default:
		t.Errorf("expected a notify poke")
	}
}

// TestSampler_ActiveLow tests that inverted inputs decode like normal ones.
func TestSampler_ActiveLow(t *testing.T) {
	s, slot, _ := newTestSampler(t, true)
	for i, p := range cwQuadrature {
		s.Feed(PinEvent{Pins: p ^ 0x03, Tick: encoder.Tick(i)})
	}
	if got := slot.Take(); got != 1 {
		t.Errorf("expected 1 step, got %d", got)
	}
}

// TestSampler_NotifyNeverBlocks tests that a full notify channel does not
// stall the sampler.
func TestSampler_NotifyNeverBlocks(t *testing.T) {
	s, slot, _ := newTestSampler(t, false)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for turn := 0; turn < 10; turn++ {
			for _, p := range cwQuadrature {
				s.Feed(PinEvent{Pins: p, Tick: encoder.Tick(turn * 60_000)})
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler blocked on notify")
	}
	if got := slot.Pending(); got <= 0 {
		t.Errorf("expected pending clockwise steps, got %d", got)
	}
}

// TestTimevalTick tests the evdev timestamp conversion.
func TestTimevalTick(t *testing.T) {
	const hz = 2_000_000
	if got := timevalTick(0, 500, hz); got != 1000 {
		t.Errorf("expected 1000, got %d", got)
	}
	a := timevalTick(1_700_000_000, 999_990, hz)
	b := timevalTick(1_700_000_001, 10, hz)
	if d := encoder.Elapsed(a, b); d != 40 {
		t.Errorf("expected 40 ticks across the second boundary, got %d", d)
	}
}

// TestDurationTick tests the gpio timestamp conversion.
func TestDurationTick(t *testing.T) {
	const hz = 2_000_000
	if got := durationTick(500*time.Microsecond, hz); got != 1000 {
		t.Errorf("expected 1000, got %d", got)
	}
	a := durationTick(3*time.Second-10*time.Microsecond, hz)
	b := durationTick(3*time.Second+10*time.Microsecond, hz)
	if d := encoder.Elapsed(a, b); d != 40 {
		t.Errorf("expected 40, got %d", d)
	}
}

func keyEvent(code uint16, value int32, usec int64) inputEvent {
	return inputEvent{Sec: 100, Usec: usec, Type: EV_KEY, Code: code, Value: value}
}

// TestEvdevTracker_Channels tests that channel keys become pin samples.
func TestEvdevTracker_Channels(t *testing.T) {
	tr := newEvdevTracker(DefaultConfig().Input, 2_000_000)

	seq := []struct {
		ev   inputEvent
		want encoder.PinSample
	}{
		{keyEvent(KEY_F2, evValuePress, 0), 0b10},
		{keyEvent(KEY_F1, evValuePress, 100), 0b11},
		{keyEvent(KEY_F2, evValueRelease, 200), 0b01},
		{keyEvent(KEY_F1, evValueRelease, 300), 0b00},
	}
	for i, s := range seq {
		pe, ok, out := tr.handle(s.ev)
		if !ok || out != nil {
			t.Fatalf("step %d: expected a pin sample only, got ok=%v out=%v", i, ok, out)
		}
		if pe.Pins != s.want {
			t.Errorf("step %d: expected pins %02b, got %02b", i, s.want, pe.Pins)
		}
		if pe.Tick != timevalTick(100, s.ev.Usec, 2_000_000) {
			t.Errorf("step %d: unexpected tick %d", i, pe.Tick)
		}
	}

	// A repeated level is not a new sample.
	if _, ok, _ := tr.handle(keyEvent(KEY_F1, evValueRelease, 400)); ok {
		t.Errorf("expected no sample for an unchanged level")
	}
}

// TestEvdevTracker_PanelKeys tests the button mappings.
func TestEvdevTracker_PanelKeys(t *testing.T) {
	tr := newEvdevTracker(DefaultConfig().Input, 2_000_000)

	tests := []struct {
		ev   inputEvent
		want Event
	}{
		{keyEvent(KEY_SPACE, evValuePress, 0), KeyInput{Down: true}},
		{keyEvent(KEY_SPACE, evValueRelease, 0), KeyInput{Down: false}},
		{keyEvent(KEY_PAGEUP, evValuePress, 0), BandNext{}},
		{keyEvent(KEY_PAGEDOWN, evValuePress, 0), BandPrev{}},
		{keyEvent(KEY_TAB, evValuePress, 0), CycleStepSize{}},
		{keyEvent(KEY_PAGEUP, evValueRelease, 0), nil},
		{keyEvent(KEY_PAGEUP, evValueRepeat, 0), nil},
		{keyEvent(KEY_SPACE, evValueRepeat, 0), nil},
		{inputEvent{Type: EV_SYN}, nil},
	}
	for i, tc := range tests {
		_, ok, got := tr.handle(tc.ev)
		if ok {
			t.Errorf("case %d: unexpected pin sample", i)
		}
		if got != tc.want {
			t.Errorf("case %d: expected %#v, got %#v", i, tc.want, got)
		}
	}
}

// TestReadInputEvents tests decoding of raw input_event records.
func TestReadInputEvents(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var buf bytes.Buffer
	want := []inputEvent{
		{Sec: 1, Usec: 2, Type: EV_KEY, Code: KEY_F1, Value: 1},
		{Sec: 3, Usec: 4, Type: EV_SYN},
	}
	for _, ev := range want {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatal(err)
		}
	}

	events := make(chan inputEvent, 4)
	readErr := make(chan error, 1)
	go readInputEvents(context.Background(), r, events, readErr)

	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	w.Close()

	for i, ev := range want {
		select {
		case got := <-events:
			if got != ev {
				t.Errorf("event %d: expected %+v, got %+v", i, ev, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
	select {
	case <-readErr:
	case <-time.After(time.Second):
		t.Fatal("expected a read error after EOF")
	}
}

// TestReadInputEvents_StopsOnCancel tests that a reader with nobody
// draining its channel exits once the context is canceled.
func TestReadInputEvents_StopsOnCancel(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inputEvent) // never read
	readErr := make(chan error)     // never read
	done := make(chan struct{})
	go func() {
		readInputEvents(ctx, r, events, readErr)
		close(done)
	}()

	cancel()
	ev := inputEvent{Sec: 1, Type: EV_KEY, Code: KEY_F1, Value: 1}
	if err := binary.Write(w, binary.LittleEndian, ev); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected reader to exit after cancel")
	}
}

// TestSendEvent_DropsWhenFull tests that inputs never block on the daemon.
func TestSendEvent_DropsWhenFull(t *testing.T) {
	events := make(chan Event, 1)
	sendEvent(events, BandNext{}, newTestLogger())
	sendEvent(events, BandPrev{}, newTestLogger())
	if got := <-events; got != (BandNext{}) {
		t.Errorf("expected the first event kept, got %#v", got)
	}
}

// TestRunEvdevSource_MissingDevice tests the open failure path.
func TestRunEvdevSource_MissingDevice(t *testing.T) {
	cfg := DefaultConfig().Input
	cfg.Devices = []string{"/nonexistent/event99"}
	s, _, _ := newTestSampler(t, false)
	err := runEvdevSource(context.Background(), cfg, 2_000_000, s, make(chan Event, 1), newTestLogger())
	if err == nil {
		t.Errorf("expected an open error")
	}
}
