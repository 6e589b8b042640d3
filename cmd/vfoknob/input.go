package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"vfoknob/encoder"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents reads input events from f until a read fails or ctx is
// done. It runs in a dedicated goroutine per device.
func readInputEvents(ctx context.Context, f *os.File, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			select {
			case readErr <- fmt.Errorf("read from %s: %w", f.Name(), err):
			case <-ctx.Done():
			}
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// timevalTick maps an event timestamp onto the encoder's free-running
// counter. Seconds and microseconds are scaled separately so the product
// stays within 64 bits for any realistic clock.
func timevalTick(sec, usec int64, hz uint64) encoder.Tick {
	t := uint64(sec)*hz + uint64(usec)*hz/1_000_000
	return encoder.Tick(t)
}

// evdevTracker turns gpio-keys events into encoder samples and daemon
// events. Each channel of the encoder shows up as its own key code.
type evdevTracker struct {
	cfg    InputConfig
	tickHz uint64
	pins   encoder.PinSample
}

func newEvdevTracker(cfg InputConfig, tickHz int) *evdevTracker {
	return &evdevTracker{cfg: cfg, tickHz: uint64(tickHz)}
}

// handle returns a pin sample when an encoder channel changed, and an Event
// for panel keys. Repeats and non-key events yield nothing.
func (t *evdevTracker) handle(ev inputEvent) (PinEvent, bool, Event) {
	if ev.Type != EV_KEY || ev.Value == evValueRepeat {
		return PinEvent{}, false, nil
	}
	pressed := ev.Value == evValuePress

	switch ev.Code {
	case t.cfg.CodeA, t.cfg.CodeB:
		bit := encoder.PinSample(0x01)
		if ev.Code == t.cfg.CodeB {
			bit = 0x02
		}
		next := t.pins &^ bit
		if pressed {
			next |= bit
		}
		if next == t.pins {
			return PinEvent{}, false, nil
		}
		t.pins = next
		return PinEvent{Pins: next, Tick: timevalTick(ev.Sec, ev.Usec, t.tickHz)}, true, nil

	case t.cfg.KeyCode:
		return PinEvent{}, false, KeyInput{Down: pressed}
	}

	if !pressed {
		return PinEvent{}, false, nil
	}
	switch ev.Code {
	case t.cfg.BandNextCode:
		return PinEvent{}, false, BandNext{}
	case t.cfg.BandPrevCode:
		return PinEvent{}, false, BandPrev{}
	case t.cfg.StepCode:
		return PinEvent{}, false, CycleStepSize{}
	}
	return PinEvent{}, false, nil
}

// runEvdevSource reads the configured input devices until ctx is canceled or
// a device fails.
func runEvdevSource(ctx context.Context, cfg InputConfig, tickHz int, sampler *Sampler, events chan<- Event, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(cfg.Devices))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, dev := range cfg.Devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device: %w", err)
		}
		files = append(files, f)
		logger.Info("input device opened", "device", dev)
	}

	raw := make(chan inputEvent, 64)
	readErr := make(chan error, len(files))
	if cfg.UseEpoll {
		go readInputEventsEpoll(ctx, files, raw, readErr)
	} else {
		for _, f := range files {
			go readInputEvents(ctx, f, raw, readErr)
		}
	}

	tracker := newEvdevTracker(cfg, tickHz)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case ev := <-raw:
			pe, ok, out := tracker.handle(ev)
			if ok {
				sampler.Feed(pe)
			}
			if out != nil {
				sendEvent(events, out, logger)
			}
		}
	}
}

// sendEvent hands a panel event to the daemon, dropping it when the queue is
// full rather than stalling the input.
func sendEvent(events chan<- Event, ev Event, logger *slog.Logger) {
	select {
	case events <- ev:
	default:
		logger.Warn("event queue full; dropping input event", "event", fmt.Sprintf("%T", ev))
	}
}
