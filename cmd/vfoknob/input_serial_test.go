package main

import (
	"context"
	"io"
	"testing"

	"vfoknob/encoder"
)

func frame(pins byte, tick uint16) []byte {
	lo, hi := byte(tick), byte(tick>>8)
	return []byte{frameSync, pins, lo, hi, pins ^ lo ^ hi}
}

// TestFrameParser_Basic tests decoding of well-formed frames split across
// reads.
func TestFrameParser_Basic(t *testing.T) {
	var p frameParser
	stream := append(frame(0b01, 0x1234), frame(0b111, 0xFFFF)...)

	got := p.Push(stream[:3])
	if len(got) != 0 {
		t.Fatalf("expected no frame from a partial read, got %d", len(got))
	}
	got = p.Push(stream[3:])
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[0].Pins != 0b01 || got[0].KeyDown || got[0].Tick != 0x1234 {
		t.Errorf("unexpected first frame %+v", got[0])
	}
	if got[1].Pins != 0b11 || !got[1].KeyDown || got[1].Tick != 0xFFFF {
		t.Errorf("unexpected second frame %+v", got[1])
	}
	if p.Dropped() != 0 {
		t.Errorf("expected no dropped bytes, got %d", p.Dropped())
	}
}

// TestFrameParser_Resync tests recovery from garbage and a bad checksum.
func TestFrameParser_Resync(t *testing.T) {
	var p frameParser
	bad := frame(0b10, 0x0102)
	bad[4] ^= 0xFF

	var stream []byte
	stream = append(stream, 0x00, 0x13)
	stream = append(stream, bad...)
	stream = append(stream, frame(0b10, 0x0304)...)

	got := p.Push(stream)
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if got[0].Pins != 0b10 || got[0].Tick != 0x0304 {
		t.Errorf("unexpected frame %+v", got[0])
	}
	if p.Dropped() != 2+len(bad) {
		t.Errorf("expected %d dropped bytes, got %d", 2+len(bad), p.Dropped())
	}
}

// TestFrameParser_SyncInsidePayload tests that a sync byte in the payload
// of a corrupt frame is tried as a frame start.
func TestFrameParser_SyncInsidePayload(t *testing.T) {
	var p frameParser
	good := frame(0b01, 0x00A5)
	stream := append([]byte{frameSync, 0x00}, good...)

	got := p.Push(stream)
	if len(got) != 1 || got[0].Tick != 0x00A5 {
		t.Fatalf("expected the good frame, got %+v", got)
	}
}

// scriptReader returns its chunks then cancels the context.
type scriptReader struct {
	chunks [][]byte
	cancel context.CancelFunc
}

func (r *scriptReader) Read(b []byte) (int, error) {
	if len(r.chunks) == 0 {
		r.cancel()
		return 0, io.EOF
	}
	n := copy(b, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

// TestPumpFrames tests the serial read loop end to end.
func TestPumpFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var chunks [][]byte
	for i, p := range cwQuadrature {
		chunks = append(chunks, frame(byte(p), uint16(i*100)))
	}
	// Key down on the last sample.
	chunks = append(chunks, frame(byte(encoder.PinSample(0))|framePinKey, 500))

	s, slot, _ := newTestSampler(t, false)
	events := make(chan Event, 4)
	r := &scriptReader{chunks: chunks, cancel: cancel}

	if err := pumpFrames(ctx, r, s, events, newTestLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := slot.Take(); got != 1 {
		t.Errorf("expected 1 step, got %d", got)
	}
	select {
	case ev := <-events:
		if ev != (KeyInput{Down: true}) {
			t.Errorf("expected key down, got %#v", ev)
		}
	default:
		t.Errorf("expected a key event")
	}
}
