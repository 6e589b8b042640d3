package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tarm/serial"

	"vfoknob/encoder"
)

// Frames from the sampling microcontroller:
//
//	0xA5 pins tickLo tickHi check
//
// pins bit 0 is A, bit 1 is B, bit 2 is the key (1 = down). tick is the
// MCU's free-running counter at the moment of sampling. check is the XOR of
// pins, tickLo and tickHi.
const (
	frameSync = 0xA5
	frameLen  = 5

	framePinKey = 0x04
)

// serialFrame is one decoded sample.
type serialFrame struct {
	Pins    encoder.PinSample
	KeyDown bool
	Tick    encoder.Tick
}

// frameParser reassembles frames from an arbitrary byte stream. A bad check
// byte drops only the sync byte, so the parser slides forward until it finds
// the next valid frame.
type frameParser struct {
	buf     []byte
	dropped int
}

// Push appends data and returns every complete frame found.
func (p *frameParser) Push(data []byte) []serialFrame {
	p.buf = append(p.buf, data...)
	var out []serialFrame
	for {
		i := 0
		for i < len(p.buf) && p.buf[i] != frameSync {
			i++
		}
		p.dropped += i
		p.buf = p.buf[i:]
		if len(p.buf) < frameLen {
			break
		}
		f := p.buf[:frameLen]
		if f[1]^f[2]^f[3] != f[4] {
			p.dropped++
			p.buf = p.buf[1:]
			continue
		}
		out = append(out, serialFrame{
			Pins:    encoder.PinSample(f[1] & 0x03),
			KeyDown: f[1]&framePinKey != 0,
			Tick:    encoder.Tick(binary.LittleEndian.Uint16(f[2:4])),
		})
		p.buf = p.buf[frameLen:]
	}
	// Keep the backing array from growing without bound.
	if len(p.buf) == 0 {
		p.buf = p.buf[:0:0]
	}
	return out
}

// Dropped reports how many bytes were skipped while resynchronizing.
func (p *frameParser) Dropped() int { return p.dropped }

// serialPort wraps the tarm/serial implementation.
type serialPort struct {
	port *serial.Port
}

func openSerialPort(device string, baud int) (*serialPort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 250 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return &serialPort{port: port}, nil
}

func (p *serialPort) Read(b []byte) (int, error) { return p.port.Read(b) }
func (p *serialPort) Close() error               { return p.port.Close() }

// runSerialSource decodes frames from the MCU until ctx is canceled or the
// port fails. Ticks come from the MCU, so host scheduling jitter does not
// affect the velocity measurement.
func runSerialSource(ctx context.Context, cfg InputConfig, sampler *Sampler, events chan<- Event, logger *slog.Logger) error {
	port, err := openSerialPort(cfg.SerialDevice, cfg.SerialBaud)
	if err != nil {
		return err
	}
	defer port.Close()
	logger.Info("serial input opened", "device", cfg.SerialDevice, "baud", cfg.SerialBaud)

	return pumpFrames(ctx, port, sampler, events, logger)
}

// pumpFrames is the read loop behind runSerialSource.
func pumpFrames(ctx context.Context, r io.Reader, sampler *Sampler, events chan<- Event, logger *slog.Logger) error {
	var parser frameParser
	buf := make([]byte, 256)
	keyDown := false
	lastDropped := 0

	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if n > 0 {
			for _, f := range parser.Push(buf[:n]) {
				sampler.Feed(PinEvent{Pins: f.Pins, Tick: f.Tick})
				if f.KeyDown != keyDown {
					keyDown = f.KeyDown
					sendEvent(events, KeyInput{Down: keyDown}, logger)
				}
			}
			if d := parser.Dropped(); d != lastDropped {
				logger.Debug("serial resync", "dropped_bytes", d-lastDropped)
				lastDropped = d
			}
		}
		if err != nil {
			// A read timeout with no data shows up as EOF.
			if errors.Is(err, io.EOF) {
				continue
			}
			return fmt.Errorf("serial read: %w", err)
		}
	}
	return nil
}
