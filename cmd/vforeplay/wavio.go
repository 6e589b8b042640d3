package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Capture is an interleaved multi-channel PCM recording of the encoder pins.
type Capture struct {
	Data     []int
	Channels int
	Rate     int
	BitDepth int
}

// Frames returns the number of sample frames (one sample per channel).
func (c *Capture) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Data) / c.Channels
}

// Channel copies one channel out of the interleaved data.
func (c *Capture) Channel(ch int) []int {
	out := make([]int, c.Frames())
	for i := range out {
		out[i] = c.Data[i*c.Channels+ch]
	}
	return out
}

func loadWAV(fn string) (*Capture, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if err := d.FwdToPCM(); err != nil {
		return nil, err
	}

	if d.BitDepth < 8 || d.BitDepth > 32 || d.BitDepth%8 != 0 {
		return nil, fmt.Errorf("bad bit depth: %v", d.BitDepth)
	}
	expectedSamples := int(d.PCMLen() / int64(d.BitDepth/8))

	// +1 in case the chunk length is padded
	buf := &audio.IntBuffer{
		Data: make([]int, expectedSamples+1),
	}
	n, err := d.PCMBuffer(buf)
	if err != nil {
		return nil, err
	}
	buf.Data = buf.Data[:n]

	if err := d.Err(); err != nil {
		return nil, err
	}

	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("missing or bad PCM format information")
	}

	return &Capture{
		Data:     buf.Data,
		Channels: buf.Format.NumChannels,
		Rate:     buf.Format.SampleRate,
		BitDepth: int(d.BitDepth),
	}, nil
}

func saveWAV(fn string, c *Capture) (er error) {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil && er == nil {
			er = err
		}
	}()

	e := wav.NewEncoder(f, c.Rate, c.BitDepth, c.Channels, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: c.Channels,
			SampleRate:  c.Rate,
		},
		Data:           c.Data,
		SourceBitDepth: c.BitDepth,
	}
	if err := e.Write(buf); err != nil {
		return err
	}
	return e.Close()
}
