package main

import (
	"fmt"
	"time"
)

// SpinOptions describes a synthetic spin: Detents steps whose period moves
// linearly from Start to End.
type SpinOptions struct {
	Detents    int
	Start      time.Duration
	End        time.Duration
	CounterCW  bool
	HalfStep   bool
	Rate       int
	BitDepth   int
	LeadFrames int
}

var (
	fullCW  = []uint8{0b01, 0b11, 0b10, 0b00}
	fullCCW = []uint8{0b10, 0b11, 0b01, 0b00}
	halfCW  = []uint8{0b01, 0b11}
	halfCCW = []uint8{0b10, 0b11}
)

// generateSpin renders a two-channel capture of channel A on the left and B
// on the right. High is three quarters of full scale, low is zero.
func generateSpin(o SpinOptions) (*Capture, error) {
	if o.Detents <= 0 {
		return nil, fmt.Errorf("detents must be > 0, got %d", o.Detents)
	}
	if o.Rate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", o.Rate)
	}
	if o.BitDepth != 8 && o.BitDepth != 16 && o.BitDepth != 24 && o.BitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", o.BitDepth)
	}
	if o.Start <= 0 || o.End <= 0 {
		return nil, fmt.Errorf("periods must be positive")
	}

	seq := fullCW
	switch {
	case o.HalfStep && o.CounterCW:
		seq = halfCCW
	case o.HalfStep:
		seq = halfCW
	case o.CounterCW:
		seq = fullCCW
	}

	high := (1<<(o.BitDepth-1) - 1) * 3 / 4
	if o.BitDepth == 8 {
		// 8-bit PCM is unsigned
		high = 255 * 3 / 4
	}

	var data []int
	var last uint8
	emit := func(pins uint8, frames int) {
		last = pins
		a, b := 0, 0
		if pins&0x01 != 0 {
			a = high
		}
		if pins&0x02 != 0 {
			b = high
		}
		for i := 0; i < frames; i++ {
			data = append(data, a, b)
		}
	}

	// For half-step the 11 state is itself a detent, so alternate the
	// phase of the sequence: 00 -> 01 -> 11, then 11 -> 10 -> 00.
	halfBack := []uint8{seq[0] ^ 0b11, 0b00}

	emit(0, o.LeadFrames)
	var carry float64
	for k := 0; k < o.Detents; k++ {
		period := o.Start
		if o.Detents > 1 {
			period += time.Duration(int64(o.End-o.Start) * int64(k) / int64(o.Detents-1))
		}
		steps := seq
		if o.HalfStep && k%2 == 1 {
			steps = halfBack
		}
		per := period.Seconds() * float64(o.Rate) / float64(len(steps))
		for _, p := range steps {
			carry += per
			n := int(carry)
			carry -= float64(n)
			if n < 1 {
				n = 1
			}
			emit(p, n)
		}
	}
	emit(last, o.LeadFrames)

	return &Capture{Data: data, Channels: 2, Rate: o.Rate, BitDepth: o.BitDepth}, nil
}
