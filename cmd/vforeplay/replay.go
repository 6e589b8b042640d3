package main

import (
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"vfoknob/encoder"
)

// Detent is one completed step seen during a replay.
type Detent struct {
	Frame      int
	Tick       encoder.Tick
	Multiplier int16
}

// Result summarizes a replay.
type Result struct {
	Detents   []Detent
	Edges     int
	Clockwise int
	Counter   int
	Net       int64
}

// Histogram counts detents per absolute multiplier, ordered by multiplier.
func (r *Result) Histogram() ([]int16, map[int16]int) {
	counts := make(map[int16]int)
	for _, d := range r.Detents {
		m := d.Multiplier
		if m < 0 {
			m = -m
		}
		counts[m]++
	}
	keys := make([]int16, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, counts
}

// ReplayOptions selects channels and timing for a replay.
type ReplayOptions struct {
	ChannelA int
	ChannelB int
	TickHz   int64
	Invert   bool
}

// threshold is the midpoint between the lowest and highest sample. A flat
// channel maps to all-low.
func threshold(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	lo, hi := slices.Min(samples), slices.Max(samples)
	if lo == hi {
		return hi
	}
	return lo + (hi-lo)/2
}

// frameTick maps a frame index to the wrapping encoder tick.
func frameTick(frame int, rate int, tickHz int64) encoder.Tick {
	return encoder.Tick(uint64(frame) * uint64(tickHz) / uint64(rate))
}

// replay feeds every pin change in c to enc, like a pin-change interrupt.
func replay(c *Capture, enc *encoder.Encoder, opts ReplayOptions) (*Result, error) {
	if c.Channels < 2 {
		return nil, fmt.Errorf("need at least 2 channels, got %d", c.Channels)
	}
	if opts.ChannelA < 0 || opts.ChannelA >= c.Channels || opts.ChannelB < 0 || opts.ChannelB >= c.Channels {
		return nil, fmt.Errorf("channels %d/%d out of range for %d-channel input", opts.ChannelA, opts.ChannelB, c.Channels)
	}
	if opts.ChannelA == opts.ChannelB {
		return nil, fmt.Errorf("channel A and B must differ")
	}
	if c.Rate <= 0 || opts.TickHz <= 0 {
		return nil, fmt.Errorf("sample rate and tick rate must be positive")
	}

	a, b := c.Channel(opts.ChannelA), c.Channel(opts.ChannelB)
	ta, tb := threshold(a), threshold(b)

	var invert encoder.PinSample
	if opts.Invert {
		invert = 0x03
	}

	res := &Result{}
	prev := encoder.PinSample(0xff)
	for i := range a {
		pins := encoder.NewPinSample(a[i] > ta, b[i] > tb) ^ invert
		if pins == prev {
			continue
		}
		prev = pins
		res.Edges++

		now := frameTick(i, c.Rate, opts.TickHz)
		m := enc.Sample(pins, now)
		if m == 0 {
			continue
		}
		res.Detents = append(res.Detents, Detent{Frame: i, Tick: now, Multiplier: m})
		res.Net += int64(m)
		if m > 0 {
			res.Clockwise++
		} else {
			res.Counter++
		}
	}
	return res, nil
}

func printResult(w io.Writer, c *Capture, r *Result, verbose bool) {
	if verbose {
		for _, d := range r.Detents {
			fmt.Fprintf(w, "%10d  %8.3f ms  tick=%5d  %+d\n",
				d.Frame, float64(d.Frame)*1000/float64(c.Rate), d.Tick, d.Multiplier)
		}
	}
	fmt.Fprintf(w, "edges:    %d\n", r.Edges)
	fmt.Fprintf(w, "detents:  %d (cw %d, ccw %d)\n", len(r.Detents), r.Clockwise, r.Counter)
	fmt.Fprintf(w, "net:      %+d\n", r.Net)
	keys, counts := r.Histogram()
	for _, k := range keys {
		fmt.Fprintf(w, "  x%-4d %d\n", k, counts[k])
	}
}
