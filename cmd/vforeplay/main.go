package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"

	"vfoknob/encoder"
)

// ============================================================================
// vforeplay - offline encoder capture tool
// ============================================================================
// decode:   replays a two-channel WAV logic capture of the A/B pins through
//           the decoder and velocity scaler, printing detents and a
//           multiplier histogram.
// generate: writes a synthetic spin as a WAV capture.
// ============================================================================

type decodeCmd struct {
	Input       string `arg:"positional,required" help:"input wav file"`
	ChannelA    int    `arg:"-a,--channel-a" help:"channel index of pin A"`
	ChannelB    int    `arg:"-b,--channel-b" help:"channel index of pin B"`
	PPR         int    `arg:"--ppr" help:"encoder pulses per revolution"`
	Granularity string `arg:"--granularity" help:"full or half"`
	TickHz      int64  `arg:"--tick-hz" help:"encoder tick rate"`
	ActiveLow   bool   `arg:"--active-low" help:"invert both channels"`
	Verbose     bool   `arg:"-v,--verbose" help:"print every detent"`
}

type generateCmd struct {
	Output   string        `arg:"positional" help:"output wav file [spin.wav]"`
	Detents  int           `arg:"-n,--detents" help:"number of detents"`
	Start    time.Duration `arg:"--start" help:"period of the first detent"`
	End      time.Duration `arg:"--end" help:"period of the last detent"`
	CCW      bool          `arg:"--ccw" help:"spin counter-clockwise"`
	HalfStep bool          `arg:"--half" help:"use half-step detents"`
	Rate     int           `arg:"--rate" help:"sample rate"`
	Bits     int           `arg:"--bits" help:"bit depth"`
}

var args struct {
	Decode   *decodeCmd   `arg:"subcommand:decode" help:"replay a capture through the decoder"`
	Generate *generateCmd `arg:"subcommand:generate" help:"write a synthetic spin"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	p := arg.MustParse(&args)

	switch {
	case args.Decode != nil:
		return runDecode(args.Decode)
	case args.Generate != nil:
		return runGenerate(args.Generate)
	}
	p.Fail("missing command")
	return nil
}

func runDecode(c *decodeCmd) error {
	applyDecodeDefaults(c)

	g, err := encoder.ParseGranularity(c.Granularity)
	if err != nil {
		return err
	}
	enc, err := encoder.New(encoder.Config{PulsesPerRevolution: c.PPR, Granularity: g})
	if err != nil {
		return err
	}

	capture, err := loadWAV(c.Input)
	if err != nil {
		return err
	}

	type d = time.Duration
	fmt.Printf("input:    %v frames x %v channels, %v-bit at %v Hz = %v\n",
		capture.Frames(), capture.Channels, capture.BitDepth, capture.Rate,
		d(capture.Frames())*time.Second/d(capture.Rate))

	res, err := replay(capture, enc, ReplayOptions{
		ChannelA: c.ChannelA,
		ChannelB: c.ChannelB,
		TickHz:   c.TickHz,
		Invert:   c.ActiveLow,
	})
	if err != nil {
		return err
	}
	printResult(os.Stdout, capture, res, c.Verbose)
	return nil
}

func applyDecodeDefaults(c *decodeCmd) {
	if c.ChannelA == 0 && c.ChannelB == 0 {
		c.ChannelB = 1
	}
	if c.PPR == 0 {
		c.PPR = encoder.ReferencePPR
	}
	if c.TickHz == 0 {
		c.TickHz = 2_000_000
	}
}

func runGenerate(c *generateCmd) error {
	if c.Output == "" {
		c.Output = "spin.wav"
	}
	if c.Detents == 0 {
		c.Detents = 50
	}
	if c.Start == 0 {
		c.Start = 10 * time.Millisecond
	}
	if c.End == 0 {
		c.End = c.Start
	}
	if c.Rate == 0 {
		c.Rate = 48000
	}
	if c.Bits == 0 {
		c.Bits = 16
	}

	capture, err := generateSpin(SpinOptions{
		Detents:    c.Detents,
		Start:      c.Start,
		End:        c.End,
		CounterCW:  c.CCW,
		HalfStep:   c.HalfStep,
		Rate:       c.Rate,
		BitDepth:   c.Bits,
		LeadFrames: c.Rate / 100,
	})
	if err != nil {
		return err
	}
	if err := saveWAV(c.Output, capture); err != nil {
		return err
	}
	fmt.Printf("wrote %d detents to %s\n", c.Detents, c.Output)
	return nil
}
