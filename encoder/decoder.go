package encoder

import "fmt"

// PinSample is the instantaneous level of both encoder channels.
// Bit 0 is channel A, bit 1 is channel B; higher bits are ignored.
type PinSample uint8

// NewPinSample packs two channel levels into a PinSample.
func NewPinSample(a, b bool) PinSample {
	var s PinSample
	if a {
		s |= 0x01
	}
	if b {
		s |= 0x02
	}
	return s
}

// Granularity selects how many edges make up one reported step.
type Granularity uint8

const (
	// FullStep reports once per complete 4-edge quadrature cycle.
	FullStep Granularity = iota
	// HalfStep reports once per 2-edge half cycle (detents at 00 and 11).
	HalfStep
)

func (g Granularity) String() string {
	switch g {
	case FullStep:
		return "full"
	case HalfStep:
		return "half"
	default:
		return fmt.Sprintf("granularity(%d)", uint8(g))
	}
}

// ParseGranularity accepts "full" or "half".
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "full", "full-step", "":
		return FullStep, nil
	case "half", "half-step":
		return HalfStep, nil
	default:
		return 0, fmt.Errorf("%w: unknown granularity %q (must be full or half)", ErrInvalidConfiguration, s)
	}
}

// Table entries hold the next state in the low nibble and, on completing
// transitions, a Direction flag in bits 4-5.
const (
	stateMask = 0x0f
	dirMask   = 0x30
)

// Full-step states. The settled position is 00; a clockwise detent walks
// 00 -> 01 -> 11 -> 10 -> 00.
const (
	fsStart = iota
	fsCWBegin
	fsCWNext
	fsCWFinal
	fsCCWBegin
	fsCCWNext
	fsCCWFinal
)

// fullStepTable is indexed by [state][sample]. Any sample that does not
// continue the sequence in progress falls back towards fsStart without
// setting a direction flag.
var fullStepTable = [...][4]uint8{
	// columns: sample 00, 01, 10, 11
	fsStart:    {fsStart, fsCWBegin, fsCCWBegin, fsStart},
	fsCWBegin:  {fsStart, fsCWBegin, fsStart, fsCWNext},
	fsCWNext:   {fsStart, fsCWBegin, fsCWFinal, fsCWNext},
	fsCWFinal:  {fsStart | uint8(Clockwise), fsStart, fsCWFinal, fsCWNext},
	fsCCWBegin: {fsStart, fsStart, fsCCWBegin, fsCCWNext},
	fsCCWNext:  {fsStart, fsCCWFinal, fsCCWBegin, fsCCWNext},
	fsCCWFinal: {fsStart | uint8(CounterClockwise), fsCCWFinal, fsStart, fsCCWNext},
}

// Half-step states. Both 00 and 11 are detents; the "M" states mirror the
// plain ones around the 11 detent.
const (
	hsStart = iota
	hsCWBegin
	hsCCWBegin
	hsStartM
	hsCWBeginM
	hsCCWBeginM
)

var halfStepTable = [...][4]uint8{
	// columns: sample 00, 01, 10, 11
	hsStart:     {hsStart, hsCWBegin, hsCCWBegin, hsStartM},
	hsCWBegin:   {hsStart, hsCWBegin, hsStart, hsStartM | uint8(Clockwise)},
	hsCCWBegin:  {hsStart, hsStart, hsCCWBegin, hsStartM | uint8(CounterClockwise)},
	hsStartM:    {hsStart, hsCCWBeginM, hsCWBeginM, hsStartM},
	hsCWBeginM:  {hsStart | uint8(Clockwise), hsStartM, hsCWBeginM, hsStartM},
	hsCCWBeginM: {hsStart | uint8(CounterClockwise), hsCCWBeginM, hsStartM, hsStartM},
}

// Decoder is a table-driven quadrature state machine.
//
// Process is a single array lookup. A Decoder must only be used from one
// goroutine.
type Decoder struct {
	table [][4]uint8
	state uint8
}

// NewDecoder returns a decoder in the settled state.
func NewDecoder(g Granularity) (*Decoder, error) {
	var table [][4]uint8
	switch g {
	case FullStep:
		table = fullStepTable[:]
	case HalfStep:
		table = halfStepTable[:]
	default:
		return nil, fmt.Errorf("%w: unknown granularity %d", ErrInvalidConfiguration, uint8(g))
	}
	return &Decoder{table: table}, nil
}

// Process feeds one pin sample and reports a direction only when the sample
// completes a detent. Bounce and out-of-sequence samples yield None.
func (d *Decoder) Process(sample PinSample) Direction {
	next := d.table[d.state][sample&0x03]
	d.state = next & stateMask
	return Direction(next & dirMask)
}

// State returns the current (opaque) state value.
func (d *Decoder) State() uint8 { return d.state }

// Reset puts the decoder back into the settled state.
func (d *Decoder) Reset() { d.state = 0 }
