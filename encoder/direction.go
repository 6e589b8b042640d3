package encoder

// Direction is the outcome of feeding one pin sample to the decoder.
type Direction uint8

const (
	None             Direction = 0x00
	Clockwise        Direction = 0x10
	CounterClockwise Direction = 0x20
)

func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	default:
		return "unknown"
	}
}

// Sign returns +1 for Clockwise, -1 for CounterClockwise and 0 otherwise.
func (d Direction) Sign() int {
	switch d {
	case Clockwise:
		return 1
	case CounterClockwise:
		return -1
	default:
		return 0
	}
}
