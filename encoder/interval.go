package encoder

// Tick is one sample of a free-running 16-bit hardware counter.
// The counter wraps to zero after 65535; callers only ever read it.
type Tick uint16

// Elapsed returns the number of ticks between two counter samples.
//
// The subtraction is done in the counter's own width, so a single wrap between
// previous and current is handled for free. The result is only meaningful when
// the true elapsed time is below one full period (65536 ticks); sampling often
// enough to guarantee that is the caller's job.
func Elapsed(previous, current Tick) Tick {
	return current - previous
}
