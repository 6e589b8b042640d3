package encoder

import "sync/atomic"

// StepSlot hands step multipliers from the sampling side to a polling
// consumer.
//
// Exactly one goroutine calls Add and exactly one calls Take. Steps are
// accumulated rather than overwritten, so a consumer that polls late sees the
// net movement instead of only the latest detent. Both sides are a single
// atomic operation and never block.
type StepSlot struct {
	pending atomic.Int32
}

// Add publishes a step multiplier. Zero is a no-op.
func (s *StepSlot) Add(m int16) {
	if m == 0 {
		return
	}
	s.pending.Add(int32(m))
}

// Take returns the accumulated steps and resets the slot to zero.
func (s *StepSlot) Take() int32 {
	return s.pending.Swap(0)
}

// Pending returns the accumulated steps without consuming them.
func (s *StepSlot) Pending() int32 {
	return s.pending.Load()
}
