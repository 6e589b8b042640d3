package main

import "vfoknob/encoder"

// PinEvent is one sample of both encoder channels with the tick it was taken
// at.
type PinEvent struct {
	Pins encoder.PinSample
	Tick encoder.Tick
}

// Sampler is the encoder's producer side. It owns the Encoder and must be
// fed from a single goroutine; the daemon drains the slot.
type Sampler struct {
	enc    *encoder.Encoder
	slot   *encoder.StepSlot
	notify chan<- struct{}
	invert encoder.PinSample
}

// NewSampler wires an encoder to the step slot. notify is poked (without
// blocking) whenever a detent lands in the slot; it may be nil.
func NewSampler(enc *encoder.Encoder, slot *encoder.StepSlot, notify chan<- struct{}, activeLow bool) *Sampler {
	s := &Sampler{enc: enc, slot: slot, notify: notify}
	if activeLow {
		s.invert = 0x03
	}
	return s
}

// Feed decodes one sample and returns the signed multiplier it produced.
func (s *Sampler) Feed(ev PinEvent) int16 {
	m := s.enc.Sample(ev.Pins^s.invert, ev.Tick)
	if m == 0 {
		return 0
	}
	s.slot.Add(m)
	if s.notify != nil {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return m
}
