// Package encoder decodes a mechanical quadrature rotary encoder into
// velocity-scaled, signed step values.
//
// A table-driven Decoder turns raw 2-bit pin samples into completed detents,
// and a VelocityScaler turns the time between detents (measured on a wrapping
// 16-bit tick counter) into a multiplier. Sample does not block or allocate,
// so it can be called from whatever plays the role of the pin-change
// interrupt.
package encoder

import "fmt"

// Config is the construction-time configuration of an Encoder.
type Config struct {
	// PulsesPerRevolution is the encoder's detent count per turn.
	// It is only used to scale the velocity thresholds and must be > 0.
	PulsesPerRevolution int

	Granularity Granularity
}

// Encoder couples a Decoder with a VelocityScaler.
type Encoder struct {
	decoder *Decoder
	scaler  *VelocityScaler
}

// New validates cfg and builds an Encoder. A zero or negative PPR is
// rejected with ErrInvalidConfiguration.
func New(cfg Config) (*Encoder, error) {
	scaler, err := NewVelocityScaler(cfg.PulsesPerRevolution)
	if err != nil {
		return nil, err
	}
	decoder, err := NewDecoder(cfg.Granularity)
	if err != nil {
		return nil, err
	}
	return &Encoder{decoder: decoder, scaler: scaler}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed
// configurations.
func MustNew(cfg Config) *Encoder {
	e, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("encoder: %v", err))
	}
	return e
}

// Sample feeds one pin sample taken at tick now and returns the signed step
// multiplier: 0 when no detent completed, +m clockwise, -m counter-clockwise.
func (e *Encoder) Sample(pins PinSample, now Tick) int16 {
	return e.scaler.Scale(e.decoder.Process(pins), now)
}

// Decoder exposes the underlying decoder.
func (e *Encoder) Decoder() *Decoder { return e.decoder }

// Scaler exposes the underlying velocity scaler.
func (e *Encoder) Scaler() *VelocityScaler { return e.scaler }

// Reset returns the encoder to its just-constructed state.
func (e *Encoder) Reset() {
	e.decoder.Reset()
	e.scaler.Reset()
}
