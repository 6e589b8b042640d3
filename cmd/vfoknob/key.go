package main

import "vfoknob/encoder"

// Keyer debounces the straight key and derives the TX line from it.
//
// Time is a free-running 16-bit millisecond counter, measured with the same
// wrap-safe subtraction the encoder uses. Poll must run far more often than
// once per counter wrap (65.5 s); the daemon polls on every tick.
type Keyer struct {
	debounce encoder.Tick
	hang     encoder.Tick

	raw      bool
	lastEdge encoder.Tick
	pending  bool

	down       bool // debounced key level
	tx         bool
	hanging    bool
	releasedAt encoder.Tick
}

// NewKeyer returns an idle keyer. A raw change must hold for debounce ms to
// be accepted; TX drops hang ms after the debounced release.
func NewKeyer(debounce, hang encoder.Tick) Keyer {
	return Keyer{debounce: debounce, hang: hang}
}

// Input records a raw key level seen at now.
func (k *Keyer) Input(down bool, now encoder.Tick) {
	if down == k.raw {
		return
	}
	k.raw = down
	k.lastEdge = now
	k.pending = true
}

// Poll advances the keyer to now and returns whether TX should be on.
func (k *Keyer) Poll(now encoder.Tick) bool {
	if k.pending && encoder.Elapsed(k.lastEdge, now) >= k.debounce {
		k.pending = false
		if k.raw != k.down {
			k.down = k.raw
			if k.down {
				k.tx = true
				k.hanging = false
			} else {
				k.hanging = true
				k.releasedAt = now
			}
		}
	}

	if k.hanging && encoder.Elapsed(k.releasedAt, now) >= k.hang {
		k.hanging = false
		k.tx = false
	}
	return k.tx
}

// Down reports the debounced key level.
func (k *Keyer) Down() bool { return k.down }

// Transmitting reports the keyed TX state as of the last Poll.
func (k *Keyer) Transmitting() bool { return k.tx }

// millisTick maps wall-clock milliseconds onto the keyer's 16-bit counter.
func millisTick(ms int64) encoder.Tick {
	return encoder.Tick(uint64(ms))
}
