package encoder

import "fmt"

// Reference tuning: thresholds below are for a 250 PPR encoder sampled with a
// 2 MHz tick (0.5 µs per tick) and get scaled linearly for other encoders.
const (
	ReferencePPR = 250

	baseThresholdSlow     = 8000 // ~4 ms between detents
	baseThresholdMedium   = 4000 // ~2 ms
	baseThresholdFast     = 2000 // ~1 ms
	baseThresholdVeryFast = 1000 // ~0.5 ms

	multSlow     = 1
	multMedium   = 5
	multFast     = 20
	multVeryFast = 100
)

// Bucket pairs an interval ceiling (in ticks) with the multiplier used for
// intervals strictly below it.
type Bucket struct {
	Ceiling    uint32
	Multiplier int16
}

// VelocityScaler turns the time between completed detents into a step
// multiplier, so a fast spin moves further per detent than a slow one.
//
// Like Decoder it is owned by a single goroutine.
type VelocityScaler struct {
	buckets [4]Bucket
	last    Tick
	primed  bool
}

// NewVelocityScaler scales the reference thresholds to the given encoder
// resolution: threshold = base * ReferencePPR / ppr.
func NewVelocityScaler(ppr int) (*VelocityScaler, error) {
	if ppr <= 0 {
		return nil, fmt.Errorf("%w: pulses per revolution must be > 0, got %d", ErrInvalidConfiguration, ppr)
	}
	// base*ReferencePPR is at most 2e6, so uint64 never overflows and the
	// result always fits in 32 bits.
	scale := func(base uint64) uint32 {
		return uint32(base * ReferencePPR / uint64(ppr))
	}
	return &VelocityScaler{
		buckets: [4]Bucket{
			{Ceiling: scale(baseThresholdSlow), Multiplier: multSlow},
			{Ceiling: scale(baseThresholdMedium), Multiplier: multMedium},
			{Ceiling: scale(baseThresholdFast), Multiplier: multFast},
			{Ceiling: scale(baseThresholdVeryFast), Multiplier: multVeryFast},
		},
	}, nil
}

// Thresholds returns the bucket table, slowest first. Multipliers strictly
// increase. Ceilings strictly decrease only while the scaled very-fast
// ceiling is above 0; a very large PPR can collapse the fast buckets to 0.
func (v *VelocityScaler) Thresholds() []Bucket {
	out := make([]Bucket, len(v.buckets))
	copy(out, v.buckets[:])
	return out
}

// Multiplier maps an interval to the multiplier of the smallest ceiling it
// is below. Anything at or above the slow ceiling gets the slow multiplier.
// Zero lands in the fastest bucket as long as its scaled ceiling is above 0;
// otherwise it lands in the fastest bucket that still has a ceiling.
func (v *VelocityScaler) Multiplier(interval Tick) int16 {
	iv := uint32(interval)
	for i := len(v.buckets) - 1; i >= 0; i-- {
		if iv < v.buckets[i].Ceiling {
			return v.buckets[i].Multiplier
		}
	}
	return v.buckets[0].Multiplier
}

// Scale returns the signed multiplier for a decoder result observed at now.
// None returns 0 and leaves the last-step tick alone. The very first detent
// has no previous one to measure against and is treated as slow.
func (v *VelocityScaler) Scale(dir Direction, now Tick) int16 {
	sign := dir.Sign()
	if sign == 0 {
		return 0
	}

	m := v.buckets[0].Multiplier
	if v.primed {
		m = v.Multiplier(Elapsed(v.last, now))
	}
	v.last = now
	v.primed = true

	if sign < 0 {
		return -m
	}
	return m
}

// LastStepTick reports the tick of the most recent completed detent and
// whether one has been seen yet.
func (v *VelocityScaler) LastStepTick() (Tick, bool) {
	return v.last, v.primed
}

// Reset forgets the previous detent.
func (v *VelocityScaler) Reset() {
	v.last = 0
	v.primed = false
}
