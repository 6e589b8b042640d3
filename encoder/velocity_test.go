package encoder

import (
	"errors"
	"testing"
)

func mustScaler(t *testing.T, ppr int) *VelocityScaler {
	t.Helper()
	v, err := NewVelocityScaler(ppr)
	if err != nil {
		t.Fatalf("NewVelocityScaler(%d): %v", ppr, err)
	}
	return v
}

// TestVelocityScaler_BaselineBuckets tests the reference multipliers at 250 PPR
func TestVelocityScaler_BaselineBuckets(t *testing.T) {
	v := mustScaler(t, ReferencePPR)
	tests := []struct {
		interval Tick
		want     int16
	}{
		{65535, 1},
		{9000, 1},
		{8000, 1},
		{7999, 1},
		{4000, 1},
		{3999, 5},
		{3000, 5},
		{2000, 5},
		{1999, 20},
		{1500, 20},
		{1000, 20},
		{999, 100},
		{500, 100},
		{0, 100},
	}
	for _, tt := range tests {
		if got := v.Multiplier(tt.interval); got != tt.want {
			t.Errorf("interval %d: expected multiplier %d, got %d", tt.interval, tt.want, got)
		}
	}
}

// TestVelocityScaler_Monotonic tests that a shorter interval never gives a
// smaller multiplier
func TestVelocityScaler_Monotonic(t *testing.T) {
	for _, ppr := range []int{24, 100, 250, 600} {
		v := mustScaler(t, ppr)
		prev := v.Multiplier(0)
		for iv := 1; iv < 1<<16; iv++ {
			m := v.Multiplier(Tick(iv))
			if m > prev {
				t.Fatalf("ppr %d: multiplier rose from %d to %d at interval %d", ppr, prev, m, iv)
			}
			prev = m
		}
	}
}

func TestVelocityScaler_ThresholdShape(t *testing.T) {
	v := mustScaler(t, ReferencePPR)
	b := v.Thresholds()
	if len(b) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(b))
	}
	wantCeil := []uint32{8000, 4000, 2000, 1000}
	wantMult := []int16{1, 5, 20, 100}
	for i := range b {
		if b[i].Ceiling != wantCeil[i] || b[i].Multiplier != wantMult[i] {
			t.Errorf("bucket %d: expected {%d %d}, got {%d %d}", i, wantCeil[i], wantMult[i], b[i].Ceiling, b[i].Multiplier)
		}
		if i > 0 {
			if b[i].Ceiling >= b[i-1].Ceiling {
				t.Errorf("bucket %d: ceiling not strictly decreasing", i)
			}
			if b[i].Multiplier <= b[i-1].Multiplier {
				t.Errorf("bucket %d: multiplier not strictly increasing", i)
			}
		}
	}

	// The returned slice is a copy.
	b[0].Ceiling = 1
	if v.Thresholds()[0].Ceiling != 8000 {
		t.Errorf("expected Thresholds to return a copy")
	}
}

// TestVelocityScaler_DoublingPPRHalvesCeilings tests linear threshold scaling
func TestVelocityScaler_DoublingPPRHalvesCeilings(t *testing.T) {
	for _, ppr := range []int{50, 125, 250, 500} {
		a := mustScaler(t, ppr).Thresholds()
		b := mustScaler(t, ppr*2).Thresholds()
		for i := range a {
			if b[i].Ceiling != a[i].Ceiling/2 {
				t.Errorf("ppr %d bucket %d: expected %d, got %d", ppr*2, i, a[i].Ceiling/2, b[i].Ceiling)
			}
			if b[i].Multiplier != a[i].Multiplier {
				t.Errorf("ppr %d bucket %d: multiplier changed", ppr*2, i)
			}
		}
	}
}

// TestVelocityScaler_ExtremePPR tests that far-off resolutions follow the
// linear formula without clamping
func TestVelocityScaler_ExtremePPR(t *testing.T) {
	low := mustScaler(t, 1).Thresholds()
	if low[0].Ceiling != 2000000 {
		t.Errorf("ppr 1: expected slow ceiling 2000000, got %d", low[0].Ceiling)
	}
	// Every 16-bit interval is below every ceiling at ppr 1.
	if m := mustScaler(t, 1).Multiplier(65535); m != 100 {
		t.Errorf("ppr 1: expected multiplier 100, got %d", m)
	}

	high := mustScaler(t, 1000000).Thresholds()
	if high[3].Ceiling != 0 {
		t.Errorf("ppr 1e6: expected very-fast ceiling 0, got %d", high[3].Ceiling)
	}
	// With the two fastest ceilings at 0, zero falls to the medium bucket.
	if m := mustScaler(t, 1000000).Multiplier(0); m != 5 {
		t.Errorf("ppr 1e6: expected multiplier 5 for interval 0, got %d", m)
	}
}

func TestNewVelocityScaler_InvalidPPR(t *testing.T) {
	for _, ppr := range []int{0, -1, -250} {
		v, err := NewVelocityScaler(ppr)
		if v != nil {
			t.Errorf("ppr %d: expected nil scaler", ppr)
		}
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("ppr %d: expected ErrInvalidConfiguration, got %v", ppr, err)
		}
	}
}

// TestVelocityScaler_FirstDetentIsSlow tests the first detent after
// construction and after Reset
func TestVelocityScaler_FirstDetentIsSlow(t *testing.T) {
	v := mustScaler(t, ReferencePPR)
	if got := v.Scale(Clockwise, 100); got != 1 {
		t.Errorf("expected first detent multiplier 1, got %d", got)
	}
	if got := v.Scale(Clockwise, 200); got != 100 {
		t.Errorf("expected 100 for 100-tick interval, got %d", got)
	}

	v.Reset()
	if _, ok := v.LastStepTick(); ok {
		t.Errorf("expected no last step after reset")
	}
	if got := v.Scale(CounterClockwise, 210); got != -1 {
		t.Errorf("expected -1 after reset, got %d", got)
	}
}

func TestVelocityScaler_ScaleSequence(t *testing.T) {
	v := mustScaler(t, ReferencePPR)
	steps := []struct {
		dir  Direction
		now  Tick
		want int16
	}{
		{Clockwise, 1000, 1},
		{Clockwise, 10000, 1},          // 9000
		{Clockwise, 13000, 5},          // 3000
		{CounterClockwise, 14500, -20}, // 1500
		{CounterClockwise, 15000, -100},
		{Clockwise, 65530, 1},
		{Clockwise, 10, 100}, // 16 across the wrap
	}
	for i, s := range steps {
		if got := v.Scale(s.dir, s.now); got != s.want {
			t.Errorf("step %d: expected %d, got %d", i, s.want, got)
		}
	}
}

// TestVelocityScaler_NoneLeavesStateAlone tests that a None result does not
// move the last-step tick
func TestVelocityScaler_NoneLeavesStateAlone(t *testing.T) {
	v := mustScaler(t, ReferencePPR)
	v.Scale(Clockwise, 100)
	for now := Tick(200); now < 9000; now += 700 {
		if got := v.Scale(None, now); got != 0 {
			t.Errorf("expected 0 for none, got %d", got)
		}
	}
	last, ok := v.LastStepTick()
	if !ok || last != 100 {
		t.Errorf("expected last step at 100, got %d (ok=%v)", last, ok)
	}
	// 9100 - 100 = 9000 ticks: slow.
	if got := v.Scale(Clockwise, 9100); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}
