package encoder

import "testing"

// TestElapsed_Wraparound tests the interval across one counter wrap
func TestElapsed_Wraparound(t *testing.T) {
	if got := Elapsed(65530, 10); got != 16 {
		t.Errorf("expected 16, got %d", got)
	}
}

func TestElapsed_Table(t *testing.T) {
	tests := []struct {
		prev, cur Tick
		want      Tick
	}{
		{0, 0, 0},
		{100, 100, 0},
		{100, 250, 150},
		{0, 65535, 65535},
		{65535, 0, 1},
		{65535, 65534, 65535},
		{40000, 1000, 26536},
	}
	for _, tt := range tests {
		if got := Elapsed(tt.prev, tt.cur); got != tt.want {
			t.Errorf("Elapsed(%d, %d): expected %d, got %d", tt.prev, tt.cur, tt.want, got)
		}
	}
}

// TestElapsed_ShiftInvariant tests that shifting both samples by the same
// amount never changes the result, wherever the wrap falls
func TestElapsed_ShiftInvariant(t *testing.T) {
	const d = 1234
	for base := 0; base < 1<<16; base += 997 {
		prev := Tick(base)
		cur := prev + d
		if got := Elapsed(prev, cur); got != d {
			t.Errorf("base %d: expected %d, got %d", base, d, got)
		}
	}
}
