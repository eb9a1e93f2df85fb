package angle

import "testing"

func TestNorm(t *testing.T) {
	tests := []struct {
		deg  int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{359, 359},
		{360, 0},
		{361, 1},
		{721, 1},
		{-1, 359},
		{-60, 300},
		{-360, 0},
		{-721, 359},
	}
	for _, tt := range tests {
		if got := Norm(tt.deg); got != tt.want {
			t.Errorf("Norm(%d) = %d, want %d", tt.deg, got, tt.want)
		}
	}
}

func TestShortestDelta(t *testing.T) {
	tests := []struct {
		name               string
		current, requested int64
		want               int64
	}{
		{"no move", 90, 90, 0},
		{"small forward", 0, 10, 10},
		{"small backward", 10, 0, -10},
		{"wrap forward", 350, 10, 20},
		{"wrap backward", 10, 350, -20},
		{"quarter", 0, 90, 90},
		{"negative request", 0, -90, -90},
		{"exactly opposite goes positive", 0, 180, 180},
		{"opposite from mid goes positive", 90, 270, 180},
		{"multi-turn request", 0, 721, 1},
	}
	for _, tt := range tests {
		if got := ShortestDelta(tt.current, tt.requested); got != tt.want {
			t.Errorf("%s: ShortestDelta(%d, %d) = %d, want %d",
				tt.name, tt.current, tt.requested, got, tt.want)
		}
	}
}

func TestShortestDelta_AlwaysInRange(t *testing.T) {
	for current := int64(0); current < 360; current += 7 {
		for requested := int64(-720); requested <= 720; requested += 11 {
			delta := ShortestDelta(current, requested)
			if delta <= -180 || delta > 180 {
				t.Fatalf("ShortestDelta(%d, %d) = %d, outside (-180, 180]",
					current, requested, delta)
			}
		}
	}
}

func TestDestPosition(t *testing.T) {
	tests := []struct {
		name                          string
		position, multiplier, request int64
		want                          int64
	}{
		{"quarter turn from zero", 0, 2, 90, 180},
		{"negative quarter goes short way", 0, 2, -90, -180},
		{"same heading is a no-op", 180, 2, 90, 180},
		{"multi-turn offset preserved", 720 + 180, 2, 90, 720 + 180},
		{"wrap near full turn", 700, 2, 0, 720},
		{"negative position", -180, 2, 270, -180},
	}
	for _, tt := range tests {
		if got := DestPosition(tt.position, tt.multiplier, tt.request); got != tt.want {
			t.Errorf("%s: DestPosition(%d, %d, %d) = %d, want %d",
				tt.name, tt.position, tt.multiplier, tt.request, got, tt.want)
		}
	}
}

func TestDestPosition_Idempotent(t *testing.T) {
	// Reaching a target and re-requesting the same angle must not move.
	pos := int64(0)
	const mult = 2
	for _, req := range []int64{90, 270, -45, 500} {
		pos = DestPosition(pos, mult, req)
		if again := DestPosition(pos, mult, req); again != pos {
			t.Errorf("re-requesting %d from %d moved to %d", req, pos, again)
		}
	}
}

func TestPositionForHeading(t *testing.T) {
	tests := []struct {
		deg, multiplier, want int64
	}{
		{0, 2, 0},
		{90, 2, 180},
		{360, 2, 0},
		{450, 2, 180},
		{-90, 2, -180},
	}
	for _, tt := range tests {
		if got := PositionForHeading(tt.deg, tt.multiplier); got != tt.want {
			t.Errorf("PositionForHeading(%d, %d) = %d, want %d",
				tt.deg, tt.multiplier, got, tt.want)
		}
	}
}

func TestPositionForHeading_NormReadback(t *testing.T) {
	// Re-zeroing to A then reading the heading back gives Norm(A).
	const mult = 2
	for _, a := range []int64{0, 90, 359, 360, 721, -90, -360} {
		pos := PositionForHeading(a, mult)
		if got := Norm(pos / mult); got != Norm(a) {
			t.Errorf("heading after re-zero to %d = %d, want %d", a, got, Norm(a))
		}
	}
}
