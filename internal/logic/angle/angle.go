// Package angle converts between absolute encoder ticks and
// normalized 0-359 degree headings.
package angle

// Norm normalizes any angle in degrees to [0, 360).
func Norm(deg int64) int64 {
	return ((deg % 360) + 360) % 360
}

// ShortestDelta returns the signed shortest rotation from the current
// heading to the requested one, in (-180, +180]. Headings exactly 180
// degrees apart resolve to the positive direction.
func ShortestDelta(current, requested int64) int64 {
	delta := Norm(requested) - Norm(current)
	for delta > 180 {
		delta -= 360
	}
	for delta <= -180 {
		delta += 360
	}
	return delta
}

// DestPosition translates a requested absolute angle into an absolute
// tick target, threading the motor's multi-turn offset: the target is
// the current tick position plus the shortest angular path scaled by
// the tick-per-degree multiplier. The requested angle may be any
// integer; 721 means the same heading as 1, -60 the same as 300.
func DestPosition(position, multiplier, requestedDeg int64) int64 {
	current := Norm(position / multiplier)
	return position + ShortestDelta(current, requestedDeg)*multiplier
}

// PositionForHeading returns the tick value representing a bare
// heading with no accumulated turns, used when re-zeroing the encoder
// to a known angle. Negative angles keep their sign, mirroring the
// truncated modulo of the reference implementation; reading the angle
// back still normalizes to [0, 360).
func PositionForHeading(deg, multiplier int64) int64 {
	return (deg % 360) * multiplier
}
