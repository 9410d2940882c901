package control

import "math"

// WrapAngle normalizes an angle to (-pi, pi].
func WrapAngle(a float64) float64 {
	w := math.Remainder(a, 2*math.Pi)
	if w <= -math.Pi {
		w += 2 * math.Pi
	}
	return w
}

// AngleDiff returns the shortest signed rotation from b to a, in (-pi, pi].
func AngleDiff(a, b float64) float64 {
	return WrapAngle(a - b)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
