package control

import "math"

// Desaturate uniformly rescales all module speeds so the fastest one does not
// exceed maxSpeed. Scaling the whole set, never a single module, preserves
// the commanded direction ratios exactly. Angles are untouched. A fully
// stopped set is a no-op, which also guards the division.
func Desaturate(states *[NumModules]ModuleState, maxSpeed float64) {
	var top float64
	for _, s := range states {
		if a := math.Abs(s.Speed); a > top {
			top = a
		}
	}
	if top == 0 || top <= maxSpeed {
		return
	}
	scale := maxSpeed / top
	for i := range states {
		states[i].Speed *= scale
	}
}
