package control

import (
	"math"

	"github.com/golang/geo/r3"
)

// Kinematics maps chassis velocities to per-module states and back for a
// fixed set of module offsets from the robot center. Offsets use the chassis
// convention (+X forward, +Y left); the angular component rides on Z so the
// rigid-body term is a plain cross product.
type Kinematics struct {
	offsets [NumModules]r3.Vector

	// Modules that are not moving hold their last commanded wheel heading
	// instead of snapping to zero.
	lastAngles [NumModules]float64

	// Precomputed normal-equation terms for the least-squares forward solve.
	sumX, sumY, sumR2 float64
}

// NewKinematics builds a kinematic model from four module offsets, ordered
// front-left, front-right, rear-left, rear-right.
func NewKinematics(offsets [NumModules]r3.Vector) *Kinematics {
	k := &Kinematics{offsets: offsets}
	for _, o := range offsets {
		k.sumX += o.X
		k.sumY += o.Y
		k.sumR2 += o.X*o.X + o.Y*o.Y
	}
	return k
}

// Offsets returns a copy of the configured module offsets.
func (k *Kinematics) Offsets() [NumModules]r3.Vector {
	return k.offsets
}

// ToModuleStates performs the inverse kinematic solve: each module velocity
// is the chassis translation plus omega cross the module offset, converted
// to a polar wheel heading and speed.
func (k *Kinematics) ToModuleStates(v ChassisVelocity) [NumModules]ModuleState {
	translation := r3.Vector{X: v.VX, Y: v.VY}
	rotation := r3.Vector{Z: v.Omega}

	var states [NumModules]ModuleState
	for i, offset := range k.offsets {
		mv := translation.Add(rotation.Cross(offset))
		speed := math.Hypot(mv.X, mv.Y)
		angle := k.lastAngles[i]
		if speed > 1e-9 {
			angle = math.Atan2(mv.Y, mv.X)
			k.lastAngles[i] = angle
		}
		states[i] = ModuleState{Angle: angle, Speed: speed}
	}
	return states
}

// ToChassisVelocity performs the forward solve: the chassis motion whose
// module contributions best reproduce the given states, in the least-squares
// sense. Exact whenever the states came from a consistent chassis velocity.
func (k *Kinematics) ToChassisVelocity(states [NumModules]ModuleState) ChassisVelocity {
	var bx, by, bw float64
	for i, s := range states {
		vx := s.Speed * math.Cos(s.Angle)
		vy := s.Speed * math.Sin(s.Angle)
		bx += vx
		by += vy
		bw += k.offsets[i].X*vy - k.offsets[i].Y*vx
	}
	vx, vy, omega := k.solveNormal(bx, by, bw)
	return ChassisVelocity{VX: vx, VY: vy, Omega: omega}
}

// TwistFromDeltas solves the same least-squares system over per-module
// displacement deltas, yielding the incremental robot-frame twist.
func (k *Kinematics) TwistFromDeltas(deltas [NumModules]ModulePosition) Twist {
	var bx, by, bw float64
	for i, d := range deltas {
		dx := d.Distance * math.Cos(d.Angle)
		dy := d.Distance * math.Sin(d.Angle)
		bx += dx
		by += dy
		bw += k.offsets[i].X*dy - k.offsets[i].Y*dx
	}
	x, y, theta := k.solveNormal(bx, by, bw)
	return Twist{DX: x, DY: y, DTheta: theta}
}

// solveNormal solves the 3x3 normal equations of the module velocity system
// by Cramer's rule:
//
//	[  n    0   -Sy ] [vx]   [bx]
//	[  0    n    Sx ] [vy] = [by]
//	[ -Sy   Sx   S2 ] [w ]   [bw]
func (k *Kinematics) solveNormal(bx, by, bw float64) (vx, vy, omega float64) {
	n := float64(NumModules)
	sx, sy, s2 := k.sumX, k.sumY, k.sumR2

	det := n * (n*s2 - sx*sx - sy*sy)
	if math.Abs(det) < 1e-12 {
		// Degenerate geometry (all offsets at the center): rotation is
		// unobservable, translation is the plain average.
		return bx / n, by / n, 0
	}

	detX := bx*(n*s2-sx*sx) - sy*(by*sx-n*bw)
	detY := n*(by*s2-sx*bw) - bx*sx*sy - by*sy*sy
	detW := n * (n*bw - sx*by + sy*bx)
	return detX / det, detY / det, detW / det
}

// Antiparallel returns the equivalent module state pointing the opposite
// direction with negated speed.
func Antiparallel(s ModuleState) ModuleState {
	return ModuleState{Angle: WrapAngle(s.Angle + math.Pi), Speed: -s.Speed}
}

// Optimize picks the target state or its antiparallel equivalent, whichever
// needs the smaller steer rotation from the module's current heading. The
// chosen state never requires more than pi/2 of wheel travel.
func Optimize(target ModuleState, currentAngle float64) ModuleState {
	if math.Abs(AngleDiff(target.Angle, currentAngle)) > math.Pi/2 {
		return Antiparallel(target)
	}
	return target
}
