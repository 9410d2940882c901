package control

import "math"

// AxisSupplier produces one normalized axis value in [-1, 1]. Suppliers are
// polled exactly once per drive invocation, never memoized.
type AxisSupplier func() float64

// DriveCommand is one cycle's worth of shaped operator or autonomy intent.
type DriveCommand struct {
	X        float64 // translation axis, forward positive
	Y        float64 // translation axis, left positive
	Rotation float64 // rotation axis, counter-clockwise positive

	FieldRelative bool
	OpenLoop      bool
}

// DriveLoop turns chassis intent into per-module targets: deadzone, frame
// selection, inverse kinematics, desaturation, steer optimization, dispatch.
// Every step is non-blocking and total; one invocation per control cycle.
type DriveLoop struct {
	cfg     DriveConfig
	kin     *Kinematics
	modules [NumModules]ModuleController
	heading HeadingSource
}

// NewDriveLoop wires the drive loop to its kinematic model, the four module
// controllers (in geometry order), and the heading source used for
// field-relative driving.
func NewDriveLoop(cfg DriveConfig, kin *Kinematics, modules [NumModules]ModuleController, heading HeadingSource) *DriveLoop {
	return &DriveLoop{cfg: cfg, kin: kin, modules: modules, heading: heading}
}

// Drive polls the three axis suppliers and runs one command cycle.
func (d *DriveLoop) Drive(xAxis, yAxis, rotAxis AxisSupplier, fieldRelative, openLoop bool) {
	d.Apply(DriveCommand{
		X:             xAxis(),
		Y:             yAxis(),
		Rotation:      rotAxis(),
		FieldRelative: fieldRelative,
		OpenLoop:      openLoop,
	})
}

// Apply shapes an axis command into a chassis velocity and dispatches it.
func (d *DriveLoop) Apply(cmd DriveCommand) {
	x := applyDeadzone(cmd.X, d.cfg.AxisDeadzone)
	y := applyDeadzone(cmd.Y, d.cfg.AxisDeadzone)
	rot := applyDeadzone(cmd.Rotation, d.cfg.AxisDeadzone)

	v := ChassisVelocity{
		VX:    x * d.cfg.MaxTranslationMPS,
		VY:    y * d.cfg.MaxTranslationMPS,
		Omega: rot * d.cfg.MaxRotationRPS,
	}
	if cmd.FieldRelative {
		v = toRobotFrame(v, d.heading.Yaw())
	}
	d.ApplyChassisVelocity(v, cmd.OpenLoop)
}

// ApplyChassisVelocity runs the kinematic solve and dispatch for an already
// shaped chassis velocity. Used by autonomy callers that bypass axis shaping.
func (d *DriveLoop) ApplyChassisVelocity(v ChassisVelocity, openLoop bool) {
	states := d.kin.ToModuleStates(v)
	d.SetModuleStates(states, openLoop)
}

// SetModuleStates desaturates, steer-optimizes, and dispatches a raw module
// state set.
func (d *DriveLoop) SetModuleStates(states [NumModules]ModuleState, openLoop bool) {
	Desaturate(&states, d.cfg.MaxWheelSpeedMPS)
	for i, s := range states {
		target := Optimize(s, d.modules[i].State().Angle)
		d.modules[i].SetTarget(target, openLoop)
	}
}

// applyDeadzone forces sub-threshold axis values to exactly zero; values at
// or above the threshold pass through unattenuated.
func applyDeadzone(value, threshold float64) float64 {
	if math.Abs(value) < threshold {
		return 0
	}
	return value
}

// toRobotFrame rotates a field-frame velocity into the robot frame using the
// current heading.
func toRobotFrame(v ChassisVelocity, heading float64) ChassisVelocity {
	sinH, cosH := math.Sincos(heading)
	return ChassisVelocity{
		VX:    v.VX*cosH + v.VY*sinH,
		VY:    -v.VX*sinH + v.VY*cosH,
		Omega: v.Omega,
	}
}
