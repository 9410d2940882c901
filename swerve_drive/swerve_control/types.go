package control

import "time"

// NumModules is fixed by the drivetrain layout: front-left, front-right,
// rear-left, rear-right. Every module slice in this package is ordered
// index-for-index against the configured module offsets.
const NumModules = 4

// ChassisVelocity is the commanded or implied motion of the whole chassis.
// VX points forward, VY points left, Omega is counter-clockwise positive.
type ChassisVelocity struct {
	VX    float64 // m/s
	VY    float64 // m/s
	Omega float64 // rad/s
}

// ModuleState is a wheel heading plus signed linear wheel speed.
type ModuleState struct {
	Angle float64 // rad
	Speed float64 // m/s
}

// ModulePosition is a wheel heading plus the cumulative distance the drive
// wheel has rolled since power-on. Distance is monotonic per controller; the
// estimator only ever consumes deltas between snapshots.
type ModulePosition struct {
	Angle    float64 // rad
	Distance float64 // m
}

// Pose is the planar robot pose in the field frame. Heading accumulates
// continuously and is never wrapped, so consumers see no discontinuity when
// the robot crosses the +/-pi boundary.
type Pose struct {
	X       float64 // m
	Y       float64 // m
	Heading float64 // rad, continuous
}

// Twist is an incremental robot-frame displacement over one control cycle.
type Twist struct {
	DX     float64 // m
	DY     float64 // m
	DTheta float64 // rad
}

// VisionMeasurement is a single externally observed pose. Timestamp is the
// capture time of the observation, which may lag the current cycle. Ambiguity
// is a non-negative scalar; larger means less trustworthy.
type VisionMeasurement struct {
	Pose      Pose
	Timestamp time.Time
	Ambiguity float64
}

// HeadingSource reports the current yaw of the chassis. Implementations must
// be non-blocking snapshot reads.
type HeadingSource interface {
	// Yaw returns the current yaw in radians, wrapped to (-pi, pi].
	Yaw() float64
	// Zero re-references the heading so the current yaw reads as zero.
	Zero()
}

// ModuleController drives one swerve module and reports its sensors.
// SetTarget must not block; State and Position are snapshot reads.
type ModuleController interface {
	SetTarget(target ModuleState, openLoop bool)
	State() ModuleState
	Position() ModulePosition
}

// VisionSource drains the vision measurements that arrived since the last
// call. Each measurement is handed out exactly once.
type VisionSource interface {
	Measurements() []VisionMeasurement
}
