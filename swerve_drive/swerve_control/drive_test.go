package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	state    ModuleState
	position ModulePosition

	lastTarget   ModuleState
	lastOpenLoop bool
	targets      int
}

func (m *fakeModule) SetTarget(s ModuleState, openLoop bool) {
	m.lastTarget = s
	m.lastOpenLoop = openLoop
	m.targets++
}

func (m *fakeModule) State() ModuleState {
	return m.state
}

func (m *fakeModule) Position() ModulePosition {
	return m.position
}

type fakeHeading struct {
	yaw float64
}

func (h *fakeHeading) Yaw() float64 {
	return h.yaw
}

func (h *fakeHeading) Zero() {
	h.yaw = 0
}

func testDriveConfig() DriveConfig {
	return DriveConfig{
		MaxWheelSpeedMPS:  4.0,
		MaxTranslationMPS: 5.0,
		MaxRotationRPS:    6.0,
		AxisDeadzone:      0.05,
	}
}

func newTestDriveLoop(cfg DriveConfig) (*DriveLoop, [NumModules]*fakeModule, *fakeHeading) {
	var fakes [NumModules]*fakeModule
	var modules [NumModules]ModuleController
	for i := range fakes {
		fakes[i] = &fakeModule{}
		modules[i] = fakes[i]
	}
	heading := &fakeHeading{}
	return NewDriveLoop(cfg, squareKinematics(), modules, heading), fakes, heading
}

func TestDriveDeadzoneForcesExactZero(t *testing.T) {
	t.Parallel()

	d, fakes, _ := newTestDriveLoop(testDriveConfig())

	d.Apply(DriveCommand{X: 0.04, Y: -0.04, Rotation: 0.049})

	for i, m := range fakes {
		require.Equal(t, 1, m.targets, "module %d not dispatched", i)
		assert.Zero(t, m.lastTarget.Speed, "module %d", i)
	}
}

func TestDriveAtDeadzoneThresholdPasses(t *testing.T) {
	t.Parallel()

	d, fakes, _ := newTestDriveLoop(testDriveConfig())

	d.Apply(DriveCommand{X: 0.05})

	for i, m := range fakes {
		assert.InDelta(t, 0.05*5.0, math.Abs(m.lastTarget.Speed), 1e-9, "module %d", i)
	}
}

func TestDriveFieldRelativeRotation(t *testing.T) {
	t.Parallel()

	d, fakes, heading := newTestDriveLoop(testDriveConfig())
	heading.yaw = math.Pi / 2

	// Field +X crab with the robot facing field +Y becomes a robot -Y crab:
	// every wheel points to -pi/2 at the wheel speed ceiling.
	d.Apply(DriveCommand{X: 1, FieldRelative: true})

	for i, m := range fakes {
		assert.InDelta(t, 4.0, m.lastTarget.Speed, 1e-9, "module %d", i)
		assert.InDelta(t, -math.Pi/2, m.lastTarget.Angle, 1e-9, "module %d", i)
	}
}

func TestDriveRobotRelativeIgnoresHeading(t *testing.T) {
	t.Parallel()

	d, fakes, heading := newTestDriveLoop(testDriveConfig())
	heading.yaw = math.Pi / 2

	d.Apply(DriveCommand{X: 1})

	for i, m := range fakes {
		assert.InDelta(t, 4.0, m.lastTarget.Speed, 1e-9, "module %d", i)
		assert.InDelta(t, 0, m.lastTarget.Angle, 1e-9, "module %d", i)
	}
}

func TestDriveDesaturatesFullAxisCommand(t *testing.T) {
	t.Parallel()

	// Translation ceiling above the wheel ceiling: a full-forward axis asks
	// for 5 m/s per wheel and must be scaled back to 4.
	d, fakes, _ := newTestDriveLoop(testDriveConfig())

	d.Apply(DriveCommand{X: 1})

	for i, m := range fakes {
		assert.InDelta(t, 4.0, m.lastTarget.Speed, 1e-9, "module %d", i)
		assert.InDelta(t, 0, m.lastTarget.Angle, 1e-9, "module %d", i)
	}
}

func TestDriveOptimizeFlipsAgainstCurrentAngle(t *testing.T) {
	t.Parallel()

	d, fakes, _ := newTestDriveLoop(testDriveConfig())
	for _, m := range fakes {
		m.state.Angle = math.Pi
	}

	// A forward crab (target angle 0) is antiparallel to wheels already at
	// pi; the optimizer keeps the wheels in place and reverses the drive.
	d.Apply(DriveCommand{X: 0.5})

	for i, m := range fakes {
		assert.InDelta(t, math.Pi, math.Abs(m.lastTarget.Angle), 1e-9, "module %d", i)
		assert.InDelta(t, -2.5, m.lastTarget.Speed, 1e-9, "module %d", i)
	}
}

func TestDriveOpenLoopFlagReachesModules(t *testing.T) {
	t.Parallel()

	d, fakes, _ := newTestDriveLoop(testDriveConfig())

	d.Apply(DriveCommand{X: 0.5, OpenLoop: true})
	for i, m := range fakes {
		assert.True(t, m.lastOpenLoop, "module %d", i)
	}

	d.Apply(DriveCommand{X: 0.5})
	for i, m := range fakes {
		assert.False(t, m.lastOpenLoop, "module %d", i)
	}
}

func TestDrivePollsSuppliersOncePerCycle(t *testing.T) {
	t.Parallel()

	d, fakes, _ := newTestDriveLoop(testDriveConfig())

	var xCalls, yCalls, rotCalls int
	d.Drive(
		func() float64 { xCalls++; return 0.2 },
		func() float64 { yCalls++; return 0 },
		func() float64 { rotCalls++; return 0 },
		false, false,
	)

	assert.Equal(t, 1, xCalls)
	assert.Equal(t, 1, yCalls)
	assert.Equal(t, 1, rotCalls)
	for i, m := range fakes {
		assert.Equal(t, 1, m.targets, "module %d", i)
	}
}

func TestApplyChassisVelocityBypassesAxisShaping(t *testing.T) {
	t.Parallel()

	// A velocity below the deadzone-equivalent still dispatches as given.
	d, fakes, _ := newTestDriveLoop(testDriveConfig())

	d.ApplyChassisVelocity(ChassisVelocity{VX: 0.1}, false)

	for i, m := range fakes {
		assert.InDelta(t, 0.1, m.lastTarget.Speed, 1e-9, "module %d", i)
	}
}
