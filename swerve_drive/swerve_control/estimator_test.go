package control

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		StateStdDev:          0.1,
		VisionStdDev:         0.9,
		VisionAmbiguityScale: 4.0,
		HistorySeconds:       1.0,
	}
}

// newTestEstimator builds an estimator on a square robot with an injected
// clock, stationary modules, and the given starting pose.
func newTestEstimator(initial Pose) (*PoseEstimator, *fakeClock, [NumModules]ModulePosition) {
	clock := &fakeClock{t: time.Now()}
	var positions [NumModules]ModulePosition
	est := NewPoseEstimator(testEstimatorConfig(), squareKinematics(), 0, positions, initial)
	est.now = clock.Now
	est.Reset(initial, 0, positions)
	return est, clock, positions
}

func TestEstimatorStationaryDriftFree(t *testing.T) {
	t.Parallel()

	initial := Pose{X: 1, Y: 2, Heading: 0.5}
	est, clock, positions := newTestEstimator(initial)

	for i := 0; i < 25; i++ {
		clock.Advance(20 * time.Millisecond)
		est.Update(0, positions)
	}

	got := est.Estimate()
	assert.InDelta(t, initial.X, got.X, 1e-12)
	assert.InDelta(t, initial.Y, got.Y, 1e-12)
	assert.InDelta(t, initial.Heading, got.Heading, 1e-12)
}

func TestEstimatorIntegratesStraightLine(t *testing.T) {
	t.Parallel()

	est, clock, _ := newTestEstimator(Pose{})

	// 50 cycles of 0.02m forward roll on every wheel.
	var positions [NumModules]ModulePosition
	for i := 0; i < 50; i++ {
		clock.Advance(20 * time.Millisecond)
		for j := range positions {
			positions[j].Distance += 0.02
		}
		est.Update(0, positions)
	}

	got := est.Estimate()
	assert.InDelta(t, 1.0, got.X, 1e-9)
	assert.InDelta(t, 0.0, got.Y, 1e-9)
	assert.InDelta(t, 0.0, got.Heading, 1e-9)
}

func TestEstimatorVisionPull(t *testing.T) {
	t.Parallel()

	initial := Pose{X: 1, Y: 2, Heading: 0.5}
	est, clock, positions := newTestEstimator(initial)

	clock.Advance(20 * time.Millisecond)
	est.Update(0, positions)

	vision := Pose{X: 2, Y: 3, Heading: 0.7}
	est.AddVisionMeasurement(VisionMeasurement{
		Pose:      vision,
		Timestamp: clock.Now(),
		Ambiguity: 0,
	})

	got := est.Estimate()
	// gain = 0.1 / (0.1 + 0.9) with zero ambiguity and zero age.
	assert.InDelta(t, 1.1, got.X, 1e-9)
	assert.InDelta(t, 2.1, got.Y, 1e-9)
	assert.InDelta(t, 0.52, got.Heading, 1e-9)

	before := math.Hypot(vision.X-initial.X, vision.Y-initial.Y)
	after := math.Hypot(vision.X-got.X, vision.Y-got.Y)
	assert.Less(t, after, before, "correction must move strictly toward the vision pose")
}

func TestEstimatorAmbiguityWeakensPull(t *testing.T) {
	t.Parallel()

	initial := Pose{}
	vision := Pose{X: 1}

	confident, clock1, _ := newTestEstimator(initial)
	confident.AddVisionMeasurement(VisionMeasurement{Pose: vision, Timestamp: clock1.Now()})

	ambiguous, clock2, _ := newTestEstimator(initial)
	ambiguous.AddVisionMeasurement(VisionMeasurement{Pose: vision, Timestamp: clock2.Now(), Ambiguity: 1.0})

	assert.Greater(t, confident.Estimate().X, ambiguous.Estimate().X)
	assert.Greater(t, ambiguous.Estimate().X, 0.0)
}

func TestEstimatorHeadingContinuity(t *testing.T) {
	t.Parallel()

	est, clock, positions := newTestEstimator(Pose{})

	// 100 cycles of 0.3 rad yaw steps from a gyro that reports wrapped
	// angles; the integrated heading must stay continuous.
	prev := est.Estimate().Heading
	for i := 1; i <= 100; i++ {
		clock.Advance(20 * time.Millisecond)
		yaw := WrapAngle(0.3 * float64(i))
		got := est.Update(yaw, positions)

		step := got.Heading - prev
		require.Less(t, math.Abs(step), math.Pi, "cycle %d jumped across the wrap", i)
		prev = got.Heading
	}

	assert.InDelta(t, 30.0, est.Estimate().Heading, 1e-6)
}

func TestEstimatorResetAtomicity(t *testing.T) {
	t.Parallel()

	est, clock, _ := newTestEstimator(Pose{})

	// Accumulate some motion.
	var positions [NumModules]ModulePosition
	for i := 0; i < 10; i++ {
		clock.Advance(20 * time.Millisecond)
		for j := range positions {
			positions[j].Distance += 0.05
		}
		est.Update(0.1, positions)
	}

	target := Pose{X: 5, Y: -3, Heading: 1.2}
	est.Reset(target, 0.1, positions)

	clock.Advance(20 * time.Millisecond)
	got := est.Update(0.1, positions)
	assert.InDelta(t, target.X, got.X, 1e-12)
	assert.InDelta(t, target.Y, got.Y, 1e-12)
	assert.InDelta(t, target.Heading, got.Heading, 1e-12)
}

func TestEstimatorStaleVisionDegrades(t *testing.T) {
	t.Parallel()

	est, clock, positions := newTestEstimator(Pose{})
	captured := clock.Now()

	// Walk well past the 1s retention window.
	for i := 0; i < 100; i++ {
		clock.Advance(20 * time.Millisecond)
		est.Update(0, positions)
	}

	before := est.Estimate()
	est.AddVisionMeasurement(VisionMeasurement{
		Pose:      Pose{X: 1},
		Timestamp: captured,
	})

	diag := est.Diagnostics()
	assert.Equal(t, 1, diag.StaleMeasurements, "stale observation must be counted, not dropped")

	// The correction still applies, just against the oldest retained sample.
	assert.Greater(t, est.Estimate().X, before.X)
	// Age discounts the gain well below the fresh-observation value.
	assert.Less(t, diag.LastGain, 0.1)
}

func TestEstimatorFutureTimestampClamped(t *testing.T) {
	t.Parallel()

	est, clock, _ := newTestEstimator(Pose{})

	est.AddVisionMeasurement(VisionMeasurement{
		Pose:      Pose{X: 1},
		Timestamp: clock.Now().Add(5 * time.Second),
	})

	diag := est.Diagnostics()
	assert.Equal(t, 1, diag.FutureClamped)
	// Clamping to now means zero age: the fresh-observation gain applies.
	assert.InDelta(t, 0.1, diag.LastGain, 1e-9)
}

func TestEstimatorCorrectionsApplyInArrivalOrder(t *testing.T) {
	t.Parallel()

	est, clock, _ := newTestEstimator(Pose{})
	vision := Pose{X: 1}

	est.AddVisionMeasurement(VisionMeasurement{Pose: vision, Timestamp: clock.Now()})
	afterFirst := est.Estimate().X
	est.AddVisionMeasurement(VisionMeasurement{Pose: vision, Timestamp: clock.Now()})
	afterSecond := est.Estimate().X

	assert.Greater(t, afterFirst, 0.0)
	assert.Greater(t, afterSecond, afterFirst)
	assert.Less(t, afterSecond, vision.X)
}
