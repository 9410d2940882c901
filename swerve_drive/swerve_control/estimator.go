package control

import (
	"math"
	"sync"
	"time"
)

// poseSample is one entry of the retained pose history, used to rewind a
// delayed vision observation to the pose the robot had at capture time.
type poseSample struct {
	t    time.Time
	pose Pose
}

// EstimatorDiagnostics counts the documented degradation paths so the caller
// can surface them in telemetry instead of losing them silently.
type EstimatorDiagnostics struct {
	// StaleMeasurements counts vision observations older than the retained
	// pose history. They are blended against the oldest sample instead of
	// being dropped, at reduced accuracy.
	StaleMeasurements int
	// FutureClamped counts observations whose capture timestamp was in the
	// future (clock skew); their timestamps are clamped to now.
	FutureClamped int
	// LastGain is the blend gain applied by the most recent correction.
	LastGain float64
}

// PoseEstimator fuses per-cycle module odometry with delayed vision
// observations into a single authoritative pose. All state is guarded by one
// mutex so Estimate may be called concurrently by telemetry or autonomy
// consumers while the control thread updates.
type PoseEstimator struct {
	mu  sync.RWMutex
	cfg EstimatorConfig
	kin *Kinematics

	pose          Pose
	prevYaw       float64
	prevPositions [NumModules]ModulePosition

	history []poseSample
	diag    EstimatorDiagnostics

	now func() time.Time
}

// NewPoseEstimator seeds the estimator with the current yaw reading, the
// current module positions, and the known starting pose. Must be called once
// before any Update.
func NewPoseEstimator(cfg EstimatorConfig, kin *Kinematics, yaw float64, positions [NumModules]ModulePosition, initial Pose) *PoseEstimator {
	e := &PoseEstimator{
		cfg:           cfg,
		kin:           kin,
		pose:          initial,
		prevYaw:       yaw,
		prevPositions: positions,
		now:           time.Now,
	}
	e.history = append(e.history, poseSample{t: e.now(), pose: initial})
	return e
}

// Update integrates one control cycle of odometry. The twist is solved from
// the module position deltas, its rotation replaced by the unwrapped gyro
// delta, and the pose advanced along the twist exponential. Never fails and
// never blocks.
func (e *PoseEstimator) Update(yaw float64, positions [NumModules]ModulePosition) Pose {
	e.mu.Lock()
	defer e.mu.Unlock()

	var deltas [NumModules]ModulePosition
	for i := range positions {
		deltas[i] = ModulePosition{
			Angle:    positions[i].Angle,
			Distance: positions[i].Distance - e.prevPositions[i].Distance,
		}
	}
	tw := e.kin.TwistFromDeltas(deltas)

	// The gyro is the better rotation reference. Accumulate the shortest-path
	// delta between raw readings so the pose heading stays continuous across
	// the +/-pi wrap.
	tw.DTheta = AngleDiff(yaw, e.prevYaw)

	e.pose = expPose(e.pose, tw)
	e.prevYaw = yaw
	e.prevPositions = positions
	e.record(e.now(), e.pose)
	return e.pose
}

// AddVisionMeasurement blends one delayed vision observation into the pose.
// The observation is rewound against the pose history at its capture time,
// and the resulting error is applied to the current pose with a scalar gain
// derived from the configured weights, the measurement ambiguity, and the
// observation age. Corrections apply in arrival order.
func (e *PoseEstimator) AddVisionMeasurement(m VisionMeasurement) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ts := m.Timestamp
	if ts.After(now) {
		ts = now
		e.diag.FutureClamped++
	}

	ref, covered := e.sampleAt(ts)
	if !covered {
		e.diag.StaleMeasurements++
	}

	age := now.Sub(ts).Seconds()
	meas := e.cfg.VisionStdDev * (1 + m.Ambiguity*e.cfg.VisionAmbiguityScale)
	denom := e.cfg.StateStdDev + meas*(1+age)
	gain := 1.0
	if denom > 0 {
		gain = e.cfg.StateStdDev / denom
	}
	e.diag.LastGain = gain

	// The drift observed at capture time is still present now, so the
	// rewound error is applied directly to the current pose.
	e.pose.X += gain * (m.Pose.X - ref.X)
	e.pose.Y += gain * (m.Pose.Y - ref.Y)
	e.pose.Heading += gain * AngleDiff(m.Pose.Heading, ref.Heading)
	e.record(now, e.pose)
}

// Reset discards accumulated drift and atomically re-seeds the pose, the
// odometry snapshot, and the pose history.
func (e *PoseEstimator) Reset(pose Pose, yaw float64, positions [NumModules]ModulePosition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pose = pose
	e.prevYaw = yaw
	e.prevPositions = positions
	e.history = e.history[:0]
	e.history = append(e.history, poseSample{t: e.now(), pose: pose})
}

// Estimate returns the most recent completed pose. Non-blocking snapshot
// read, safe from any goroutine.
func (e *PoseEstimator) Estimate() Pose {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pose
}

// Diagnostics returns the degradation counters for telemetry.
func (e *PoseEstimator) Diagnostics() EstimatorDiagnostics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.diag
}

// record appends a history sample and trims entries older than the retention
// window.
func (e *PoseEstimator) record(t time.Time, p Pose) {
	e.history = append(e.history, poseSample{t: t, pose: p})
	cutoff := t.Add(-time.Duration(e.cfg.HistorySeconds * float64(time.Second)))
	trim := 0
	for trim < len(e.history)-1 && e.history[trim].t.Before(cutoff) {
		trim++
	}
	if trim > 0 {
		e.history = append(e.history[:0], e.history[trim:]...)
	}
}

// sampleAt returns the buffered pose at time t, interpolating between the
// surrounding samples. The second return reports whether t was inside the
// retained history; a stale t degrades to the oldest sample.
func (e *PoseEstimator) sampleAt(t time.Time) (Pose, bool) {
	if len(e.history) == 0 {
		return e.pose, false
	}
	oldest := e.history[0]
	newest := e.history[len(e.history)-1]
	if t.Before(oldest.t) {
		return oldest.pose, false
	}
	if !t.Before(newest.t) {
		return newest.pose, true
	}
	hi := 1
	for hi < len(e.history) && e.history[hi].t.Before(t) {
		hi++
	}
	lo := e.history[hi-1]
	up := e.history[hi]
	span := up.t.Sub(lo.t).Seconds()
	if span <= 0 {
		return up.pose, true
	}
	frac := t.Sub(lo.t).Seconds() / span
	return Pose{
		X: lerp(lo.pose.X, up.pose.X, frac),
		Y: lerp(lo.pose.Y, up.pose.Y, frac),
		// History headings are continuous, so a plain lerp is safe.
		Heading: lerp(lo.pose.Heading, up.pose.Heading, frac),
	}, true
}

// expPose advances a pose along the exponential of a robot-frame twist,
// which keeps the integration exact for constant-curvature arcs.
func expPose(p Pose, t Twist) Pose {
	var s, c float64
	if math.Abs(t.DTheta) < 1e-9 {
		s = 1 - t.DTheta*t.DTheta/6
		c = t.DTheta / 2
	} else {
		s = math.Sin(t.DTheta) / t.DTheta
		c = (1 - math.Cos(t.DTheta)) / t.DTheta
	}
	dx := t.DX*s - t.DY*c
	dy := t.DX*c + t.DY*s

	sinH, cosH := math.Sincos(p.Heading)
	return Pose{
		X:       p.X + dx*cosH - dy*sinH,
		Y:       p.Y + dx*sinH + dy*cosH,
		Heading: p.Heading + t.DTheta,
	}
}
