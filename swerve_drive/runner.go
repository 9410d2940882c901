package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"swerve-fusion-core/utils"

	control "swerve-fusion-core/swerve_drive/swerve_control"
)

// RunnerConfig selects the runtime inputs of one drive session.
type RunnerConfig struct {
	Interface    string // overrides the robot config bus interface when set
	RobotPath    string
	ScenarioPath string
}

// Runner owns the control cycle: scripted intent in, module commands out,
// pose estimate maintained on the side.
type Runner struct {
	cfg   RunnerConfig
	log   utils.Logger
	robot *utils.RobotConfig
	bmap  *utils.BusMap
	scen  Scenario

	writer utils.BusWriter
	reader utils.BusReader

	modules    [control.NumModules]*canModule
	gyro       *canGyro
	vision     *visionReceiver
	drive      *control.DriveLoop
	estimator  *control.PoseEstimator
	headingPID *control.HeadingPID
	telemetry  *Telemetry

	// receive-loop dispatch tables, frame name -> module index
	stateIdx map[string]int
	posIdx   map[string]int
}

// NewRunner loads all configuration, opens the bus, and wires the drive loop
// and estimator.
func NewRunner(ctx context.Context, cfg RunnerConfig, log utils.Logger) (*Runner, error) {
	robot, err := utils.LoadRobotConfig(cfg.RobotPath)
	if err != nil {
		return nil, fmt.Errorf("load robot config: %w", err)
	}

	iface := robot.Bus.Interface
	if cfg.Interface != "" {
		iface = cfg.Interface
	}

	bmap, err := utils.LoadBusMap(robot.Bus.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load bus map: %w", err)
	}
	required := []string{gyroYawFrame, visionPoseFrame}
	for i := 0; i < control.NumModules; i++ {
		required = append(required, moduleCmdFrame(i), moduleStateFrame(i), modulePosFrame(i))
	}
	if err := bmap.RequireFrames(required...); err != nil {
		return nil, err
	}

	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, iface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, iface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	r := &Runner{
		cfg:       cfg,
		log:       log,
		robot:     robot,
		bmap:      bmap,
		scen:      scen,
		writer:    writer,
		reader:    reader,
		gyro:      &canGyro{},
		vision:    newVisionReceiver(robot.Bus.VisionBuffer),
		telemetry: newTelemetry(),
		stateIdx:  map[string]int{},
		posIdx:    map[string]int{},
	}

	var offsets [control.NumModules]r3.Vector
	var controllers [control.NumModules]control.ModuleController
	for i := 0; i < control.NumModules; i++ {
		offsets[i] = r3.Vector{
			X: robot.Drivetrain.ModuleOffsets[i].X,
			Y: robot.Drivetrain.ModuleOffsets[i].Y,
		}
		r.modules[i] = newCANModule(ctx, i, bmap, writer, log)
		controllers[i] = r.modules[i]
		r.stateIdx[moduleStateFrame(i)] = i
		r.posIdx[modulePosFrame(i)] = i
	}

	kin := control.NewKinematics(offsets)
	r.drive = control.NewDriveLoop(control.DriveConfig{
		MaxWheelSpeedMPS:  robot.Drivetrain.MaxWheelSpeedMPS,
		MaxTranslationMPS: robot.Drivetrain.MaxTranslationMPS,
		MaxRotationRPS:    robot.Drivetrain.MaxRotationRPS,
		AxisDeadzone:      robot.Drivetrain.AxisDeadzone,
	}, kin, controllers, r.gyro)

	initial := control.Pose{}
	if scen.InitialPose != nil {
		initial = scen.InitialPose.toPose()
	}
	r.estimator = control.NewPoseEstimator(control.EstimatorConfig{
		StateStdDev:          robot.Estimator.StateStdDev,
		VisionStdDev:         robot.Estimator.VisionStdDev,
		VisionAmbiguityScale: robot.Estimator.VisionAmbiguityScale,
		HistorySeconds:       robot.Estimator.PoseHistorySeconds,
	}, kin, r.gyro.Yaw(), r.positions(), initial)

	if scen.Meta.ControlMode == modeHeadingHold {
		r.headingPID = control.NewHeadingPID(*scen.HeadingPIDConfig)
	}

	return r, nil
}

// Close releases the bus sockets.
func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

// Telemetry exposes the snapshot surface for external consumers.
func (r *Runner) Telemetry() *Telemetry {
	return r.telemetry
}

// Run executes the scenario to completion or cancellation. One ticker drives
// the whole cycle: drive loop, odometry update, vision corrections.
func (r *Runner) Run(ctx context.Context) error {
	cycle := time.Duration(r.robot.Timing.CycleMS) * time.Millisecond
	dt := cycle.Seconds()

	r.log.Info("Starting drive: scenario=%s mode=%s duration=%.2fs cycle=%dms iface=%s",
		r.scen.Meta.Name, r.scen.Meta.ControlMode, r.scen.Timing.DurationS,
		r.robot.Timing.CycleMS, r.robot.Bus.Interface)

	go r.receiveLoop(ctx)

	ticker := time.NewTicker(cycle)
	defer ticker.Stop()

	start := time.Now()
	logEvery := 1
	if r.scen.Timing.LogHz > 0 {
		logEvery = int(math.Max(1, 1.0/(r.scen.Timing.LogHz*dt)))
	}

	var cycles uint64
	prevT := 0.0
	lastStale := 0

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping drive")
			return ctx.Err()

		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			if t > r.scen.Timing.DurationS {
				r.log.Info("Scenario complete. cycles=%d pose=%+v", cycles, r.estimator.Estimate())
				return nil
			}

			for _, ev := range PendingEvents(&r.scen, prevT, t) {
				r.fireEvent(ev)
			}
			prevT = t

			cmd := EvalAxisCmd(&r.scen, t)
			if r.headingPID != nil {
				rate := r.headingPID.Update(cmd.HeadingHoldRad, r.estimator.Estimate().Heading, dt)
				cmd.Rot = clampUnit(rate / r.robot.Drivetrain.MaxRotationRPS)
			}

			r.drive.Drive(
				func() float64 { return cmd.X },
				func() float64 { return cmd.Y },
				func() float64 { return cmd.Rot },
				cmd.FieldRelative, cmd.OpenLoop,
			)

			pose := r.estimator.Update(r.gyro.Yaw(), r.positions())

			for _, m := range r.vision.Measurements() {
				r.estimator.AddVisionMeasurement(m)
			}

			diag := r.estimator.Diagnostics()
			if diag.StaleMeasurements > lastStale {
				r.log.Warn("Vision older than pose history; blended at reduced accuracy (total=%d)",
					diag.StaleMeasurements)
				lastStale = diag.StaleMeasurements
			}

			r.publishTelemetry(pose, diag)
			cycles++
			if cycles%uint64(logEvery) == 0 {
				r.log.Debug("t=%.2f pose=(%.3f, %.3f, %.3f) gain=%.3f", t, pose.X, pose.Y, pose.Heading, diag.LastGain)
			}
		}
	}
}

// fireEvent applies a one-shot scenario event. Both actions are immediate
// and total: accumulated odometry deltas before them are discarded.
func (r *Runner) fireEvent(ev ScenarioEvent) {
	switch ev.Action {
	case "zero_heading":
		cur := r.estimator.Estimate()
		r.gyro.Zero()
		r.estimator.Reset(control.Pose{X: cur.X, Y: cur.Y, Heading: 0}, r.gyro.Yaw(), r.positions())
		r.log.Info("t=%.2f zero_heading", ev.T)
	case "reset_pose":
		r.estimator.Reset(ev.Pose.toPose(), r.gyro.Yaw(), r.positions())
		r.log.Info("t=%.2f reset_pose to (%.2f, %.2f, %.2f)", ev.T, ev.Pose.X, ev.Pose.Y, ev.Pose.Heading)
	}
}

// positions snapshots the four module positions in geometry order.
func (r *Runner) positions() [control.NumModules]control.ModulePosition {
	var out [control.NumModules]control.ModulePosition
	for i, m := range r.modules {
		out[i] = m.Position()
	}
	return out
}

func (r *Runner) publishTelemetry(pose control.Pose, diag control.EstimatorDiagnostics) {
	r.telemetry.Set(telemPoseX, pose.X)
	r.telemetry.Set(telemPoseY, pose.Y)
	r.telemetry.Set(telemHeading, pose.Heading)
	r.telemetry.Set(telemStaleVis, diag.StaleMeasurements)
	r.telemetry.Set(telemDroppedVis, r.vision.Dropped())
	for i, m := range r.modules {
		r.telemetry.Set(moduleKey(i), formatModuleState(m.State()))
	}
}

// receiveLoop reads bus frames and routes decoded signals to the module,
// gyro, and vision caches. Non-finite readings are rejected here so they
// never reach the estimator.
func (r *Runner) receiveLoop(ctx context.Context) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("RX error: %v", err)
			continue
		}

		values, spec, err := r.bmap.Decode(frame)
		if err != nil {
			r.log.Trace("RX unknown frame id=0x%X", uint32(frame.ID))
			continue
		}
		if !utils.AllFinite(values) {
			r.log.Warn("RX %s: non-finite signal rejected", spec.Name)
			continue
		}

		switch {
		case spec.Name == gyroYawFrame:
			r.gyro.setYaw(values["yaw_rad"])

		case spec.Name == visionPoseFrame:
			r.vision.push(visionFromSignals(values, time.Now()))

		default:
			if i, ok := r.stateIdx[spec.Name]; ok {
				r.modules[i].setState(control.ModuleState{
					Angle: values["steer_angle_rad"],
					Speed: values["wheel_speed_mps"],
				})
			} else if i, ok := r.posIdx[spec.Name]; ok {
				r.modules[i].setPosition(control.ModulePosition{
					Angle:    values["steer_angle_rad"],
					Distance: values["drive_distance_m"],
				})
			}
		}
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
