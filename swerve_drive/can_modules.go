package main

import (
	"context"
	"fmt"
	"sync"

	"swerve-fusion-core/utils"

	control "swerve-fusion-core/swerve_drive/swerve_control"
)

// Frame names of the swerve bus. Index i of the module arrays corresponds to
// MODULE_*_i throughout.
const (
	gyroYawFrame    = "GYRO_YAW"
	visionPoseFrame = "VISION_POSE"
)

func moduleCmdFrame(i int) string   { return fmt.Sprintf("MODULE_CMD_%d", i) }
func moduleStateFrame(i int) string { return fmt.Sprintf("MODULE_STATE_%d", i) }
func modulePosFrame(i int) string   { return fmt.Sprintf("MODULE_POS_%d", i) }

// canModule is a ModuleController backed by the CAN bus: targets go out as
// MODULE_CMD frames, state and position snapshots are refreshed by the shared
// receive loop.
type canModule struct {
	index  int
	bmap   *utils.BusMap
	writer utils.BusWriter
	ctx    context.Context
	log    utils.Logger

	mu       sync.RWMutex
	state    control.ModuleState
	position control.ModulePosition
}

var _ control.ModuleController = (*canModule)(nil)

func newCANModule(ctx context.Context, index int, bmap *utils.BusMap, writer utils.BusWriter, log utils.Logger) *canModule {
	return &canModule{index: index, bmap: bmap, writer: writer, ctx: ctx, log: log}
}

// SetTarget encodes and transmits the module command. Transmit errors are
// logged, not returned: the drive loop must never block or fail mid-cycle,
// and the next cycle re-sends a fresh command anyway.
func (m *canModule) SetTarget(target control.ModuleState, openLoop bool) {
	frame, err := m.bmap.Encode(moduleCmdFrame(m.index), map[string]float64{
		"steer_angle_rad": control.WrapAngle(target.Angle),
		"wheel_speed_mps": target.Speed,
		"open_loop":       utils.BoolToFloat(openLoop),
	})
	if err != nil {
		m.log.Error("module %d: encode command: %v", m.index, err)
		return
	}
	if err := m.writer.WriteFrame(m.ctx, frame); err != nil {
		m.log.Error("module %d: transmit command: %v", m.index, err)
	}
}

func (m *canModule) State() control.ModuleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *canModule) Position() control.ModulePosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

func (m *canModule) setState(s control.ModuleState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *canModule) setPosition(p control.ModulePosition) {
	m.mu.Lock()
	m.position = p
	m.mu.Unlock()
}

// canGyro is a HeadingSource backed by GYRO_YAW frames. Zero re-references
// the reported heading without touching the hardware.
type canGyro struct {
	mu     sync.RWMutex
	yaw    float64
	offset float64
}

var _ control.HeadingSource = (*canGyro)(nil)

func (g *canGyro) Yaw() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return control.WrapAngle(g.yaw - g.offset)
}

func (g *canGyro) Zero() {
	g.mu.Lock()
	g.offset = g.yaw
	g.mu.Unlock()
}

func (g *canGyro) setYaw(v float64) {
	g.mu.Lock()
	g.yaw = v
	g.mu.Unlock()
}
