package main

import (
	"fmt"
	"sync"

	control "swerve-fusion-core/swerve_drive/swerve_control"
)

// Telemetry keys.
const (
	telemPoseX      = "pose_x"
	telemPoseY      = "pose_y"
	telemHeading    = "pose_heading"
	telemStaleVis   = "vision_stale"
	telemDroppedVis = "vision_dropped"
)

// Telemetry is a read-only snapshot surface for dashboards and logging.
// Writers are the control loop; readers may poll from any goroutine.
type Telemetry struct {
	mu   sync.RWMutex
	data map[string]any
}

func newTelemetry() *Telemetry {
	return &Telemetry{data: map[string]any{}}
}

func (t *Telemetry) Set(key string, value any) {
	t.mu.Lock()
	t.data[key] = value
	t.mu.Unlock()
}

// Snapshot returns a copy of the current telemetry map.
func (t *Telemetry) Snapshot() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]any, len(t.data))
	for k, v := range t.data {
		out[k] = v
	}
	return out
}

func moduleKey(i int) string {
	return fmt.Sprintf("module_%d", i)
}

// formatModuleState renders a module state for telemetry.
func formatModuleState(s control.ModuleState) string {
	return fmt.Sprintf("%.2f m/s %.2f rad", s.Speed, s.Angle)
}
