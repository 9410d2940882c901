package main

import (
	"encoding/json"
	"fmt"
	"os"

	control "swerve-fusion-core/swerve_drive/swerve_control"
)

// Control modes a scenario can request.
const (
	modeAxisDrive   = "axis_drive"   // rotation comes straight from the axis
	modeHeadingHold = "heading_hold" // rotation comes from the heading PID
)

// Scenario defines a scripted drive: time segments of normalized axis values
// plus optional one-shot events. It stands in for an operator input stream.
type Scenario struct {
	Meta             ScenarioMeta              `json:"meta"`
	Timing           ScenarioTiming            `json:"timing"`
	Defaults         AxisCmd                   `json:"defaults"`
	Segments         []ScenarioSegment         `json:"segments"`
	Events           []ScenarioEvent           `json:"events,omitempty"`
	HeadingPIDConfig *control.HeadingPIDConfig `json:"heading_pid_config,omitempty"`
	InitialPose      *PoseSpec                 `json:"initial_pose,omitempty"`
}

// ScenarioMeta contains scenario metadata.
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	ControlMode string `json:"control_mode,omitempty"`
}

// ScenarioTiming defines timing parameters.
type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
	LogHz     float64 `json:"log_hz"`
}

// AxisCmd is a complete set of axis inputs and drive flags.
type AxisCmd struct {
	X              float64 `json:"x_axis"`
	Y              float64 `json:"y_axis"`
	Rot            float64 `json:"rot_axis"`
	FieldRelative  bool    `json:"field_relative"`
	OpenLoop       bool    `json:"open_loop"`
	HeadingHoldRad float64 `json:"heading_hold_rad,omitempty"`
}

// ScenarioSegment overrides the axis command for a time window. A negative
// T1 runs to the end of the scenario.
type ScenarioSegment struct {
	T0             float64 `json:"t0"`
	T1             float64 `json:"t1"`
	X              float64 `json:"x_axis,omitempty"`
	Y              float64 `json:"y_axis,omitempty"`
	Rot            float64 `json:"rot_axis,omitempty"`
	FieldRelative  bool    `json:"field_relative,omitempty"`
	OpenLoop       bool    `json:"open_loop,omitempty"`
	HeadingHoldRad float64 `json:"heading_hold_rad,omitempty"`
	Comment        string  `json:"comment,omitempty"`
}

// ScenarioEvent is a one-shot action fired when its time is reached.
type ScenarioEvent struct {
	T      float64   `json:"t"`
	Action string    `json:"action"` // "zero_heading" or "reset_pose"
	Pose   *PoseSpec `json:"pose,omitempty"`
}

// PoseSpec is a pose literal in scenario JSON.
type PoseSpec struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

func (p *PoseSpec) toPose() control.Pose {
	return control.Pose{X: p.X, Y: p.Y, Heading: p.Heading}
}

// LoadScenario loads and validates a scenario JSON file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if scen.Meta.ControlMode == "" {
		scen.Meta.ControlMode = modeAxisDrive
	}
	switch scen.Meta.ControlMode {
	case modeAxisDrive:
	case modeHeadingHold:
		if scen.HeadingPIDConfig == nil {
			return Scenario{}, fmt.Errorf("%s mode requires heading_pid_config", modeHeadingHold)
		}
	default:
		return Scenario{}, fmt.Errorf("unknown control_mode %q", scen.Meta.ControlMode)
	}
	for _, ev := range scen.Events {
		switch ev.Action {
		case "zero_heading":
		case "reset_pose":
			if ev.Pose == nil {
				return Scenario{}, fmt.Errorf("reset_pose event at t=%.2f requires a pose", ev.T)
			}
		default:
			return Scenario{}, fmt.Errorf("unknown event action %q", ev.Action)
		}
	}

	return scen, nil
}

// EvalAxisCmd evaluates the scenario at time t. The first matching segment
// wins; outside all segments the defaults apply.
func EvalAxisCmd(scen *Scenario, t float64) AxisCmd {
	cmd := scen.Defaults

	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			cmd.X = seg.X
			cmd.Y = seg.Y
			cmd.Rot = seg.Rot
			cmd.FieldRelative = seg.FieldRelative
			cmd.OpenLoop = seg.OpenLoop
			cmd.HeadingHoldRad = seg.HeadingHoldRad
			break
		}
	}

	return cmd
}

// PendingEvents returns the events whose trigger time falls inside [t0, t1).
func PendingEvents(scen *Scenario, t0, t1 float64) []ScenarioEvent {
	var out []ScenarioEvent
	for _, ev := range scen.Events {
		if ev.T >= t0 && ev.T < t1 {
			out = append(out, ev)
		}
	}
	return out
}
