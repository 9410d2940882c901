package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRobotYAML = `drivetrain:
  module_offsets:
    - {x: 0.25, y: 0.25}
    - {x: 0.25, y: -0.25}
    - {x: -0.25, y: 0.25}
    - {x: -0.25, y: -0.25}
  max_wheel_speed_mps: 4.0
  max_translation_mps: 4.0
  max_rotation_rps: 6.28
  axis_deadzone: 0.05
estimator:
  state_std_dev: 0.1
  vision_std_dev: 0.9
  vision_ambiguity_scale: 4.0
  pose_history_seconds: 1.5
bus:
  interface: vcan0
  map_path: config/can_map.csv
  vision_buffer: 32
timing:
  cycle_ms: 20
`

func writeRobotYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRobotConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadRobotConfig(writeRobotYAML(t, validRobotYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Drivetrain.ModuleOffsets, 4)
	assert.Equal(t, ModuleOffset{X: 0.25, Y: -0.25}, cfg.Drivetrain.ModuleOffsets[1])
	assert.Equal(t, 4.0, cfg.Drivetrain.MaxWheelSpeedMPS)
	assert.Equal(t, 0.05, cfg.Drivetrain.AxisDeadzone)
	assert.Equal(t, 0.9, cfg.Estimator.VisionStdDev)
	assert.Equal(t, 1.5, cfg.Estimator.PoseHistorySeconds)
	assert.Equal(t, "vcan0", cfg.Bus.Interface)
	assert.Equal(t, 32, cfg.Bus.VisionBuffer)
	assert.Equal(t, 20, cfg.Timing.CycleMS)
}

func TestLoadRobotConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadRobotConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRobotConfigBadYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadRobotConfig(writeRobotYAML(t, "drivetrain: ["))
	assert.ErrorContains(t, err, "parse robot config")
}

func TestLoadRobotConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{
			name:    "three offsets",
			mutate:  func(s string) string { return replaceLine(s, "    - {x: -0.25, y: -0.25}\n", "") },
			wantErr: "exactly 4 module_offsets",
		},
		{
			name:    "zero wheel speed",
			mutate:  func(s string) string { return replaceLine(s, "max_wheel_speed_mps: 4.0", "max_wheel_speed_mps: 0") },
			wantErr: "max_wheel_speed_mps",
		},
		{
			name:    "deadzone out of range",
			mutate:  func(s string) string { return replaceLine(s, "axis_deadzone: 0.05", "axis_deadzone: 1.0") },
			wantErr: "axis_deadzone",
		},
		{
			name:    "zero history",
			mutate:  func(s string) string { return replaceLine(s, "pose_history_seconds: 1.5", "pose_history_seconds: 0") },
			wantErr: "pose_history_seconds",
		},
		{
			name:    "missing interface",
			mutate:  func(s string) string { return replaceLine(s, "interface: vcan0", "interface: \"\"") },
			wantErr: "interface",
		},
		{
			name:    "zero cycle",
			mutate:  func(s string) string { return replaceLine(s, "cycle_ms: 20", "cycle_ms: 0") },
			wantErr: "cycle_ms",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadRobotConfig(writeRobotYAML(t, tc.mutate(validRobotYAML)))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func replaceLine(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
