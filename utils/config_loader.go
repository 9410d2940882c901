package utils

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ModuleOffset is one swerve module's fixed position relative to the robot
// center, chassis convention (+X forward, +Y left), meters.
type ModuleOffset struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// DrivetrainConfig holds the chassis geometry and drive limits.
type DrivetrainConfig struct {
	// ModuleOffsets must list exactly four modules in order: front-left,
	// front-right, rear-left, rear-right.
	ModuleOffsets     []ModuleOffset `yaml:"module_offsets"`
	MaxWheelSpeedMPS  float64        `yaml:"max_wheel_speed_mps"`
	MaxTranslationMPS float64        `yaml:"max_translation_mps"`
	MaxRotationRPS    float64        `yaml:"max_rotation_rps"`
	AxisDeadzone      float64        `yaml:"axis_deadzone"`
}

// EstimatorWeights holds the pose estimator uncertainty coefficients.
type EstimatorWeights struct {
	StateStdDev          float64 `yaml:"state_std_dev"`
	VisionStdDev         float64 `yaml:"vision_std_dev"`
	VisionAmbiguityScale float64 `yaml:"vision_ambiguity_scale"`
	PoseHistorySeconds   float64 `yaml:"pose_history_seconds"`
}

// BusConfig holds the CAN collaborator wiring.
type BusConfig struct {
	Interface    string `yaml:"interface"`
	MapPath      string `yaml:"map_path"`
	VisionBuffer int    `yaml:"vision_buffer"`
}

// TimingConfig holds the control cycle parameters.
type TimingConfig struct {
	CycleMS int `yaml:"cycle_ms"`
}

// RobotConfig is the top-level structure of robot.yaml. All values are fixed
// at construction; nothing here is runtime-mutable.
type RobotConfig struct {
	Drivetrain DrivetrainConfig `yaml:"drivetrain"`
	Estimator  EstimatorWeights `yaml:"estimator"`
	Bus        BusConfig        `yaml:"bus"`
	Timing     TimingConfig     `yaml:"timing"`
}

// LoadRobotConfig reads and validates robot.yaml.
func LoadRobotConfig(path string) (*RobotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read robot config: %w", err)
	}
	var cfg RobotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse robot config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid robot config")
	}
	return &cfg, nil
}

func (c *RobotConfig) validate() error {
	if n := len(c.Drivetrain.ModuleOffsets); n != 4 {
		return errors.Errorf("drivetrain needs exactly 4 module_offsets, got %d", n)
	}
	if c.Drivetrain.MaxWheelSpeedMPS <= 0 {
		return errors.Errorf("max_wheel_speed_mps must be positive, got %f", c.Drivetrain.MaxWheelSpeedMPS)
	}
	if c.Drivetrain.MaxTranslationMPS <= 0 {
		return errors.Errorf("max_translation_mps must be positive, got %f", c.Drivetrain.MaxTranslationMPS)
	}
	if c.Drivetrain.MaxRotationRPS <= 0 {
		return errors.Errorf("max_rotation_rps must be positive, got %f", c.Drivetrain.MaxRotationRPS)
	}
	if c.Drivetrain.AxisDeadzone < 0 || c.Drivetrain.AxisDeadzone >= 1 {
		return errors.Errorf("axis_deadzone must be in [0, 1), got %f", c.Drivetrain.AxisDeadzone)
	}
	if c.Estimator.PoseHistorySeconds <= 0 {
		return errors.Errorf("pose_history_seconds must be positive, got %f", c.Estimator.PoseHistorySeconds)
	}
	if c.Timing.CycleMS <= 0 {
		return errors.Errorf("cycle_ms must be positive, got %d", c.Timing.CycleMS)
	}
	if c.Bus.Interface == "" {
		return errors.New("bus interface must be set")
	}
	if c.Bus.VisionBuffer <= 0 {
		return errors.Errorf("vision_buffer must be positive, got %d", c.Bus.VisionBuffer)
	}
	return nil
}
