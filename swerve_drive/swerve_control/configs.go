package control

// DriveConfig holds the drive loop limits and input shaping parameters.
// All values are fixed at construction.
type DriveConfig struct {
	MaxWheelSpeedMPS  float64 // physical per-wheel limit used for desaturation
	MaxTranslationMPS float64 // full-scale translation for a +/-1 axis input
	MaxRotationRPS    float64 // full-scale rotation for a +/-1 axis input
	AxisDeadzone      float64 // axes below this magnitude command exactly zero
}

// EstimatorConfig holds the pose estimator weighting coefficients.
type EstimatorConfig struct {
	// StateStdDev weights how much the odometry-integrated state is trusted
	// when blending a vision observation.
	StateStdDev float64
	// VisionStdDev is the base uncertainty of a vision observation.
	VisionStdDev float64
	// VisionAmbiguityScale converts a measurement's ambiguity scalar into
	// additional measurement uncertainty.
	VisionAmbiguityScale float64
	// HistorySeconds bounds the retained pose history used to rewind delayed
	// observations. Older observations degrade to oldest-sample blending.
	HistorySeconds float64
}

// HeadingPIDConfig holds heading-hold controller parameters. Loaded from the
// drive scenario file when the scenario requests heading hold.
type HeadingPIDConfig struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	MaxRateRPS    float64 `json:"max_rate_rps"`
	IntegralLimit float64 `json:"integral_limit"`
}
