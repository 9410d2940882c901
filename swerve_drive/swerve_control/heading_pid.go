package control

import "math"

// HeadingPID holds the robot heading while translating: it turns a wrapped
// heading error into a rotation rate command for the drive loop.
type HeadingPID struct {
	cfg HeadingPIDConfig

	integral    float64
	prevError   float64
	initialized bool
}

// NewHeadingPID creates a heading-hold controller with the given gains.
func NewHeadingPID(cfg HeadingPIDConfig) *HeadingPID {
	return &HeadingPID{cfg: cfg}
}

// Reset clears the controller state.
func (c *HeadingPID) Reset() {
	c.integral = 0
	c.prevError = 0
	c.initialized = false
}

// Update computes the rotation rate (rad/s) that steers the current heading
// toward target. The error is always taken along the shortest arc, so a
// target on the far side of the +/-pi wrap never commands a full spin.
func (c *HeadingPID) Update(target, current, dt float64) float64 {
	err := AngleDiff(target, current)

	if !c.initialized {
		c.prevError = err
		c.initialized = true
	}

	p := c.cfg.Kp * err

	c.integral += err * dt
	if c.integral > c.cfg.IntegralLimit {
		c.integral = c.cfg.IntegralLimit
	} else if c.integral < -c.cfg.IntegralLimit {
		c.integral = -c.cfg.IntegralLimit
	}
	i := c.cfg.Ki * c.integral

	var d float64
	if dt > 0 {
		d = c.cfg.Kd * (err - c.prevError) / dt
	}

	rate := p + i + d

	limit := math.Abs(c.cfg.MaxRateRPS)
	if rate > limit {
		rate = limit
		if c.cfg.Ki != 0 {
			// Anti-windup: back-calculate the integral at saturation.
			c.integral = (rate - p - d) / c.cfg.Ki
		}
	} else if rate < -limit {
		rate = -limit
		if c.cfg.Ki != 0 {
			c.integral = (rate - p - d) / c.cfg.Ki
		}
	}

	c.prevError = err
	return rate
}

// Error returns the most recent wrapped heading error.
func (c *HeadingPID) Error() float64 {
	return c.prevError
}
