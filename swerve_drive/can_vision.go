package main

import (
	"sync"
	"time"

	control "swerve-fusion-core/swerve_drive/swerve_control"
)

// visionReceiver buffers vision measurements between control cycles. The
// buffer is bounded; when full the oldest measurement is dropped, since a
// newer observation of the same robot supersedes it.
type visionReceiver struct {
	mu       sync.Mutex
	queue    []control.VisionMeasurement
	capacity int
	dropped  int
}

var _ control.VisionSource = (*visionReceiver)(nil)

func newVisionReceiver(capacity int) *visionReceiver {
	return &visionReceiver{capacity: capacity}
}

// push enqueues one measurement, evicting the oldest when full.
func (v *visionReceiver) push(m control.VisionMeasurement) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.queue) >= v.capacity {
		copy(v.queue, v.queue[1:])
		v.queue[len(v.queue)-1] = m
		v.dropped++
		return
	}
	v.queue = append(v.queue, m)
}

// Measurements drains the queue. Each measurement is returned exactly once,
// in arrival order.
func (v *visionReceiver) Measurements() []control.VisionMeasurement {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.queue
	v.queue = nil
	return out
}

// Dropped returns how many measurements were evicted before consumption.
func (v *visionReceiver) Dropped() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dropped
}

// visionFromSignals converts decoded VISION_POSE signals into a measurement,
// translating the reported latency into a capture timestamp.
func visionFromSignals(values map[string]float64, now time.Time) control.VisionMeasurement {
	latency := time.Duration(values["latency_ms"] * float64(time.Millisecond))
	return control.VisionMeasurement{
		Pose: control.Pose{
			X:       values["x_m"],
			Y:       values["y_m"],
			Heading: values["heading_rad"],
		},
		Timestamp: now.Add(-latency),
		Ambiguity: values["ambiguity"],
	}
}
