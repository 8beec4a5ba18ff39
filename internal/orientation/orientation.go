// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"math"
	"time"
)

// LandscapeThreshold is the off-axis tilt, in degrees, above which the
// sensor is reported as lying in landscape.
const LandscapeThreshold = 45.0

// Pose is the canonical representation of orientation for the app.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time: mock, IMU, serial.
type Source interface {
	Next() (Pose, error)
}

// Axis selects which pose angle moves when the table inverts.
type Axis int

const (
	AxisRoll Axis = iota
	AxisPitch
)

// ParseAxis maps the TILT_AXIS config value.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "", "roll":
		return AxisRoll, nil
	case "pitch":
		return AxisPitch, nil
	default:
		return AxisRoll, fmt.Errorf("unknown tilt axis %q", s)
	}
}

// Reading is one raw tilt event as published on the tilt topic.
type Reading struct {
	Tilt      float64   `json:"tilt_deg"`
	Landscape bool      `json:"landscape"`
	Time      time.Time `json:"time"`
}

// ReadingFromPose picks the tilt axis out of p. The other axis decides
// portrait vs landscape.
func ReadingFromPose(p Pose, axis Axis, at time.Time) Reading {
	tilt, other := p.Roll, p.Pitch
	if axis == AxisPitch {
		tilt, other = p.Pitch, p.Roll
	}
	return Reading{
		Tilt:      tilt,
		Landscape: math.Abs(other) > LandscapeThreshold,
		Time:      at,
	}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is left at 0; inversion only needs the gravity vector.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}
