// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler turns raw tilt readings into a 0-180 degree inversion
// angle relative to a user-set zero point.
package sampler

import "math"

const (
	MinAngle = 0.0
	MaxAngle = 180.0
)

// Sampler holds the calibration state. It is not safe for concurrent use;
// the meter controller owns it from a single goroutine.
type Sampler struct {
	zeroPoint float64
	raw       float64
	haveRaw   bool
	angle     float64
}

// New returns a Sampler whose zero point is zeroPoint degrees.
func New(zeroPoint float64) *Sampler {
	return &Sampler{zeroPoint: zeroPoint}
}

// Normalize maps a raw reading to the inversion angle for the given zero point.
func Normalize(zeroPoint, raw float64) float64 {
	a := zeroPoint - raw
	if math.IsNaN(a) || a < MinAngle {
		return MinAngle
	}
	if a > MaxAngle {
		return MaxAngle
	}
	return a
}

// Update stores raw and returns the new current angle in whole degrees.
// Readings are taken as-is, no smoothing.
func (s *Sampler) Update(raw float64) int {
	s.raw = raw
	s.haveRaw = true
	s.angle = Normalize(s.zeroPoint, raw)
	return s.Angle()
}

// CalibrateZero makes the last raw reading the 0 degree reference. It
// reports false, leaving the zero point alone, until a reading has arrived.
func (s *Sampler) CalibrateZero() bool {
	if !s.haveRaw {
		return false
	}
	s.zeroPoint = s.raw
	s.angle = 0
	return true
}

// Angle returns the current angle rounded to whole degrees.
func (s *Sampler) Angle() int {
	return int(math.Round(s.angle))
}

func (s *Sampler) Raw() float64       { return s.raw }
func (s *Sampler) HasReading() bool   { return s.haveRaw }
func (s *Sampler) ZeroPoint() float64 { return s.zeroPoint }
