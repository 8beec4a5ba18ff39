// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

type imuSource struct {
	imu *mpu9250.MPU9250
}

// NewIMUSource initializes an MPU9250 over SPI and returns a Source that
// reads roll/pitch from the accelerometer.
func NewIMUSource(spiDev, csPin string) (Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("IMU device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU init: %w", err)
	}

	// Self-test and calibration failures are not fatal; the angle only
	// depends on the direction of gravity.
	if _, err := imu.SelfTest(); err != nil {
		log.Printf("imu: WARNING: self-test failed: %v", err)
	}
	if err := imu.Calibrate(); err != nil {
		log.Printf("imu: WARNING: calibration failed: %v", err)
	} else {
		log.Printf("imu: calibration complete")
	}

	return &imuSource{imu: imu}, nil
}

// Next reads the accelerometer and computes an accelerometer-only tilt.
func (s *imuSource) Next() (Pose, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Pose{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Pose{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Pose{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	// Only ratios matter, raw counts are fine.
	return ComputePoseFromAccel(float64(ax), float64(ay), float64(az)), nil
}
