// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// ErrSkipLine marks a serial line that carries no reading.
var ErrSkipLine = errors.New("serial: no reading on line")

type serialSource struct {
	reader *bufio.Reader
	axis   Axis
}

// NewSerialSource opens a serial tilt sensor. The device prints one reading
// per line, either a tilt in degrees ("-37.5") or raw accelerometer
// components ("ax,ay,az").
func NewSerialSource(portName string, baud int, axis Axis) (Source, io.Closer, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	log.Printf("serial: port opened on %s at %d baud", portName, baud)

	return NewLineSource(port, axis), port, nil
}

// NewLineSource reads serial-format lines from r.
func NewLineSource(r io.Reader, axis Axis) Source {
	return &serialSource{reader: bufio.NewReader(r), axis: axis}
}

// Next blocks until a line with a reading arrives.
func (s *serialSource) Next() (Pose, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			return Pose{}, fmt.Errorf("serial read: %w", err)
		}

		pose, perr := ParseSerialLine(line, s.axis)
		if perr == nil {
			return pose, nil
		}
		if !errors.Is(perr, ErrSkipLine) {
			log.Printf("serial: %v", perr)
		}
		if err != nil {
			return Pose{}, fmt.Errorf("serial read: %w", err)
		}
	}
}

// ParseSerialLine decodes one line. A single value is the tilt on axis; three
// comma separated values are accelerometer components.
func ParseSerialLine(line string, axis Axis) (Pose, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Pose{}, ErrSkipLine
	}

	fields := strings.Split(line, ",")
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Pose{}, fmt.Errorf("bad value %q in line %q", f, line)
		}
		values = append(values, v)
	}

	switch len(values) {
	case 1:
		if axis == AxisPitch {
			return Pose{Pitch: values[0]}, nil
		}
		return Pose{Roll: values[0]}, nil
	case 3:
		return ComputePoseFromAccel(values[0], values[1], values[2]), nil
	default:
		return Pose{}, fmt.Errorf("expected 1 or 3 values, got %d in line %q", len(values), line)
	}
}
