// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package permission models the one-shot consent step that gates sensor
// sampling.
package permission

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrDenied is terminal until the user retries the whole flow.
	ErrDenied = errors.New("permission: sensor access denied")
	// ErrUnavailable is reported by the strict policy when the request
	// failed or the platform has no consent mechanism.
	ErrUnavailable = errors.New("permission: sensor access unavailable")
)

// Outcome of a permission request.
type Outcome int

const (
	Granted Outcome = iota
	Denied
	Unsupported
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Requester performs a single permission request.
type Requester interface {
	Request(ctx context.Context) (Outcome, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context) (Outcome, error)

func (f RequesterFunc) Request(ctx context.Context) (Outcome, error) { return f(ctx) }

// Policy decides what a failed or unsupported request means.
type Policy int

const (
	// Fallback treats failures and unsupported platforms as granted so the
	// meter keeps working on hosts without a consent mechanism.
	Fallback Policy = iota
	// Strict only accepts an explicit grant.
	Strict
)

// ParsePolicy maps the PERMISSION_POLICY config value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fallback":
		return Fallback, nil
	case "strict":
		return Strict, nil
	default:
		return Fallback, fmt.Errorf("permission: unknown policy %q", s)
	}
}

// Resolve turns a request result into granted / not granted.
func Resolve(outcome Outcome, reqErr error, policy Policy) (bool, error) {
	if reqErr == nil {
		switch outcome {
		case Granted:
			return true, nil
		case Denied:
			return false, ErrDenied
		}
	}
	if policy == Fallback {
		return true, nil
	}
	if reqErr != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, reqErr)
	}
	return false, ErrUnavailable
}

// Static always answers with the same outcome.
type Static Outcome

func (s Static) Request(context.Context) (Outcome, error) { return Outcome(s), nil }

// DeviceRequester checks that this process may open a device node, such as
// the IMU's SPI device or a serial port.
type DeviceRequester struct {
	Path string
}

func (d DeviceRequester) Request(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Unsupported, err
	}
	f, err := os.OpenFile(d.Path, os.O_RDWR, 0)
	switch {
	case err == nil:
		f.Close()
		return Granted, nil
	case errors.Is(err, fs.ErrPermission):
		return Denied, nil
	case errors.Is(err, fs.ErrNotExist):
		return Unsupported, nil
	default:
		return Unsupported, fmt.Errorf("open %s: %w", d.Path, err)
	}
}
