// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

// MockPeriod is one full lower-and-return cycle of the mock table.
const MockPeriod = 40 * time.Second

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock source that rocks a table from upright
// (roll 90) down to 150 degrees of inversion and back.
func NewMockSource() Source {
	return newMockSource(time.Now)
}

func newMockSource(now func() time.Time) *mockSource {
	return &mockSource{start: now(), now: now}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := m.now().Sub(m.start).Seconds()
	phase := 2 * math.Pi * elapsed / MockPeriod.Seconds()
	inversion := 75 * (1 - math.Cos(phase))

	return Pose{
		Roll:  90 - inversion,
		Pitch: 3 * math.Sin(elapsed),
	}, nil
}
