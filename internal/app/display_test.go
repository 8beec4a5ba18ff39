package app

import (
	"reflect"
	"testing"

	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

func TestDisplayLines(t *testing.T) {
	tests := []struct {
		name string
		snap meter.Snapshot
		have bool
		want []string
	}{
		{
			name: "no state yet",
			want: []string{"", "Inversion", "Waiting..."},
		},
		{
			name: "permission pending",
			snap: meter.Snapshot{Angle: 0, Permission: meter.PermissionPending},
			have: true,
			want: []string{"Angle   0", "Sensor pending"},
		},
		{
			name: "idle",
			snap: meter.Snapshot{Angle: 12, PermissionGranted: true},
			have: true,
			want: []string{"Angle  12", "IDLE", "Peak    0"},
		},
		{
			name: "recording with history",
			snap: meter.Snapshot{
				Angle:             140,
				Recording:         true,
				ElapsedSeconds:    75,
				MaxAngle:          160,
				PermissionGranted: true,
				History:           []session.Record{{DurationSeconds: 30, MaxAngleDegrees: 110}},
			},
			have: true,
			want: []string{"Angle 140", "REC 01:15", "Peak  160", "Last 00:30 110"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := displayLines(tt.snap, tt.have)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("displayLines = %q, want %q", got, tt.want)
			}
			for _, line := range got {
				if len(line) > 18 {
					t.Errorf("line %q wider than the panel", line)
				}
			}
		})
	}
}
