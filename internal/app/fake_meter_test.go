package app

import (
	"context"
	"sync"

	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

// fakeMeter records the operations it receives and answers from fixed state.
type fakeMeter struct {
	mu      sync.Mutex
	snap    meter.Snapshot
	record  *session.Record
	err     error
	calls   []string
	updates chan meter.Snapshot
}

func newFakeMeter() *fakeMeter {
	return &fakeMeter{
		snap:    meter.Snapshot{Angle: 42, Permission: meter.PermissionGranted, PermissionGranted: true, Buffer: make([]int, 30)},
		updates: make(chan meter.Snapshot, 1),
	}
}

func (f *fakeMeter) called(op string) meter.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.snap
}

func (f *fakeMeter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeMeter) Snapshot(context.Context) (meter.Snapshot, error) {
	return f.called("snapshot"), nil
}

func (f *fakeMeter) RequestPermission(context.Context) (meter.Snapshot, error) {
	s := f.called("permission")
	s.Permission = meter.PermissionPending
	return s, nil
}

func (f *fakeMeter) CalibrateZero(context.Context) (meter.Snapshot, error) {
	return f.called("calibrate"), f.err
}

func (f *fakeMeter) ToggleRecording(context.Context) (meter.Snapshot, *session.Record, error) {
	return f.called("toggle"), f.record, f.err
}

func (f *fakeMeter) Subscribe() (<-chan meter.Snapshot, func()) {
	return f.updates, func() {}
}
