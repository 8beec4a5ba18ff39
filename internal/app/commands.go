package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

// Actions accepted on the command topic and the websocket.
const (
	ActionPermission = "permission"
	ActionCalibrate  = "calibrate"
	ActionToggle     = "toggle"
)

var ErrUnknownAction = errors.New("unknown action")

// Command is the JSON payload of a user operation.
type Command struct {
	Action string `json:"action"`
}

// CommandResult answers a Command received over MQTT.
type CommandResult struct {
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// Meter is the controller surface the host processes drive.
type Meter interface {
	Snapshot(ctx context.Context) (meter.Snapshot, error)
	RequestPermission(ctx context.Context) (meter.Snapshot, error)
	CalibrateZero(ctx context.Context) (meter.Snapshot, error)
	ToggleRecording(ctx context.Context) (meter.Snapshot, *session.Record, error)
	Subscribe() (<-chan meter.Snapshot, func())
}

// Dispatch runs one user operation.
func Dispatch(ctx context.Context, m Meter, action string) (meter.Snapshot, *session.Record, error) {
	switch action {
	case ActionPermission:
		s, err := m.RequestPermission(ctx)
		return s, nil, err
	case ActionCalibrate:
		s, err := m.CalibrateZero(ctx)
		return s, nil, err
	case ActionToggle:
		return m.ToggleRecording(ctx)
	default:
		return meter.Snapshot{}, nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
