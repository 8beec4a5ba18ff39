package app

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

func TestConsoleKeysPublishCommands(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want string
	}{
		{key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}, want: ActionPermission},
		{key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")}, want: ActionCalibrate},
		{key: tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}, want: ActionToggle},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var sent []Command
			m := newConsoleModel(func(c Command) error {
				sent = append(sent, c)
				return nil
			})

			_, cmd := m.Update(tt.key)
			if cmd == nil {
				t.Fatal("no command returned")
			}
			msg := cmd()
			if res, ok := msg.(publishErrMsg); !ok || res.err != nil {
				t.Fatalf("msg = %#v", msg)
			}
			if len(sent) != 1 || sent[0].Action != tt.want {
				t.Errorf("sent = %+v, want %s", sent, tt.want)
			}
		})
	}
}

func TestConsoleQuit(t *testing.T) {
	m := newConsoleModel(func(Command) error { return nil })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("no command returned")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestConsoleView(t *testing.T) {
	m := newConsoleModel(func(Command) error { return nil })
	if !strings.Contains(m.View(), "waiting for meter state") {
		t.Errorf("view before state = %q", m.View())
	}

	snap := meter.Snapshot{
		Angle:             135,
		Recording:         true,
		ElapsedSeconds:    65,
		MaxAngle:          150,
		Buffer:            []int{0, 90, 180},
		Permission:        meter.PermissionGranted,
		PermissionGranted: true,
		History: []session.Record{
			{Timestamp: "Mar 4, 2026 6:30 PM", DurationSeconds: 5, MaxAngleDegrees: 150},
		},
	}
	next, _ := m.Update(snapshotMsg(snap))
	view := next.View()
	for _, want := range []string{"135°", "REC", "01:05", "peak 150°", "Mar 4, 2026 6:30 PM"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	next, _ = next.Update(publishErrMsg{err: errors.New("broker gone")})
	if !strings.Contains(next.View(), "broker gone") {
		t.Error("publish error not shown")
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{in: []int{0, 0, 0}, want: "   "},
		{in: []int{0, 90, 180}, want: " ▄█"},
		{in: []int{-5, 200}, want: " █"},
		{in: nil, want: ""},
	}
	for _, tt := range tests {
		if got := sparkline(tt.in); got != tt.want {
			t.Errorf("sparkline(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConsoleShowsRejectedCommand(t *testing.T) {
	var m tea.Model = newConsoleModel(func(Command) error { return nil })
	m, _ = m.Update(snapshotMsg(meter.Snapshot{Permission: meter.PermissionDenied}))

	m, _ = m.Update(commandResultMsg{Action: ActionToggle, Error: meter.ErrNotPermitted.Error()})
	if !strings.Contains(m.View(), "toggle: "+meter.ErrNotPermitted.Error()) {
		t.Fatalf("rejection not shown:\n%s", m.View())
	}

	m, _ = m.Update(commandResultMsg{Action: ActionPermission})
	if strings.Contains(m.View(), "error:") {
		t.Errorf("error still shown after a successful command:\n%s", m.View())
	}
}

func TestConsoleHandlerRoutesPayloads(t *testing.T) {
	var got []tea.Msg
	send := func(msg tea.Msg) { got = append(got, msg) }

	state := consoleHandler(send, decodeState)
	state(nil, fakeMessage{topic: "inversion/state", payload: []byte(`{"angle":33}`)})
	state(nil, fakeMessage{topic: "inversion/state", payload: []byte(`{"angle":`)})

	result := consoleHandler(send, decodeCommandResult)
	result(nil, fakeMessage{topic: "inversion/command/result", payload: []byte(`{"action":"calibrate","error":"nope"}`)})

	if len(got) != 3 {
		t.Fatalf("messages = %d, want 3", len(got))
	}
	if snap, ok := got[0].(snapshotMsg); !ok || snap.Angle != 33 {
		t.Errorf("first = %#v, want snapshot angle 33", got[0])
	}
	if e, ok := got[1].(consoleErrMsg); !ok || !strings.Contains(e.err.Error(), "inversion/state") {
		t.Errorf("second = %#v, want decode error naming the topic", got[1])
	}
	if res, ok := got[2].(commandResultMsg); !ok || res.Action != ActionCalibrate || res.Error != "nope" {
		t.Errorf("third = %#v, want calibrate result", got[2])
	}
}
