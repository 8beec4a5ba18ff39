package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inversion_meter/internal/config"
	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

const (
	// consoleHistoryRows caps the sessions listed under the live readout.
	consoleHistoryRows = 5
	consoleLogFile     = "inversion_console.log"
)

var sparkBlocks = []rune(" ▁▂▃▄▅▆▇█")

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	angleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	recStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sectionStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type snapshotMsg meter.Snapshot

type publishErrMsg struct{ err error }

// consoleErrMsg reports a failure outside the key handlers: a bad payload
// or a command the meter rejected.
type consoleErrMsg struct{ err error }

type commandResultMsg CommandResult

// consoleModel renders meter snapshots and turns key presses into commands.
type consoleModel struct {
	publish func(Command) error
	snap    meter.Snapshot
	have    bool
	lastErr error
}

func newConsoleModel(publish func(Command) error) consoleModel {
	return consoleModel{publish: publish}
}

func (m consoleModel) Init() tea.Cmd { return nil }

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = meter.Snapshot(msg)
		m.have = true
		return m, nil

	case publishErrMsg:
		m.lastErr = msg.err
		return m, nil

	case consoleErrMsg:
		m.lastErr = msg.err
		return m, nil

	case commandResultMsg:
		if msg.Error != "" {
			m.lastErr = fmt.Errorf("%s: %s", msg.Action, msg.Error)
		} else {
			m.lastErr = nil
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			return m, m.send(ActionPermission)
		case "c":
			return m, m.send(ActionCalibrate)
		case " ":
			return m, m.send(ActionToggle)
		}
	}
	return m, nil
}

func (m consoleModel) send(action string) tea.Cmd {
	publish := m.publish
	return func() tea.Msg {
		return publishErrMsg{err: publish(Command{Action: action})}
	}
}

func (m consoleModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Inversion Meter"))
	b.WriteString("\n\n")

	if !m.have {
		b.WriteString(idleStyle.Render("waiting for meter state..."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	s := m.snap
	fmt.Fprintf(&b, "%s  %s\n", angleStyle.Render(fmt.Sprintf("%3d°", s.Angle)), permissionLabel(s))

	status := idleStyle.Render("IDLE")
	if s.Recording {
		status = recStyle.Render("● REC")
	}
	fmt.Fprintf(&b, "%s  %s  peak %d°\n", status, session.FormatElapsed(s.ElapsedSeconds), s.MaxAngle)
	fmt.Fprintf(&b, "trend [%s]\n", sparkline(s.Buffer))
	if s.Landscape {
		b.WriteString(idleStyle.Render("landscape"))
		b.WriteString("\n")
	}

	if len(s.History) > 0 {
		var h strings.Builder
		for i, rec := range s.History {
			if i == consoleHistoryRows {
				fmt.Fprintf(&h, "... %d more", len(s.History)-i)
				break
			}
			if i > 0 {
				h.WriteString("\n")
			}
			fmt.Fprintf(&h, "%s  %s  %d°", rec.Timestamp, session.FormatElapsed(rec.DurationSeconds), rec.MaxAngleDegrees)
		}
		b.WriteString(sectionStyle.Render(strings.TrimRight(h.String(), "\n")))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(errStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("p permission · c calibrate · space start/stop · q quit"))
	return b.String()
}

func permissionLabel(s meter.Snapshot) string {
	switch {
	case s.PermissionError != "":
		return errStyle.Render(string(s.Permission) + ": " + s.PermissionError)
	case s.PermissionGranted:
		return ""
	default:
		return idleStyle.Render("sensor " + string(s.Permission))
	}
}

// sparkline maps 0..180 degree samples onto block characters.
func sparkline(values []int) string {
	out := make([]rune, len(values))
	top := len(sparkBlocks) - 1
	for i, v := range values {
		idx := v * top / 180
		if idx < 0 {
			idx = 0
		} else if idx > top {
			idx = top
		}
		out[i] = sparkBlocks[idx]
	}
	return string(out)
}

// RunConsole runs the terminal UI against the meter's MQTT topics.
func RunConsole(ctx context.Context) error {
	cfg := config.Get()

	// The alt screen owns stdout while the UI runs.
	logFile, err := tea.LogToFile(consoleLogFile, "console")
	if err != nil {
		return fmt.Errorf("console: open log file: %w", err)
	}
	defer logFile.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	publish := func(cmd Command) error {
		payload, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		token := client.Publish(cfg.TopicCommand, 0, false, payload)
		token.Wait()
		return token.Error()
	}

	program := tea.NewProgram(newConsoleModel(publish), tea.WithAltScreen(), tea.WithContext(ctx))

	subs := map[string]mqtt.MessageHandler{
		cfg.TopicState:         consoleHandler(program.Send, decodeState),
		cfg.TopicCommandResult: consoleHandler(program.Send, decodeCommandResult),
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("console: subscribe %s: %w", topic, token.Error())
		}
		log.Printf("console: subscribed to %s", topic)
	}

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// consoleHandler feeds decoded payloads into the UI. Decode failures are
// shown in the UI too, since stdout belongs to the alt screen.
func consoleHandler(send func(tea.Msg), decode func([]byte) (tea.Msg, error)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		m, err := decode(msg.Payload())
		if err != nil {
			send(consoleErrMsg{err: fmt.Errorf("%s: %w", msg.Topic(), err)})
			return
		}
		send(m)
	}
}

func decodeState(payload []byte) (tea.Msg, error) {
	var snap meter.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return snapshotMsg(snap), nil
}

func decodeCommandResult(payload []byte) (tea.Msg, error) {
	var res CommandResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, err
	}
	return commandResultMsg(res), nil
}
