package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relabs-tech/inversion_meter/internal/config"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader("# only comments\n\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.BufferSize != 30 {
		t.Errorf("BufferSize = %d, want 30", cfg.BufferSize)
	}
	if cfg.ElapsedTickInterval != 1000 || cfg.BufferTickInterval != 500 {
		t.Errorf("tick intervals = %d/%d, want 1000/500", cfg.ElapsedTickInterval, cfg.BufferTickInterval)
	}
	if cfg.PermissionPolicy != "fallback" {
		t.Errorf("PermissionPolicy = %q, want fallback", cfg.PermissionPolicy)
	}
	if cfg.TopicCommandResult != "inversion/command/result" {
		t.Errorf("TopicCommandResult = %q", cfg.TopicCommandResult)
	}
	if cfg.InitialZeroPoint != 90 {
		t.Errorf("InitialZeroPoint = %g, want 90", cfg.InitialZeroPoint)
	}
}

func TestParseOverrides(t *testing.T) {
	input := `
MQTT_BROKER = tcp://broker:1883
SENSOR_SOURCE=serial
SERIAL_PORT=/dev/ttyACM0
SERIAL_BAUD_RATE=9600
TILT_AXIS=pitch
BUFFER_SIZE=10
INITIAL_ZERO_POINT=-12.5
PERMISSION_POLICY=strict
PERMISSION_AUTO_REQUEST=false
`
	cfg, err := config.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.SensorSource != "serial" || cfg.SerialPort != "/dev/ttyACM0" || cfg.SerialBaudRate != 9600 {
		t.Errorf("serial settings = %q %q %d", cfg.SensorSource, cfg.SerialPort, cfg.SerialBaudRate)
	}
	if cfg.TiltAxis != "pitch" {
		t.Errorf("TiltAxis = %q, want pitch", cfg.TiltAxis)
	}
	if cfg.BufferSize != 10 {
		t.Errorf("BufferSize = %d, want 10", cfg.BufferSize)
	}
	if cfg.InitialZeroPoint != -12.5 {
		t.Errorf("InitialZeroPoint = %g, want -12.5", cfg.InitialZeroPoint)
	}
	if cfg.PermissionPolicy != "strict" || cfg.PermissionAutoRequest {
		t.Errorf("permission = %q auto=%v", cfg.PermissionPolicy, cfg.PermissionAutoRequest)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "missing equals", input: "MQTT_BROKER", want: "invalid config line 1"},
		{name: "unknown key", input: "NOPE=1", want: "unknown config key"},
		{name: "bad source", input: "SENSOR_SOURCE=camera", want: "SENSOR_SOURCE must be"},
		{name: "bad axis", input: "TILT_AXIS=yaw", want: "TILT_AXIS must be"},
		{name: "bad buffer size", input: "BUFFER_SIZE=0", want: "BUFFER_SIZE must be at least 1"},
		{name: "zero out of range", input: "INITIAL_ZERO_POINT=270", want: "INITIAL_ZERO_POINT must be"},
		{name: "bad policy", input: "PERMISSION_POLICY=maybe", want: "PERMISSION_POLICY must be"},
		{name: "non numeric interval", input: "SAMPLE_INTERVAL=fast", want: "invalid SAMPLE_INTERVAL"},
		{name: "empty broker", input: "MQTT_BROKER=", want: "MQTT_BROKER is required"},
		{name: "empty result topic", input: "TOPIC_COMMAND_RESULT=", want: "TOPIC_COMMAND_RESULT are required"},
		{name: "zero tick", input: "ELAPSED_TICK_INTERVAL=0", want: "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inversion_config.txt")
	if err := os.WriteFile(path, []byte("WEB_SERVER_PORT=9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebServerPort != 9090 {
		t.Errorf("WebServerPort = %d, want 9090", cfg.WebServerPort)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
