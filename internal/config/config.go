// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDMeter    string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicTilt          string
	TopicState         string
	TopicHistory       string
	TopicCommand       string
	TopicCommandResult string

	// Sensor
	SensorSource string // "mqtt", "imu", "serial" or "mock"
	TiltAxis     string // "roll" or "pitch"

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// Serial tilt sensor
	SerialPort     string
	SerialBaudRate int

	// Timing (milliseconds)
	SampleInterval      int
	ElapsedTickInterval int
	BufferTickInterval  int

	// Session
	BufferSize       int
	InitialZeroPoint float64

	// Permission
	PermissionPolicy      string // "fallback" or "strict"
	PermissionAutoRequest bool

	// Web Server
	WebServerPort int
	WebStaticDir  string

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for the singleton:
//   - globalConfig is only set through InitGlobal.
//   - configOnce makes InitGlobal run once.
//   - configMu guards reads against the initial write.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated with the values used when a key is
// absent from the config file.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "inversion-producer",
		MQTTClientIDMeter:    "inversion-meter",
		MQTTClientIDConsole:  "inversion-console",
		MQTTClientIDDisplay:  "inversion-display",

		TopicTilt:          "inversion/tilt",
		TopicState:         "inversion/state",
		TopicHistory:       "inversion/history",
		TopicCommand:       "inversion/command",
		TopicCommandResult: "inversion/command/result",

		SensorSource: "mqtt",
		TiltAxis:     "roll",

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "8",

		SerialPort:     "/dev/ttyUSB0",
		SerialBaudRate: 115200,

		SampleInterval:      50,
		ElapsedTickInterval: 1000,
		BufferTickInterval:  500,

		BufferSize:       30,
		InitialZeroPoint: 90,

		PermissionPolicy:      "fallback",
		PermissionAutoRequest: true,

		WebServerPort: 8080,
		WebStaticDir:  "web",

		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_METER":
		c.MQTTClientIDMeter = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_TILT":
		c.TopicTilt = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_HISTORY":
		c.TopicHistory = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "TOPIC_COMMAND_RESULT":
		c.TopicCommandResult = value

	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case "mqtt", "imu", "serial", "mock":
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be mqtt, imu, serial or mock, got %q", value)
		}
	case "TILT_AXIS":
		if value != "roll" && value != "pitch" {
			return fmt.Errorf("TILT_AXIS must be roll or pitch, got %q", value)
		}
		c.TiltAxis = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Timing
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval
	case "ELAPSED_TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ELAPSED_TICK_INTERVAL %q: %w", value, err)
		}
		c.ElapsedTickInterval = interval
	case "BUFFER_TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BUFFER_TICK_INTERVAL %q: %w", value, err)
		}
		c.BufferTickInterval = interval

	// Session
	case "BUFFER_SIZE":
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BUFFER_SIZE %q: %w", value, err)
		}
		if size < 1 {
			return fmt.Errorf("BUFFER_SIZE must be at least 1, got %d", size)
		}
		c.BufferSize = size
	case "INITIAL_ZERO_POINT":
		zero, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid INITIAL_ZERO_POINT %q: %w", value, err)
		}
		if zero < -180 || zero > 180 {
			return fmt.Errorf("INITIAL_ZERO_POINT must be -180..180, got %g", zero)
		}
		c.InitialZeroPoint = zero

	// Permission
	case "PERMISSION_POLICY":
		if value != "fallback" && value != "strict" {
			return fmt.Errorf("PERMISSION_POLICY must be fallback or strict, got %q", value)
		}
		c.PermissionPolicy = value
	case "PERMISSION_AUTO_REQUEST":
		auto, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid PERMISSION_AUTO_REQUEST %q: %w", value, err)
		}
		c.PermissionAutoRequest = auto

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicTilt == "" || c.TopicState == "" || c.TopicHistory == "" || c.TopicCommand == "" || c.TopicCommandResult == "" {
		return fmt.Errorf("TOPIC_TILT, TOPIC_STATE, TOPIC_HISTORY, TOPIC_COMMAND and TOPIC_COMMAND_RESULT are required")
	}
	if c.SensorSource == "imu" && c.IMUSPIDevice == "" {
		return fmt.Errorf("IMU_SPI_DEVICE is required when SENSOR_SOURCE=imu")
	}
	if c.SensorSource == "serial" && (c.SerialPort == "" || c.SerialBaudRate == 0) {
		return fmt.Errorf("SERIAL_PORT and SERIAL_BAUD_RATE are required when SENSOR_SOURCE=serial")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}
	if c.ElapsedTickInterval <= 0 || c.BufferTickInterval <= 0 {
		return fmt.Errorf("ELAPSED_TICK_INTERVAL and BUFFER_TICK_INTERVAL must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads the file; later calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
