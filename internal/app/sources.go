package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/relabs-tech/inversion_meter/internal/config"
	"github.com/relabs-tech/inversion_meter/internal/orientation"
	"github.com/relabs-tech/inversion_meter/internal/permission"
)

// openLocalSource opens the sensor named by SENSOR_SOURCE. The returned
// interval is how often to poll it; 0 means Next blocks on its own.
func openLocalSource(cfg *config.Config, axis orientation.Axis) (orientation.Source, io.Closer, time.Duration, error) {
	interval := time.Duration(cfg.SampleInterval) * time.Millisecond

	switch cfg.SensorSource {
	case "mock":
		log.Println("using mock orientation source")
		return orientation.NewMockSource(), nil, interval, nil
	case "imu":
		log.Printf("using IMU on %s (CS %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)
		src, err := orientation.NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin)
		return src, nil, interval, err
	case "serial":
		src, closer, err := orientation.NewSerialSource(cfg.SerialPort, cfg.SerialBaudRate, axis)
		return src, closer, 0, err
	default:
		return nil, nil, 0, fmt.Errorf("sensor source %q cannot be opened locally", cfg.SensorSource)
	}
}

// localRequester is the permission check for a locally opened sensor.
func localRequester(cfg *config.Config) permission.Requester {
	switch cfg.SensorSource {
	case "imu":
		return permission.DeviceRequester{Path: cfg.IMUSPIDevice}
	case "serial":
		return permission.DeviceRequester{Path: cfg.SerialPort}
	default:
		return permission.Static(permission.Granted)
	}
}

// startLocalStream opens the local sensor and streams it. When the sensor
// cannot be opened the meter keeps running without readings.
func startLocalStream(ctx context.Context, cfg *config.Config, axis orientation.Axis) <-chan orientation.Reading {
	src, closer, interval, err := openLocalSource(cfg, axis)
	if err != nil {
		log.Printf("WARNING: sensor unavailable, no readings will arrive: %v", err)
		return nil
	}
	if closer != nil {
		go func() {
			<-ctx.Done()
			closer.Close()
		}()
	}
	return orientation.Stream(ctx, src, axis, interval)
}
