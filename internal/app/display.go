package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inversion_meter/internal/config"
	"github.com/relabs-tech/inversion_meter/internal/meter"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

// lineHeight is the baseline step for basicfont.Face7x13.
const lineHeight = 13

// displayState holds the latest snapshot received from the meter.
type displayState struct {
	mu   sync.RWMutex
	snap meter.Snapshot
	have bool
}

func (d *displayState) set(s meter.Snapshot) {
	d.mu.Lock()
	d.snap = s
	d.have = true
	d.mu.Unlock()
}

func (d *displayState) get() (meter.Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap, d.have
}

// RunDisplay mirrors the meter state onto an SSD1306 OLED.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Println("display: initialized")

	if err := drawLines(dev, []string{"", "Inversion", "Meter"}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	state := &displayState{}
	token := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var snap meter.Snapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			log.Printf("display: state unmarshal error: %v", err)
			return
		}
		state.set(snap)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("display: subscribe %s: %w", cfg.TopicState, token.Error())
	}
	log.Printf("display: subscribed to %s", cfg.TopicState)

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, have := state.get()
			if err := drawLines(dev, displayLines(snap, have)); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// displayLines lays out a snapshot as at most four 18-column lines.
func displayLines(s meter.Snapshot, have bool) []string {
	if !have {
		return []string{"", "Inversion", "Waiting..."}
	}
	if !s.PermissionGranted {
		return []string{
			fmt.Sprintf("Angle %3d", s.Angle),
			"Sensor " + string(s.Permission),
		}
	}

	status := "IDLE"
	if s.Recording {
		status = "REC " + session.FormatElapsed(s.ElapsedSeconds)
	}
	lines := []string{
		fmt.Sprintf("Angle %3d", s.Angle),
		status,
		fmt.Sprintf("Peak  %3d", s.MaxAngle),
	}
	if len(s.History) > 0 {
		last := s.History[0]
		lines = append(lines, fmt.Sprintf("Last %s %d", session.FormatElapsed(last.DurationSeconds), last.MaxAngleDegrees))
	}
	return lines
}

func drawLines(dev *ssd1306.Dev, lines []string) error {
	img := image1bit.NewVerticalLSB(dev.Bounds())

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, (i+1)*lineHeight+2)
		drawer.DrawString(line)
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
