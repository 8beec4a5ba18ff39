package app

import (
	"testing"
	"time"

	"github.com/relabs-tech/inversion_meter/internal/orientation"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestTiltHandler(t *testing.T) {
	out := make(chan orientation.Reading, 1)
	handle := tiltHandler(out)

	handle(nil, fakeMessage{topic: "inversion/tilt", payload: []byte(`{"tilt_deg":-35.5,"landscape":true,"time":"2026-03-04T18:30:00Z"}`)})
	select {
	case r := <-out:
		if r.Tilt != -35.5 || !r.Landscape {
			t.Errorf("reading = %+v", r)
		}
		if !r.Time.Equal(time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC)) {
			t.Errorf("time = %v", r.Time)
		}
	default:
		t.Fatal("no reading delivered")
	}

	handle(nil, fakeMessage{payload: []byte("not json")})
	if len(out) != 0 {
		t.Error("malformed payload produced a reading")
	}

	handle(nil, fakeMessage{payload: []byte(`{"tilt_deg":1}`)})
	handle(nil, fakeMessage{payload: []byte(`{"tilt_deg":2}`)})
	if len(out) != 1 {
		t.Errorf("queue length = %d, want 1 with the overflow dropped", len(out))
	}
}
