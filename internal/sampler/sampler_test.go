package sampler_test

import (
	"math"
	"testing"

	"github.com/relabs-tech/inversion_meter/internal/sampler"
)

func TestNormalizeClamps(t *testing.T) {
	tests := []struct {
		name string
		zero float64
		raw  float64
		want float64
	}{
		{name: "upright", zero: 90, raw: 90, want: 0},
		{name: "half way", zero: 90, raw: 0, want: 90},
		{name: "fully inverted", zero: 90, raw: -90, want: 180},
		{name: "past inverted", zero: 90, raw: -170, want: 180},
		{name: "leaning back past zero", zero: 90, raw: 120, want: 0},
		{name: "negative zero point", zero: -30, raw: -100, want: 70},
		{name: "nan reading", zero: 90, raw: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sampler.Normalize(tt.zero, tt.raw); got != tt.want {
				t.Errorf("Normalize(%g, %g) = %g, want %g", tt.zero, tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeStaysInRange(t *testing.T) {
	for zero := -180.0; zero <= 180; zero += 15 {
		for raw := -180.0; raw <= 180; raw += 7.5 {
			a := sampler.Normalize(zero, raw)
			if a < 0 || a > 180 {
				t.Fatalf("Normalize(%g, %g) = %g out of [0,180]", zero, raw, a)
			}
		}
	}
}

func TestUpdateRoundsToWholeDegrees(t *testing.T) {
	s := sampler.New(90)
	if got := s.Update(44.6); got != 45 {
		t.Errorf("Update(44.6) = %d, want 45", got)
	}
	if s.Raw() != 44.6 {
		t.Errorf("Raw() = %g, want 44.6", s.Raw())
	}
	if got := s.Update(44.5); got != 46 {
		t.Errorf("Update(44.5) = %d, want 46", got)
	}
}

func TestCalibrateZero(t *testing.T) {
	s := sampler.New(0)
	s.Update(45)
	s.CalibrateZero()

	if s.Angle() != 0 {
		t.Fatalf("angle after calibrate = %d, want 0", s.Angle())
	}
	if s.ZeroPoint() != 45 {
		t.Fatalf("zero point = %g, want 45", s.ZeroPoint())
	}
	if got := s.Update(45); got != 0 {
		t.Errorf("raw 45 after calibrate = %d, want 0", got)
	}
	if got := s.Update(0); got != 45 {
		t.Errorf("raw 0 after calibrate = %d, want 45", got)
	}
	if got := s.Update(-170); got != 180 {
		t.Errorf("raw -170 after calibrate = %d, want 180", got)
	}
	if got := s.Update(100); got != 0 {
		t.Errorf("raw 100 after calibrate = %d, want 0", got)
	}
}

func TestCalibrateZeroIsIdempotent(t *testing.T) {
	s := sampler.New(90)
	s.Update(12)
	s.CalibrateZero()
	s.CalibrateZero()
	if s.ZeroPoint() != 12 || s.Angle() != 0 {
		t.Errorf("after repeated calibrate zero=%g angle=%d, want 12/0", s.ZeroPoint(), s.Angle())
	}
}

func TestCalibrateBeforeFirstReading(t *testing.T) {
	s := sampler.New(90)
	if s.CalibrateZero() {
		t.Fatal("calibrate without a reading reported success")
	}
	if s.ZeroPoint() != 90 || s.HasReading() {
		t.Fatalf("zero point = %g has reading = %v, want 90/false", s.ZeroPoint(), s.HasReading())
	}
	if got := s.Update(30); got != 60 {
		t.Errorf("raw 30 = %d, want 60 against the untouched zero point", got)
	}
	if !s.CalibrateZero() || s.ZeroPoint() != 30 {
		t.Errorf("calibrate after a reading: zero point = %g, want 30", s.ZeroPoint())
	}
}
