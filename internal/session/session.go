// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session tracks inversion sessions: elapsed time, peak angle, a
// rolling trend buffer and the newest-first history of finished sessions.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the human-readable stop time stored on records.
const TimestampLayout = "Jan 2, 2006 3:04 PM"

// DefaultBufferSize is the length of the rolling trend buffer.
const DefaultBufferSize = 30

var (
	ErrRecording = errors.New("session: already recording")
	ErrIdle      = errors.New("session: not recording")
)

// State of the tracker.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Record summarizes one finished session. Records are never modified after
// creation.
type Record struct {
	ID              string `json:"id"`
	Timestamp       string `json:"timestamp"`
	DurationSeconds int    `json:"duration_seconds"`
	MaxAngleDegrees int    `json:"max_angle_degrees"`
}

// Clock supplies the stop time of a record.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies record ids.
type IDGenerator interface {
	NewID(at time.Time) (string, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// UUIDv7 generates time-ordered ids.
type UUIDv7 struct{}

func (UUIDv7) NewID(time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return id.String(), nil
}

// Option configures a Tracker.
type Option func(*Tracker)

func WithClock(c Clock) Option             { return func(t *Tracker) { t.clock = c } }
func WithIDGenerator(g IDGenerator) Option { return func(t *Tracker) { t.ids = g } }
func WithBufferSize(n int) Option          { return func(t *Tracker) { t.buffer = NewRollingBuffer(n) } }

// Tracker is the Idle/Recording state machine. It is not safe for
// concurrent use.
type Tracker struct {
	state    State
	elapsed  int
	maxAngle int
	buffer   *RollingBuffer
	history  []Record

	clock Clock
	ids   IDGenerator
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		buffer: NewRollingBuffer(DefaultBufferSize),
		clock:  systemClock{},
		ids:    UUIDv7{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start resets elapsed time, peak angle and the buffer, then enters Recording.
func (t *Tracker) Start() error {
	if t.state == Recording {
		return ErrRecording
	}
	t.elapsed = 0
	t.maxAngle = 0
	t.buffer.Reset()
	t.state = Recording
	return nil
}

// Stop finalizes the running session, prepends its record to the history
// and returns to Idle.
func (t *Tracker) Stop() (Record, error) {
	if t.state != Recording {
		return Record{}, ErrIdle
	}
	now := t.clock.Now()
	id, err := t.ids.NewID(now)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:              id,
		Timestamp:       now.Format(TimestampLayout),
		DurationSeconds: t.elapsed,
		MaxAngleDegrees: t.maxAngle,
	}
	t.history = append([]Record{rec}, t.history...)

	t.elapsed = 0
	t.maxAngle = 0
	t.state = Idle
	return rec, nil
}

// Toggle starts a recording when Idle and stops it when Recording. The
// returned record is non-nil only when a session was stopped.
func (t *Tracker) Toggle() (*Record, error) {
	if t.state == Idle {
		return nil, t.Start()
	}
	rec, err := t.Stop()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Observe folds a fresh angle sample into the running peak.
func (t *Tracker) Observe(angle int) {
	if t.state == Recording && angle > t.maxAngle {
		t.maxAngle = angle
	}
}

// TickSecond advances the elapsed counter by one second.
func (t *Tracker) TickSecond() {
	if t.state == Recording {
		t.elapsed++
	}
}

// TickBuffer shifts angle into the rolling buffer.
func (t *Tracker) TickBuffer(angle int) {
	if t.state == Recording {
		t.buffer.Push(angle)
	}
}

func (t *Tracker) State() State    { return t.state }
func (t *Tracker) Recording() bool { return t.state == Recording }
func (t *Tracker) Elapsed() int    { return t.elapsed }
func (t *Tracker) MaxAngle() int   { return t.maxAngle }
func (t *Tracker) Buffer() []int   { return t.buffer.Values() }
func (t *Tracker) BufferSize() int { return t.buffer.Len() }

// History returns a copy of the finished sessions, newest first.
func (t *Tracker) History() []Record {
	out := make([]Record, len(t.history))
	copy(out, t.history)
	return out
}

// FormatElapsed renders seconds as mm:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
