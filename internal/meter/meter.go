// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package meter owns the inversion session context: calibration, the
// session state machine, permission state and the recording timers. All of
// it is mutated from a single event loop goroutine (Controller.Run); other
// goroutines talk to it through the exported methods.
package meter

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/inversion_meter/internal/orientation"
	"github.com/relabs-tech/inversion_meter/internal/permission"
	"github.com/relabs-tech/inversion_meter/internal/sampler"
	"github.com/relabs-tech/inversion_meter/internal/session"
)

var (
	ErrNotPermitted   = errors.New("meter: sensor permission not granted")
	ErrStopped        = errors.New("meter: controller stopped")
	ErrAlreadyRunning = errors.New("meter: controller already running")
)

// PermissionState is the lifecycle of the one-shot permission request.
type PermissionState string

const (
	PermissionUnrequested PermissionState = "unrequested"
	PermissionPending     PermissionState = "pending"
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
)

// Snapshot is everything a presentation layer needs to render the meter.
type Snapshot struct {
	Angle             int              `json:"angle"`
	RawTilt           float64          `json:"raw_tilt"`
	ZeroPoint         float64          `json:"zero_point"`
	Recording         bool             `json:"recording"`
	ElapsedSeconds    int              `json:"elapsed_seconds"`
	MaxAngle          int              `json:"max_angle"`
	Buffer            []int            `json:"buffer"`
	History           []session.Record `json:"history"`
	Permission        PermissionState  `json:"permission"`
	PermissionGranted bool             `json:"permission_granted"`
	PermissionError   string           `json:"permission_error,omitempty"`
	Landscape         bool             `json:"landscape"`
}

// Options configures a Controller. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	ZeroPoint   float64
	BufferSize  int           // default session.DefaultBufferSize
	ElapsedTick time.Duration // default 1s
	BufferTick  time.Duration // default 500ms

	Requester permission.Requester // default permission.Static(permission.Granted)
	Policy    permission.Policy

	Tickers TickerFactory // default real time.Ticker
	Clock   session.Clock
	IDs     session.IDGenerator
}

type commandKind int

const (
	cmdSnapshot commandKind = iota
	cmdRequestPermission
	cmdCalibrate
	cmdToggle
)

type command struct {
	kind  commandKind
	reply chan reply
}

type reply struct {
	snap   Snapshot
	record *session.Record
	err    error
}

type permResult struct {
	outcome permission.Outcome
	err     error
}

// Controller is the session-context object.
type Controller struct {
	opts Options

	// Loop-owned state.
	sampler    *sampler.Sampler
	tracker    *session.Tracker
	perm       PermissionState
	permErr    error
	landscape  bool
	elapsedTkr Ticker
	bufferTkr  Ticker

	cmds        chan command
	permResults chan permResult
	done        chan struct{}
	running     atomic.Bool

	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// New builds a Controller in the Idle state with permission unrequested.
func New(opts Options) *Controller {
	if opts.BufferSize <= 0 {
		opts.BufferSize = session.DefaultBufferSize
	}
	if opts.ElapsedTick <= 0 {
		opts.ElapsedTick = time.Second
	}
	if opts.BufferTick <= 0 {
		opts.BufferTick = 500 * time.Millisecond
	}
	if opts.Requester == nil {
		opts.Requester = permission.Static(permission.Granted)
	}
	if opts.Tickers == nil {
		opts.Tickers = RealTickers{}
	}

	trackerOpts := []session.Option{session.WithBufferSize(opts.BufferSize)}
	if opts.Clock != nil {
		trackerOpts = append(trackerOpts, session.WithClock(opts.Clock))
	}
	if opts.IDs != nil {
		trackerOpts = append(trackerOpts, session.WithIDGenerator(opts.IDs))
	}

	return &Controller{
		opts:        opts,
		sampler:     sampler.New(opts.ZeroPoint),
		tracker:     session.NewTracker(trackerOpts...),
		perm:        PermissionUnrequested,
		cmds:        make(chan command),
		permResults: make(chan permResult),
		done:        make(chan struct{}),
		subs:        make(map[int]chan Snapshot),
	}
}

// Run is the event loop. It consumes readings, recording ticks, permission
// results and commands until ctx is cancelled. A closed readings channel
// stops sampling but not the loop. Run may only be called once.
func (c *Controller) Run(ctx context.Context, readings <-chan orientation.Reading) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case r, ok := <-readings:
			if !ok {
				log.Printf("meter: reading stream closed")
				readings = nil
				continue
			}
			if c.handleReading(r) {
				c.publish()
			}

		case <-tickC(c.elapsedTkr):
			c.tracker.TickSecond()
			c.publish()

		case <-tickC(c.bufferTkr):
			c.tracker.TickBuffer(c.sampler.Angle())
			c.publish()

		case res := <-c.permResults:
			c.handlePermission(res)
			c.publish()

		case cmd := <-c.cmds:
			cmd.reply <- c.handleCommand(ctx, cmd.kind)
		}
	}
}

func (c *Controller) handleReading(r orientation.Reading) bool {
	if c.perm != PermissionGranted {
		return false
	}
	angle := c.sampler.Update(r.Tilt)
	c.landscape = r.Landscape
	c.tracker.Observe(angle)
	return true
}

func (c *Controller) handlePermission(res permResult) {
	granted, err := permission.Resolve(res.outcome, res.err, c.opts.Policy)
	if granted {
		if res.err != nil || res.outcome == permission.Unsupported {
			log.Printf("meter: WARNING: permission request %s (%v), sampling anyway", res.outcome, res.err)
		} else {
			log.Printf("meter: sensor permission granted")
		}
		c.perm = PermissionGranted
		c.permErr = nil
		return
	}
	log.Printf("meter: sensor permission refused: %v", err)
	c.perm = PermissionDenied
	c.permErr = err
}

func (c *Controller) handleCommand(ctx context.Context, kind commandKind) reply {
	switch kind {
	case cmdRequestPermission:
		c.requestPermission(ctx)

	case cmdCalibrate:
		if c.perm != PermissionGranted {
			return reply{snap: c.snapshot(), err: ErrNotPermitted}
		}
		if !c.sampler.CalibrateZero() {
			log.Printf("meter: calibrate ignored, no reading yet")
			return reply{snap: c.snapshot()}
		}
		log.Printf("meter: zero point calibrated at %.1f°", c.sampler.ZeroPoint())

	case cmdToggle:
		if c.perm != PermissionGranted {
			return reply{snap: c.snapshot(), err: ErrNotPermitted}
		}
		rec, err := c.toggle()
		if err != nil {
			return reply{snap: c.snapshot(), err: err}
		}
		c.publish()
		return reply{snap: c.snapshot(), record: rec}

	default:
		return reply{snap: c.snapshot()}
	}

	c.publish()
	return reply{snap: c.snapshot()}
}

// requestPermission starts the one-shot request on its own goroutine. A
// request while one is pending, or after a grant, is a no-op.
func (c *Controller) requestPermission(ctx context.Context) {
	if c.perm == PermissionPending || c.perm == PermissionGranted {
		return
	}
	c.perm = PermissionPending
	c.permErr = nil
	log.Printf("meter: requesting sensor permission")

	req := c.opts.Requester
	go func() {
		outcome, err := req.Request(ctx)
		select {
		case c.permResults <- permResult{outcome: outcome, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) toggle() (*session.Record, error) {
	if !c.tracker.Recording() {
		if err := c.tracker.Start(); err != nil {
			return nil, err
		}
		c.startTickers()
		log.Printf("meter: recording started")
		return nil, nil
	}

	rec, err := c.tracker.Stop()
	if err != nil {
		return nil, err
	}
	c.stopTickers()
	log.Printf("meter: recording stopped after %s, peak %d°", session.FormatElapsed(rec.DurationSeconds), rec.MaxAngleDegrees)
	return &rec, nil
}

func (c *Controller) startTickers() {
	c.stopTickers()
	c.elapsedTkr = c.opts.Tickers.NewTicker(c.opts.ElapsedTick)
	c.bufferTkr = c.opts.Tickers.NewTicker(c.opts.BufferTick)
}

func (c *Controller) stopTickers() {
	if c.elapsedTkr != nil {
		c.elapsedTkr.Stop()
		c.elapsedTkr = nil
	}
	if c.bufferTkr != nil {
		c.bufferTkr.Stop()
		c.bufferTkr = nil
	}
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		Angle:             c.sampler.Angle(),
		RawTilt:           c.sampler.Raw(),
		ZeroPoint:         c.sampler.ZeroPoint(),
		Recording:         c.tracker.Recording(),
		ElapsedSeconds:    c.tracker.Elapsed(),
		MaxAngle:          c.tracker.MaxAngle(),
		Buffer:            c.tracker.Buffer(),
		History:           c.tracker.History(),
		Permission:        c.perm,
		PermissionGranted: c.perm == PermissionGranted,
		Landscape:         c.landscape,
	}
	if c.permErr != nil {
		s.PermissionError = c.permErr.Error()
	}
	return s
}

func (c *Controller) shutdown() {
	c.stopTickers()
	close(c.done)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// publish hands the current snapshot to every subscriber. Delivery is
// latest-wins: a subscriber that has not read the previous snapshot gets it
// replaced.
func (c *Controller) publish() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if len(c.subs) == 0 {
		return
	}

	snap := c.snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Subscribe returns a channel of snapshots and a func that ends the
// subscription. The channel is closed when the controller stops.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	ch := make(chan Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

func (c *Controller) do(ctx context.Context, kind commandKind) (reply, error) {
	cmd := command{kind: kind, reply: make(chan reply, 1)}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-c.done:
		return reply{}, ErrStopped
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	r, err := c.do(ctx, cmdSnapshot)
	return r.snap, err
}

// RequestPermission starts the asynchronous permission request and returns
// right away; the snapshot shows the pending state.
func (c *Controller) RequestPermission(ctx context.Context) (Snapshot, error) {
	r, err := c.do(ctx, cmdRequestPermission)
	return r.snap, err
}

// CalibrateZero makes the latest raw reading the 0° reference.
func (c *Controller) CalibrateZero(ctx context.Context) (Snapshot, error) {
	r, err := c.do(ctx, cmdCalibrate)
	if err != nil {
		return Snapshot{}, err
	}
	return r.snap, r.err
}

// ToggleRecording starts or stops a recording. The record is non-nil when a
// recording was stopped.
func (c *Controller) ToggleRecording(ctx context.Context) (Snapshot, *session.Record, error) {
	r, err := c.do(ctx, cmdToggle)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return r.snap, r.record, r.err
}
