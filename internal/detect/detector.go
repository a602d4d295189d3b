package detect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often the poll loop re-evaluates the probes.
const DefaultInterval = 2 * time.Second

// ErrAlreadyMonitoring is returned by StartMonitoring when a poll loop
// is already active.
var ErrAlreadyMonitoring = errors.New("meeting detection already running")

// Events receives meeting edge notifications. Delivery is best-effort;
// implementations must not block the poll loop.
type Events interface {
	MeetingDetected(state MeetingState)
	MeetingEnded()
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) MeetingDetected(MeetingState) {}
func (NopEvents) MeetingEnded()                {}

// Detector owns the poll loop and the shared meeting state. It fuses
// the probes through the classifier once per tick and flips the
// in-meeting state on rising and falling edges.
type Detector struct {
	probes   *Probes
	events   Events
	interval time.Duration

	mu    sync.Mutex
	state MeetingState

	runMu      sync.Mutex
	monitoring bool
	stop       chan struct{}
	done       chan struct{}
}

// New builds a detector. A zero interval falls back to DefaultInterval;
// nil events fall back to NopEvents.
func New(probes *Probes, events Events, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Detector{probes: probes, events: events, interval: interval}
}

// StartMonitoring spawns the poll loop and returns immediately. It
// fails with ErrAlreadyMonitoring when a loop is already active.
func (d *Detector) StartMonitoring() error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.monitoring {
		return ErrAlreadyMonitoring
	}
	d.monitoring = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(d.stop, d.done)
	slog.Info("meeting detection started", "interval", d.interval)
	return nil
}

// StopMonitoring signals the poll loop to exit; the loop observes the
// signal on its next wake, so shutdown is bounded by one interval.
// Calling it when not monitoring is a no-op.
func (d *Detector) StopMonitoring() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if !d.monitoring {
		return
	}
	d.monitoring = false
	close(d.stop)
	slog.Info("meeting detection stopping")
}

// Wait blocks until the poll loop has exited. Useful for tests and
// orderly shutdown; returns immediately if monitoring never started.
func (d *Detector) Wait() {
	d.runMu.Lock()
	done := d.done
	d.runMu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns a snapshot copy of the current meeting state.
func (d *Detector) State() MeetingState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Detector) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.tick()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick runs one detection cycle. A panicking probe must not kill the
// loop, so the whole cycle is fenced.
func (d *Detector) tick() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detection tick panicked", "panic", r)
		}
	}()

	snap := d.probes.Collect(context.Background())
	app, found := Classify(snap, d.probes.Browsers)

	var detected *MeetingState
	var ended bool

	d.mu.Lock()
	switch {
	case found && !d.state.InMeeting:
		now := time.Now().UTC()
		appCopy := app
		d.state = MeetingState{InMeeting: true, App: &appCopy, StartedAt: &now}
		st := d.state
		detected = &st
	case !found && d.state.InMeeting:
		d.state = MeetingState{}
		ended = true
	}
	d.mu.Unlock()

	// Edge notifications fire outside the lock so a slow subscriber
	// cannot stall State() readers.
	if detected != nil {
		slog.Info("meeting detected", "app", detected.App.String())
		d.events.MeetingDetected(*detected)
	}
	if ended {
		slog.Info("meeting ended")
		d.events.MeetingEnded()
	}
}
