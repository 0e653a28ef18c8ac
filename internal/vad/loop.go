package vad

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/vadrec/internal/clock"
)

// Loop is a self-rescheduling sampling task. Each firing takes the owner's
// lock, checks the liveness flag, runs one step and only then asks the clock
// for the next firing, so steps never overlap.
type Loop struct {
	clock    clock.Clock
	interval time.Duration
	mu       sync.Locker
	step     func() bool

	live  bool
	gen   uint64
	timer clock.Timer
	ticks int
}

// NewLoop builds a stopped loop. step returns false to end the loop; it runs
// with mu held.
func NewLoop(c clock.Clock, interval time.Duration, mu sync.Locker, step func() bool) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{clock: c, interval: interval, mu: mu, step: step}
}

// Start schedules the first step. The caller must hold mu.
func (l *Loop) Start() {
	if l.live {
		return
	}
	l.live = true
	l.gen++
	l.schedule()
}

// Stop cancels the pending step. The caller must hold mu. Idempotent.
func (l *Loop) Stop() {
	l.live = false
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Running reports whether another step is pending. The caller must hold mu.
func (l *Loop) Running() bool { return l.live }

// Ticks counts executed steps. The caller must hold mu.
func (l *Loop) Ticks() int { return l.ticks }

func (l *Loop) schedule() {
	gen := l.gen
	l.timer = l.clock.AfterFunc(l.interval, func() { l.fire(gen) })
}

func (l *Loop) fire(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// a stale timer from a previous run may still fire after Stop
	if !l.live || gen != l.gen {
		return
	}
	l.timer = nil
	l.ticks++
	if !l.step() {
		l.live = false
		return
	}
	if l.live && l.timer == nil {
		l.schedule()
	}
}
