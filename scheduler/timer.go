package scheduler

import (
	"context"
	"time"

	"github.com/kasuganosora/modforge/plugin/hook"
	"go.uber.org/zap"
)

// EventTimer is the event string passed to callbacks fired by a timer.
const EventTimer = "timer"

// TimerState is the lifecycle state of a Timer.
type TimerState int

const (
	TimerCreated TimerState = iota
	TimerRunning
	TimerFired
	TimerCancelled
)

func (s TimerState) String() string {
	switch s {
	case TimerCreated:
		return "created"
	case TimerRunning:
		return "running"
	case TimerFired:
		return "fired"
	case TimerCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Timer invokes a callback every interval until cancelled.
type Timer struct {
	interval time.Duration
	cb       hook.Callback
	next     time.Time
	state    TimerState
	fired    int
}

func (t *Timer) State() TimerState       { return t.state }
func (t *Timer) Interval() time.Duration { return t.interval }
func (t *Timer) Next() time.Time         { return t.next }
func (t *Timer) FireCount() int          { return t.fired }

// TimerSet owns the periodic timers of one entity (a weapon or a projectile).
// It is advanced by the owner's update pass; it never spawns goroutines.
// Not safe for concurrent use.
type TimerSet struct {
	owner  string
	data   interface{}
	timers []*Timer
	logger *zap.Logger
}

// NewTimerSet creates an empty set. data is passed to every callback.
func NewTimerSet(owner string, data interface{}, logger *zap.Logger) *TimerSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerSet{owner: owner, data: data, logger: logger}
}

// Add registers a timer in the Created state. Non-positive intervals are rejected.
func (s *TimerSet) Add(interval time.Duration, cb hook.Callback) *Timer {
	if interval <= 0 {
		s.logger.Warn("timer with non-positive interval ignored",
			zap.String("owner", s.owner),
			zap.String("callback", cb.Name),
			zap.Duration("interval", interval))
		return nil
	}
	t := &Timer{interval: interval, cb: cb, state: TimerCreated}
	s.timers = append(s.timers, t)
	return t
}

// Start arms every Created timer so it first fires one interval after now.
func (s *TimerSet) Start(now time.Time) {
	for _, t := range s.timers {
		if t.state == TimerCreated {
			t.next = now.Add(t.interval)
			t.state = TimerRunning
		}
	}
}

// Advance fires each running timer that is due at now, at most once per call,
// and re-arms it one interval after now. A timer cancelled earlier in the same
// pass, including by a callback, does not fire. Returns the number fired.
func (s *TimerSet) Advance(ctx context.Context, now time.Time) int {
	timers := make([]*Timer, len(s.timers))
	copy(timers, s.timers)

	fired := 0
	for _, t := range timers {
		if t.state != TimerRunning || now.Before(t.next) {
			continue
		}
		t.state = TimerFired
		t.fired++
		fired++
		if err := t.cb.Call(ctx, EventTimer, s.data); err != nil {
			s.logger.Error("timer callback failed",
				zap.String("owner", s.owner),
				zap.String("callback", t.cb.Name),
				zap.Error(err))
		}
		if t.state == TimerFired {
			t.next = now.Add(t.interval)
			t.state = TimerRunning
		}
	}
	return fired
}

// CancelAll cancels every timer and empties the set.
func (s *TimerSet) CancelAll() {
	for _, t := range s.timers {
		t.state = TimerCancelled
	}
	s.timers = nil
}

// Len returns the number of timers that are not cancelled.
func (s *TimerSet) Len() int {
	n := 0
	for _, t := range s.timers {
		if t.state != TimerCancelled {
			n++
		}
	}
	return n
}
