package engine

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It reports false when the
	// timer already fired or was stopped.
	Stop() bool
}

// Clock schedules callbacks. Sessions use the real clock by default;
// tests and scenarios use a ManualClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// ManualClock is a deterministic Clock. Time only moves when Advance is
// called, and due callbacks run synchronously on the caller's goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   int
	f     func()
}

// NewManualClock returns a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, running every callback that falls
// due in deadline order. Callbacks may schedule further timers; those run
// too if they fall due within the same window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})
		if len(c.timers) == 0 || c.timers[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		if t.at.After(c.now) {
			c.now = t.at
		}
		c.mu.Unlock()
		t.f()
	}
}

// Pending returns the number of scheduled callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Scheduler owns a single timer slot. Every Arm or Cancel bumps a
// generation counter; a callback whose generation is no longer current is
// stale and must be ignored. Scheduler is not safe for concurrent use: its
// owner serializes calls, including the generation check made on fire.
type Scheduler struct {
	clock  Clock
	gen    uint64
	timer  Timer
	reason string
	delay  time.Duration
}

// NewScheduler returns a scheduler on clock.
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Arm cancels any pending timer and schedules fire after d. fire receives
// the generation it was armed with. Arm returns that generation.
func (s *Scheduler) Arm(d time.Duration, reason string, fire func(gen uint64)) uint64 {
	s.Cancel()
	gen := s.gen
	s.reason = reason
	s.delay = d
	s.timer = s.clock.AfterFunc(d, func() { fire(gen) })
	return gen
}

// Cancel invalidates the pending timer, if any. It reports whether a timer was pending.
func (s *Scheduler) Cancel() bool {
	s.gen++
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.reason = ""
	s.delay = 0
	return true
}

// Claim reports whether gen is the live generation and, if so, consumes
// the pending slot. A false result means the callback is stale.
func (s *Scheduler) Claim(gen uint64) (reason string, ok bool) {
	if s.timer == nil || gen != s.gen {
		return "", false
	}
	reason = s.reason
	s.timer = nil
	s.reason = ""
	s.delay = 0
	return reason, true
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool { return s.timer != nil }

// Reason returns the reason the pending timer was armed with.
func (s *Scheduler) Reason() string { return s.reason }

// Delay returns the delay of the pending timer.
func (s *Scheduler) Delay() time.Duration { return s.delay }
