package playback

import (
	"sync"
	"time"
)

// fakeClock lets tests move time forward explicitly and fire armed timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{
		ch:     make(chan time.Time, 1),
		expiry: c.now.Add(d),
	}
	if d <= 0 {
		timer.fire(c.now)
	} else {
		c.timers = append(c.timers, timer)
	}
	return timer
}

// Advance moves the clock and fires every timer that has come due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	remaining := c.timers[:0]
	var due []*fakeTimer
	for _, timer := range c.timers {
		if !timer.expiry.After(now) {
			due = append(due, timer)
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, timer := range due {
		timer.fire(now)
	}
}

type fakeTimer struct {
	mu      sync.Mutex
	ch      chan time.Time
	expiry  time.Time
	stopped bool
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

func (t *fakeTimer) fire(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	select {
	case t.ch <- at:
	default:
	}
}
