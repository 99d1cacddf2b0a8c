// Package alarm owns the reminder timers: an in-process host timer primitive
// and the Driver that keeps exactly one reminder timer armed.
package alarm

import (
	"sync"
	"time"
)

// Fired is delivered when a named timer goes off.
type Fired struct {
	Name string
	At   time.Time
}

// Host is the timer primitive the Driver arms. Schedule replaces any timer
// with the same name. A positive repeat re-fires at a fixed cadence from at.
type Host interface {
	Schedule(name string, at time.Time, repeat time.Duration)
	Cancel(name string)
}

type hostTimer struct {
	timer  *time.Timer
	gen    uint64
	at     time.Time
	repeat time.Duration
}

// TimerHost implements Host with time.AfterFunc. Firings are published on
// Events; a firing that cannot be delivered before Close is dropped.
type TimerHost struct {
	mu     sync.Mutex
	timers map[string]*hostTimer
	gen    uint64
	events chan Fired
	done   chan struct{}
	once   sync.Once
	now    func() time.Time
}

// NewTimerHost creates a host whose event channel holds buffer undelivered firings.
func NewTimerHost(buffer int) *TimerHost {
	return &TimerHost{
		timers: make(map[string]*hostTimer),
		events: make(chan Fired, buffer),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Events returns the channel of timer firings.
func (h *TimerHost) Events() <-chan Fired {
	return h.events
}

// Schedule arms name to fire at at, then every repeat if repeat > 0.
func (h *TimerHost) Schedule(name string, at time.Time, repeat time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelLocked(name)
	h.gen++
	t := &hostTimer{gen: h.gen, at: at, repeat: repeat}
	h.timers[name] = t
	t.timer = time.AfterFunc(h.delay(at), func() { h.fire(name, t.gen) })
}

// Cancel stops name. Cancelling an unknown name is a no-op.
func (h *TimerHost) Cancel(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelLocked(name)
}

// Pending returns the scheduled time of name.
func (h *TimerHost) Pending(name string) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.timers[name]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

// Close stops every timer. Safe to call multiple times.
func (h *TimerHost) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		for name := range h.timers {
			h.cancelLocked(name)
		}
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *TimerHost) cancelLocked(name string) {
	if t, ok := h.timers[name]; ok {
		t.timer.Stop()
		delete(h.timers, name)
	}
}

func (h *TimerHost) delay(at time.Time) time.Duration {
	d := at.Sub(h.now())
	if d < 0 {
		return 0
	}
	return d
}

func (h *TimerHost) fire(name string, gen uint64) {
	h.mu.Lock()
	t, ok := h.timers[name]
	if !ok || t.gen != gen {
		// Cancelled or replaced after the runtime timer expired.
		h.mu.Unlock()
		return
	}
	ev := Fired{Name: name, At: t.at}
	if t.repeat > 0 {
		next := t.at.Add(t.repeat)
		now := h.now()
		for !next.After(now) {
			next = next.Add(t.repeat)
		}
		t.at = next
		t.timer = time.AfterFunc(h.delay(next), func() { h.fire(name, gen) })
	} else {
		delete(h.timers, name)
	}
	h.mu.Unlock()

	select {
	case h.events <- ev:
	case <-h.done:
	}
}
