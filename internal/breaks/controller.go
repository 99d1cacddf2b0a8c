// Package breaks holds the persisted break session: idle or on a break.
package breaks

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"breaktime/internal/logging"
	"breaktime/internal/storage"
)

// ErrInvalidTransition is returned when an action does not apply to the current state.
var ErrInvalidTransition = errors.New("invalid break transition")

// Store persists the session flag and the usage total.
type Store interface {
	Now() time.Time
	LoadBreak() (storage.BreakState, error)
	SaveBreak(storage.BreakState) error
	AddUsage(seconds int64) error
}

// Listener is called after every transition with the new state.
type Listener func(active bool)

// Controller drives Idle <-> Active. The persisted flag is the only state;
// every call re-reads it.
type Controller struct {
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	listeners []Listener
}

// New creates a controller.
func New(store Store, logger *slog.Logger) *Controller {
	return &Controller{store: store, logger: logging.Component(logger, "breaks")}
}

// OnChange registers a listener for transitions.
func (c *Controller) OnChange(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// State returns the persisted break state.
func (c *Controller) State() (storage.BreakState, error) {
	return c.store.LoadBreak()
}

// Start moves Idle to Active.
func (c *Controller) Start(trigger storage.BreakTrigger) (storage.BreakState, error) {
	st, err := c.store.LoadBreak()
	if err != nil {
		return st, fmt.Errorf("load break: %w", err)
	}
	if st.Active {
		return st, fmt.Errorf("%w: break already active", ErrInvalidTransition)
	}
	next := storage.BreakState{Active: true, StartedAt: c.store.Now(), Trigger: trigger}
	if err := c.store.SaveBreak(next); err != nil {
		return st, fmt.Errorf("save break: %w", err)
	}
	c.logger.Info("break started", "trigger", trigger)
	c.notify(true)
	return next, nil
}

// Finish moves Active to Idle and records the break time as usage.
func (c *Controller) Finish() (time.Duration, error) {
	return c.end(true)
}

// Skip moves Active to Idle without recording usage.
func (c *Controller) Skip() error {
	_, err := c.end(false)
	return err
}

func (c *Controller) end(completed bool) (time.Duration, error) {
	st, err := c.store.LoadBreak()
	if err != nil {
		return 0, fmt.Errorf("load break: %w", err)
	}
	if !st.Active {
		return 0, fmt.Errorf("%w: no active break", ErrInvalidTransition)
	}

	elapsed := c.store.Now().Sub(st.StartedAt)
	if elapsed < 0 || st.StartedAt.IsZero() {
		elapsed = 0
	}
	if err := c.store.SaveBreak(storage.BreakState{}); err != nil {
		return 0, fmt.Errorf("save break: %w", err)
	}
	if completed {
		if err := c.store.AddUsage(int64(elapsed / time.Second)); err != nil {
			// The break is over either way; the lost seconds only affect usage reporting.
			c.logger.Warn("record usage failed", "seconds", int64(elapsed/time.Second), "error", err)
		}
		c.logger.Info("break finished", "elapsed", elapsed.Round(time.Second))
	} else {
		c.logger.Info("break skipped", "elapsed", elapsed.Round(time.Second))
	}
	c.notify(false)
	return elapsed, nil
}

func (c *Controller) notify(active bool) {
	c.mu.Lock()
	ls := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()
	for _, l := range ls {
		l(active)
	}
}
