package engine

import (
	"context"
	"time"

	"breaktime/internal/schedule"
	"breaktime/internal/storage"
	cfgsync "breaktime/internal/sync"
)

// Status is a snapshot of the daemon for the panel and the CLI.
type Status struct {
	Now time.Time `json:"now"`

	SignedIn     bool   `json:"signedIn"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
	Pro          bool   `json:"pro"`

	Schedule       schedule.Config `json:"schedule"`
	ScheduleSource string          `json:"scheduleSource"`

	Break storage.BreakState `json:"break"`

	NextReminder *time.Time `json:"nextReminder,omitempty"`
	SnoozedUntil *time.Time `json:"snoozedUntil,omitempty"`

	// Reminding is false while the gate would suppress a reminder at Now;
	// Reason says why.
	Reminding bool   `json:"reminding"`
	Reason    string `json:"reason"`

	TrialDaysRemaining int `json:"trialDaysRemaining"`
}

// StartBreak starts a manual break.
func (e *Engine) StartBreak(ctx context.Context) (storage.BreakState, error) {
	var st storage.BreakState
	err := e.do(ctx, func() error {
		var err error
		st, err = e.startBreak(storage.TriggerManual)
		return err
	})
	return st, err
}

// FinishBreak ends the active break and records its length.
func (e *Engine) FinishBreak(ctx context.Context) (time.Duration, error) {
	var elapsed time.Duration
	err := e.do(ctx, func() error {
		var err error
		elapsed, err = e.breaks.Finish()
		if err == nil {
			e.metrics.Break("finished", false)
		}
		return err
	})
	return elapsed, err
}

// SkipBreak ends the active break without recording usage.
func (e *Engine) SkipBreak(ctx context.Context) error {
	return e.do(ctx, func() error {
		err := e.breaks.Skip()
		if err == nil {
			e.metrics.Break("skipped", false)
		}
		return err
	})
}

// SaveSettings replaces the schedule and re-arms the reminder. Errors are
// meant for display. The remote save runs on the caller's goroutine.
func (e *Engine) SaveSettings(ctx context.Context, cfg schedule.Config) (cfgsync.Report, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	if err := e.alive(); err != nil {
		return cfgsync.Report{}, err
	}
	var rep cfgsync.Report
	push, err := e.sync.PushSettings(ctx, cfg)
	if err == nil {
		err = e.do(ctx, func() error {
			var err error
			rep, err = e.sync.ApplySettings(push)
			return err
		})
	}
	if err != nil {
		e.logger.Warn("settings not saved", "error", err)
		return rep, err
	}
	e.logger.Info("settings saved", "rearmed", rep.Rearmed, "next", rep.NextFire.Format(time.RFC3339))
	return rep, nil
}

// SyncNow runs a sync on request and waits for its report.
func (e *Engine) SyncNow(ctx context.Context) (cfgsync.Report, error) {
	if err := e.alive(); err != nil {
		return cfgsync.Report{}, err
	}
	return e.runSync(ctx, "manual")
}

// Status reads the current state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func() error {
		var err error
		st, err = e.status()
		return err
	})
	return st, err
}

func (e *Engine) status() (Status, error) {
	now := e.store.Now()
	st := Status{Now: now}

	sess, err := e.sessions.Current()
	if err != nil {
		return st, err
	}
	if sess != nil {
		st.SignedIn = true
		st.Email = sess.Email
		st.Organization = sess.OrganizationID
		st.Pro = sess.Pro
	}

	rec, err := e.store.LoadSchedule()
	if err != nil {
		return st, err
	}
	st.Schedule = rec.Config
	st.ScheduleSource = rec.Source

	if st.Break, err = e.breaks.State(); err != nil {
		return st, err
	}

	trial, err := e.store.LoadTrial()
	if err != nil {
		return st, err
	}
	st.TrialDaysRemaining = trial.DaysRemaining(now)

	if a, ok, err := e.alarms.Current(); err != nil {
		return st, err
	} else if ok {
		next := a.NextAfter(now)
		st.NextReminder = &next
	}
	if a, ok, err := e.alarms.Snooze(); err != nil {
		return st, err
	} else if ok && a.ScheduledAt.After(now) {
		at := a.ScheduledAt
		st.SnoozedUntil = &at
	}

	d := e.gate.Evaluate(now)
	st.Reminding = d.Allow
	st.Reason = string(d.Reason)
	return st, nil
}
