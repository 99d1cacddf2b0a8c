// Package gate decides at fire time whether a reminder may be shown.
package gate

import (
	"time"

	"breaktime/internal/auth"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"
)

// Reason explains a decision.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonNoSession        Reason = "no_session"
	ReasonTrialExpired     Reason = "trial_expired"
	ReasonNotWorkDay       Reason = "not_work_day"
	ReasonOutsideHours     Reason = "outside_hours"
	ReasonStateUnavailable Reason = "state_unavailable"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Allow  bool
	Reason Reason
}

// State is the persisted state the gate reads on every evaluation.
type State interface {
	LoadSchedule() (storage.ScheduleRecord, error)
	LoadTrial() (schedule.Trial, error)
}

// Gate re-validates session, trial and schedule before a reminder surfaces.
type Gate struct {
	sessions auth.Provider
	state    State
}

// New creates a gate.
func New(sessions auth.Provider, state State) *Gate {
	return &Gate{sessions: sessions, state: state}
}

// ShouldNotify reports whether a reminder may be shown at now.
func (g *Gate) ShouldNotify(now time.Time) bool {
	return g.Evaluate(now).Allow
}

// Evaluate runs the checks in order and stops at the first failure:
// signed in, trial not expired (personal accounts without pro), work day,
// inside the work window.
func (g *Gate) Evaluate(now time.Time) Decision {
	sess, err := g.sessions.Current()
	if err != nil {
		return deny(ReasonStateUnavailable)
	}
	if sess == nil {
		return deny(ReasonNoSession)
	}

	if sess.Personal() && !sess.Pro {
		trial, err := g.state.LoadTrial()
		if err != nil {
			return deny(ReasonStateUnavailable)
		}
		if trial.Expired(now) {
			return deny(ReasonTrialExpired)
		}
	}

	rec, err := g.state.LoadSchedule()
	if err != nil {
		return deny(ReasonStateUnavailable)
	}
	if !rec.Config.IsWorkDay(now.Weekday()) {
		return deny(ReasonNotWorkDay)
	}
	if !rec.Config.InWindow(now) {
		return deny(ReasonOutsideHours)
	}
	return Decision{Allow: true, Reason: ReasonAllowed}
}

func deny(r Reason) Decision {
	return Decision{Allow: false, Reason: r}
}
