package schedule

import (
	"math"
	"time"
)

// TrialDays is the length of the personal trial.
const TrialDays = 7

// Trial records when the app was first installed. InstalledAt is written once.
type Trial struct {
	InstalledAt time.Time `json:"installedAt"`
}

// DaysRemaining returns max(0, ceil(TrialDays - days since install)).
func (t Trial) DaysRemaining(now time.Time) int {
	if t.InstalledAt.IsZero() {
		return TrialDays
	}
	elapsed := now.Sub(t.InstalledAt).Hours() / 24
	remaining := int(math.Ceil(TrialDays - elapsed))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the trial has run out.
func (t Trial) Expired(now time.Time) bool {
	return t.DaysRemaining(now) <= 0
}
