// Package schedule holds the break-reminder schedule model: the work window,
// the active weekdays, the trial clock, and the next-fire calculation.
package schedule

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned when a schedule fails validation.
var ErrInvalid = errors.New("invalid schedule")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the reminder schedule. It is always replaced as a whole, never
// mutated in place.
type Config struct {
	// IntervalMinutes is the time between reminders inside the work window.
	IntervalMinutes int `json:"intervalMinutes" yaml:"interval_minutes" validate:"gt=0,lte=1440"`

	// StartHour and EndHour bound the daily window [StartHour, EndHour).
	// StartHour > EndHour describes an overnight window.
	StartHour int `json:"startHour" yaml:"start_hour" validate:"gte=0,lt=24,nefield=EndHour"`
	EndHour   int `json:"endHour" yaml:"end_hour" validate:"gte=0,lt=24"`

	// WorkDays lists active weekdays, 0 = Sunday. Empty means no reminders.
	WorkDays []int `json:"workDays" yaml:"work_days" validate:"unique,dive,gte=0,lte=6"`

	// BreakDurationMinutes is shown by the break panel; the calculator ignores it.
	BreakDurationMinutes int `json:"breakDurationMinutes" yaml:"break_duration_minutes" validate:"gt=0,lte=120"`
}

// Default returns the schedule installed on first run: hourly, 9 to 5,
// Monday through Friday, five minute breaks.
func Default() Config {
	return Config{
		IntervalMinutes:      60,
		StartHour:            9,
		EndHour:              17,
		WorkDays:             []int{1, 2, 3, 4, 5},
		BreakDurationMinutes: 5,
	}
}

// Validate reports whether c can drive the reminder engine.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	// A window that cannot hold a single interval never produces a reminder
	// inside the window, since the first one lands at start+interval.
	if c.IntervalMinutes >= c.WindowMinutes() {
		return fmt.Errorf("%w: interval of %d minutes does not fit in a %d minute window",
			ErrInvalid, c.IntervalMinutes, c.WindowMinutes())
	}
	return nil
}

// Interval returns the reminder interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// BreakDuration returns the break length as a duration.
func (c Config) BreakDuration() time.Duration {
	return time.Duration(c.BreakDurationMinutes) * time.Minute
}

// Overnight reports whether the window wraps past midnight.
func (c Config) Overnight() bool {
	return c.StartHour > c.EndHour
}

// WindowMinutes returns the length of one work window.
func (c Config) WindowMinutes() int {
	if c.Overnight() {
		return (24 - c.StartHour + c.EndHour) * 60
	}
	return (c.EndHour - c.StartHour) * 60
}

// IsWorkDay reports whether reminders are active on the given weekday.
func (c Config) IsWorkDay(day time.Weekday) bool {
	return slices.Contains(c.WorkDays, int(day))
}

// InWindow reports whether t's hour falls inside the daily window.
func (c Config) InWindow(t time.Time) bool {
	h := t.Hour()
	if c.Overnight() {
		return h >= c.StartHour || h < c.EndHour
	}
	return h >= c.StartHour && h < c.EndHour
}

// Equal reports whether two schedules are identical. Work days compare as sets.
func (c Config) Equal(o Config) bool {
	if c.IntervalMinutes != o.IntervalMinutes ||
		c.StartHour != o.StartHour ||
		c.EndHour != o.EndHour ||
		c.BreakDurationMinutes != o.BreakDurationMinutes {
		return false
	}
	a := slices.Clone(c.WorkDays)
	b := slices.Clone(o.WorkDays)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.WorkDays = slices.Clone(c.WorkDays)
	return c
}

// DayNames renders the work days as short weekday names in week order.
func (c Config) DayNames() []string {
	days := slices.Clone(c.WorkDays)
	slices.Sort(days)
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, time.Weekday(d).String()[:3])
	}
	return names
}
