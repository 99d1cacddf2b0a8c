package storage

import (
	"time"

	"breaktime/internal/schedule"
)

// Schedule sources recorded next to the active schedule.
const (
	SourceDefault = "default"
	SourceRemote  = "remote"
	SourceLocal   = "local"
)

// ScheduleRecord is the persisted active schedule.
type ScheduleRecord struct {
	Config    schedule.Config `json:"config"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BreakTrigger says what started a break.
type BreakTrigger string

const (
	TriggerReminder BreakTrigger = "reminder"
	TriggerSnooze   BreakTrigger = "snooze"
	TriggerManual   BreakTrigger = "manual"
)

// BreakState is the persisted session flag.
type BreakState struct {
	Active    bool         `json:"active"`
	StartedAt time.Time    `json:"startedAt,omitempty"`
	Trigger   BreakTrigger `json:"trigger,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Alarm is one armed host timer.
type Alarm struct {
	Name               string    `json:"name"`
	ScheduledAt        time.Time `json:"scheduledAt"`
	RepeatEveryMinutes int       `json:"repeatEveryMinutes,omitempty"`
}

// Repeat returns the repeat period, zero for one-shot alarms.
func (a Alarm) Repeat() time.Duration {
	return time.Duration(a.RepeatEveryMinutes) * time.Minute
}

// NextAfter returns the first occurrence strictly after now. A past one-shot
// alarm returns its scheduled time unchanged.
func (a Alarm) NextAfter(now time.Time) time.Time {
	repeat := a.Repeat()
	if repeat <= 0 || a.ScheduledAt.After(now) {
		return a.ScheduledAt
	}
	steps := now.Sub(a.ScheduledAt)/repeat + 1
	return a.ScheduledAt.Add(steps * repeat)
}

// Occurs reports whether at is one of the alarm's firing times.
func (a Alarm) Occurs(at time.Time) bool {
	repeat := a.Repeat()
	if repeat <= 0 {
		return at.Equal(a.ScheduledAt)
	}
	if at.Before(a.ScheduledAt) {
		return false
	}
	return at.Sub(a.ScheduledAt)%repeat == 0
}

// AlarmTable holds armed alarms keyed by name.
type AlarmTable struct {
	Alarms map[string]Alarm `json:"alarms"`
}

// UsageLedger tracks break time recorded locally and how much of it the
// remote usage log has acknowledged.
type UsageLedger struct {
	LocalTotalSeconds      int64      `json:"localTotalSeconds"`
	LastSyncedTotalSeconds int64      `json:"lastSyncedTotalSeconds"`
	LastSyncedAt           *time.Time `json:"lastSyncedAt,omitempty"`
}

// Unsynced returns the seconds not yet sent to the usage log.
func (u UsageLedger) Unsynced() int64 {
	return u.LocalTotalSeconds - u.LastSyncedTotalSeconds
}
