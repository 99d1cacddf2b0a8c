package alarm

import (
	"fmt"
	"log/slog"
	"time"

	"breaktime/internal/logging"
	"breaktime/internal/storage"
)

// Timer names.
const (
	ReminderName = "break-reminder"
	SnoozeName   = "break-snooze"
)

// Store persists the armed alarm table.
type Store interface {
	LoadAlarms() (map[string]storage.Alarm, error)
	SaveAlarms(map[string]storage.Alarm) error
}

// Driver arms the reminder and snooze timers on a Host. The armed table is
// persisted before the host is touched, so a store failure leaves the host
// exactly as it was.
type Driver struct {
	host   Host
	store  Store
	logger *slog.Logger
}

// NewDriver creates a driver.
func NewDriver(host Host, store Store, logger *slog.Logger) *Driver {
	return &Driver{host: host, store: store, logger: logging.Component(logger, "alarm")}
}

// Arm replaces the reminder timer with one firing at at and repeating every
// repeat (zero for one-shot).
func (d *Driver) Arm(at time.Time, repeat time.Duration) error {
	a := storage.Alarm{Name: ReminderName, ScheduledAt: at, RepeatEveryMinutes: int(repeat / time.Minute)}
	if err := d.put(a); err != nil {
		return err
	}
	d.host.Cancel(ReminderName)
	d.host.Schedule(ReminderName, at, a.Repeat())
	d.logger.Info("reminder armed", "at", at.Format(time.RFC3339), "repeat", a.Repeat())
	return nil
}

// ArmSnooze arms the one-off snooze timer. The reminder timer is not touched.
func (d *Driver) ArmSnooze(at time.Time) error {
	if err := d.put(storage.Alarm{Name: SnoozeName, ScheduledAt: at}); err != nil {
		return err
	}
	d.host.Cancel(SnoozeName)
	d.host.Schedule(SnoozeName, at, 0)
	d.logger.Info("snooze armed", "at", at.Format(time.RFC3339))
	return nil
}

// DisarmAll cancels both timers.
func (d *Driver) DisarmAll() error {
	if err := d.store.SaveAlarms(map[string]storage.Alarm{}); err != nil {
		return fmt.Errorf("disarm: %w", err)
	}
	d.host.Cancel(ReminderName)
	d.host.Cancel(SnoozeName)
	d.logger.Info("alarms disarmed")
	return nil
}

// Current returns the armed reminder, if any.
func (d *Driver) Current() (storage.Alarm, bool, error) {
	return d.lookup(ReminderName)
}

// Snooze returns the armed snooze, if any.
func (d *Driver) Snooze() (storage.Alarm, bool, error) {
	return d.lookup(SnoozeName)
}

// Acknowledge records that a firing was handled and reports whether it
// belongs to the timer armed under its name. A firing queued before a
// cancel or re-arm is stale and returns false. One-shot timers are removed
// from the table; repeating ones keep their original anchor.
func (d *Driver) Acknowledge(f Fired) (bool, error) {
	alarms, err := d.store.LoadAlarms()
	if err != nil {
		return false, fmt.Errorf("load alarms: %w", err)
	}
	a, ok := alarms[f.Name]
	if !ok || !a.Occurs(f.At) {
		return false, nil
	}
	if a.RepeatEveryMinutes > 0 {
		return true, nil
	}
	delete(alarms, f.Name)
	if err := d.store.SaveAlarms(alarms); err != nil {
		return true, fmt.Errorf("save alarms: %w", err)
	}
	return true, nil
}

// Restore re-installs persisted timers after a restart. A repeating alarm
// whose time has passed moves to its next occurrence after now on the
// original cadence; an overdue one-shot fires right away.
func (d *Driver) Restore(now time.Time) (int, error) {
	alarms, err := d.store.LoadAlarms()
	if err != nil {
		return 0, fmt.Errorf("load alarms: %w", err)
	}
	for name, a := range alarms {
		at := a.NextAfter(now)
		d.host.Cancel(name)
		d.host.Schedule(name, at, a.Repeat())
		d.logger.Info("alarm restored", "name", name, "at", at.Format(time.RFC3339))
	}
	return len(alarms), nil
}

func (d *Driver) put(a storage.Alarm) error {
	alarms, err := d.store.LoadAlarms()
	if err != nil {
		return fmt.Errorf("load alarms: %w", err)
	}
	if alarms == nil {
		alarms = make(map[string]storage.Alarm)
	}
	alarms[a.Name] = a
	if err := d.store.SaveAlarms(alarms); err != nil {
		return fmt.Errorf("save alarms: %w", err)
	}
	return nil
}

func (d *Driver) lookup(name string) (storage.Alarm, bool, error) {
	alarms, err := d.store.LoadAlarms()
	if err != nil {
		return storage.Alarm{}, false, fmt.Errorf("load alarms: %w", err)
	}
	a, ok := alarms[name]
	return a, ok, nil
}
