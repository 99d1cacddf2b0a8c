package schedule

import "time"

// scanDays bounds the forward search for the next work day.
const scanDays = 8

// NextFire returns the next instant a reminder is due for cfg, strictly
// after now.
//
// Inside the window the next reminder is one interval away unless that would
// reach the window end, in which case it rolls to the next window. Outside the
// window the first reminder of a window is start+interval, never the start
// itself.
func NextFire(cfg Config, now time.Time) time.Time {
	interval := cfg.Interval()
	if interval <= 0 {
		interval = time.Minute
	}

	if cfg.IsWorkDay(now.Weekday()) && cfg.InWindow(now) {
		candidate := now.Add(interval)
		if candidate.Before(cfg.windowEnd(now)) {
			return clampAfter(candidate, now, interval)
		}
	}

	if start, ok := cfg.nextWindowStart(now); ok {
		return clampAfter(start.Add(interval), now, interval)
	}

	// No work day at all.
	return now.Add(interval)
}

// windowEnd returns the end boundary of the window containing now.
func (c Config) windowEnd(now time.Time) time.Time {
	if c.Overnight() && now.Hour() >= c.StartHour {
		return atHour(now, 1, c.EndHour)
	}
	return atHour(now, 0, c.EndHour)
}

// nextWindowStart finds the first window opening strictly after now on a
// work day, looking at most scanDays ahead.
func (c Config) nextWindowStart(now time.Time) (time.Time, bool) {
	for offset := 0; offset <= scanDays; offset++ {
		start := atHour(now, offset, c.StartHour)
		if !start.After(now) {
			continue
		}
		if c.IsWorkDay(start.Weekday()) {
			return start, true
		}
	}
	return time.Time{}, false
}

func atHour(t time.Time, dayOffset, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+dayOffset, hour, 0, 0, 0, t.Location())
}

// clampAfter guards against clock skew: the result is always after now.
func clampAfter(candidate, now time.Time, interval time.Duration) time.Time {
	if !candidate.After(now) {
		return now.Add(interval)
	}
	return candidate
}
