package schedule

import (
	"errors"
	"slices"
	"testing"
	"time"
)

// FuzzParseDays checks that any accepted day list is sorted, unique, in
// range, and survives a FormatDays round trip.
func FuzzParseDays(f *testing.F) {
	f.Add("")
	f.Add("none")
	f.Add("mon-fri")
	f.Add("fri-mon")
	f.Add("Mon,Wed,Fri")
	f.Add("0,6")
	f.Add("1-5, sat")
	f.Add("-")
	f.Add(",,,")
	f.Add("sun-sun")
	f.Add("7")
	f.Add("mon--fri")

	f.Fuzz(func(t *testing.T, s string) {
		days, err := ParseDays(s)
		if err != nil {
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("ParseDays(%q) error %v does not wrap ErrInvalid", s, err)
			}
			return
		}
		if !slices.IsSorted(days) {
			t.Fatalf("ParseDays(%q) = %v, not sorted", s, days)
		}
		if len(slices.Compact(slices.Clone(days))) != len(days) {
			t.Fatalf("ParseDays(%q) = %v, has duplicates", s, days)
		}
		for _, d := range days {
			if d < 0 || d > 6 {
				t.Fatalf("ParseDays(%q) = %v, day out of range", s, days)
			}
		}

		again, err := ParseDays(FormatDays(days))
		if err != nil {
			t.Fatalf("ParseDays(FormatDays(%v)) error = %v", days, err)
		}
		if !slices.Equal(days, again) {
			t.Fatalf("round trip of %v gave %v", days, again)
		}
	})
}

// FuzzNextFire checks that NextFire never returns an instant at or before
// now for any schedule that validates.
func FuzzNextFire(f *testing.F) {
	f.Add(60, 9, 17, uint8(0b0111110), int64(0))
	f.Add(45, 22, 6, uint8(0b1111111), int64(3600*23))
	f.Add(1, 0, 23, uint8(0b0000001), int64(86400*3+59))
	f.Add(120, 20, 2, uint8(0b0010100), int64(-7200))

	base := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	f.Fuzz(func(t *testing.T, interval, start, end int, mask uint8, offset int64) {
		cfg := Config{IntervalMinutes: interval, StartHour: start, EndHour: end, BreakDurationMinutes: 5}
		for d := range 7 {
			if mask&(1<<d) != 0 {
				cfg.WorkDays = append(cfg.WorkDays, d)
			}
		}
		if cfg.Validate() != nil {
			return
		}

		now := base.Add(time.Duration(offset%(86400*30)) * time.Second)
		got := NextFire(cfg, now)
		if !got.After(now) {
			t.Fatalf("cfg %+v now %s: got %s, not after now", cfg, now, got)
		}
		if limit := now.Add((scanDays+1)*24*time.Hour + cfg.Interval()); got.After(limit) {
			t.Fatalf("cfg %+v now %s: got %s, beyond the scan horizon", cfg, now, got)
		}
	})
}
