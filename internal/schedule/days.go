package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var dayIndex = map[string]int{
	"sun": 0, "sunday": 0,
	"mon": 1, "monday": 1,
	"tue": 2, "tues": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
}

// ParseDays reads a weekday list such as "mon-fri", "mon,wed,fri", "1-5"
// or "sat,sun". Ranges may wrap ("fri-mon"). An empty string means no days.
// The result is sorted and free of duplicates.
func ParseDays(s string) ([]int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return []int{}, nil
	}
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		a, err := parseDay(from)
		if err != nil {
			return nil, err
		}
		if !isRange {
			seen[a] = true
			continue
		}
		b, err := parseDay(to)
		if err != nil {
			return nil, err
		}
		for d := a; ; d = (d + 1) % 7 {
			seen[d] = true
			if d == b {
				break
			}
		}
	}
	days := make([]int, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	slices.Sort(days)
	return days, nil
}

func parseDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	if d, ok := dayIndex[s]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalid, s)
	}
	return n, nil
}

// FormatDays renders days compactly, collapsing runs: "Mon-Fri", "Mon,Wed".
func FormatDays(days []int) string {
	sorted := slices.Clone(days)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if len(sorted) == 0 {
		return "none"
	}

	var parts []string
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		switch {
		case j-i >= 2:
			parts = append(parts, dayNames[sorted[i]]+"-"+dayNames[sorted[j]])
		case j > i:
			parts = append(parts, dayNames[sorted[i]], dayNames[sorted[j]])
		default:
			parts = append(parts, dayNames[sorted[i]])
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
