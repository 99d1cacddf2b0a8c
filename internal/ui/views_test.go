package ui

import (
	"errors"
	"testing"
	"time"

	"breaktime/internal/schedule"
	"breaktime/internal/storage"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{42 * time.Minute, "42m"},
		{65 * time.Minute, "1h05m"},
		{-2 * time.Minute, "2m"},
	}
	for _, tc := range tests {
		if got := formatDuration(tc.in); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClockFormat(t *testing.T) {
	if got := clockFormat(4*time.Minute + 5*time.Second); got != "04:05" {
		t.Errorf("clockFormat = %q, want 04:05", got)
	}
	if got := clockFormat(-90 * time.Second); got != "01:30" {
		t.Errorf("clockFormat(negative) = %q, want 01:30", got)
	}
}

func TestFormatUntil(t *testing.T) {
	if got := formatUntil(testNow.Add(-time.Minute), testNow); !contains(got, "(due)") {
		t.Errorf("past time = %q, want due", got)
	}
	if got := formatUntil(testNow.Add(90*time.Minute), testNow); !contains(got, "(in 1h30m)") {
		t.Errorf("future time = %q, want (in 1h30m)", got)
	}
}

func TestTrialText(t *testing.T) {
	for days, want := range map[int]string{0: "expired", 1: "1 day left", 6: "6 days left"} {
		if got := trialText(days); got != want {
			t.Errorf("trialText(%d) = %q, want %q", days, got, want)
		}
	}
}

func TestBreakProgress(t *testing.T) {
	start := testNow
	length := 10 * time.Minute

	elapsed, remaining, pct := breakProgress(start, length, start.Add(5*time.Minute))
	if elapsed != 5*time.Minute || remaining != 5*time.Minute || pct != 0.5 {
		t.Errorf("halfway = %v %v %v", elapsed, remaining, pct)
	}

	_, remaining, pct = breakProgress(start, length, start.Add(12*time.Minute))
	if remaining != -2*time.Minute || pct != 1 {
		t.Errorf("overtime = %v %v, want -2m and 1", remaining, pct)
	}

	elapsed, _, _ = breakProgress(start, length, start.Add(-time.Minute))
	if elapsed != 0 {
		t.Errorf("clock skew elapsed = %v, want 0", elapsed)
	}
}

func TestBreakView_Overtime(t *testing.T) {
	setupTest(t)
	v := NewBreakView(createTestStyles())
	v.SetSize(80)

	st := storage.BreakState{Active: true, StartedAt: testNow, Trigger: storage.TriggerManual}
	out := v.View(st, 5*time.Minute, testNow.Add(6*time.Minute))
	for _, want := range []string{"ON A BREAK", "started by you", "Done! 06:00 away from the screen"} {
		if !contains(out, want) {
			t.Errorf("view should contain %q\n%s", want, out)
		}
	}
}

func TestSettingsForm_Config(t *testing.T) {
	f := NewSettingsForm(createTestStyles(), DefaultFormKeyMap())
	f.Load(schedule.Config{
		IntervalMinutes:      45,
		StartHour:            22,
		EndHour:              6,
		WorkDays:             []int{0, 6},
		BreakDurationMinutes: 10,
	})

	cfg, err := f.Config()
	if err != nil {
		t.Fatalf("Config() error = %v", err)
	}
	if cfg.IntervalMinutes != 45 || cfg.StartHour != 22 || cfg.EndHour != 6 || cfg.BreakDurationMinutes != 10 {
		t.Errorf("Config() = %+v", cfg)
	}
	if len(cfg.WorkDays) != 2 || cfg.WorkDays[0] != 0 || cfg.WorkDays[1] != 6 {
		t.Errorf("WorkDays = %v, want [0 6]", cfg.WorkDays)
	}
}

func TestSettingsForm_Invalid(t *testing.T) {
	f := NewSettingsForm(createTestStyles(), DefaultFormKeyMap())
	f.Load(schedule.Default())

	f.inputs[fieldDays].SetValue("funday")
	if _, err := f.Config(); !errors.Is(err, schedule.ErrInvalid) {
		t.Errorf("bad days error = %v, want ErrInvalid", err)
	}

	f.inputs[fieldDays].SetValue("mon-fri")
	f.inputs[fieldStart].SetValue("9")
	f.inputs[fieldEnd].SetValue("9")
	if _, err := f.Config(); !errors.Is(err, schedule.ErrInvalid) {
		t.Errorf("empty window error = %v, want ErrInvalid", err)
	}
}

func TestSettingsForm_FocusCycles(t *testing.T) {
	f := NewSettingsForm(createTestStyles(), DefaultFormKeyMap())
	f.Load(schedule.Default())

	if f.focus != fieldInterval {
		t.Fatalf("initial focus = %v, want interval", f.focus)
	}
	for range fieldCount {
		if res, _ := f.Update(keyPress("tab")); res != formContinue {
			t.Fatalf("tab result = %v, want continue", res)
		}
	}
	if f.focus != fieldInterval {
		t.Errorf("focus after a full cycle = %v, want interval", f.focus)
	}

	f.SetSaving(true)
	if res, _ := f.Update(keyPress("enter")); res != formContinue {
		t.Error("keys should be ignored while saving")
	}
	f.SetError(errors.New("boom"))
	if f.Saving() {
		t.Error("an error should stop saving")
	}
	if res, _ := f.Update(keyPress("enter")); res != formSubmit {
		t.Error("enter should submit")
	}
	if res, _ := f.Update(keyPress("esc")); res != formCancel {
		t.Error("esc should cancel")
	}
}
