package ui

import (
	"fmt"
	"strconv"
	"strings"

	"breaktime/internal/schedule"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type field int

const (
	fieldInterval field = iota
	fieldStart
	fieldEnd
	fieldDays
	fieldDuration
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldInterval: "Every (min)",
	fieldStart:    "Start hour",
	fieldEnd:      "End hour",
	fieldDays:     "Work days",
	fieldDuration: "Break (min)",
}

// formResult tells the app what the form wants after a key press.
type formResult int

const (
	formContinue formResult = iota
	formSubmit
	formCancel
)

// SettingsForm edits the schedule.
type SettingsForm struct {
	inputs [fieldCount]textinput.Model
	focus  field
	err    string
	saving bool
	width  int
	keys   FormKeyMap
	styles *Styles
}

// NewSettingsForm creates an empty form.
func NewSettingsForm(styles *Styles, keys FormKeyMap) *SettingsForm {
	f := &SettingsForm{keys: keys, styles: styles}
	placeholders := [fieldCount]string{"60", "9", "17", "mon-fri", "5"}
	limits := [fieldCount]int{4, 2, 2, 40, 3}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.CharLimit = limits[i]
		in.Width = 20
		f.inputs[i] = in
	}
	return f
}

// Load fills the form from cfg and focuses the first field.
func (f *SettingsForm) Load(cfg schedule.Config) tea.Cmd {
	f.inputs[fieldInterval].SetValue(strconv.Itoa(cfg.IntervalMinutes))
	f.inputs[fieldStart].SetValue(strconv.Itoa(cfg.StartHour))
	f.inputs[fieldEnd].SetValue(strconv.Itoa(cfg.EndHour))
	f.inputs[fieldDays].SetValue(strings.ToLower(schedule.FormatDays(cfg.WorkDays)))
	f.inputs[fieldDuration].SetValue(strconv.Itoa(cfg.BreakDurationMinutes))
	f.err = ""
	f.saving = false
	return f.setFocus(fieldInterval)
}

// SetSize sets the form width.
func (f *SettingsForm) SetSize(width int) {
	f.width = width
}

// SetError shows err under the fields. Saving stops.
func (f *SettingsForm) SetError(err error) {
	f.saving = false
	if err == nil {
		f.err = ""
		return
	}
	f.err = err.Error()
}

// SetSaving marks a save in flight.
func (f *SettingsForm) SetSaving(saving bool) {
	f.saving = saving
}

// Saving reports whether a save is in flight.
func (f *SettingsForm) Saving() bool {
	return f.saving
}

// Config parses and validates the fields.
func (f *SettingsForm) Config() (schedule.Config, error) {
	var cfg schedule.Config
	ints := []struct {
		field field
		dst   *int
	}{
		{fieldInterval, &cfg.IntervalMinutes},
		{fieldStart, &cfg.StartHour},
		{fieldEnd, &cfg.EndHour},
		{fieldDuration, &cfg.BreakDurationMinutes},
	}
	for _, in := range ints {
		raw := strings.TrimSpace(f.inputs[in.field].Value())
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("%s: %q is not a number", strings.ToLower(fieldLabels[in.field]), raw)
		}
		*in.dst = n
	}

	days, err := schedule.ParseDays(f.inputs[fieldDays].Value())
	if err != nil {
		return cfg, err
	}
	cfg.WorkDays = days

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Update handles a message while the form is open.
func (f *SettingsForm) Update(msg tea.Msg) (formResult, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		if f.saving {
			return formContinue, nil
		}
		switch {
		case key.Matches(km, f.keys.Cancel):
			return formCancel, nil
		case key.Matches(km, f.keys.Confirm):
			return formSubmit, nil
		case key.Matches(km, f.keys.Next):
			return formContinue, f.setFocus((f.focus + 1) % fieldCount)
		case key.Matches(km, f.keys.Prev):
			return formContinue, f.setFocus((f.focus + fieldCount - 1) % fieldCount)
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return formContinue, cmd
}

func (f *SettingsForm) setFocus(next field) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = next
	return f.inputs[f.focus].Focus()
}

// View renders the form as a bordered overlay.
func (f *SettingsForm) View() string {
	width := 50
	if f.width > 0 {
		width = min(50, max(24, f.width-4))
	}

	var b strings.Builder
	b.WriteString(f.styles.PaneTitleStyle.Render("SETTINGS"))
	b.WriteString("\n")
	for i := range f.inputs {
		label := f.styles.FieldLabelStyle.Render(fieldLabels[i])
		if field(i) == f.focus {
			label = f.styles.FieldFocusStyle.Render(fieldLabels[i])
		}
		b.WriteString(label + f.inputs[i].View() + "\n")
	}
	b.WriteString("\n")

	hint := lipgloss.NewStyle().Foreground(f.styles.ColorTextMuted).Italic(true)
	b.WriteString(hint.Render("Days: mon-fri, mon,wed,fri or 1-5. Hours 0-23."))
	b.WriteString("\n")

	switch {
	case f.saving:
		b.WriteString(f.styles.StatusStyle.Render("Saving..."))
	case f.err != "":
		b.WriteString(f.styles.ErrorStyle.Render(f.err))
	}

	return f.styles.PaneFocusedStyle.Width(width).Render(b.String())
}
