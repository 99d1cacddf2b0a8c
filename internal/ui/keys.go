// Package ui provides the breaktime terminal panel.
// This file defines key bindings using the Bubble Tea key package for
// type-safe key matching, help text generation, and user overrides.
package ui

import (
	"strings"

	"breaktime/internal/config"

	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// Helpers
// =============================================================================

// parseKeys splits a comma-separated string into individual keys.
// If the input is empty, returns the default keys.
func parseKeys(customKeys string, defaultKeys ...string) []string {
	if customKeys == "" {
		return defaultKeys
	}
	keys := strings.Split(customKeys, ",")
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		trimmed := strings.TrimSpace(k)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// =============================================================================
// Global Keys (dashboard and break views)
// =============================================================================

// GlobalKeyMap defines keys available outside the settings form.
type GlobalKeyMap struct {
	Quit     key.Binding
	Help     key.Binding
	Sync     key.Binding
	Settings key.Binding
}

// DefaultGlobalKeyMap returns the default global key bindings.
func DefaultGlobalKeyMap() GlobalKeyMap {
	return NewGlobalKeyMap(&config.KeysConfig{})
}

// NewGlobalKeyMap creates global key bindings from config.
func NewGlobalKeyMap(cfg *config.KeysConfig) GlobalKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return GlobalKeyMap{
		Quit: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Quit, "q", "ctrl+c")...),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Help, "?")...),
			key.WithHelp("?", "help"),
		),
		Sync: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Sync, "r")...),
			key.WithHelp("r", "sync"),
		),
		Settings: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Settings, "e")...),
			key.WithHelp("e", "settings"),
		),
	}
}

// =============================================================================
// Break Keys
// =============================================================================

// BreakKeyMap defines keys that drive the break session.
type BreakKeyMap struct {
	Start  key.Binding
	Finish key.Binding
	Skip   key.Binding
}

// DefaultBreakKeyMap returns the default break key bindings.
func DefaultBreakKeyMap() BreakKeyMap {
	return NewBreakKeyMap(&config.KeysConfig{})
}

// NewBreakKeyMap creates break key bindings from config.
func NewBreakKeyMap(cfg *config.KeysConfig) BreakKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return BreakKeyMap{
		Start: key.NewBinding(
			key.WithKeys(parseKeys(cfg.StartBreak, "b", "enter")...),
			key.WithHelp("b", "start break"),
		),
		Finish: key.NewBinding(
			key.WithKeys(parseKeys(cfg.FinishBreak, "f", "enter")...),
			key.WithHelp("f", "finish"),
		),
		Skip: key.NewBinding(
			key.WithKeys(parseKeys(cfg.SkipBreak, "s")...),
			key.WithHelp("s", "skip"),
		),
	}
}

// =============================================================================
// Settings Form Keys
// =============================================================================

// FormKeyMap defines keys for the settings form.
type FormKeyMap struct {
	Next key.Binding
	Prev key.Binding
	InputKeyMap
}

// DefaultFormKeyMap returns the default form key bindings.
func DefaultFormKeyMap() FormKeyMap {
	return NewFormKeyMap(&config.KeysConfig{})
}

// NewFormKeyMap creates form key bindings from config.
func NewFormKeyMap(cfg *config.KeysConfig) FormKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return FormKeyMap{
		Next: key.NewBinding(
			key.WithKeys(parseKeys(cfg.NextField, "tab", "down")...),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys(parseKeys(cfg.PrevField, "shift+tab", "up")...),
			key.WithHelp("shift+tab", "prev field"),
		),
		InputKeyMap: NewInputKeyMap(cfg),
	}
}

// ShortHelp returns the short help for the form (implements help.KeyMap).
func (k FormKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Confirm, k.Cancel}
}

// FullHelp returns the full help for the form (implements help.KeyMap).
func (k FormKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Confirm, k.Cancel}}
}

// =============================================================================
// Input Keys (shared by text input fields and confirmations)
// =============================================================================

// InputKeyMap defines keys for text input mode.
type InputKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultInputKeyMap returns the default input key bindings.
func DefaultInputKeyMap() InputKeyMap {
	return NewInputKeyMap(&config.KeysConfig{})
}

// NewInputKeyMap creates input key bindings from config.
func NewInputKeyMap(cfg *config.KeysConfig) InputKeyMap {
	if cfg == nil {
		cfg = &config.KeysConfig{}
	}
	return InputKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Confirm, "enter")...),
			key.WithHelp("enter", "save"),
		),
		Cancel: key.NewBinding(
			key.WithKeys(parseKeys(cfg.Cancel, "esc")...),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// =============================================================================
// View Key Maps (feed the bubbles help bar)
// =============================================================================

// dashboardKeys is the help bar while idle.
type dashboardKeys struct {
	global GlobalKeyMap
	breaks BreakKeyMap
}

func (k dashboardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.breaks.Start, k.global.Settings, k.global.Sync, k.global.Help, k.global.Quit}
}

func (k dashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.breaks.Start},
		{k.global.Settings, k.global.Sync},
		{k.global.Help, k.global.Quit},
	}
}

// breakKeys is the help bar during a break.
type breakKeys struct {
	global GlobalKeyMap
	breaks BreakKeyMap
}

func (k breakKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.breaks.Finish, k.breaks.Skip, k.global.Help, k.global.Quit}
}

func (k breakKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.breaks.Finish, k.breaks.Skip},
		{k.global.Help, k.global.Quit},
	}
}

// =============================================================================
// Help Overlay Keys
// =============================================================================

// HelpKeyMap defines keys for the help overlay.
type HelpKeyMap struct {
	Close key.Binding
}

// DefaultHelpKeyMap returns the default help overlay key bindings.
func DefaultHelpKeyMap() HelpKeyMap {
	return HelpKeyMap{
		Close: key.NewBinding(
			key.WithKeys("?", "esc", "q", "enter", " "),
			key.WithHelp("any key", "close"),
		),
	}
}
