// Package config handles configuration loading and defaults for breaktime.
// Configuration is loaded from XDG-compliant paths (typically ~/.config/breaktime/config.yaml).
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"breaktime/internal/fsutil"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// DataDir overrides the default data directory (~/.breaktime)
	DataDir string `yaml:"data_dir,omitempty"`

	// Remote configures the account/company schedule service
	Remote RemoteConfig `yaml:"remote,omitempty"`

	// Sync configures schedule and usage synchronization
	Sync SyncConfig `yaml:"sync,omitempty"`

	// Reminders configures the desktop prompt
	Reminders ReminderConfig `yaml:"reminders,omitempty"`

	// Log configures daemon logging
	Log LogConfig `yaml:"log,omitempty"`

	// Metrics configures the Prometheus listener
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// Theme customizes the visual appearance
	Theme ThemeConfig `yaml:"theme,omitempty"`

	// Keys customizes keyboard shortcuts
	Keys KeysConfig `yaml:"keys,omitempty"`

	// UX customizes user experience settings
	UX UXConfig `yaml:"ux,omitempty"`
}

// RemoteConfig points at the remote schedule store.
type RemoteConfig struct {
	// BaseURL of the schedule service; empty runs fully offline
	BaseURL string `yaml:"base_url,omitempty"`

	// Timeout per HTTP request
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RetryAttempts bounds retries of transient failures
	RetryAttempts int `yaml:"retry_attempts,omitempty"`
}

// SyncConfig defines synchronization settings.
type SyncConfig struct {
	// Schedule is the cron spec for periodic sync (e.g. "@every 1h", "0 * * * *")
	Schedule string `yaml:"schedule,omitempty"`

	// OnStartup syncs as soon as the daemon starts with a session
	OnStartup bool `yaml:"on_startup,omitempty"`
}

// ReminderConfig defines the break prompt.
type ReminderConfig struct {
	// SnoozeMinutes is the delay of the one-off snooze reminder
	SnoozeMinutes int `yaml:"snooze_minutes,omitempty"`

	// Title of the desktop notification
	Title string `yaml:"title,omitempty"`

	// Sound plays the platform notification sound
	Sound bool `yaml:"sound,omitempty"`
}

// LogConfig defines daemon logging.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level,omitempty"`

	// Format is text or json
	Format string `yaml:"format,omitempty"`

	// File appends logs to a file instead of stderr
	File string `yaml:"file,omitempty"`
}

// MetricsConfig defines the metrics endpoint.
type MetricsConfig struct {
	// ListenAddr serves /metrics when set (e.g. "127.0.0.1:9464")
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// ThemeConfig defines color and style settings.
type ThemeConfig struct {
	// Primary color for focused elements (hex, e.g., "#FF5733")
	Primary string `yaml:"primary,omitempty"`

	// Accent color for highlights (hex)
	Accent string `yaml:"accent,omitempty"`

	// Muted color for secondary text (hex)
	Muted string `yaml:"muted,omitempty"`

	// Background color (hex)
	Background string `yaml:"background,omitempty"`

	// Text color (hex)
	Text string `yaml:"text,omitempty"`
}

// KeysConfig defines customizable keyboard shortcuts.
// Each field accepts a comma-separated list of key bindings.
// Examples: "q,ctrl+c", "tab", "j,down"
type KeysConfig struct {
	// Global keys
	Quit     string `yaml:"quit,omitempty"`     // default: "q,ctrl+c"
	Help     string `yaml:"help,omitempty"`     // default: "?"
	Sync     string `yaml:"sync,omitempty"`     // default: "r"
	Settings string `yaml:"settings,omitempty"` // default: "e"

	// Break keys
	StartBreak  string `yaml:"start_break,omitempty"`  // default: "b,enter"
	FinishBreak string `yaml:"finish_break,omitempty"` // default: "f,enter"
	SkipBreak   string `yaml:"skip_break,omitempty"`   // default: "s"

	// Settings form keys
	NextField string `yaml:"next_field,omitempty"` // default: "tab,down"
	PrevField string `yaml:"prev_field,omitempty"` // default: "shift+tab,up"

	// Input keys
	Confirm string `yaml:"confirm,omitempty"` // default: "enter"
	Cancel  string `yaml:"cancel,omitempty"`  // default: "esc"
}

// UXConfig defines user experience settings.
type UXConfig struct {
	// ConfirmSkip asks before skipping an active break
	ConfirmSkip bool `yaml:"confirm_skip,omitempty"` // default: true

	// NarrowLayoutThreshold is the terminal width below which to use a compact layout
	NarrowLayoutThreshold int `yaml:"narrow_layout_threshold,omitempty"` // default: 60
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Remote: RemoteConfig{
			BaseURL:       "",
			Timeout:       10 * time.Second,
			RetryAttempts: 3,
		},
		Sync: SyncConfig{
			Schedule:  "@every 1h",
			OnStartup: true,
		},
		Reminders: ReminderConfig{
			SnoozeMinutes: 5,
			Title:         "Time for a break",
			Sound:         true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Theme: ThemeConfig{
			Primary:    "#0EA5E9", // Sky
			Accent:     "#10B981", // Emerald
			Muted:      "#6B7280", // Gray
			Background: "",        // Terminal default
			Text:       "",        // Terminal default
		},
		Keys: KeysConfig{
			// Defaults are empty strings, which means use built-in defaults
		},
		UX: UXConfig{
			ConfirmSkip:           true,
			NarrowLayoutThreshold: 60,
		},
	}
}

// defaultDataDir returns the default data directory path.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".breaktime"
	}
	return filepath.Join(home, ".breaktime")
}

// configDir returns the configuration directory path (XDG compliant).
func configDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "breaktime")
	}

	// Fall back to ~/.config/breaktime
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "breaktime")
}

// Path returns the path to the config file.
func Path() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads configuration from disk, merging with defaults.
// If no config file exists, returns default configuration.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads configuration from path, merging with defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, err
	}

	// Parse YAML and merge with defaults
	var userCfg Config
	if err := yaml.Unmarshal(data, &userCfg); err != nil {
		return nil, err
	}

	var doc yaml.Node
	_ = yaml.Unmarshal(data, &doc) // best-effort; fall back to conservative merge if this fails

	// Merge user config with defaults (presence-aware for booleans)
	cfg.mergeFromYAML(&userCfg, &doc)

	return cfg, nil
}

// mergeNonEmpty applies non-empty values from other to c.
// It intentionally does not touch booleans (those require presence-aware merging).
func (c *Config) mergeNonEmpty(other *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setString(&c.DataDir, other.DataDir)

	setString(&c.Remote.BaseURL, other.Remote.BaseURL)
	if other.Remote.Timeout > 0 {
		c.Remote.Timeout = other.Remote.Timeout
	}
	if other.Remote.RetryAttempts > 0 {
		c.Remote.RetryAttempts = other.Remote.RetryAttempts
	}

	setString(&c.Sync.Schedule, other.Sync.Schedule)

	if other.Reminders.SnoozeMinutes > 0 {
		c.Reminders.SnoozeMinutes = other.Reminders.SnoozeMinutes
	}
	setString(&c.Reminders.Title, other.Reminders.Title)

	setString(&c.Log.Level, other.Log.Level)
	setString(&c.Log.Format, other.Log.Format)
	setString(&c.Log.File, other.Log.File)

	setString(&c.Metrics.ListenAddr, other.Metrics.ListenAddr)

	// Theme merging
	setString(&c.Theme.Primary, other.Theme.Primary)
	setString(&c.Theme.Accent, other.Theme.Accent)
	setString(&c.Theme.Muted, other.Theme.Muted)
	setString(&c.Theme.Background, other.Theme.Background)
	setString(&c.Theme.Text, other.Theme.Text)

	// Keys merging
	setString(&c.Keys.Quit, other.Keys.Quit)
	setString(&c.Keys.Help, other.Keys.Help)
	setString(&c.Keys.Sync, other.Keys.Sync)
	setString(&c.Keys.Settings, other.Keys.Settings)
	setString(&c.Keys.StartBreak, other.Keys.StartBreak)
	setString(&c.Keys.FinishBreak, other.Keys.FinishBreak)
	setString(&c.Keys.SkipBreak, other.Keys.SkipBreak)
	setString(&c.Keys.NextField, other.Keys.NextField)
	setString(&c.Keys.PrevField, other.Keys.PrevField)
	setString(&c.Keys.Confirm, other.Keys.Confirm)
	setString(&c.Keys.Cancel, other.Keys.Cancel)

	if other.UX.NarrowLayoutThreshold > 0 {
		c.UX.NarrowLayoutThreshold = other.UX.NarrowLayoutThreshold
	}
}

func (c *Config) mergeFromYAML(other *Config, doc *yaml.Node) {
	c.mergeNonEmpty(other)

	// Fall back to conservative behavior if we can't inspect presence.
	if doc == nil || len(doc.Content) == 0 {
		return
	}

	// Booleans and clearable strings only when present in YAML.
	if yamlHasPath(doc, "sync", "on_startup") {
		c.Sync.OnStartup = other.Sync.OnStartup
	}
	if yamlHasPath(doc, "reminders", "sound") {
		c.Reminders.Sound = other.Reminders.Sound
	}
	if yamlHasPath(doc, "ux", "confirm_skip") {
		c.UX.ConfirmSkip = other.UX.ConfirmSkip
	}
	if yamlHasPath(doc, "remote", "base_url") {
		c.Remote.BaseURL = other.Remote.BaseURL
	}
	if yamlHasPath(doc, "metrics", "listen_addr") {
		c.Metrics.ListenAddr = other.Metrics.ListenAddr
	}
}

func yamlHasPath(doc *yaml.Node, path ...string) bool {
	if doc == nil || len(path) == 0 {
		return false
	}

	// Document -> root mapping.
	n := doc
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	for _, key := range path {
		if n == nil || n.Kind != yaml.MappingNode {
			return false
		}
		var next *yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			v := n.Content[i+1]
			if k.Kind == yaml.ScalarNode && k.Value == key {
				next = v
				break
			}
		}
		if next == nil {
			return false
		}
		n = next
	}
	return true
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

// SaveFile writes the configuration to path.
func (c *Config) SaveFile(path string) error {
	if path == "" {
		return nil
	}

	// Create config directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(path, data, 0600)
}

// SnoozeDelay returns the snooze delay as a duration.
func (c *Config) SnoozeDelay() time.Duration {
	if c.Reminders.SnoozeMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Reminders.SnoozeMinutes) * time.Minute
}

// GetDataDir returns the resolved data directory path.
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		// Expand ~ if present
		if c.DataDir == "~" {
			home, err := os.UserHomeDir()
			if err == nil {
				return home
			}
			return c.DataDir
		}

		if strings.HasPrefix(c.DataDir, "~/") || strings.HasPrefix(c.DataDir, `~\`) {
			home, err := os.UserHomeDir()
			if err == nil {
				trimmed := strings.TrimPrefix(c.DataDir, "~/")
				trimmed = strings.TrimPrefix(trimmed, `~\`)
				trimmed = strings.TrimPrefix(trimmed, `\`)
				return filepath.Join(home, trimmed)
			}
		}
		return c.DataDir
	}
	return defaultDataDir()
}
