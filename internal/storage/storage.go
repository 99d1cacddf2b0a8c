// Package storage is the local key-value store for engine state. Each key is
// one small JSON document in the data directory, written atomically with a
// backup of the previous version so a crash never leaves a half-written record.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"breaktime/internal/fsutil"
	"breaktime/internal/schedule"
)

var (
	// ErrNotFound is returned by Get when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrUnavailable wraps failures to read or write the data directory.
	ErrUnavailable = errors.New("local store unavailable")

	// ErrCorrupt accompanies ErrNotFound when a record and its backup were
	// both unreadable and the record was moved aside.
	ErrCorrupt = errors.New("record corrupt")
)

// Record keys.
const (
	KeySchedule = "schedule"
	KeyTrial    = "trial"
	KeyBreak    = "break"
	KeyAlarms   = "alarms"
	KeyUsage    = "usage"
)

const (
	dataDirPerm  os.FileMode = 0700
	dataFilePerm os.FileMode = 0600
)

var validKey = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Storage handles all state file I/O.
type Storage struct {
	dataDir string
	now     func() time.Time // injectable clock for deterministic tests
}

// New opens the store in dataDir, creating it and seeding first-install
// records (default schedule, trial start) when they do not exist yet.
func New(dataDir string) (*Storage, error) {
	return NewWithClock(dataDir, time.Now)
}

// NewWithClock is New with an explicit clock.
func NewWithClock(dataDir string, now func() time.Time) (*Storage, error) {
	if err := os.MkdirAll(dataDir, dataDirPerm); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", ErrUnavailable, err)
	}
	if now == nil {
		now = time.Now
	}
	s := &Storage{dataDir: dataDir, now: now}

	if err := s.seed(); err != nil {
		return nil, err
	}
	return s, nil
}

// Now returns the current time according to the storage clock.
func (s *Storage) Now() time.Time {
	return s.now()
}

// GetDataDir returns the path to the data directory.
func (s *Storage) GetDataDir() string {
	return s.dataDir
}

// Path returns the file backing key.
func (s *Storage) Path(key string) string {
	return filepath.Join(s.dataDir, key+".json")
}

func (s *Storage) seed() error {
	if _, err := os.Stat(s.Path(KeySchedule)); errors.Is(err, os.ErrNotExist) {
		if err := s.SaveSchedule(schedule.Default(), SourceDefault); err != nil {
			return err
		}
	}
	_, err := s.EnsureTrial()
	return err
}

// Get decodes the record stored under key into v.
func (s *Storage) Get(key string, v any) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	path := s.Path(key)
	recovered, err := fsutil.ReadJSON(path, v)
	switch {
	case err == nil && recovered:
		// Rewrite the main file from the backup we just parsed, dropping the
		// corrupt copy first so it does not replace the good backup.
		_ = os.Remove(path)
		return s.Set(key, v)
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	// Unrecoverable content: set it aside and behave as if it were absent.
	corrupt := fmt.Sprintf("%s.corrupt.%s", path, s.now().Format("20060102-150405"))
	if renameErr := os.Rename(path, corrupt); renameErr != nil {
		return fmt.Errorf("%w: quarantine %s: %v", ErrUnavailable, key, renameErr)
	}
	return fmt.Errorf("%w: %w: %v (moved to %s)", ErrNotFound, ErrCorrupt, err, filepath.Base(corrupt))
}

// quarantined reports whether a corrupt copy of key was ever moved aside.
func (s *Storage) quarantined(key string) bool {
	matches, _ := filepath.Glob(s.Path(key) + ".corrupt.*")
	return len(matches) > 0
}

// Set replaces the record stored under key.
func (s *Storage) Set(key string, v any) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := fsutil.WriteJSON(s.Path(key), v, dataFilePerm); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Remove deletes the record stored under key. Removing a missing key is not an error.
func (s *Storage) Remove(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	for _, p := range []string{s.Path(key), s.Path(key) + fsutil.BackupSuffix} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
		}
	}
	return nil
}

// ============================================================================
// Schedule
// ============================================================================

// LoadSchedule returns the active schedule, or the default one if none is stored.
func (s *Storage) LoadSchedule() (ScheduleRecord, error) {
	var rec ScheduleRecord
	err := s.Get(KeySchedule, &rec)
	if errors.Is(err, ErrNotFound) {
		return ScheduleRecord{Config: schedule.Default(), Source: SourceDefault}, nil
	}
	return rec, err
}

// SaveSchedule replaces the active schedule.
func (s *Storage) SaveSchedule(cfg schedule.Config, source string) error {
	return s.Set(KeySchedule, ScheduleRecord{
		Config:    cfg.Clone(),
		Source:    source,
		UpdatedAt: s.now(),
	})
}

// ============================================================================
// Trial
// ============================================================================

// LoadTrial returns the stored trial record.
func (s *Storage) LoadTrial() (schedule.Trial, error) {
	var trial schedule.Trial
	err := s.Get(KeyTrial, &trial)
	return trial, err
}

// EnsureTrial returns the trial record, creating it with the current time
// if this is the first install. An existing InstalledAt is never overwritten.
// A trial record that was lost to corruption is recreated already expired.
func (s *Storage) EnsureTrial() (schedule.Trial, error) {
	trial, err := s.LoadTrial()
	if err == nil && !trial.InstalledAt.IsZero() {
		return trial, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return trial, err
	}
	installedAt := s.now()
	if errors.Is(err, ErrCorrupt) || s.quarantined(KeyTrial) {
		installedAt = installedAt.Add(-schedule.TrialDays * 24 * time.Hour)
	}
	trial = schedule.Trial{InstalledAt: installedAt}
	if err := s.Set(KeyTrial, trial); err != nil {
		return trial, err
	}
	return trial, nil
}

// ============================================================================
// Break session
// ============================================================================

// LoadBreak returns the break flag; absent means idle.
func (s *Storage) LoadBreak() (BreakState, error) {
	var st BreakState
	err := s.Get(KeyBreak, &st)
	if errors.Is(err, ErrNotFound) {
		return BreakState{}, nil
	}
	return st, err
}

// SaveBreak replaces the break flag.
func (s *Storage) SaveBreak(st BreakState) error {
	st.UpdatedAt = s.now()
	return s.Set(KeyBreak, st)
}

// ============================================================================
// Alarms
// ============================================================================

// LoadAlarms returns the armed alarms keyed by name.
func (s *Storage) LoadAlarms() (map[string]Alarm, error) {
	var table AlarmTable
	err := s.Get(KeyAlarms, &table)
	if errors.Is(err, ErrNotFound) {
		return map[string]Alarm{}, nil
	}
	if err != nil {
		return nil, err
	}
	if table.Alarms == nil {
		table.Alarms = map[string]Alarm{}
	}
	return table.Alarms, nil
}

// SaveAlarms replaces the armed alarm table.
func (s *Storage) SaveAlarms(alarms map[string]Alarm) error {
	if alarms == nil {
		alarms = map[string]Alarm{}
	}
	return s.Set(KeyAlarms, AlarmTable{Alarms: alarms})
}

// ============================================================================
// Usage
// ============================================================================

// LoadUsage returns the usage ledger.
func (s *Storage) LoadUsage() (UsageLedger, error) {
	var u UsageLedger
	err := s.Get(KeyUsage, &u)
	if errors.Is(err, ErrNotFound) {
		return UsageLedger{}, nil
	}
	return u, err
}

// SaveUsage replaces the usage ledger.
func (s *Storage) SaveUsage(u UsageLedger) error {
	return s.Set(KeyUsage, u)
}

// AddUsage adds seconds of completed break time to the local total.
func (s *Storage) AddUsage(seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	u, err := s.LoadUsage()
	if err != nil {
		return err
	}
	u.LocalTotalSeconds += seconds
	return s.SaveUsage(u)
}
