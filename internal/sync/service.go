// Package sync reconciles the local schedule with the remote schedule
// service, re-arms the reminder, and pushes unsynced break time to the
// remote usage log.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"breaktime/internal/alarm"
	"breaktime/internal/auth"
	"breaktime/internal/logging"
	"breaktime/internal/remote"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"

	"github.com/google/uuid"
)

// ErrNotSignedIn is returned by operations that need an account.
var ErrNotSignedIn = errors.New("not signed in")

// Store is the persisted state the service reads and replaces.
type Store interface {
	Now() time.Time
	LoadSchedule() (storage.ScheduleRecord, error)
	SaveSchedule(cfg schedule.Config, source string) error
	LoadUsage() (storage.UsageLedger, error)
	SaveUsage(storage.UsageLedger) error
}

// Remote is the schedule service and usage log.
type Remote interface {
	FetchSchedule(ctx context.Context, sess auth.Session) (schedule.Config, error)
	PutSchedule(ctx context.Context, sess auth.Session, cfg schedule.Config) error
	AppendUsage(ctx context.Context, sess auth.Session, rec remote.UsageRecord) error
}

// Alarms arms the reminder timer.
type Alarms interface {
	Arm(at time.Time, repeat time.Duration) error
	Current() (storage.Alarm, bool, error)
}

var _ Alarms = (*alarm.Driver)(nil)

// Report describes what one sync did.
type Report struct {
	SignedIn      bool
	Fetched       bool
	NotFound      bool
	ConfigChanged bool
	Rearmed       bool
	NextFire      time.Time
	UsageSent     int64

	// FetchErr and UsageErr are recovered failures: the previous schedule,
	// timer and cursor were kept.
	FetchErr error
	UsageErr error
}

// Service is the config sync service.
type Service struct {
	store    Store
	remote   Remote
	alarms   Alarms
	sessions auth.Provider
	logger   *slog.Logger
	newID    func() string

	// Serializes syncs so two callers never interleave fetch and re-arm.
	mu gosync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides usage record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a sync service. rem may be nil to run without a remote; the
// local schedule then stays authoritative.
func New(store Store, rem Remote, alarms Alarms, sessions auth.Provider, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		remote:   rem,
		alarms:   alarms,
		sessions: sessions,
		logger:   logging.Component(logger, "sync"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncNow fetches the authoritative schedule, replaces the local one and
// re-arms the reminder, then sends unsynced usage. Remote failures and
// invalid remote schedules are recovered and reported in the Report; the
// returned error is reserved for local store failures, in which case the
// timer was not touched.
func (s *Service) SyncNow(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.Prepare()
	if err != nil {
		return Report{}, err
	}
	s.Fetch(ctx, p)
	return s.Apply(p)
}

// Pull carries one sync from Prepare through Fetch to Apply. Prepare and
// Apply read and write local state; Fetch only talks to the remote and may
// run on any goroutine. Callers run one Pull at a time.
type Pull struct {
	session *auth.Session
	ledger  storage.UsageLedger

	fetched  *schedule.Config
	notFound bool
	fetchErr error

	usage    *remote.UsageRecord
	usageErr error
}

// Prepare reads the session and the usage ledger for a sync.
func (s *Service) Prepare() (*Pull, error) {
	sess, err := s.sessions.Current()
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	p := &Pull{session: sess}
	if sess == nil || s.remote == nil || !sess.Personal() {
		return p, nil
	}
	if p.ledger, err = s.store.LoadUsage(); err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	return p, nil
}

// Fetch downloads the schedule and appends the unsynced usage delta.
// Failures are kept on p for Apply to report.
func (s *Service) Fetch(ctx context.Context, p *Pull) {
	if p.session == nil || s.remote == nil {
		return
	}
	sess := *p.session

	cfg, err := s.remote.FetchSchedule(ctx, sess)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		p.notFound = true
	case err != nil:
		p.fetchErr = err
		s.logger.Warn("schedule fetch failed, keeping previous schedule", "error", err)
	default:
		p.fetched = &cfg
	}

	if !sess.Personal() {
		return
	}
	delta := p.ledger.Unsynced()
	if delta <= 0 {
		return
	}
	rec := remote.UsageRecord{ID: s.newID(), DurationSeconds: delta, CompletedAt: s.store.Now()}
	if err := s.remote.AppendUsage(ctx, sess, rec); err != nil {
		p.usageErr = err
		s.logger.Warn("usage append failed, will retry next sync", "seconds", delta, "error", err)
		return
	}
	p.usage = &rec
}

// Apply advances the usage cursor for what Fetch sent, then replaces the
// local schedule with the fetched one and re-arms. When nothing valid was
// fetched the local schedule stays and is armed if no reminder is. A
// session that changed since Prepare gets no schedule from this sync.
func (s *Service) Apply(p *Pull) (Report, error) {
	var rep Report
	if p.session == nil {
		return rep, nil
	}
	if err := s.commitUsage(p, &rep); err != nil {
		return rep, err
	}

	sess, err := s.sessions.Current()
	if err != nil {
		return rep, fmt.Errorf("read session: %w", err)
	}
	if sess == nil || !sess.SameAccount(*p.session) {
		s.logger.Info("session changed during sync, schedule not applied")
		return rep, nil
	}
	rep.SignedIn = true
	rep.NotFound = p.notFound
	rep.FetchErr = p.fetchErr

	current, err := s.store.LoadSchedule()
	if err != nil {
		return rep, fmt.Errorf("load schedule: %w", err)
	}

	var verr error
	if p.fetched != nil {
		rep.Fetched = true
		verr = p.fetched.Validate()
	}
	switch {
	case p.fetched == nil:
		if p.notFound {
			s.logger.Info("no remote schedule, keeping local", "source", current.Source)
		}
		err = s.ensureArmed(current.Config, &rep)
	case verr != nil:
		rep.FetchErr = verr
		s.logger.Warn("remote schedule rejected", "error", verr)
		err = s.ensureArmed(current.Config, &rep)
	default:
		err = s.apply(*p.fetched, storage.SourceRemote, current, &rep)
	}
	return rep, err
}

// SaveSettings validates cfg, stores it remotely when signed in with a
// remote configured, then replaces the local schedule and re-arms. Errors
// are returned to the caller for display.
func (s *Service) SaveSettings(ctx context.Context, cfg schedule.Config) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.PushSettings(ctx, cfg)
	if err != nil {
		return Report{SignedIn: p.signedIn}, err
	}
	return s.ApplySettings(p)
}

// Push is a validated settings change waiting to be applied locally.
type Push struct {
	cfg      schedule.Config
	source   string
	signedIn bool
}

// PushSettings validates cfg and stores it remotely when signed in with a
// remote configured. Local state is not read or written.
func (s *Service) PushSettings(ctx context.Context, cfg schedule.Config) (Push, error) {
	p := Push{cfg: cfg.Clone(), source: storage.SourceLocal}
	if err := cfg.Validate(); err != nil {
		return p, err
	}

	sess, err := s.sessions.Current()
	if err != nil {
		return p, fmt.Errorf("read session: %w", err)
	}
	p.signedIn = sess != nil
	if sess != nil && s.remote != nil {
		if err := s.remote.PutSchedule(ctx, *sess, cfg); err != nil {
			return p, fmt.Errorf("save schedule remotely: %w", err)
		}
		p.source = storage.SourceRemote
	}
	return p, nil
}

// ApplySettings replaces the local schedule with a pushed change and re-arms.
func (s *Service) ApplySettings(p Push) (Report, error) {
	rep := Report{SignedIn: p.signedIn}
	current, err := s.store.LoadSchedule()
	if err != nil {
		return rep, fmt.Errorf("load schedule: %w", err)
	}
	if err := s.apply(p.cfg, p.source, current, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// EnsureArmed arms the stored schedule if no reminder with its interval is armed.
func (s *Service) EnsureArmed() (Report, error) {
	var rep Report
	current, err := s.store.LoadSchedule()
	if err != nil {
		return rep, fmt.Errorf("load schedule: %w", err)
	}
	err = s.ensureArmed(current.Config, &rep)
	return rep, err
}

// apply replaces the schedule and re-arms, unless nothing would change.
func (s *Service) apply(cfg schedule.Config, source string, current storage.ScheduleRecord, rep *Report) error {
	if current.Config.Equal(cfg) {
		return s.ensureArmed(cfg, rep)
	}

	if err := s.store.SaveSchedule(cfg, source); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	rep.ConfigChanged = true
	s.logger.Info("schedule replaced", "source", source,
		"interval", cfg.IntervalMinutes, "start", cfg.StartHour, "end", cfg.EndHour, "days", cfg.DayNames())
	return s.arm(cfg, rep)
}

// ensureArmed arms the reminder if no reminder with the schedule's interval is armed.
func (s *Service) ensureArmed(cfg schedule.Config, rep *Report) error {
	a, ok, err := s.alarms.Current()
	if err != nil {
		return fmt.Errorf("read alarm: %w", err)
	}
	if ok && a.Repeat() == cfg.Interval() {
		rep.NextFire = a.ScheduledAt
		return nil
	}
	return s.arm(cfg, rep)
}

func (s *Service) arm(cfg schedule.Config, rep *Report) error {
	next := schedule.NextFire(cfg, s.store.Now())
	if err := s.alarms.Arm(next, cfg.Interval()); err != nil {
		return fmt.Errorf("arm reminder: %w", err)
	}
	rep.Rearmed = true
	rep.NextFire = next
	return nil
}

// commitUsage advances the usage cursor past the delta Fetch sent. A failed
// append leaves the cursor so the same delta is retried; a lost
// acknowledgement sends the delta twice.
func (s *Service) commitUsage(p *Pull, rep *Report) error {
	rep.UsageErr = p.usageErr
	if p.usage == nil {
		return nil
	}

	// Re-read so break time recorded since Prepare is kept.
	latest, err := s.store.LoadUsage()
	if err != nil {
		return fmt.Errorf("reload usage: %w", err)
	}
	at := p.usage.CompletedAt
	latest.LastSyncedTotalSeconds = p.ledger.LastSyncedTotalSeconds + p.usage.DurationSeconds
	latest.LastSyncedAt = &at
	if err := s.store.SaveUsage(latest); err != nil {
		return fmt.Errorf("advance usage cursor: %w", err)
	}
	rep.UsageSent = p.usage.DurationSeconds
	s.logger.Info("usage synced", "seconds", p.usage.DurationSeconds, "record", p.usage.ID)
	return nil
}
