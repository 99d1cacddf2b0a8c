// Package engine runs the break-reminder daemon loop. Timer firings, prompt
// answers, session changes, periodic syncs and UI requests are all handled
// on one goroutine, and every handler reads the state it needs from storage.
// Remote calls run on other goroutines and hand their results back to the
// loop, so a slow network never holds up a reminder or a request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"breaktime/internal/alarm"
	"breaktime/internal/auth"
	"breaktime/internal/breaks"
	"breaktime/internal/config"
	"breaktime/internal/gate"
	"breaktime/internal/logging"
	"breaktime/internal/metrics"
	"breaktime/internal/notify"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"
	cfgsync "breaktime/internal/sync"

	"github.com/robfig/cron/v3"
)

// ErrStopped is returned by requests made after the loop has exited.
var ErrStopped = errors.New("engine stopped")

// Suppression reasons added to the gate's.
const (
	reasonBreakActive = "break_active"
	reasonStale       = "stale"
)

// Sessions is the session provider the engine follows.
type Sessions interface {
	auth.Provider
	Watch(ctx context.Context) (<-chan auth.Change, error)
}

// Options wires an Engine.
type Options struct {
	Config   *config.Config
	Store    *storage.Storage
	Alarms   *alarm.Driver
	Fired    <-chan alarm.Fired
	Gate     *gate.Gate
	Sync     *cfgsync.Service
	Breaks   *breaks.Controller
	Prompter notify.Prompter
	Sessions Sessions
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

type request struct {
	run  func() error
	done chan error
}

// Engine is the reminder daemon.
type Engine struct {
	cfg      *config.Config
	store    *storage.Storage
	alarms   *alarm.Driver
	fired    <-chan alarm.Fired
	gate     *gate.Gate
	sync     *cfgsync.Service
	breaks   *breaks.Controller
	prompter notify.Prompter
	sessions Sessions
	metrics  *metrics.Recorder
	logger   *slog.Logger

	requests chan request
	stopped  chan struct{}

	// syncMu serializes syncs and settings saves across goroutines.
	syncMu  sync.Mutex
	syncing sync.WaitGroup
}

// New creates an engine. Run starts it.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	prompter := opts.Prompter
	if prompter == nil {
		prompter = notify.NewNoop()
	}
	return &Engine{
		cfg:      cfg,
		store:    opts.Store,
		alarms:   opts.Alarms,
		fired:    opts.Fired,
		gate:     opts.Gate,
		sync:     opts.Sync,
		breaks:   opts.Breaks,
		prompter: prompter,
		sessions: opts.Sessions,
		metrics:  opts.Metrics,
		logger:   logging.Component(opts.Logger, "engine"),
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
}

// OnBreakStateChanged registers fn for break transitions.
func (e *Engine) OnBreakStateChanged(fn func(active bool)) {
	e.breaks.OnChange(fn)
}

// Run handles events until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer e.syncing.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(e.stopped)

	if err := e.startup(ctx); err != nil {
		return err
	}

	changes, err := e.sessions.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}

	c, err := e.startCron(ctx)
	if err != nil {
		return err
	}
	if c != nil {
		defer func() { <-c.Stop().Done() }()
	}

	fired := e.fired
	responses := e.prompter.Responses()
	e.logger.Info("engine running")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return nil
		case f, ok := <-fired:
			if !ok {
				fired = nil
				continue
			}
			e.handleFired(ctx, f)
		case r, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			e.handleResponse(r)
		case ch, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.handleSessionChange(ctx, ch)
		case req := <-e.requests:
			req.done <- req.run()
		}
	}
}

func (e *Engine) startup(ctx context.Context) error {
	trial, err := e.store.EnsureTrial()
	if err != nil {
		return fmt.Errorf("ensure trial: %w", err)
	}
	now := e.store.Now()
	e.logger.Info("trial", "installed_at", trial.InstalledAt.Format(time.RFC3339), "days_remaining", trial.DaysRemaining(now))

	st, err := e.breaks.State()
	if err != nil {
		return fmt.Errorf("read break state: %w", err)
	}
	e.metrics.BreakActive(st.Active)

	sess, err := e.sessions.Current()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if sess == nil {
		if err := e.alarms.DisarmAll(); err != nil {
			return err
		}
		return nil
	}

	n, err := e.alarms.Restore(now)
	if err != nil {
		return err
	}
	e.logger.Info("alarms restored", "count", n)
	if _, err := e.sync.EnsureArmed(); err != nil {
		return err
	}

	if e.cfg.Sync.OnStartup {
		e.goSync(ctx, "startup")
	}
	return nil
}

func (e *Engine) startCron(ctx context.Context) (*cron.Cron, error) {
	spec := e.cfg.Sync.Schedule
	if spec == "" {
		return nil, nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(spec, func() {
		_, _ = e.runSync(ctx, "periodic")
	}); err != nil {
		return nil, fmt.Errorf("sync schedule %q: %w", spec, err)
	}
	c.Start()
	e.logger.Info("periodic sync scheduled", "spec", spec)
	return c, nil
}

func (e *Engine) handleFired(ctx context.Context, f alarm.Fired) {
	e.metrics.Fired(f.Name)
	current, err := e.alarms.Acknowledge(f)
	switch {
	case err != nil:
		e.logger.Warn("acknowledge alarm", "name", f.Name, "error", err)
	case !current:
		e.metrics.Suppressed(reasonStale)
		e.logger.Debug("stale firing dropped", "timer", f.Name, "at", f.At.Format(time.RFC3339))
		return
	}

	now := e.store.Now()
	d := e.gate.Evaluate(now)
	if !d.Allow {
		e.metrics.Suppressed(string(d.Reason))
		e.logger.Debug("reminder suppressed", "timer", f.Name, "reason", d.Reason)
		return
	}

	st, err := e.breaks.State()
	if err != nil {
		e.metrics.Suppressed(string(gate.ReasonStateUnavailable))
		e.logger.Warn("reminder suppressed", "timer", f.Name, "error", err)
		return
	}
	if st.Active {
		e.metrics.Suppressed(reasonBreakActive)
		e.logger.Debug("reminder suppressed", "timer", f.Name, "reason", reasonBreakActive)
		return
	}

	rec, err := e.store.LoadSchedule()
	if err != nil {
		e.metrics.Suppressed(string(gate.ReasonStateUnavailable))
		e.logger.Warn("reminder suppressed", "timer", f.Name, "error", err)
		return
	}

	p := notify.Prompt{
		Title:   e.cfg.Reminders.Title,
		Message: reminderMessage(rec.Config),
		Actions: []notify.Action{notify.ActionAccept, notify.ActionSnooze},
		Sound:   e.cfg.Reminders.Sound,
		Tag:     f.Name,
	}
	id, err := e.prompter.Prompt(ctx, p)
	if err != nil {
		e.logger.Warn("show reminder", "timer", f.Name, "error", err)
		return
	}
	e.metrics.Shown()
	e.logger.Info("reminder shown", "timer", f.Name, "id", id)
}

func reminderMessage(cfg schedule.Config) string {
	if cfg.BreakDurationMinutes == 1 {
		return "Step away from the screen for a minute."
	}
	return fmt.Sprintf("Step away from the screen for %d minutes.", cfg.BreakDurationMinutes)
}

func (e *Engine) handleResponse(r notify.Response) {
	e.metrics.Response(string(r.Action))
	switch r.Action {
	case notify.ActionAccept:
		trigger := storage.TriggerReminder
		if r.Tag == alarm.SnoozeName {
			trigger = storage.TriggerSnooze
		}
		if _, err := e.startBreak(trigger); err != nil {
			if errors.Is(err, breaks.ErrInvalidTransition) {
				e.logger.Info("reminder accepted during a break", "id", r.ID)
				return
			}
			e.logger.Warn("start break", "error", err)
		}
	case notify.ActionSnooze:
		at := e.store.Now().Add(e.cfg.SnoozeDelay())
		if err := e.alarms.ArmSnooze(at); err != nil {
			e.logger.Warn("snooze", "error", err)
		}
	default:
		e.logger.Debug("reminder dismissed", "id", r.ID)
	}
}

func (e *Engine) handleSessionChange(ctx context.Context, ch auth.Change) {
	if ch.Session == nil {
		e.logger.Info("signed out, disarming reminders")
		if err := e.alarms.DisarmAll(); err != nil {
			e.logger.Warn("disarm", "error", err)
		}
		return
	}
	e.logger.Info("signed in", "account", ch.Session.AccountID, "organization", ch.Session.OrganizationID)
	if _, err := e.sync.EnsureArmed(); err != nil {
		e.logger.Warn("arm local schedule", "error", err)
	}
	e.goSync(ctx, "sign_in")
}

// goSync starts a sync from the loop without waiting for it.
func (e *Engine) goSync(ctx context.Context, trigger string) {
	e.syncing.Add(1)
	go func() {
		defer e.syncing.Done()
		_, _ = e.runSync(ctx, trigger)
	}()
}

// runSync performs one sync and records its outcome. It must not be called
// on the loop goroutine: local state is read and replaced through the loop,
// and the remote calls happen on the caller's goroutine in between.
func (e *Engine) runSync(ctx context.Context, trigger string) (cfgsync.Report, error) {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	var (
		rep  cfgsync.Report
		pull *cfgsync.Pull
	)
	err := e.do(ctx, func() error {
		var err error
		pull, err = e.sync.Prepare()
		return err
	})
	if err == nil {
		e.sync.Fetch(ctx, pull)
		err = e.do(ctx, func() error {
			var err error
			rep, err = e.sync.Apply(pull)
			return err
		})
	}
	if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
		e.logger.Debug("sync abandoned", "trigger", trigger, "error", err)
		return rep, err
	}

	result := syncResult(rep, err)
	e.metrics.Sync(result, rep.UsageSent)

	log := e.logger.With("trigger", trigger, "result", result)
	switch {
	case err != nil:
		log.Warn("sync aborted", "error", err)
	case rep.FetchErr != nil || rep.UsageErr != nil:
		log.Warn("sync degraded", "fetch_error", rep.FetchErr, "usage_error", rep.UsageErr)
	default:
		log.Info("sync done", "changed", rep.ConfigChanged, "rearmed", rep.Rearmed, "usage_sent", rep.UsageSent)
	}
	return rep, err
}

func syncResult(rep cfgsync.Report, err error) string {
	switch {
	case err != nil:
		return "error"
	case !rep.SignedIn:
		return "signed_out"
	case rep.FetchErr != nil:
		return "fetch_error"
	case rep.UsageErr != nil:
		return "usage_error"
	case rep.NotFound:
		return "not_found"
	default:
		return "ok"
	}
}

func (e *Engine) startBreak(trigger storage.BreakTrigger) (storage.BreakState, error) {
	st, err := e.breaks.Start(trigger)
	if err != nil {
		return st, err
	}
	e.metrics.Break("started", true)
	return st, nil
}

// alive returns ErrStopped once the loop has exited.
func (e *Engine) alive() error {
	select {
	case <-e.stopped:
		return ErrStopped
	default:
		return nil
	}
}

// do runs fn on the loop goroutine and waits for it.
func (e *Engine) do(ctx context.Context, fn func() error) error {
	req := request{run: fn, done: make(chan error, 1)}
	select {
	case e.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
