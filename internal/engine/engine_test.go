package engine

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"breaktime/internal/alarm"
	"breaktime/internal/auth"
	"breaktime/internal/breaks"
	"breaktime/internal/config"
	"breaktime/internal/gate"
	"breaktime/internal/logging"
	"breaktime/internal/metrics"
	"breaktime/internal/notify"
	"breaktime/internal/remote"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"
	cfgsync "breaktime/internal/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday mid-morning; the default schedule is 9 to 17, Monday to Friday.
var t0 = time.Date(2024, 6, 4, 10, 30, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type pending struct {
	at     time.Time
	repeat time.Duration
}

type fakeHost struct {
	mu      sync.Mutex
	pending map[string]pending
}

func (h *fakeHost) Schedule(name string, at time.Time, repeat time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[name] = pending{at: at, repeat: repeat}
}

func (h *fakeHost) Cancel(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, name)
}

func (h *fakeHost) get(name string) (pending, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[name]
	return p, ok
}

type fakePrompter struct {
	prompts   chan notify.Prompt
	responses chan notify.Response
}

func (p *fakePrompter) Prompt(_ context.Context, pr notify.Prompt) (uint32, error) {
	p.prompts <- pr
	return uint32(len(p.prompts)), nil
}
func (p *fakePrompter) Responses() <-chan notify.Response { return p.responses }
func (p *fakePrompter) IsSupported() bool                 { return true }
func (p *fakePrompter) Close() error                      { return nil }

type fakeSessions struct {
	mu      sync.Mutex
	current *auth.Session
	changes chan auth.Change
}

func (s *fakeSessions) Current() (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *fakeSessions) Watch(context.Context) (<-chan auth.Change, error) {
	return s.changes, nil
}

func (s *fakeSessions) set(sess *auth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
}

// blockingRemote holds every schedule fetch until released.
type blockingRemote struct {
	cfg      schedule.Config
	fetching chan struct{}
	release  chan struct{}
}

func (r *blockingRemote) FetchSchedule(ctx context.Context, _ auth.Session) (schedule.Config, error) {
	select {
	case r.fetching <- struct{}{}:
	default:
	}
	select {
	case <-r.release:
		return r.cfg, nil
	case <-ctx.Done():
		return schedule.Config{}, ctx.Err()
	}
}

func (r *blockingRemote) PutSchedule(context.Context, auth.Session, schedule.Config) error {
	return nil
}

func (r *blockingRemote) AppendUsage(context.Context, auth.Session, remote.UsageRecord) error {
	return nil
}

type harness struct {
	e        *Engine
	store    *storage.Storage
	host     *fakeHost
	fired    chan alarm.Fired
	prompter *fakePrompter
	sessions *fakeSessions
	clock    *testClock
	metrics  *metrics.Recorder
	done     chan error
}

var personal = &auth.Session{AccountID: "acct-1", Email: "dev@example.com", Token: "tok"}

func start(t *testing.T, sess *auth.Session, prepare func(*storage.Storage)) *harness {
	t.Helper()
	return startWith(t, sess, nil, prepare)
}

func startWith(t *testing.T, sess *auth.Session, rem cfgsync.Remote, prepare func(*storage.Storage)) *harness {
	t.Helper()

	clock := &testClock{t: t0}
	store, err := storage.NewWithClock(t.TempDir(), clock.Now)
	require.NoError(t, err)
	if prepare != nil {
		prepare(store)
	}

	logger := logging.Nop()
	host := &fakeHost{pending: map[string]pending{}}
	driver := alarm.NewDriver(host, store, logger)
	sessions := &fakeSessions{current: sess, changes: make(chan auth.Change)}
	rec, err := metrics.New()
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Sync.Schedule = ""

	h := &harness{
		store:    store,
		host:     host,
		fired:    make(chan alarm.Fired),
		prompter: &fakePrompter{prompts: make(chan notify.Prompt, 8), responses: make(chan notify.Response)},
		sessions: sessions,
		clock:    clock,
		metrics:  rec,
		done:     make(chan error, 1),
	}
	h.e = New(Options{
		Config:   cfg,
		Store:    store,
		Alarms:   driver,
		Fired:    h.fired,
		Gate:     gate.New(sessions, store),
		Sync:     cfgsync.New(store, rem, driver, sessions, logger),
		Breaks:   breaks.New(store, logger),
		Prompter: h.prompter,
		Sessions: sessions,
		Metrics:  rec,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})

	// The first request is served once startup has finished.
	_, err = h.e.Status(context.Background())
	require.NoError(t, err)
	return h
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.e.Status(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) noPrompt(t *testing.T) {
	t.Helper()
	select {
	case p := <-h.prompter.prompts:
		t.Fatalf("unexpected prompt %+v", p)
	default:
	}
}

func (h *harness) nextPrompt(t *testing.T) notify.Prompt {
	t.Helper()
	select {
	case p := <-h.prompter.prompts:
		return p
	case <-time.After(time.Second):
		t.Fatal("no prompt shown")
		return notify.Prompt{}
	}
}

func TestStartup_ArmsReminderWhenSignedIn(t *testing.T) {
	h := start(t, personal, nil)

	p, ok := h.host.get(alarm.ReminderName)
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), p.at)
	assert.Equal(t, time.Hour, p.repeat)

	st := h.status(t)
	assert.True(t, st.SignedIn)
	assert.True(t, st.Reminding)
	require.NotNil(t, st.NextReminder)
	assert.Equal(t, t0.Add(time.Hour), *st.NextReminder)
	assert.Equal(t, schedule.TrialDays, st.TrialDaysRemaining)
}

func TestStartup_SignedOutDisarms(t *testing.T) {
	h := start(t, nil, func(s *storage.Storage) {
		require.NoError(t, s.SaveAlarms(map[string]storage.Alarm{
			alarm.ReminderName: {Name: alarm.ReminderName, ScheduledAt: t0, RepeatEveryMinutes: 60},
		}))
	})

	alarms, err := h.store.LoadAlarms()
	require.NoError(t, err)
	assert.Empty(t, alarms)

	st := h.status(t)
	assert.False(t, st.SignedIn)
	assert.Nil(t, st.NextReminder)
	assert.Equal(t, string(gate.ReasonNoSession), st.Reason)
}

func TestFired_ShowsPrompt(t *testing.T) {
	h := start(t, personal, nil)

	h.fired <- alarm.Fired{Name: alarm.ReminderName, At: t0.Add(time.Hour)}
	p := h.nextPrompt(t)

	assert.Equal(t, alarm.ReminderName, p.Tag)
	assert.Equal(t, "Time for a break", p.Title)
	assert.Contains(t, p.Message, "5 minutes")
	assert.Equal(t, []notify.Action{notify.ActionAccept, notify.ActionSnooze}, p.Actions)
}

func TestFired_GateSuppresses(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{"after hours", time.Date(2024, 6, 4, 18, 30, 0, 0, time.UTC)},
		{"saturday", time.Date(2024, 6, 8, 14, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := start(t, personal, nil)
			h.clock.Set(tt.now)

			h.fired <- alarm.Fired{Name: alarm.ReminderName, At: tt.now}
			h.status(t)
			h.noPrompt(t)

			// The repeating timer stays armed for the next window.
			_, ok := h.host.get(alarm.ReminderName)
			assert.True(t, ok)
		})
	}
}

func TestFired_DuringBreakSuppressed(t *testing.T) {
	h := start(t, personal, nil)
	_, err := h.e.StartBreak(context.Background())
	require.NoError(t, err)

	h.fired <- alarm.Fired{Name: alarm.ReminderName, At: t0.Add(time.Hour)}
	h.status(t)
	h.noPrompt(t)
}

func TestFired_StaleFiringDropped(t *testing.T) {
	h := start(t, personal, nil)

	// Off the armed reminder's cadence, and a snooze that was never armed.
	h.fired <- alarm.Fired{Name: alarm.ReminderName, At: t0.Add(30 * time.Minute)}
	h.fired <- alarm.Fired{Name: alarm.SnoozeName, At: t0}
	h.status(t)
	h.noPrompt(t)

	// Re-arming replaces the cadence; a firing queued by the old timer is dropped.
	_, err := h.e.SaveSettings(context.Background(), schedule.Config{IntervalMinutes: 25, StartHour: 9, EndHour: 17, WorkDays: []int{1, 2, 3, 4, 5}, BreakDurationMinutes: 5})
	require.NoError(t, err)
	h.fired <- alarm.Fired{Name: alarm.ReminderName, At: t0.Add(time.Hour)}
	h.status(t)
	h.noPrompt(t)
}

func TestStartup_SetsBreakGauge(t *testing.T) {
	h := start(t, personal, func(s *storage.Storage) {
		require.NoError(t, s.SaveBreak(storage.BreakState{Active: true, StartedAt: t0.Add(-time.Minute), Trigger: storage.TriggerManual}))
	})

	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "breaktime_break_active 1")
}

func TestResponse_AcceptStartsBreak(t *testing.T) {
	tests := []struct {
		tag  string
		want storage.BreakTrigger
	}{
		{alarm.ReminderName, storage.TriggerReminder},
		{alarm.SnoozeName, storage.TriggerSnooze},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			h := start(t, personal, nil)
			changed := make(chan bool, 1)
			h.e.OnBreakStateChanged(func(active bool) { changed <- active })

			h.prompter.responses <- notify.Response{ID: 1, Tag: tt.tag, Action: notify.ActionAccept}

			st := h.status(t)
			assert.True(t, st.Break.Active)
			assert.Equal(t, tt.want, st.Break.Trigger)
			assert.Equal(t, t0, st.Break.StartedAt)
			assert.True(t, <-changed)
		})
	}
}

func TestResponse_SnoozeArmsOneOffTimer(t *testing.T) {
	h := start(t, personal, nil)

	h.prompter.responses <- notify.Response{ID: 1, Tag: alarm.ReminderName, Action: notify.ActionSnooze}

	st := h.status(t)
	require.NotNil(t, st.SnoozedUntil)
	assert.Equal(t, t0.Add(5*time.Minute), *st.SnoozedUntil)

	snooze, ok := h.host.get(alarm.SnoozeName)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), snooze.repeat)

	reminder, ok := h.host.get(alarm.ReminderName)
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), reminder.at)
	assert.False(t, st.Break.Active)
}

func TestResponse_DismissedDoesNothing(t *testing.T) {
	h := start(t, personal, nil)

	h.prompter.responses <- notify.Response{ID: 1, Tag: alarm.ReminderName, Action: notify.ActionDismissed}

	st := h.status(t)
	assert.False(t, st.Break.Active)
	assert.Nil(t, st.SnoozedUntil)
}

func TestSessionChange(t *testing.T) {
	h := start(t, personal, nil)

	h.sessions.set(nil)
	h.sessions.changes <- auth.Change{}
	h.status(t)
	_, ok := h.host.get(alarm.ReminderName)
	assert.False(t, ok, "reminder should be disarmed after sign-out")

	h.clock.Set(t0.Add(10 * time.Minute))
	h.sessions.set(personal)
	h.sessions.changes <- auth.Change{Session: personal}
	h.status(t)
	p, ok := h.host.get(alarm.ReminderName)
	require.True(t, ok, "reminder should be re-armed after sign-in")
	assert.Equal(t, t0.Add(70*time.Minute), p.at)
}

func TestBreakRequests(t *testing.T) {
	h := start(t, personal, nil)
	ctx := context.Background()

	st, err := h.e.StartBreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.TriggerManual, st.Trigger)

	_, err = h.e.StartBreak(ctx)
	assert.ErrorIs(t, err, breaks.ErrInvalidTransition)

	h.clock.Set(t0.Add(5 * time.Minute))
	elapsed, err := h.e.FinishBreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, elapsed)

	usage, err := h.store.LoadUsage()
	require.NoError(t, err)
	assert.Equal(t, int64(300), usage.LocalTotalSeconds)

	_, err = h.e.FinishBreak(ctx)
	assert.ErrorIs(t, err, breaks.ErrInvalidTransition)

	_, err = h.e.StartBreak(ctx)
	require.NoError(t, err)
	require.NoError(t, h.e.SkipBreak(ctx))
	usage, err = h.store.LoadUsage()
	require.NoError(t, err)
	assert.Equal(t, int64(300), usage.LocalTotalSeconds)
}

func TestSaveSettings(t *testing.T) {
	h := start(t, personal, nil)
	ctx := context.Background()

	_, err := h.e.SaveSettings(ctx, schedule.Config{IntervalMinutes: 0, StartHour: 9, EndHour: 17, WorkDays: []int{1}, BreakDurationMinutes: 5})
	assert.ErrorIs(t, err, schedule.ErrInvalid)

	cfg := schedule.Config{IntervalMinutes: 30, StartHour: 9, EndHour: 17, WorkDays: []int{1, 2, 3, 4, 5}, BreakDurationMinutes: 10}
	rep, err := h.e.SaveSettings(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, rep.Rearmed)

	p, ok := h.host.get(alarm.ReminderName)
	require.True(t, ok)
	assert.Equal(t, t0.Add(30*time.Minute), p.at)
	assert.Equal(t, 30*time.Minute, p.repeat)

	st := h.status(t)
	assert.True(t, cfg.Equal(st.Schedule))
	assert.Equal(t, storage.SourceLocal, st.ScheduleSource)
}

func TestSyncNow_Offline(t *testing.T) {
	h := start(t, personal, nil)

	rep, err := h.e.SyncNow(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.SignedIn)
	assert.False(t, rep.Rearmed, "already armed with the same schedule")
}

func TestRequestsAfterStop(t *testing.T) {
	clock := &testClock{t: t0}
	store, err := storage.NewWithClock(t.TempDir(), clock.Now)
	require.NoError(t, err)
	logger := logging.Nop()
	driver := alarm.NewDriver(&fakeHost{pending: map[string]pending{}}, store, logger)
	sessions := &fakeSessions{changes: make(chan auth.Change)}
	cfg := config.Default()
	cfg.Sync.Schedule = ""

	e := New(Options{
		Config:   cfg,
		Store:    store,
		Alarms:   driver,
		Gate:     gate.New(sessions, store),
		Sync:     cfgsync.New(store, nil, driver, sessions, logger),
		Breaks:   breaks.New(store, logger),
		Sessions: sessions,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))

	_, err = e.Status(context.Background())
	assert.True(t, errors.Is(err, ErrStopped))
}

func TestRun_InvalidSyncSchedule(t *testing.T) {
	clock := &testClock{t: t0}
	store, err := storage.NewWithClock(t.TempDir(), clock.Now)
	require.NoError(t, err)
	logger := logging.Nop()
	driver := alarm.NewDriver(&fakeHost{pending: map[string]pending{}}, store, logger)
	sessions := &fakeSessions{changes: make(chan auth.Change)}
	cfg := config.Default()
	cfg.Sync.Schedule = "every now and then"

	e := New(Options{
		Config:   cfg,
		Store:    store,
		Alarms:   driver,
		Gate:     gate.New(sessions, store),
		Sync:     cfgsync.New(store, nil, driver, sessions, logger),
		Breaks:   breaks.New(store, logger),
		Sessions: sessions,
		Logger:   logger,
	})
	err = e.Run(context.Background())
	assert.ErrorContains(t, err, "every now and then")
}

func TestSync_LoopServesEventsDuringRemoteFetch(t *testing.T) {
	remoteCfg := schedule.Config{IntervalMinutes: 45, StartHour: 8, EndHour: 16, WorkDays: []int{1, 2, 3, 4, 5}, BreakDurationMinutes: 10}
	rem := &blockingRemote{cfg: remoteCfg, fetching: make(chan struct{}, 1), release: make(chan struct{})}
	h := startWith(t, personal, rem, nil)

	select {
	case <-rem.fetching:
	case <-time.After(time.Second):
		t.Fatal("startup sync never reached the remote")
	}

	select {
	case h.fired <- alarm.Fired{Name: alarm.ReminderName, At: t0.Add(time.Hour)}:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timer firing not received during the fetch")
	}
	h.nextPrompt(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := h.e.StartBreak(ctx)
	require.NoError(t, err, "request blocked behind the remote fetch")

	close(rem.release)
	assert.Eventually(t, func() bool {
		st, err := h.e.Status(context.Background())
		return err == nil && remoteCfg.Equal(st.Schedule)
	}, 2*time.Second, 10*time.Millisecond)

	p, ok := h.host.get(alarm.ReminderName)
	require.True(t, ok)
	assert.Equal(t, 45*time.Minute, p.repeat)
}
