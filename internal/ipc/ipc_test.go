package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"breaktime/internal/breaks"
	"breaktime/internal/engine"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"
	cfgsync "breaktime/internal/sync"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	startErr error
	elapsed  time.Duration
	saved    []schedule.Config
	report   cfgsync.Report
	status   engine.Status
}

func (f *fakeBackend) StartBreak(context.Context) (storage.BreakState, error) {
	return storage.BreakState{Active: f.startErr == nil}, f.startErr
}

func (f *fakeBackend) FinishBreak(context.Context) (time.Duration, error) { return f.elapsed, nil }
func (f *fakeBackend) SkipBreak(context.Context) error                     { return nil }

func (f *fakeBackend) SaveSettings(_ context.Context, cfg schedule.Config) (cfgsync.Report, error) {
	if err := cfg.Validate(); err != nil {
		return cfgsync.Report{}, err
	}
	f.saved = append(f.saved, cfg)
	return f.report, nil
}

func (f *fakeBackend) SyncNow(context.Context) (cfgsync.Report, error) { return f.report, nil }
func (f *fakeBackend) Status(context.Context) (engine.Status, error)   { return f.status, nil }

func newDaemon(b Backend) *daemon {
	return &daemon{ctx: context.Background(), backend: b}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantName string
		sentinel error
	}{
		{"invalid transition", fmt.Errorf("%w: break already active", breaks.ErrInvalidTransition), ErrorInvalidTransition, breaks.ErrInvalidTransition},
		{"invalid schedule", fmt.Errorf("%w: interval", schedule.ErrInvalid), ErrorInvalidSchedule, schedule.ErrInvalid},
		{"not signed in", cfgsync.ErrNotSignedIn, ErrorNotSignedIn, cfgsync.ErrNotSignedIn},
		{"other", errors.New("disk full"), ErrorFailed, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbusErr := toDBusError(tt.err)
			require.NotNil(t, dbusErr)
			assert.Equal(t, tt.wantName, dbusErr.Name)

			// Replies arrive as values.
			back := fromDBusError(*dbusErr)
			assert.Equal(t, tt.err.Error(), back.Error())
			if tt.sentinel != nil {
				assert.ErrorIs(t, back, tt.sentinel)
			}
		})
	}
	assert.Nil(t, toDBusError(nil))
}

func TestFromDBusError_PassesThroughOtherErrors(t *testing.T) {
	err := errors.New("connection refused")
	assert.Same(t, err, fromDBusError(err))
}

func TestDaemon_RequestManualBreakStart(t *testing.T) {
	d := newDaemon(&fakeBackend{})
	assert.Nil(t, d.RequestManualBreakStart())

	d = newDaemon(&fakeBackend{startErr: fmt.Errorf("%w: break already active", breaks.ErrInvalidTransition)})
	err := d.RequestManualBreakStart()
	require.NotNil(t, err)
	assert.Equal(t, ErrorInvalidTransition, err.Name)
}

func TestDaemon_RequestFinishBreak(t *testing.T) {
	d := newDaemon(&fakeBackend{elapsed: 4*time.Minute + 30*time.Second})
	seconds, err := d.RequestFinishBreak()
	require.Nil(t, err)
	assert.Equal(t, int64(270), seconds)
}

func TestDaemon_SaveSettings(t *testing.T) {
	next := time.Date(2024, 6, 4, 11, 0, 0, 0, time.UTC)
	b := &fakeBackend{report: cfgsync.Report{SignedIn: true, ConfigChanged: true, Rearmed: true, NextFire: next}}
	d := newDaemon(b)

	cfg := schedule.Config{IntervalMinutes: 30, StartHour: 9, EndHour: 17, WorkDays: []int{1, 2, 3}, BreakDurationMinutes: 5}
	payload, err := json.Marshal(cfg)
	require.NoError(t, err)

	out, dErr := d.SaveSettings(string(payload))
	require.Nil(t, dErr)
	var rep Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.Rearmed)
	assert.True(t, rep.NextFire.Equal(next))
	require.Len(t, b.saved, 1)
	assert.True(t, cfg.Equal(b.saved[0]))

	_, dErr = d.SaveSettings("{not json")
	require.NotNil(t, dErr)
	assert.Equal(t, ErrorInvalidSchedule, dErr.Name)

	_, dErr = d.SaveSettings(`{"intervalMinutes":0,"startHour":9,"endHour":17,"workDays":[1],"breakDurationMinutes":5}`)
	require.NotNil(t, dErr)
	assert.Equal(t, ErrorInvalidSchedule, dErr.Name)
}

func TestDaemon_SyncNowReportsRecoveredErrors(t *testing.T) {
	d := newDaemon(&fakeBackend{report: cfgsync.Report{SignedIn: true, FetchErr: errors.New("503")}})
	out, err := d.SyncNow()
	require.Nil(t, err)

	var rep Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "503", rep.FetchError)
	assert.Empty(t, rep.UsageError)
}

func TestDaemon_Status(t *testing.T) {
	now := time.Date(2024, 6, 4, 10, 30, 0, 0, time.UTC)
	d := newDaemon(&fakeBackend{status: engine.Status{
		Now:      now,
		SignedIn: true,
		Schedule: schedule.Default(),
		Break:    storage.BreakState{Active: true, StartedAt: now, Trigger: storage.TriggerManual},
	}})
	out, err := d.Status()
	require.Nil(t, err)

	var st engine.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Break.Active)
	assert.Equal(t, storage.TriggerManual, st.Break.Trigger)
	assert.True(t, schedule.Default().Equal(st.Schedule))
}

func TestParseBreakSignal(t *testing.T) {
	name := InterfaceName + "." + SignalBreakStateChanged

	active, ok := parseBreakSignal(&dbus.Signal{Name: name, Body: []any{true}})
	assert.True(t, ok)
	assert.True(t, active)

	_, ok = parseBreakSignal(&dbus.Signal{Name: "org.other.Signal", Body: []any{true}})
	assert.False(t, ok)

	_, ok = parseBreakSignal(&dbus.Signal{Name: name, Body: []any{"yes"}})
	assert.False(t, ok)

	_, ok = parseBreakSignal(nil)
	assert.False(t, ok)
}

// TestSessionBusRoundTrip needs a session bus and a free service name.
func TestSessionBusRoundTrip(t *testing.T) {
	if os.Getenv("RUN_DBUS_TESTS") == "" {
		t.Skip("set RUN_DBUS_TESTS=1 to run against the session bus")
	}
	conn, err := dbus.ConnectSessionBus()
	require.NoError(t, err)
	defer conn.Close()

	b := &fakeBackend{elapsed: time.Minute}
	srv := NewServer(context.Background(), conn, b, nil)
	require.NoError(t, srv.Start())
	defer srv.Close()

	client, err := Dial()
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	states, err := client.WatchBreakState(ctx)
	require.NoError(t, err)

	require.NoError(t, client.StartBreak(ctx))
	elapsed, err := client.FinishBreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, elapsed)

	srv.BreakStateChanged(true)
	select {
	case active := <-states:
		assert.True(t, active)
	case <-ctx.Done():
		t.Fatal("no BreakStateChanged signal")
	}
}
