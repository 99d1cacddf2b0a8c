package breaks

import (
	"errors"
	"testing"
	"time"

	"breaktime/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newController(t *testing.T) (*Controller, *storage.Storage, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)}
	store, err := storage.NewWithClock(t.TempDir(), clk.now)
	require.NoError(t, err)
	return New(store, nil), store, clk
}

func TestStartFinish(t *testing.T) {
	c, store, clk := newController(t)

	var events []bool
	c.OnChange(func(active bool) { events = append(events, active) })

	st, err := c.Start(storage.TriggerReminder)
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, storage.TriggerReminder, st.Trigger)

	clk.t = clk.t.Add(5 * time.Minute)
	elapsed, err := c.Finish()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, elapsed)

	st, err = c.State()
	require.NoError(t, err)
	assert.False(t, st.Active)

	u, err := store.LoadUsage()
	require.NoError(t, err)
	assert.Equal(t, int64(300), u.LocalTotalSeconds)
	assert.Equal(t, []bool{true, false}, events)
}

func TestSkipRecordsNoUsage(t *testing.T) {
	c, store, clk := newController(t)
	_, err := c.Start(storage.TriggerManual)
	require.NoError(t, err)
	clk.t = clk.t.Add(2 * time.Minute)

	require.NoError(t, c.Skip())
	u, _ := store.LoadUsage()
	assert.Zero(t, u.LocalTotalSeconds)
}

func TestInvalidTransitions(t *testing.T) {
	c, _, _ := newController(t)

	_, err := c.Finish()
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.True(t, errors.Is(c.Skip(), ErrInvalidTransition))

	_, err = c.Start(storage.TriggerSnooze)
	require.NoError(t, err)
	_, err = c.Start(storage.TriggerManual)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestStateSurvivesRestart(t *testing.T) {
	c, store, _ := newController(t)
	_, err := c.Start(storage.TriggerManual)
	require.NoError(t, err)

	// A new controller over the same store resumes the break.
	reopened := New(store, nil)
	st, err := reopened.State()
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, storage.TriggerManual, st.Trigger)

	_, err = reopened.Finish()
	require.NoError(t, err)
}
