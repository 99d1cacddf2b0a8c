package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInSignOut(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil)

	s, err := p.Current()
	require.NoError(t, err)
	assert.Nil(t, s, "fresh install should be signed out")

	require.NoError(t, p.SignIn(Session{AccountID: "acct-1", Email: "a@example.com", Token: "tok"}))
	s, err = p.Current()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "acct-1", s.AccountID)
	assert.True(t, s.Personal())
	assert.False(t, s.SignedInAt.IsZero())

	require.NoError(t, p.SignOut())
	s, err = p.Current()
	require.NoError(t, err)
	assert.Nil(t, s)

	// Signing out twice is fine.
	require.NoError(t, p.SignOut())
}

func TestSignIn_RequiresAccount(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil)
	assert.Error(t, p.SignIn(Session{Email: "nobody@example.com"}))
}

func TestOrganizationSession(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil)
	require.NoError(t, p.SignIn(Session{AccountID: "acct-2", OrganizationID: "org-9"}))
	s, err := p.Current()
	require.NoError(t, err)
	assert.False(t, s.Personal())
}

func nextChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no session change observed")
		return Change{}
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	p := NewFileProvider(dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	// Another process signs in.
	writer := NewFileProvider(dir, nil)
	require.NoError(t, writer.SignIn(Session{AccountID: "acct-1"}))
	c := nextChange(t, changes)
	require.NotNil(t, c.Session)
	assert.Equal(t, "acct-1", c.Session.AccountID)

	require.NoError(t, writer.SignOut())
	c = nextChange(t, changes)
	assert.Nil(t, c.Session)

	cancel()
	for range changes {
	}
}
