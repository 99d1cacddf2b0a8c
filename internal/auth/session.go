// Package auth provides the signed-in account session. The session lives in
// a small file in the data directory; the CLI writes it and the daemon
// watches it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"breaktime/internal/fsutil"
	"breaktime/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// SessionFile is the file name of the session record.
const SessionFile = "session.json"

// Session is the signed-in account.
type Session struct {
	AccountID      string    `json:"accountId"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Email          string    `json:"email,omitempty"`
	Token          string    `json:"token,omitempty"`
	Pro            bool      `json:"pro,omitempty"`
	SignedInAt     time.Time `json:"signedInAt"`
}

// Personal reports whether the account is not part of an organization.
func (s Session) Personal() bool {
	return s.OrganizationID == ""
}

// SameAccount reports whether o is signed in to the same account and organization.
func (s Session) SameAccount(o Session) bool {
	return s.AccountID == o.AccountID && s.OrganizationID == o.OrganizationID
}

// Provider returns the current session, nil when signed out.
type Provider interface {
	Current() (*Session, error)
}

// Change is emitted when the signed-in session changes. Session is nil
// after sign-out.
type Change struct {
	Session *Session
}

// FileProvider stores the session as JSON in the data directory.
type FileProvider struct {
	path   string
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// NewFileProvider creates a provider for dataDir.
func NewFileProvider(dataDir string, logger *slog.Logger) *FileProvider {
	return &FileProvider{
		path:   filepath.Join(dataDir, SessionFile),
		now:    time.Now,
		logger: logging.Component(logger, "auth"),
	}
}

// Path returns the session file path.
func (p *FileProvider) Path() string {
	return p.path
}

// Current returns the session, or nil when nobody is signed in.
func (p *FileProvider) Current() (*Session, error) {
	var s Session
	_, err := fsutil.ReadJSON(p.path, &s)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if s.AccountID == "" {
		return nil, nil
	}
	return &s, nil
}

// SignIn records s as the current session.
func (p *FileProvider) SignIn(s Session) error {
	if strings.TrimSpace(s.AccountID) == "" {
		return errors.New("account id is required")
	}
	if s.SignedInAt.IsZero() {
		s.SignedInAt = p.now()
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := fsutil.WriteJSON(p.path, s, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// SignOut removes the session.
func (p *FileProvider) SignOut() error {
	for _, path := range []string{p.path, p.path + fsutil.BackupSuffix} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
	}
	return nil
}

// Watch emits a Change whenever the session file changes who is signed in.
// The channel is closed when ctx is done.
func (p *FileProvider) Watch(ctx context.Context) (<-chan Change, error) {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// The file is replaced by rename, so watch the directory.
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	cur, _ := p.Current()
	p.mu.Lock()
	p.last = identity(cur)
	p.mu.Unlock()

	out := make(chan Change, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != SessionFile {
					continue
				}
				if ch, changed := p.poll(); changed {
					select {
					case out <- ch:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				p.logger.Warn("session watch error", "error", err)
			}
		}
	}()
	return out, nil
}

// poll re-reads the session and reports whether the signed-in identity moved.
func (p *FileProvider) poll() (Change, bool) {
	cur, err := p.Current()
	if err != nil {
		// Half-written file; the rename that completes it triggers another event.
		p.logger.Debug("session not readable yet", "error", err)
		return Change{}, false
	}
	id := identity(cur)

	p.mu.Lock()
	defer p.mu.Unlock()
	if id == p.last {
		return Change{}, false
	}
	p.last = id
	return Change{Session: cur}, true
}

func identity(s *Session) string {
	if s == nil {
		return ""
	}
	return s.AccountID + "|" + s.OrganizationID + "|" + s.Token
}
