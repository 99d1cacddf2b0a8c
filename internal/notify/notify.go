// Package notify provides cross-platform desktop prompts with actions.
// It uses the freedesktop notification service over D-Bus on Linux and
// osascript dialogs on macOS. Prompts never block: the user's choice
// arrives later on Responses.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Action is what the user did with a prompt.
type Action string

const (
	ActionAccept    Action = "accept"
	ActionSnooze    Action = "snooze"
	ActionDismissed Action = "dismissed"
)

// Label returns the button text for an action.
func (a Action) Label() string {
	switch a {
	case ActionAccept:
		return "Start break"
	case ActionSnooze:
		return "Snooze"
	default:
		return string(a)
	}
}

// Prompt is one actionable notification.
type Prompt struct {
	Title   string
	Message string
	Actions []Action
	Sound   bool

	// Tag is echoed in the Response so the caller knows which prompt was answered.
	Tag string
}

// Response is the user's answer to a prompt.
type Response struct {
	ID     uint32
	Tag    string
	Action Action
}

// Prompter shows prompts and reports answers.
type Prompter interface {
	// Prompt shows p and returns its id without waiting for an answer.
	Prompt(ctx context.Context, p Prompt) (uint32, error)

	// Responses delivers answers. Prompts that are never answered produce nothing.
	Responses() <-chan Response

	// IsSupported returns true if prompts reach the user on this platform.
	IsSupported() bool

	Close() error
}

// New creates a platform-specific prompter.
// Returns a no-op prompter if the platform doesn't support prompts.
func New(logger *slog.Logger) Prompter {
	p := newPlatformPrompter(logger)
	if p == nil || !p.IsSupported() {
		if p != nil {
			_ = p.Close()
		}
		return NewNoop()
	}
	return p
}

// tracker maps shown prompt ids to their tags and publishes each answer once.
type tracker struct {
	mu     sync.Mutex
	next   uint32
	tags   map[uint32]string
	out    chan Response
	closed bool
}

func newTracker() *tracker {
	return &tracker{tags: make(map[uint32]string), out: make(chan Response, 8)}
}

// nextID allocates an id for prompters without their own id space.
func (t *tracker) nextID() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	return t.next
}

func (t *tracker) add(id uint32, tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags[id] = tag
}

// resolve publishes the answer for id. It reports false for unknown or
// already answered ids.
func (t *tracker) resolve(id uint32, action Action) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tag, ok := t.tags[id]
	if !ok || t.closed {
		return false
	}
	delete(t.tags, id)
	select {
	case t.out <- Response{ID: id, Tag: tag, Action: action}:
	default:
		// Nobody is reading; an unanswered reminder is the same as a dismissed one.
	}
	return true
}

func (t *tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.out)
	}
}

// Noop accepts prompts and never answers them.
type Noop struct {
	t *tracker
}

// NewNoop creates a prompter that shows nothing.
func NewNoop() *Noop {
	return &Noop{t: newTracker()}
}

func (n *Noop) Prompt(context.Context, Prompt) (uint32, error) { return n.t.nextID(), nil }
func (n *Noop) Responses() <-chan Response                      { return n.t.out }
func (n *Noop) IsSupported() bool                               { return false }
func (n *Noop) Close() error                                    { n.t.close(); return nil }
