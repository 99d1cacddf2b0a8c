// Package ipc exposes the daemon to the panel and the CLI over the D-Bus
// session bus.
package ipc

import (
	"context"
	"errors"
	"time"

	"breaktime/internal/breaks"
	"breaktime/internal/engine"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"
	cfgsync "breaktime/internal/sync"

	"github.com/godbus/dbus/v5"
)

const (
	ObjectPath    = "/io/github/breaktime"
	InterfaceName = "io.github.breaktime.Daemon"
	ServiceName   = "io.github.breaktime"

	// SignalBreakStateChanged carries one boolean: whether a break is active.
	SignalBreakStateChanged = "BreakStateChanged"
)

// D-Bus error names returned by the daemon.
const (
	ErrorInvalidTransition = "io.github.breaktime.Error.InvalidTransition"
	ErrorInvalidSchedule   = "io.github.breaktime.Error.InvalidSchedule"
	ErrorNotSignedIn       = "io.github.breaktime.Error.NotSignedIn"
	ErrorFailed            = "io.github.breaktime.Error.Failed"
)

// Backend is the daemon side of the protocol.
type Backend interface {
	StartBreak(ctx context.Context) (storage.BreakState, error)
	FinishBreak(ctx context.Context) (time.Duration, error)
	SkipBreak(ctx context.Context) error
	SaveSettings(ctx context.Context, cfg schedule.Config) (cfgsync.Report, error)
	SyncNow(ctx context.Context) (cfgsync.Report, error)
	Status(ctx context.Context) (engine.Status, error)
}

var _ Backend = (*engine.Engine)(nil)

// Report is the wire form of a sync report.
type Report struct {
	SignedIn      bool      `json:"signedIn"`
	Fetched       bool      `json:"fetched"`
	NotFound      bool      `json:"notFound"`
	ConfigChanged bool      `json:"configChanged"`
	Rearmed       bool      `json:"rearmed"`
	NextFire      time.Time `json:"nextFire,omitempty"`
	UsageSent     int64     `json:"usageSent"`
	FetchError    string    `json:"fetchError,omitempty"`
	UsageError    string    `json:"usageError,omitempty"`
}

func reportFrom(r cfgsync.Report) Report {
	out := Report{
		SignedIn:      r.SignedIn,
		Fetched:       r.Fetched,
		NotFound:      r.NotFound,
		ConfigChanged: r.ConfigChanged,
		Rearmed:       r.Rearmed,
		NextFire:      r.NextFire,
		UsageSent:     r.UsageSent,
	}
	if r.FetchErr != nil {
		out.FetchError = r.FetchErr.Error()
	}
	if r.UsageErr != nil {
		out.UsageError = r.UsageErr.Error()
	}
	return out
}

// toDBusError maps a daemon error to a named D-Bus error.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	switch {
	case errors.Is(err, breaks.ErrInvalidTransition):
		name = ErrorInvalidTransition
	case errors.Is(err, schedule.ErrInvalid):
		name = ErrorInvalidSchedule
	case errors.Is(err, cfgsync.ErrNotSignedIn):
		name = ErrorNotSignedIn
	}
	return dbus.NewError(name, []any{err.Error()})
}

// fromDBusError restores the sentinel behind a named D-Bus error.
func fromDBusError(err error) error {
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		var ptr *dbus.Error
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		dbusErr = *ptr
	}
	msg := dbusErr.Error()
	switch dbusErr.Name {
	case ErrorInvalidTransition:
		return &remoteError{sentinel: breaks.ErrInvalidTransition, msg: msg}
	case ErrorInvalidSchedule:
		return &remoteError{sentinel: schedule.ErrInvalid, msg: msg}
	case ErrorNotSignedIn:
		return &remoteError{sentinel: cfgsync.ErrNotSignedIn, msg: msg}
	}
	return err
}

// remoteError carries the daemon's message and matches its sentinel.
type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }
