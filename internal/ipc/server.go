package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"breaktime/internal/logging"
	"breaktime/internal/schedule"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// callTimeout bounds one method call, including remote syncs.
const callTimeout = 45 * time.Second

// daemon holds the methods exported on the bus.
type daemon struct {
	ctx     context.Context
	backend Backend
}

func (d *daemon) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(d.ctx, callTimeout)
}

func (d *daemon) RequestManualBreakStart() *dbus.Error {
	ctx, cancel := d.call()
	defer cancel()
	_, err := d.backend.StartBreak(ctx)
	return toDBusError(err)
}

func (d *daemon) RequestFinishBreak() (int64, *dbus.Error) {
	ctx, cancel := d.call()
	defer cancel()
	elapsed, err := d.backend.FinishBreak(ctx)
	if err != nil {
		return 0, toDBusError(err)
	}
	return int64(elapsed / time.Second), nil
}

func (d *daemon) RequestSkipBreak() *dbus.Error {
	ctx, cancel := d.call()
	defer cancel()
	return toDBusError(d.backend.SkipBreak(ctx))
}

func (d *daemon) SaveSettings(payload string) (string, *dbus.Error) {
	var cfg schedule.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return "", toDBusError(fmt.Errorf("%w: %v", schedule.ErrInvalid, err))
	}
	ctx, cancel := d.call()
	defer cancel()
	rep, err := d.backend.SaveSettings(ctx, cfg)
	if err != nil {
		return "", toDBusError(err)
	}
	return encode(reportFrom(rep))
}

func (d *daemon) SyncNow() (string, *dbus.Error) {
	ctx, cancel := d.call()
	defer cancel()
	rep, err := d.backend.SyncNow(ctx)
	if err != nil {
		return "", toDBusError(err)
	}
	return encode(reportFrom(rep))
}

func (d *daemon) Status() (string, *dbus.Error) {
	ctx, cancel := d.call()
	defer cancel()
	st, err := d.backend.Status(ctx)
	if err != nil {
		return "", toDBusError(err)
	}
	return encode(st)
}

func encode(v any) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", toDBusError(err)
	}
	return string(data), nil
}

// Server owns the bus name and forwards calls to a Backend.
type Server struct {
	conn   *dbus.Conn
	obj    *daemon
	logger *slog.Logger
}

// NewServer creates a server on conn. Calls are bound to ctx.
func NewServer(ctx context.Context, conn *dbus.Conn, backend Backend, logger *slog.Logger) *Server {
	logger = logging.Component(logger, "ipc")
	return &Server{
		conn:   conn,
		obj:    &daemon{ctx: ctx, backend: backend},
		logger: logger,
	}
}

// Start exports the object and claims the service name.
func (s *Server) Start() error {
	if err := s.conn.Export(s.obj, dbus.ObjectPath(ObjectPath), InterfaceName); err != nil {
		return fmt.Errorf("export %s: %w", ObjectPath, err)
	}

	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    InterfaceName,
				Methods: introspect.Methods(s.obj),
				Signals: []introspect.Signal{{
					Name: SignalBreakStateChanged,
					Args: []introspect.Arg{{Name: "active", Type: "b"}},
				}},
			},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(ObjectPath),
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := s.conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken; is another breakd running?", ServiceName)
	}
	s.logger.Info("serving on session bus", "name", ServiceName)
	return nil
}

// BreakStateChanged emits the state-change signal.
func (s *Server) BreakStateChanged(active bool) {
	if err := s.conn.Emit(dbus.ObjectPath(ObjectPath), InterfaceName+"."+SignalBreakStateChanged, active); err != nil {
		s.logger.Warn("emit break state", "error", err)
	}
}

// Close releases the service name.
func (s *Server) Close() error {
	if _, err := s.conn.ReleaseName(ServiceName); err != nil {
		return fmt.Errorf("release name: %w", err)
	}
	return nil
}
