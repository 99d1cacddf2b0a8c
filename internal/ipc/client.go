package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"breaktime/internal/engine"
	"breaktime/internal/schedule"

	"github.com/godbus/dbus/v5"
)

// Client calls a running daemon.
type Client struct {
	conn  *dbus.Conn
	obj   dbus.BusObject
	owned bool
}

// Dial connects to the session bus.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	c := NewClient(conn)
	c.owned = true
	return c, nil
}

// NewClient uses an existing connection.
func NewClient(conn *dbus.Conn) *Client {
	return &Client{conn: conn, obj: conn.Object(ServiceName, dbus.ObjectPath(ObjectPath))}
}

// Close closes the connection if Dial opened it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, out any, args ...any) error {
	call := c.obj.CallWithContext(ctx, InterfaceName+"."+method, 0, args...)
	if call.Err != nil {
		return fromDBusError(call.Err)
	}
	if out == nil {
		return nil
	}
	if err := call.Store(out); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Client) callJSON(ctx context.Context, method string, out any, args ...any) error {
	var payload string
	if err := c.call(ctx, method, &payload, args...); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	return nil
}

// StartBreak asks the daemon to start a manual break.
func (c *Client) StartBreak(ctx context.Context) error {
	return c.call(ctx, "RequestManualBreakStart", nil)
}

// FinishBreak ends the active break and returns its length.
func (c *Client) FinishBreak(ctx context.Context) (time.Duration, error) {
	var seconds int64
	if err := c.call(ctx, "RequestFinishBreak", &seconds); err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// SkipBreak ends the active break without recording it.
func (c *Client) SkipBreak(ctx context.Context) error {
	return c.call(ctx, "RequestSkipBreak", nil)
}

// SaveSettings replaces the schedule.
func (c *Client) SaveSettings(ctx context.Context, cfg schedule.Config) (Report, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return Report{}, err
	}
	var rep Report
	err = c.callJSON(ctx, "SaveSettings", &rep, string(payload))
	return rep, err
}

// SyncNow runs a sync.
func (c *Client) SyncNow(ctx context.Context) (Report, error) {
	var rep Report
	err := c.callJSON(ctx, "SyncNow", &rep)
	return rep, err
}

// Status fetches a daemon snapshot.
func (c *Client) Status(ctx context.Context) (engine.Status, error) {
	var st engine.Status
	err := c.callJSON(ctx, "Status", &st)
	return st, err
}

// WatchBreakState delivers BreakStateChanged signals until ctx is done.
func (c *Client) WatchBreakState(ctx context.Context) (<-chan bool, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(dbus.ObjectPath(ObjectPath)),
		dbus.WithMatchInterface(InterfaceName),
		dbus.WithMatchMember(SignalBreakStateChanged),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	c.conn.Signal(signals)
	out := make(chan bool, 1)

	go func() {
		defer close(out)
		defer func() {
			c.conn.RemoveSignal(signals)
			_ = c.conn.RemoveMatchSignal(opts...)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if active, ok := parseBreakSignal(sig); ok {
					select {
					case out <- active:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func parseBreakSignal(sig *dbus.Signal) (bool, bool) {
	if sig == nil || sig.Name != InterfaceName+"."+SignalBreakStateChanged || len(sig.Body) != 1 {
		return false, false
	}
	active, ok := sig.Body[0].(bool)
	return active, ok
}
