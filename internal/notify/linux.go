//go:build linux

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"breaktime/internal/logging"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName      = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	// defaultActionKey is invoked by clicking the notification body.
	defaultActionKey = "default"
)

// dbusPrompter shows freedesktop notifications with action buttons.
type dbusPrompter struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	t       *tracker
	logger  *slog.Logger
}

// newPlatformPrompter connects to the session bus.
func newPlatformPrompter(logger *slog.Logger) Prompter {
	logger = logging.Component(logger, "notify")
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warn("session bus unavailable, prompts disabled", "error", err)
		return nil
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(notificationsPath),
		dbus.WithMatchInterface(notificationsInterface),
	); err != nil {
		logger.Warn("subscribe to notification signals failed", "error", err)
		_ = conn.Close()
		return nil
	}

	p := &dbusPrompter{
		conn:    conn,
		signals: make(chan *dbus.Signal, 16),
		t:       newTracker(),
		logger:  logger,
	}
	conn.Signal(p.signals)
	go p.listen()
	return p
}

// IsSupported returns true if a notification server owns the bus name.
func (p *dbusPrompter) IsSupported() bool {
	var has bool
	err := p.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, notificationsName).Store(&has)
	return err == nil && has
}

// Prompt sends a notification with one button per action.
func (p *dbusPrompter) Prompt(ctx context.Context, pr Prompt) (uint32, error) {
	actions := []string{defaultActionKey, ActionAccept.Label()}
	for _, a := range pr.Actions {
		actions = append(actions, string(a), a.Label())
	}
	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(byte(1)), // normal urgency
		"resident": dbus.MakeVariant(true),
	}
	if pr.Sound {
		hints["sound-name"] = dbus.MakeVariant("bell")
	}

	obj := p.conn.Object(notificationsName, notificationsPath)
	var id uint32
	err := obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		"breaktime",        // app_name
		uint32(0),          // replaces_id
		"appointment-soon", // app_icon
		pr.Title,           // summary
		pr.Message,         // body
		actions,            // actions
		hints,              // hints
		int32(0),           // expire_timeout: never
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("send notification: %w", err)
	}
	p.t.add(id, pr.Tag)
	return id, nil
}

// Responses delivers answers.
func (p *dbusPrompter) Responses() <-chan Response {
	return p.t.out
}

// Close disconnects from the bus.
func (p *dbusPrompter) Close() error {
	// Closing the connection also closes the signal channel, ending listen.
	err := p.conn.Close()
	p.t.close()
	return err
}

func (p *dbusPrompter) listen() {
	for sig := range p.signals {
		switch sig.Name {
		case notificationsInterface + ".ActionInvoked":
			if len(sig.Body) < 2 {
				continue
			}
			id, _ := sig.Body[0].(uint32)
			key, _ := sig.Body[1].(string)
			action := Action(key)
			if key == defaultActionKey {
				action = ActionAccept
			}
			p.t.resolve(id, action)
		case notificationsInterface + ".NotificationClosed":
			// Also sent after an action; resolve ignores answered ids.
			if len(sig.Body) < 1 {
				continue
			}
			id, _ := sig.Body[0].(uint32)
			p.t.resolve(id, ActionDismissed)
		}
	}
}
