package notifierhost

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	StatusNotifierWatcherInterface = "org.kde.StatusNotifierWatcher"
	StatusNotifierWatcherPath      = "/StatusNotifierWatcher"
)

// Watcher implements the org.kde.StatusNotifierWatcher service: the
// registry items and hosts announce themselves to. One watcher must be
// present on a bus at a time; run it only when the desktop environment
// does not provide its own.
type Watcher struct {
	closed  bool
	conn    *dbus.Conn
	mu      sync.Mutex
	signals chan *dbus.Signal
	props   *prop.Properties

	// Registered item identifiers keyed by the unique bus name of the
	// publishing connection.
	items map[string]string

	// Registered host names.
	hosts map[string]struct{}
}

// NewWatcher returns a new [Watcher].
func NewWatcher(conn *dbus.Conn) *Watcher {
	return &Watcher{
		conn:    conn,
		signals: make(chan *dbus.Signal, 64),
		items:   make(map[string]string),
		hosts:   make(map[string]struct{}),
	}
}

// Listen claims the watcher name on the bus and exports the watcher
// object. It returns an error if another watcher is already running or
// if the watcher was closed.
func (w *Watcher) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("listen: watcher is closed")
	}

	reply, err := w.conn.RequestName(StatusNotifierWatcherInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", StatusNotifierWatcherInterface, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", StatusNotifierWatcherInterface)
	}

	if err := w.conn.Export(w, StatusNotifierWatcherPath, StatusNotifierWatcherInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", StatusNotifierWatcherInterface, err)
	}

	props, err := prop.Export(w.conn, StatusNotifierWatcherPath, prop.Map{
		StatusNotifierWatcherInterface: map[string]*prop.Prop{
			"RegisteredStatusNotifierItems": {
				Value:    []string{},
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"IsStatusNotifierHostRegistered": {
				Value:    false,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"ProtocolVersion": {
				Value:    1,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("listen: failed to export properties: %w", err)
	}
	w.props = props

	if err := w.exportIntrospection(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go w.subscribe()

	return nil
}

// Close releases the watcher name and stops watching name ownership.
//
// Watcher cannot be reused after Close was called.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.conn.ReleaseName(StatusNotifierWatcherInterface)
	if err != nil {
		return err
	}

	for host := range w.hosts {
		w.unwatchName(host)
	}

	for sender := range w.items {
		w.unwatchName(sender)
	}

	w.conn.RemoveSignal(w.signals)
	close(w.signals)

	w.closed = true

	return nil
}

// RegisterStatusNotifierItem handles the protocol's item registration
// call. Per the specification, name is either the bus name of the item
// or the object path it is reachable at on the calling connection.
func (w *Watcher) RegisterStatusNotifierItem(name string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	identifier := name + StatusNotifierItemPath
	if strings.HasPrefix(name, "/") {
		identifier = string(sender) + name
	}

	if _, exists := w.items[string(sender)]; exists {
		return nil
	}

	w.items[string(sender)] = identifier

	// Watch for name owner changes.
	// Whenever name disappears, D-Bus will send NameOwnerChanged signal with
	// empty NewOwner argument. In this case, item should be unregistered.
	w.watchName(string(sender))

	slog.Debug("status notifier item registered", "identifier", identifier, "sender", string(sender))

	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemRegistered", identifier)
	w.updateProperties()

	return nil
}

// RegisterStatusNotifierHost handles the protocol's host registration
// call.
func (w *Watcher) RegisterStatusNotifierHost(name string) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.hosts[name]; exists {
		return nil
	}

	w.hosts[name] = struct{}{}
	w.watchName(name)

	slog.Debug("status notifier host registered", "name", name)

	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierHostRegistered", name)
	w.updateProperties()

	return nil
}

// watchName subscribes to ownership changes of name. Callers must hold
// w.mu.
func (w *Watcher) watchName(name string) {
	w.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

// unwatchName removes the subscription added by watchName. Callers must
// hold w.mu.
func (w *Watcher) unwatchName(name string) {
	w.conn.RemoveMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

func (w *Watcher) subscribe() {
	w.conn.Signal(w.signals)

	for signal := range w.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" {
			continue
		}

		if len(signal.Body) < 3 {
			continue
		}

		name, ok := signal.Body[0].(string)
		if !ok {
			continue
		}

		newOwner, ok := signal.Body[2].(string)
		if !ok {
			continue
		}

		if newOwner == "" {
			w.nameLost(name)
		}
	}
}

// nameLost unregisters the host or item owned by a bus name that
// disappeared.
func (w *Watcher) nameLost(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.hosts[name]; exists {
		delete(w.hosts, name)
		w.unwatchName(name)

		slog.Debug("status notifier host unregistered", "name", name)

		w.updateProperties()
	}

	identifier, exists := w.items[name]
	if !exists {
		return
	}

	delete(w.items, name)
	w.unwatchName(name)

	slog.Debug("status notifier item unregistered", "identifier", identifier, "sender", name)

	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemUnregistered", identifier)
	w.updateProperties()
}

// updateProperties pushes the current registration state to the
// exported properties. Callers must hold w.mu.
func (w *Watcher) updateProperties() {
	if w.props == nil {
		return
	}

	identifiers := make([]string, 0, len(w.items))
	for _, identifier := range w.items {
		identifiers = append(identifiers, identifier)
	}

	w.props.SetMust(StatusNotifierWatcherInterface, "RegisteredStatusNotifierItems", identifiers)
	w.props.SetMust(StatusNotifierWatcherInterface, "IsStatusNotifierHostRegistered", len(w.hosts) > 0)
}

// exportIntrospection exports introspection data for the watcher
// object.
func (w *Watcher) exportIntrospection() error {
	node := &introspect.Node{
		Name: StatusNotifierWatcherPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name: StatusNotifierWatcherInterface,
				Methods: []introspect.Method{
					{Name: "RegisterStatusNotifierItem", Args: []introspect.Arg{{Name: "service", Type: "s", Direction: "in"}}},
					{Name: "RegisterStatusNotifierHost", Args: []introspect.Arg{{Name: "service", Type: "s", Direction: "in"}}},
				},
				Properties: w.props.Introspection(StatusNotifierWatcherInterface),
				Signals: []introspect.Signal{
					{Name: "StatusNotifierItemRegistered", Args: []introspect.Arg{{Name: "service", Type: "s"}}},
					{Name: "StatusNotifierItemUnregistered", Args: []introspect.Arg{{Name: "service", Type: "s"}}},
					{Name: "StatusNotifierHostRegistered"},
				},
			},
		},
	}

	if err := w.conn.Export(introspect.NewIntrospectable(node), StatusNotifierWatcherPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	return nil
}
