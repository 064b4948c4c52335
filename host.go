package notifierhost

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Host implements [StatusNotifierHost]. It discovers StatusNotifierItem
// instances through the registration signals of a
// [StatusNotifierWatcher] and keeps an [Item] per registered service.
//
// Items constructed by the host share its [MenuRenderer]. Identifiers
// that cannot be resolved or items that cannot be reached are skipped
// with a debug log entry, since a single misbehaving publisher must not
// take the tray down.
//
// [StatusNotifierHost]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierHost/
// [StatusNotifierWatcher]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierWatcher/
type Host struct {
	name           string
	closed         bool
	conn           *dbus.Conn
	renderer       MenuRenderer
	items          map[string]*Item
	signals        chan *dbus.Signal
	mu             sync.RWMutex
	onRegistered   func(item *Item)
	onUnregistered func(item *Item)
}

// NewHost returns a new [Host].
//
// Parameter id is used as a unique identifier for host name, such as
// PID. The renderer is handed to every constructed item and may be nil.
func NewHost(conn *dbus.Conn, id any, renderer MenuRenderer) *Host {
	return &Host{
		name:           fmt.Sprintf("org.kde.StatusNotifierHost-%v", id),
		closed:         false,
		conn:           conn,
		renderer:       renderer,
		items:          make(map[string]*Item),
		signals:        make(chan *dbus.Signal, 64),
		onRegistered:   func(*Item) {},
		onUnregistered: func(*Item) {},
	}
}

// Name returns name of the host service.
func (h *Host) Name() string {
	return h.name
}

// Listen requests name of the host on D-Bus, queries items that are already
// registered, and subscribes to signals.
//
// This method should be called after [Host.OnRegistered] and
// [Host.OnUnregistered] callbacks were set.
//
// If Listen is called after [Host.Close], an error is returned.
func (h *Host) Listen() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("listen: host is closed")
	}

	reply, err := h.conn.RequestName(h.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", h.name, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", h.name)
	}

	// Register host in the watcher.
	call := h.conn.Object(
		StatusNotifierWatcherInterface,
		StatusNotifierWatcherPath,
	).Call("RegisterStatusNotifierHost", 0, h.name)
	if call.Err != nil {
		return fmt.Errorf("listen: failed to register host: %w", call.Err)
	}

	if err := h.subscribe(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	h.getInitialItems()

	return nil
}

// Close releases name of the host from D-Bus and unsubscribes from signals.
//
// Host cannot be reused after Close was called.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.conn.ReleaseName(h.name)
	if err != nil {
		return err
	}

	for _, member := range []string{"StatusNotifierItemRegistered", "StatusNotifierItemUnregistered"} {
		if err := h.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(StatusNotifierWatcherInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			return err
		}
	}

	h.conn.RemoveSignal(h.signals)
	close(h.signals)

	// Close all items to unregister signals from the session bus.
	for _, item := range h.items {
		item.Close()
	}

	h.onRegistered = nil
	h.onUnregistered = nil
	h.closed = true

	return nil
}

// Items returns currently registered items.
func (h *Host) Items() []*Item {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]*Item, 0, len(h.items))
	for _, item := range h.items {
		items = append(items, item)
	}

	return items
}

// OnRegistered sets callback that runs whenever a new item is registered.
//
// Graphical tray hosts should draw item representation when OnRegistered
// callback is called.
func (h *Host) OnRegistered(callback func(*Item)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onRegistered = callback
}

// OnUnregistered sets callback that runs whenever an item is unregistered.
//
// Graphical tray hosts should destroy item representation when OnUnregistered
// callback is called.
func (h *Host) OnUnregistered(callback func(*Item)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onUnregistered = callback
}

// getInitialItems retrieves items that are already registered.
func (h *Host) getInitialItems() {
	watcherObj := h.conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath)

	property, err := watcherObj.GetProperty(StatusNotifierWatcherInterface + ".RegisteredStatusNotifierItems")
	if err != nil {
		return
	}

	services, ok := property.Value().([]string)
	if !ok {
		return
	}

	for _, service := range services {
		h.addItem(service)
	}
}

// addItem resolves service and registers an item for it. Callers must
// hold h.mu.
func (h *Host) addItem(service string) {
	addr, err := ResolveServiceAddress(service)
	if err != nil {
		slog.Debug("skipping tray item with unparseable service", "service", service)
		return
	}

	if _, exists := h.items[addr.Destination]; exists {
		return
	}

	item, err := NewItem(h.conn, service, h.renderer)
	if err != nil {
		slog.Debug("skipping unreachable tray item", "service", service, "error", err)
		return
	}

	h.items[addr.Destination] = item
	h.onRegistered(item)
}

// subscribe subscribes to signals
//   - org.kde.StatusNotifierWatcher.StatusNotifierItemRegistered
//   - org.kde.StatusNotifierWatcher.StatusNotifierItemUnregistered
func (h *Host) subscribe() error {
	for _, member := range []string{"StatusNotifierItemRegistered", "StatusNotifierItemUnregistered"} {
		if err := h.conn.AddMatchSignal(
			dbus.WithMatchInterface(StatusNotifierWatcherInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			return err
		}
	}

	h.conn.Signal(h.signals)

	go func() {
		for signal := range h.signals {
			switch signal.Name {
			case StatusNotifierWatcherInterface + ".StatusNotifierItemRegistered":
				h.handleRegisteredSignal(signal)
			case StatusNotifierWatcherInterface + ".StatusNotifierItemUnregistered":
				h.handleUnregisteredSignal(signal)
			}
		}
	}()

	return nil
}

// serviceFromSignal retrieves the service identifier carried by a
// watcher registration signal.
func serviceFromSignal(signal *dbus.Signal) (string, error) {
	if len(signal.Body) < 1 {
		return "", fmt.Errorf("signal body is empty")
	}

	service, ok := signal.Body[0].(string)
	if !ok {
		return "", fmt.Errorf("invalid format of signal body")
	}

	return service, nil
}

// handleRegisteredSignal handles the
// org.kde.StatusNotifierWatcher.StatusNotifierItemRegistered signal.
func (h *Host) handleRegisteredSignal(signal *dbus.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	service, err := serviceFromSignal(signal)
	if err != nil {
		return
	}

	h.addItem(service)
}

// handleUnregisteredSignal handles the
// org.kde.StatusNotifierWatcher.StatusNotifierItemUnregistered signal.
func (h *Host) handleUnregisteredSignal(signal *dbus.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	service, err := serviceFromSignal(signal)
	if err != nil {
		return
	}

	addr, err := ResolveServiceAddress(service)
	if err != nil {
		return
	}

	item, exists := h.items[addr.Destination]
	if !exists {
		return
	}

	h.onUnregistered(item)
	item.Close()
	delete(h.items, addr.Destination)
}
