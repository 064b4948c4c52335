package notifierhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Item represents one discovered [StatusNotifierItem] for the lifetime
// of the host's interest in it.
//
// An Item owns a [Proxy] bound at construction and, after a successful
// [Item.SetMenu], a locally built [ToolkitMenu]. It is not safe for
// concurrent use without external synchronization: each Item is meant
// to be driven by a single logical caller, and all remote operations
// take a context so the caller controls cancellation. Construction
// never subscribes to signals or starts goroutines; use
// [Item.Subscribe] for update notifications.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierItem/
type Item struct {
	conn     *dbus.Conn
	proxy    Proxy
	renderer MenuRenderer
	icons    IconResolver
	menu     ToolkitMenu
	signals  chan *dbus.Signal
}

// NewItem returns a new [Item] from the service identifier advertised
// by a StatusNotifierWatcher.
//
// The identifier is resolved with [ResolveServiceAddress]; a probe call
// is then issued so that an unreachable destination is reported here
// rather than on first use. The renderer may be nil, in which case
// [Item.PopupMenu] always falls back to the remote ContextMenu call.
func NewItem(conn *dbus.Conn, service string, renderer MenuRenderer) (*Item, error) {
	addr, err := ResolveServiceAddress(service)
	if err != nil {
		return nil, err
	}

	proxy := NewProxy(conn, addr)

	// Check whether properties can be retrieved.
	if _, err := proxy.Property(context.Background(), "Status"); err != nil {
		return nil, fmt.Errorf("failed to resolve item: %w", err)
	}

	item := NewItemWithProxy(proxy, renderer)
	item.conn = conn

	return item, nil
}

// NewItemWithProxy returns a new [Item] backed by an existing proxy.
// It is intended for tests and custom transports; no probe call is
// issued.
func NewItemWithProxy(proxy Proxy, renderer MenuRenderer) *Item {
	return &Item{
		proxy:    proxy,
		renderer: renderer,
		icons:    &PixmapResolver{},
	}
}

// Proxy returns the remote-object handle the item is bound to.
func (item *Item) Proxy() Proxy {
	return item.proxy
}

// SetIconResolver replaces the resolver used by [Item.Icon]. The
// default is a [PixmapResolver] without theme lookup.
func (item *Item) SetIconResolver(resolver IconResolver) {
	item.icons = resolver
}

// Status retrieves and parses the current status of the item.
//
// A failed remote call is reported as the transport error; a reply
// outside the status enumeration is reported as [InvalidStatusError].
func (item *Item) Status(ctx context.Context) (ItemStatus, error) {
	status, err := item.proxy.Status(ctx)
	if err != nil {
		return "", err
	}

	return ParseItemStatus(status)
}

// SetMenu retrieves the item's advertised menu object path and builds a
// local menu for it with the renderer, replacing the previously built
// one. On failure the previous menu is kept as is, so a failed refresh
// does not destroy a working menu.
func (item *Item) SetMenu(ctx context.Context) error {
	if item.renderer == nil {
		return ErrNoRenderer
	}

	path, err := item.proxy.Menu(ctx)
	if err != nil {
		return err
	}

	menu, err := item.renderer.RenderMenu(item.proxy.Destination(), path)
	if err != nil {
		return fmt.Errorf("failed to build menu: %w", err)
	}

	item.menu = menu

	return nil
}

// PopupMenu shows the item's context menu in response to user input,
// such as mouse right click over the graphical representation of the
// item.
//
// If a local menu was built by [Item.SetMenu], it is attached to
// surface and popped up at the pointer location implied by event,
// without any remote call. Otherwise the item is asked to show its own
// menu at screen coordinates (x, y). There is no negotiation: the
// branch is decided solely by whether a menu was fetched earlier.
func (item *Item) PopupMenu(ctx context.Context, surface Surface, event PointerEvent, x, y int32) error {
	if item.menu != nil {
		item.menu.AttachTo(surface)
		item.menu.PopupAtPointer(event)
		return nil
	}

	return item.proxy.ContextMenu(ctx, x, y)
}

// Icon resolves the item's icon as a bitmap of size×scale pixels.
//
// Icon absence is an expected outcome, not a protocol violation: on any
// failure to resolve or decode an icon the result is nil, never an
// error.
func (item *Item) Icon(ctx context.Context, size, scale int32) *Icon {
	if item.icons == nil {
		return nil
	}

	return item.icons.ResolveIcon(ctx, item.proxy, size, scale)
}

// Menu returns a [Menu] client for the item's dbusmenu object. It is
// the raw protocol view of the menu, useful for implementing a
// [MenuRenderer].
func (item *Item) Menu(ctx context.Context) (*Menu, error) {
	if item.conn == nil {
		return nil, fmt.Errorf("menu: item is not backed by a bus connection")
	}

	path, err := item.proxy.Menu(ctx)
	if err != nil {
		return nil, err
	}

	return NewMenu(item.conn, item.proxy.Destination(), string(path))
}

// Activate asks the item for activation, typically a consequence of
// mouse left click. The x and y parameters are in screen coordinates
// and are a hint to the item where to show eventual windows.
func (item *Item) Activate(ctx context.Context, x, y int32) error {
	return item.proxy.Activate(ctx, x, y)
}

// SecondaryActivate is a secondary and less important form of
// activation, typically a consequence of mouse middle click.
func (item *Item) SecondaryActivate(ctx context.Context, x, y int32) error {
	return item.proxy.SecondaryActivate(ctx, x, y)
}

// Scroll emits a scroll event on the item. Valid orientations are
// "horizontal" and "vertical".
func (item *Item) Scroll(ctx context.Context, delta int32, orientation string) error {
	return item.proxy.Scroll(ctx, delta, orientation)
}

// updateMembers are the signals specified by the protocol that indicate
// a change of the respective item property.
var updateMembers = []string{
	"NewTitle",
	"NewToolTip",
	"NewStatus",
	"NewIcon",
	"NewOverlayIcon",
	"NewAttentionIcon",
}

// Subscribe registers for the item's update signals and invokes
// callback with the signal member (e.g. "NewStatus") whenever one
// arrives. Graphical hosts should re-query the changed property and
// redraw the item representation.
//
// Subscription is explicit and caller-driven; [Item.Close] tears it
// down.
func (item *Item) Subscribe(callback func(member string)) error {
	if item.conn == nil {
		return fmt.Errorf("subscribe: item is not backed by a bus connection")
	}

	if item.signals != nil {
		return fmt.Errorf("subscribe: already subscribed")
	}

	for _, member := range updateMembers {
		if err := item.conn.AddMatchSignal(
			dbus.WithMatchInterface(StatusNotifierItemInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(item.proxy.Destination()),
		); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	item.signals = make(chan *dbus.Signal, 128)
	item.conn.Signal(item.signals)

	go func() {
		prefix := StatusNotifierItemInterface + "."

		for signal := range item.signals {
			if signal.Sender != item.proxy.Destination() {
				continue
			}

			member, ok := strings.CutPrefix(signal.Name, prefix)
			if !ok {
				continue
			}

			callback(member)
		}
	}()

	return nil
}

// Close releases the local menu and removes signal handlers associated
// with this item. It must be called when the item is unregistered from
// the system tray.
func (item *Item) Close() error {
	item.menu = nil

	if item.signals == nil {
		return nil
	}

	for _, member := range updateMembers {
		if err := item.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(StatusNotifierItemInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(item.proxy.Destination()),
		); err != nil {
			return err
		}
	}

	item.conn.RemoveSignal(item.signals)
	close(item.signals)
	item.signals = nil

	return nil
}
