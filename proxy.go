package notifierhost

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	StatusNotifierItemInterface = "org.kde.StatusNotifierItem"
	StatusNotifierItemPath      = "/StatusNotifierItem"
)

const getProperty = "org.freedesktop.DBus.Properties.Get"

// Proxy is a remote StatusNotifierItem object: a local stand-in whose
// getters and calls forward to a specific destination and object path
// on the bus. The binding is fixed at construction; a new service
// announcement must produce a new proxy.
//
// [Item] only depends on this interface, so tests and custom transports
// can substitute their own implementation. [NewProxy] returns the
// session-bus one.
type Proxy interface {
	// Destination returns the bus destination the proxy is bound to.
	Destination() string

	// Status retrieves the raw value of the Status property.
	Status(ctx context.Context) (string, error)

	// Menu retrieves the object path of the item's dbusmenu object.
	Menu(ctx context.Context) (dbus.ObjectPath, error)

	// ContextMenu asks the item to show its own context menu. The x and
	// y parameters are in screen coordinates and are a hint to the item
	// about where to show it.
	ContextMenu(ctx context.Context, x, y int32) error

	// Activate asks the item for activation, typically a consequence of
	// mouse left click over its graphical representation.
	Activate(ctx context.Context, x, y int32) error

	// SecondaryActivate is a secondary and less important form of
	// activation, typically mouse middle click.
	SecondaryActivate(ctx context.Context, x, y int32) error

	// Scroll emits a scroll event on the item. Valid orientations are
	// "horizontal" and "vertical".
	Scroll(ctx context.Context, delta int32, orientation string) error

	// Property retrieves an arbitrary org.kde.StatusNotifierItem
	// property by name.
	Property(ctx context.Context, name string) (dbus.Variant, error)
}

// busProxy implements [Proxy] over a session bus connection.
type busProxy struct {
	object      dbus.BusObject
	destination string
}

// NewProxy returns a [Proxy] bound to the given resolved address.
func NewProxy(conn *dbus.Conn, addr ServiceAddress) Proxy {
	return &busProxy{
		object:      conn.Object(addr.Destination, dbus.ObjectPath(addr.Path)),
		destination: addr.Destination,
	}
}

func (p *busProxy) Destination() string {
	return p.destination
}

func (p *busProxy) Property(ctx context.Context, name string) (dbus.Variant, error) {
	call := p.object.CallWithContext(ctx, getProperty, dbus.Flags(64), StatusNotifierItemInterface, name)
	if call.Err != nil {
		return dbus.Variant{}, call.Err
	}

	var value dbus.Variant
	if err := call.Store(&value); err != nil {
		return dbus.Variant{}, fmt.Errorf("property %s: %w", name, err)
	}

	return value, nil
}

func (p *busProxy) Status(ctx context.Context) (string, error) {
	value, err := p.Property(ctx, "Status")
	if err != nil {
		return "", err
	}

	status, ok := value.Value().(string)
	if !ok {
		return "", fmt.Errorf("property Status: unexpected type %T", value.Value())
	}

	return status, nil
}

func (p *busProxy) Menu(ctx context.Context) (dbus.ObjectPath, error) {
	value, err := p.Property(ctx, "Menu")
	if err != nil {
		return "", err
	}

	var path dbus.ObjectPath
	if err := value.Store(&path); err != nil {
		return "", fmt.Errorf("property Menu: %w", err)
	}

	return path, nil
}

func (p *busProxy) ContextMenu(ctx context.Context, x, y int32) error {
	return p.object.CallWithContext(
		ctx,
		StatusNotifierItemInterface+".ContextMenu",
		dbus.Flags(64),
		x, y,
	).Err
}

func (p *busProxy) Activate(ctx context.Context, x, y int32) error {
	return p.object.CallWithContext(
		ctx,
		StatusNotifierItemInterface+".Activate",
		dbus.Flags(64),
		x, y,
	).Err
}

func (p *busProxy) SecondaryActivate(ctx context.Context, x, y int32) error {
	return p.object.CallWithContext(
		ctx,
		StatusNotifierItemInterface+".SecondaryActivate",
		dbus.Flags(64),
		x, y,
	).Err
}

func (p *busProxy) Scroll(ctx context.Context, delta int32, orientation string) error {
	return p.object.CallWithContext(
		ctx,
		StatusNotifierItemInterface+".Scroll",
		dbus.Flags(64),
		delta, orientation,
	).Err
}
