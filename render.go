package notifierhost

import (
	"errors"

	"github.com/godbus/dbus/v5"
)

// ErrNoRenderer is returned by [Item.SetMenu] when the item was
// constructed without a [MenuRenderer].
var ErrNoRenderer = errors.New("no menu renderer")

// Surface is an opaque toolkit widget that a menu can be attached to.
type Surface interface{}

// PointerEvent is an opaque toolkit input event carrying the pointer
// location a menu should pop up at.
type PointerEvent interface{}

// ToolkitMenu is a locally built representation of an item's menu,
// produced by a [MenuRenderer]. Both operations are fire-and-forget
// from this package's perspective.
type ToolkitMenu interface {
	// AttachTo attaches the menu to a display surface, replacing any
	// prior attachment. The menu is attached to at most one surface at
	// a time.
	AttachTo(surface Surface)

	// PopupAtPointer displays the menu anchored at the pointer location
	// implied by event.
	PopupAtPointer(event PointerEvent)
}

// MenuRenderer builds toolkit menus bound to com.canonical.dbusmenu
// objects. Implementations belong to the graphical toolkit in use; the
// dbusmenu layout itself can be retrieved with [NewMenu].
type MenuRenderer interface {
	RenderMenu(destination string, path dbus.ObjectPath) (ToolkitMenu, error)
}
