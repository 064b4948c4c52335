// Package notifierhost is a toolkit-agnostic client for the
// [StatusNotifierItem] specification, written for the host side of the
// protocol: status bars and panels that discover tray items on the
// session bus and interact with them. This package does not provide
// capabilities for publishing tray items, it is intended to be used
// for building system trays themselves.
//
// # Usage
//
// A tray host consists of [Watcher], [Host], and multiple [Item]
// instances:
//   - [Watcher] keeps track of tray items and hosts. One watcher must
//     be present on a D-Bus at a time.
//   - [Host] stores tray items and provides access to them. It requires
//     a watcher service instance to be registered on the session bus
//     (either [Watcher] or an external implementation can be used).
//   - [Item] is one discovered tray item. It is constructed from the
//     service identifier advertised by the watcher (see
//     [ResolveServiceAddress] for the accepted formats) and exposes the
//     item's status, menu, icon, and input events.
//
// Menus come in two flavors. If a [MenuRenderer] was supplied and
// [Item.SetMenu] succeeded, [Item.PopupMenu] pops up the locally built
// menu; otherwise it falls back to the remote ContextMenu call and the
// item displays its own menu. In addition to the base specification,
// package notifierhost implements a com.canonical.dbusmenu client,
// giving renderers access to menu contents.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/
package notifierhost
