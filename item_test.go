package notifierhost

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProxy is a canned-value transport for exercising Item without a
// bus connection.
type fakeProxy struct {
	destination string

	status    string
	statusErr error

	menuPath dbus.ObjectPath
	menuErr  error

	contextMenuErr   error
	contextMenuCalls [][2]int32

	properties  map[string]dbus.Variant
	propertyErr error
}

func (p *fakeProxy) Destination() string {
	return p.destination
}

func (p *fakeProxy) Status(ctx context.Context) (string, error) {
	return p.status, p.statusErr
}

func (p *fakeProxy) Menu(ctx context.Context) (dbus.ObjectPath, error) {
	return p.menuPath, p.menuErr
}

func (p *fakeProxy) ContextMenu(ctx context.Context, x, y int32) error {
	p.contextMenuCalls = append(p.contextMenuCalls, [2]int32{x, y})
	return p.contextMenuErr
}

func (p *fakeProxy) Activate(ctx context.Context, x, y int32) error {
	return nil
}

func (p *fakeProxy) SecondaryActivate(ctx context.Context, x, y int32) error {
	return nil
}

func (p *fakeProxy) Scroll(ctx context.Context, delta int32, orientation string) error {
	return nil
}

func (p *fakeProxy) Property(ctx context.Context, name string) (dbus.Variant, error) {
	if p.propertyErr != nil {
		return dbus.Variant{}, p.propertyErr
	}

	return p.properties[name], nil
}

type fakeMenu struct {
	destination string
	path        dbus.ObjectPath
	attached    []Surface
	popups      []PointerEvent
}

func (m *fakeMenu) AttachTo(surface Surface) {
	m.attached = append(m.attached, surface)
}

func (m *fakeMenu) PopupAtPointer(event PointerEvent) {
	m.popups = append(m.popups, event)
}

type fakeRenderer struct {
	err   error
	menus []*fakeMenu
}

func (r *fakeRenderer) RenderMenu(destination string, path dbus.ObjectPath) (ToolkitMenu, error) {
	if r.err != nil {
		return nil, r.err
	}

	menu := &fakeMenu{destination: destination, path: path}
	r.menus = append(r.menus, menu)

	return menu, nil
}

func TestItemStatusQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid status", func(t *testing.T) {
		item := NewItemWithProxy(&fakeProxy{status: "NeedsAttention"}, nil)

		status, err := item.Status(ctx)
		assert.NoError(t, err)
		assert.Equal(t, ItemStatusNeedsAttention, status)
	})

	t.Run("Transport failure is not an invalid status", func(t *testing.T) {
		transportErr := errors.New("destination unreachable")
		item := NewItemWithProxy(&fakeProxy{statusErr: transportErr}, nil)

		_, err := item.Status(ctx)
		assert.ErrorIs(t, err, transportErr)

		var statusErr *InvalidStatusError
		assert.False(t, errors.As(err, &statusErr))
	})

	t.Run("Unknown status value", func(t *testing.T) {
		item := NewItemWithProxy(&fakeProxy{status: "Banana"}, nil)

		_, err := item.Status(ctx)

		var statusErr *InvalidStatusError
		assert.True(t, errors.As(err, &statusErr))
		assert.Equal(t, "Banana", statusErr.Value)
	})
}

func TestItemSetMenu(t *testing.T) {
	ctx := context.Background()

	t.Run("Builds menu from advertised path", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
		renderer := &fakeRenderer{}
		item := NewItemWithProxy(proxy, renderer)

		assert.NoError(t, item.SetMenu(ctx))
		require.Len(t, renderer.menus, 1)
		assert.Equal(t, ":1.7", renderer.menus[0].destination)
		assert.Equal(t, dbus.ObjectPath("/MenuBar"), renderer.menus[0].path)
	})

	t.Run("Replaces previously built menu", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
		renderer := &fakeRenderer{}
		item := NewItemWithProxy(proxy, renderer)

		assert.NoError(t, item.SetMenu(ctx))
		assert.NoError(t, item.SetMenu(ctx))
		require.Len(t, renderer.menus, 2)

		// The second menu is the one popped up afterwards.
		assert.NoError(t, item.PopupMenu(ctx, "surface", "event", 0, 0))
		assert.Empty(t, renderer.menus[0].popups)
		assert.Len(t, renderer.menus[1].popups, 1)
	})

	t.Run("Transport failure keeps the previous menu", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
		renderer := &fakeRenderer{}
		item := NewItemWithProxy(proxy, renderer)

		require.NoError(t, item.SetMenu(ctx))

		proxy.menuErr = errors.New("call timed out")
		assert.ErrorIs(t, item.SetMenu(ctx), proxy.menuErr)

		// The stale menu still serves popups; no remote fallback.
		assert.NoError(t, item.PopupMenu(ctx, "surface", "event", 10, 20))
		require.Len(t, renderer.menus, 1)
		assert.Len(t, renderer.menus[0].popups, 1)
		assert.Empty(t, proxy.contextMenuCalls)
	})

	t.Run("Renderer failure keeps the previous menu", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
		renderer := &fakeRenderer{}
		item := NewItemWithProxy(proxy, renderer)

		require.NoError(t, item.SetMenu(ctx))

		renderer.err = errors.New("toolkit not initialized")
		assert.Error(t, item.SetMenu(ctx))

		assert.NoError(t, item.PopupMenu(ctx, "surface", "event", 0, 0))
		assert.Len(t, renderer.menus[0].popups, 1)
	})

	t.Run("No renderer", func(t *testing.T) {
		item := NewItemWithProxy(&fakeProxy{menuPath: "/MenuBar"}, nil)

		assert.ErrorIs(t, item.SetMenu(ctx), ErrNoRenderer)
	})
}

func TestItemPopupMenu(t *testing.T) {
	ctx := context.Background()

	t.Run("Local menu attaches and pops up without remote call", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
		renderer := &fakeRenderer{}
		item := NewItemWithProxy(proxy, renderer)
		require.NoError(t, item.SetMenu(ctx))

		assert.NoError(t, item.PopupMenu(ctx, "surface", "event", 100, 200))

		menu := renderer.menus[0]
		assert.Equal(t, []Surface{"surface"}, menu.attached)
		assert.Equal(t, []PointerEvent{"event"}, menu.popups)
		assert.Empty(t, proxy.contextMenuCalls)
	})

	t.Run("Reattaches on every popup", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
		renderer := &fakeRenderer{}
		item := NewItemWithProxy(proxy, renderer)
		require.NoError(t, item.SetMenu(ctx))

		assert.NoError(t, item.PopupMenu(ctx, "first", "e1", 0, 0))
		assert.NoError(t, item.PopupMenu(ctx, "second", "e2", 0, 0))

		assert.Equal(t, []Surface{"first", "second"}, renderer.menus[0].attached)
	})

	t.Run("Remote fallback passes coordinates verbatim", func(t *testing.T) {
		proxy := &fakeProxy{destination: ":1.7"}
		item := NewItemWithProxy(proxy, nil)

		assert.NoError(t, item.PopupMenu(ctx, "surface", "event", 320, -15))
		assert.Equal(t, [][2]int32{{320, -15}}, proxy.contextMenuCalls)
	})

	t.Run("Remote fallback returns the transport error verbatim", func(t *testing.T) {
		proxy := &fakeProxy{contextMenuErr: errors.New("no reply")}
		item := NewItemWithProxy(proxy, nil)

		err := item.PopupMenu(ctx, "surface", "event", 1, 2)
		assert.Equal(t, proxy.contextMenuErr, err)
	})
}

func TestItemIcon(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolves best pixmap and scales it", func(t *testing.T) {
		small := make([]byte, 4*2*2)
		large := make([]byte, 4*8*8)
		proxy := &fakeProxy{
			properties: map[string]dbus.Variant{
				"IconPixmap": dbus.MakeVariant([][]any{
					{int32(2), int32(2), small},
					{int32(8), int32(8), large},
				}),
			},
		}
		item := NewItemWithProxy(proxy, nil)

		icon := item.Icon(ctx, 4, 1)
		require.NotNil(t, icon)
		assert.Equal(t, int32(4), icon.Width)
		assert.Equal(t, int32(4), icon.Height)
	})

	t.Run("Transport failure degrades to nil", func(t *testing.T) {
		proxy := &fakeProxy{propertyErr: errors.New("no reply")}
		item := NewItemWithProxy(proxy, nil)

		assert.Nil(t, item.Icon(ctx, 22, 1))
	})

	t.Run("Undecodable pixmap degrades to nil", func(t *testing.T) {
		proxy := &fakeProxy{
			properties: map[string]dbus.Variant{
				"IconPixmap": dbus.MakeVariant("not a pixmap"),
			},
		}
		item := NewItemWithProxy(proxy, nil)

		assert.Nil(t, item.Icon(ctx, 22, 1))
	})

	t.Run("Nil resolver degrades to nil", func(t *testing.T) {
		item := NewItemWithProxy(&fakeProxy{}, nil)
		item.SetIconResolver(nil)

		assert.Nil(t, item.Icon(ctx, 22, 1))
	})
}

func TestItemCloseReleasesMenu(t *testing.T) {
	ctx := context.Background()

	proxy := &fakeProxy{destination: ":1.7", menuPath: "/MenuBar"}
	renderer := &fakeRenderer{}
	item := NewItemWithProxy(proxy, renderer)
	require.NoError(t, item.SetMenu(ctx))

	assert.NoError(t, item.Close())

	// With the menu released, popups fall back to the remote call.
	assert.NoError(t, item.PopupMenu(ctx, "surface", "event", 5, 6))
	assert.Equal(t, [][2]int32{{5, 6}}, proxy.contextMenuCalls)
}
