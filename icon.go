package notifierhost

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Icon represents one icon bitmap of a tray item.
//
// Bytes holds Width×Height pixels in ARGB32 format, network byte
// order, as carried on the wire by the IconPixmap family of properties.
type Icon struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// NewIconFromDBusPixmap returns a new [Icon] from a D-Bus pixmap.
//
// Format of pixmap is as follows
//
//	[<width>, <height>, <bytes>]
//
// Where:
//   - <width>: width of the icon (int32)
//   - <height>: height of the icon (int32)
//   - <bytes>: content of the icon ([]byte)
func NewIconFromDBusPixmap(pixmap any) (*Icon, error) {
	data, ok := pixmap.([]any)
	if !ok || len(data) != 3 {
		return nil, fmt.Errorf("invalid pixmap format: expected a slice of 3 elements")
	}

	width, ok := data[0].(int32)
	if !ok {
		return nil, fmt.Errorf("invalid width type: expected int32")
	}

	height, ok := data[1].(int32)
	if !ok {
		return nil, fmt.Errorf("invalid height type: expected int32")
	}

	bytes, ok := data[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid bytes format: expected []byte")
	}

	return &Icon{
		Width:  width,
		Height: height,
		Bytes:  bytes,
	}, nil
}

// Image converts the icon to an [*image.RGBA].
func (icon *Icon) Image() (*image.RGBA, error) {
	if int64(len(icon.Bytes)) != 4*int64(icon.Width)*int64(icon.Height) {
		return nil, fmt.Errorf("pixmap size %d does not match %dx%d", len(icon.Bytes), icon.Width, icon.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(icon.Width), int(icon.Height)))

	// ARGB in network byte order to RGBA.
	for i := 0; i+3 < len(icon.Bytes); i += 4 {
		img.Pix[i] = icon.Bytes[i+1]
		img.Pix[i+1] = icon.Bytes[i+2]
		img.Pix[i+2] = icon.Bytes[i+3]
		img.Pix[i+3] = icon.Bytes[i]
	}

	return img, nil
}

// NewIconFromImage returns a new [Icon] holding img re-encoded as an
// ARGB32 pixmap.
func NewIconFromImage(img image.Image) *Icon {
	bounds := img.Bounds().Canon()

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	}

	bytes := make([]byte, len(rgba.Pix))
	for i := 0; i+3 < len(rgba.Pix); i += 4 {
		bytes[i] = rgba.Pix[i+3]
		bytes[i+1] = rgba.Pix[i]
		bytes[i+2] = rgba.Pix[i+1]
		bytes[i+3] = rgba.Pix[i+2]
	}

	return &Icon{
		Width:  int32(bounds.Dx()),
		Height: int32(bounds.Dy()),
		Bytes:  bytes,
	}
}

// Scaled returns the icon scaled to px×px pixels. The receiver is
// returned unchanged if it already has that size.
func (icon *Icon) Scaled(px int32) (*Icon, error) {
	if icon.Width == px && icon.Height == px {
		return icon, nil
	}

	src, err := icon.Image()
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(px), int(px)))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return NewIconFromImage(dst), nil
}

// IconSet is a collection of the same icon in different sizes, as
// carried by one IconPixmap property value.
type IconSet struct {
	Icons []*Icon
}

// NewIconSetFromDBusProperty returns a new [IconSet] from the value of
// an IconPixmap property, which is an array of pixmaps in the format
// accepted by [NewIconFromDBusPixmap].
func NewIconSetFromDBusProperty(data any) (*IconSet, error) {
	pixmaps, ok := data.([][]any)
	if !ok {
		return nil, fmt.Errorf("invalid pixmap array format")
	}

	set := &IconSet{Icons: make([]*Icon, 0, len(pixmaps))}

	for _, pixmap := range pixmaps {
		icon, err := NewIconFromDBusPixmap(pixmap)
		if err != nil {
			continue
		}

		set.Icons = append(set.Icons, icon)
	}

	return set, nil
}

// Best returns the smallest icon that still covers px pixels on its
// shorter side, or the largest available one if none does. It returns
// nil for an empty set.
func (set *IconSet) Best(px int32) *Icon {
	var best *Icon

	for _, icon := range set.Icons {
		if icon.Width <= 0 || icon.Height <= 0 {
			continue
		}

		if best == nil {
			best = icon
			continue
		}

		side := min(icon.Width, icon.Height)
		bestSide := min(best.Width, best.Height)

		switch {
		case bestSide < px && side > bestSide:
			best = icon
		case side >= px && side < bestSide:
			best = icon
		}
	}

	return best
}

// IconResolver resolves a displayable icon for a tray item. Resolution
// failures are non-propagating: an implementation returns nil rather
// than an error, since many items have no icon or an undecodable one.
type IconResolver interface {
	ResolveIcon(ctx context.Context, proxy Proxy, size, scale int32) *Icon
}

// PixmapResolver is the default [IconResolver]. It prefers a themed
// icon by name when a Theme lookup is configured and otherwise decodes
// the IconPixmap property, picking the best fitting pixmap and scaling
// it to the requested size.
type PixmapResolver struct {
	// Theme resolves a freedesktop icon name into a bitmap of px
	// pixels. Theme lookup belongs to the toolkit; when nil, IconName
	// is ignored.
	Theme func(name string, px int32) *Icon
}

func (r *PixmapResolver) ResolveIcon(ctx context.Context, proxy Proxy, size, scale int32) *Icon {
	px := size * scale
	if px <= 0 {
		return nil
	}

	if r.Theme != nil {
		if value, err := proxy.Property(ctx, "IconName"); err == nil {
			if name, ok := value.Value().(string); ok && name != "" {
				if icon := r.Theme(name, px); icon != nil {
					return icon
				}
			}
		}
	}

	value, err := proxy.Property(ctx, "IconPixmap")
	if err != nil {
		return nil
	}

	set, err := NewIconSetFromDBusProperty(value.Value())
	if err != nil {
		return nil
	}

	best := set.Best(px)
	if best == nil {
		return nil
	}

	scaled, err := best.Scaled(px)
	if err != nil {
		return nil
	}

	return scaled
}
