// Package pdf covers the few PDF operations the redactor needs: page geometry,
// a raster preview of page 1 and black boxes stamped over page 1.
package pdf

import (
	"errors"
	"fmt"
	"math"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/receipts-redactor/internal/geometry"
)

// Box is a page box in PDF user space (points, bottom-left origin).
type Box struct {
	LLX, LLY, URX, URY float64
}

func (b Box) Width() float64  { return b.URX - b.LLX }
func (b Box) Height() float64 { return b.URY - b.LLY }

// PreviewSize is the pixel size of the page rendered at dpi.
func (b Box) PreviewSize(dpi int) geometry.Size {
	f := float64(dpi) / 72.0
	return geometry.Size{
		W: int(math.Round(b.Width() * f)),
		H: int(math.Round(b.Height() * f)),
	}
}

// PageBox returns the visible box of page 1: the CropBox when present,
// otherwise the MediaBox. Both may be inherited from the page tree.
func PageBox(path string) (box Box, err error) {
	defer func() {
		// the parser panics on some malformed files
		if r := recover(); r != nil {
			err = fmt.Errorf("read %s: malformed pdf: %v", path, r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return Box{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if reader.NumPage() < 1 {
		return Box{}, fmt.Errorf("read %s: no pages", path)
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return Box{}, fmt.Errorf("read %s: page 1 missing", path)
	}

	for _, key := range []string{"CropBox", "MediaBox"} {
		if b, ok := inheritedBox(page.V, key); ok {
			return b, nil
		}
	}
	return Box{}, fmt.Errorf("read %s: %w", path, errNoMediaBox)
}

var errNoMediaBox = errors.New("page 1 has no MediaBox")

func inheritedBox(v pdflib.Value, key string) (Box, bool) {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		if arr := v.Key(key); arr.Kind() == pdflib.Array && arr.Len() == 4 {
			b := Box{
				LLX: arr.Index(0).Float64(),
				LLY: arr.Index(1).Float64(),
				URX: arr.Index(2).Float64(),
				URY: arr.Index(3).Float64(),
			}
			// normalize boxes written with swapped corners
			if b.URX < b.LLX {
				b.LLX, b.URX = b.URX, b.LLX
			}
			if b.URY < b.LLY {
				b.LLY, b.URY = b.URY, b.LLY
			}
			if b.Width() > 0 && b.Height() > 0 {
				return b, true
			}
		}
		v = v.Key("Parent")
	}
	return Box{}, false
}

// ToPoints converts preview-pixel rectangles (top-left origin) into user-space
// rectangles on this page. preview is the raster the rectangles were drawn on.
func (b Box) ToPoints(coords geometry.CoordinateSet, preview geometry.Size) []PointRect {
	if !preview.Valid() {
		return nil
	}
	sx := b.Width() / float64(preview.W)
	sy := b.Height() / float64(preview.H)
	out := make([]PointRect, 0, len(coords))
	for _, r := range coords {
		out = append(out, PointRect{
			X: b.LLX + float64(r.X)*sx,
			Y: b.URY - float64(r.Y+r.Height)*sy,
			W: float64(r.Width) * sx,
			H: float64(r.Height) * sy,
		})
	}
	return out
}
