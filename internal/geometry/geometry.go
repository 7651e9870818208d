// Package geometry holds the rectangle model shared by templates and masking,
// and the scaler that maps a template's rectangles onto a differently sized input.
package geometry

import (
	"fmt"
	"image"
)

// Rectangle is a pixel-space box with a top-left origin.
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CoordinateSet is an ordered list of rectangles. Order follows authoring and
// carries no meaning for masking.
type CoordinateSet []Rectangle

// Size is a width/height pair in pixels.
type Size struct {
	W int
	H int
}

func (s Size) Valid() bool { return s.W > 0 && s.H > 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// SizeOf returns the dimensions of img.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{W: b.Dx(), H: b.Dy()}
}

// Valid reports whether the rectangle has a positive area.
func (r Rectangle) Valid() bool { return r.Width > 0 && r.Height > 0 }

// Bounds converts r into an image.Rectangle covering [x, x+width] and
// [y, y+height] inclusively.
func (r Rectangle) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width+1, r.Y+r.Height+1)
}

// Scale maps coords from a src-sized reference onto a dst-sized target. Each
// component is multiplied by its axis factor and truncated toward zero.
// A non-positive source dimension returns a copy of coords unchanged.
func Scale(coords CoordinateSet, src, dst Size) CoordinateSet {
	if !src.Valid() {
		return coords.Clone()
	}
	if src == dst {
		return coords.Clone()
	}
	sx := float64(dst.W) / float64(src.W)
	sy := float64(dst.H) / float64(src.H)
	return ScaleF(coords, sx, sy)
}

// ScaleF multiplies every rectangle by the given axis factors with integer truncation.
func ScaleF(coords CoordinateSet, sx, sy float64) CoordinateSet {
	out := make(CoordinateSet, len(coords))
	for i, r := range coords {
		out[i] = Rectangle{
			X:      int(float64(r.X) * sx),
			Y:      int(float64(r.Y) * sy),
			Width:  int(float64(r.Width) * sx),
			Height: int(float64(r.Height) * sy),
		}
	}
	return out
}

// Clone returns an independent copy.
func (c CoordinateSet) Clone() CoordinateSet {
	if c == nil {
		return nil
	}
	out := make(CoordinateSet, len(c))
	copy(out, c)
	return out
}
