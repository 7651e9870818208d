package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
)

// PointRect is a rectangle in PDF user space (points, bottom-left origin).
type PointRect struct {
	X, Y, W, H float64
}

// maskPixelsPerPoint is the resolution of the stamped mask. Box edges are
// rounded outward, so coverage is never smaller than the requested rect.
const maskPixelsPerPoint = 4

// stampDesc scales the mask to the visible page box and anchors it at the
// lower-left corner. An explicit rotation disables pdfcpu's diagonal default.
const stampDesc = "position:bl, scalefactor:1 rel, rotation:0, opacity:1"

func init() {
	api.DisableConfigDir()
}

// Overlay stamps rects in opaque black over page 1 of in and writes the whole
// document to w.
func (t *Tools) Overlay(ctx context.Context, in string, box Box, rects []PointRect, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mask, err := MaskImage(box, rects, maskPixelsPerPoint)
	if err != nil {
		return err
	}
	var png bytes.Buffer
	if err := imaging.Encode(&png, mask, imaging.PNG); err != nil {
		return fmt.Errorf("encode mask: %w", err)
	}

	wm, err := api.ImageWatermarkForReader(&png, stampDesc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("pdfcpu stamp: %w", err)
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := api.AddWatermarks(f, w, []string{"1"}, wm, t.pdfcpuConfig()); err != nil {
		return fmt.Errorf("pdfcpu: %w", err)
	}
	t.logger.Debug("pdf.overlay.done", "file", in, "rects", len(rects))
	return nil
}

// pdfcpuConfig keeps the classic xref layout so the output stays readable by
// PageBox and by older viewers.
func (t *Tools) pdfcpuConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// MaskImage renders rects as opaque black on a transparent canvas covering
// box at ppp pixels per point.
func MaskImage(box Box, rects []PointRect, ppp float64) (*image.NRGBA, error) {
	w := int(math.Round(box.Width() * ppp))
	h := int(math.Round(box.Height() * ppp))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty page box %+v", box)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	black := image.NewUniform(color.Black)
	for _, r := range rects {
		// flip to a top-left origin
		x0 := int(math.Floor((r.X - box.LLX) * ppp))
		x1 := int(math.Ceil((r.X + r.W - box.LLX) * ppp))
		y0 := h - int(math.Ceil((r.Y+r.H-box.LLY)*ppp))
		y1 := h - int(math.Floor((r.Y-box.LLY)*ppp))
		px := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
		if px.Empty() {
			continue
		}
		draw.Draw(img, px, black, image.Point{}, draw.Src)
	}
	return img, nil
}
