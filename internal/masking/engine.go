// Package masking draws opaque black boxes over template rectangles on images
// and on the first page of PDFs.
package masking

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/core/pdf"
	"github.com/joseph-ayodele/receipts-redactor/internal/geometry"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
)

// PDFTools is the part of pdf.Tools the engine needs.
type PDFTools interface {
	PreviewDPI() int
	Overlay(ctx context.Context, in string, box pdf.Box, rects []pdf.PointRect, w io.Writer) error
}

// Engine writes masked copies of receipts.
type Engine struct {
	pdf    PDFTools
	logger *slog.Logger
}

func NewEngine(tools PDFTools, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{pdf: tools, logger: logger}
}

// Apply masks every rectangle of coords on inputPath and writes the result to
// outputPath. Rectangles are in pixel space of the input image, or of the
// page-1 preview for PDFs. The output only appears once it is complete.
// Failures are logged and reported as false.
func (e *Engine) Apply(ctx context.Context, inputPath string, coords geometry.CoordinateSet, outputPath string) (ok bool) {
	log := common.LoggerWith(ctx, e.logger).With("file", inputPath, "output", outputPath)
	defer func() {
		if r := recover(); r != nil {
			log.Error("masking.panic", "panic", r)
			ok = false
		}
	}()

	start := time.Now()
	ext := filepath.Ext(inputPath)

	var err error
	switch {
	case constants.IsRaster(ext):
		err = e.applyImage(inputPath, coords, outputPath)
	case constants.IsPDF(ext):
		err = e.applyPDF(ctx, inputPath, coords, outputPath)
	default:
		log.Warn("masking.unsupported_extension", "ext", ext)
		return false
	}
	if err != nil {
		log.Error("masking.failed", "error", err)
		return false
	}

	log.Info("masking.ok", "rects", len(coords), "elapsed_ms", time.Since(start).Milliseconds())
	return true
}

// Prepare returns the template's coordinates expressed in inputPath's pixel
// space (the preview raster for PDFs). The reference size comes from the
// decoded reference image, or the preview size of a PDF reference; when it
// cannot be resolved the input size is assumed and nothing is scaled.
// An error means the input itself could not be read.
func (e *Engine) Prepare(ctx context.Context, inputPath string, tpl templates.Template) (geometry.CoordinateSet, error) {
	log := common.LoggerWith(ctx, e.logger).With("file", inputPath, "template", tpl.Name)

	input, err := e.InputSize(inputPath)
	if err != nil {
		return nil, err
	}

	var ref geometry.Size
	switch {
	case tpl.ReferenceImage != nil:
		ref = geometry.SizeOf(tpl.ReferenceImage)
	case tpl.IsPDF():
		if box, err := pdf.PageBox(tpl.ReferencePath); err == nil {
			ref = box.PreviewSize(e.pdf.PreviewDPI())
		} else {
			log.Warn("masking.reference_size_unknown", "reference", tpl.ReferencePath, "error", err)
		}
	}
	if !ref.Valid() {
		ref = input
	}

	if ref == input {
		return tpl.Coordinates.Clone(), nil
	}
	log.Debug("masking.scale", "from", ref.String(), "to", input.String())
	return geometry.Scale(tpl.Coordinates, ref, input), nil
}

// MaskWithTemplate scales the template onto inputPath and applies it.
func (e *Engine) MaskWithTemplate(ctx context.Context, inputPath string, tpl templates.Template, outputPath string) bool {
	coords, err := e.Prepare(ctx, inputPath, tpl)
	if err != nil {
		common.LoggerWith(ctx, e.logger).Error("masking.prepare_failed", "file", inputPath, "error", err)
		return false
	}
	return e.Apply(ctx, inputPath, coords, outputPath)
}

// InputSize is the pixel size rectangles for path are expressed in: the
// image bounds for rasters, the preview size of page 1 for PDFs.
func (e *Engine) InputSize(path string) (geometry.Size, error) {
	ext := filepath.Ext(path)
	switch {
	case constants.IsPDF(ext):
		box, err := pdf.PageBox(path)
		if err != nil {
			return geometry.Size{}, err
		}
		return box.PreviewSize(e.pdf.PreviewDPI()), nil
	case constants.IsRaster(ext):
		f, err := os.Open(path)
		if err != nil {
			return geometry.Size{}, err
		}
		defer func() { _ = f.Close() }()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return geometry.Size{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return geometry.Size{W: cfg.Width, H: cfg.Height}, nil
	default:
		return geometry.Size{}, fmt.Errorf("%w: unsupported extension %q", common.ErrInvalidInput, ext)
	}
}

func (e *Engine) applyImage(in string, coords geometry.CoordinateSet, out string) error {
	format, err := imaging.FormatFromFilename(out)
	if err != nil {
		return err
	}
	src, err := imaging.Open(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}

	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	black := image.NewUniform(color.Black)
	for _, r := range coords {
		box := r.Bounds().Add(b.Min).Intersect(b)
		if box.Empty() {
			continue
		}
		draw.Draw(dst, box, black, image.Point{}, draw.Src)
	}

	return writeAtomic(out, func(f *os.File) error {
		return imaging.Encode(f, dst, format, imaging.JPEGQuality(95))
	})
}

func (e *Engine) applyPDF(ctx context.Context, in string, coords geometry.CoordinateSet, out string) error {
	if e.pdf == nil {
		return fmt.Errorf("pdf masking not configured")
	}
	box, err := pdf.PageBox(in)
	if err != nil {
		return err
	}
	rects := box.ToPoints(coords, box.PreviewSize(e.pdf.PreviewDPI()))

	return writeAtomic(out, func(f *os.File) error {
		return e.pdf.Overlay(ctx, in, box, rects, f)
	})
}

// writeAtomic creates a temp file next to out, lets write fill it and renames
// it into place. The temp file is removed on any failure.
func writeAtomic(out string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(out)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = write(f); err != nil {
		return err
	}
	if err = f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	err = os.Rename(tmp, out)
	return err
}
