package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Config for the external PDF tools.
type Config struct {
	PdftoppmBin string // default "pdftoppm"
	PreviewDPI  int    // default 144, i.e. a 2x render of the 72 dpi page
}

// Tools renders previews through poppler and stamps overlays with pdfcpu.
type Tools struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTools(cfg Config, runner Runner, logger *slog.Logger) *Tools {
	if cfg.PdftoppmBin == "" {
		cfg.PdftoppmBin = "pdftoppm"
	}
	if cfg.PreviewDPI <= 0 {
		cfg.PreviewDPI = 144
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{cfg: cfg, runner: runner, logger: logger}
}

// PreviewDPI is the resolution template rectangles for PDFs are authored in.
func (t *Tools) PreviewDPI() int { return t.cfg.PreviewDPI }

// FirstPagePNG renders page 1 of pdfPath into dir and returns the PNG path.
// The caller owns dir and its cleanup.
func (t *Tools) FirstPagePNG(ctx context.Context, pdfPath, dir string) (string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -f 1 -l 1 -r 144 -png -singlefile <in.pdf> <dir/page>
	_, errb, err := t.runner.Run(ctx, t.cfg.PdftoppmBin, t.logger,
		"-f", "1", "-l", "1", "-r", strconv.Itoa(t.cfg.PreviewDPI), "-png", "-singlefile", pdfPath, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}
	out := prefix + ".png"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("pdftoppm produced no image: %w", err)
	}
	return out, nil
}
