package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
)

func (b *Backend) Name() string { return "ollama" }

// Generate sends one user message with every document attached as a base64
// image. Temporary rasters of PDF pages are removed before returning.
func (b *Backend) Generate(ctx context.Context, req oracle.Request) ([]byte, error) {
	docs, cleanup, err := b.rasterize(ctx, req.Documents)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(docs))
	for _, d := range docs {
		data, err := d.Base64()
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}

	body := map[string]any{
		"model":  b.cfg.Model,
		"stream": false,
		"format": "json",
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt, "images": images},
		},
		"options": map[string]any{"temperature": b.cfg.Temperature},
	}

	endpoint := strings.TrimRight(b.cfg.Host, "/") + "/api/chat"
	raw, _, err := oracle.SendJSON(ctx, b.http, endpoint, body, nil, b.logger)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	var cr struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if cr.Error != "" {
		return nil, fmt.Errorf("ollama: %s", cr.Error)
	}
	if strings.TrimSpace(cr.Message.Content) == "" {
		return nil, errors.New("empty ollama response")
	}
	return []byte(cr.Message.Content), nil
}

// rasterize swaps every PDF document for a PNG of its first page. The returned
// cleanup is always safe to call.
func (b *Backend) rasterize(ctx context.Context, docs []oracle.Document) ([]oracle.Document, func(), error) {
	noop := func() {}
	hasPDF := false
	for _, d := range docs {
		if d.IsPDF() {
			hasPDF = true
			break
		}
	}
	if !hasPDF {
		return docs, noop, nil
	}
	if b.raster == nil {
		return nil, noop, errors.New("ollama: PDF input requires a rasterizer")
	}

	dir, err := os.MkdirTemp("", "redactor-ollama-*")
	if err != nil {
		return nil, noop, fmt.Errorf("mkdtemp: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			b.logger.Warn("oracle.ollama.cleanup_failed", "dir", dir, "error", err)
		}
	}

	out := make([]oracle.Document, len(docs))
	for i, d := range docs {
		if !d.IsPDF() {
			out[i] = d
			continue
		}
		sub, err := os.MkdirTemp(dir, "page-*")
		if err != nil {
			return nil, cleanup, fmt.Errorf("mkdtemp: %w", err)
		}
		png, err := b.raster.FirstPagePNG(ctx, d.Path, sub)
		if err != nil {
			return nil, cleanup, fmt.Errorf("rasterize %s: %w", d.Path, err)
		}
		out[i] = oracle.NewDocument(png)
	}
	return out, cleanup, nil
}
