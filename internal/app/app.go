// Package app wires configuration into the components shared by the
// command-line tools and the daemon.
package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/core/pdf"
	"github.com/joseph-ayodele/receipts-redactor/internal/guardrail"
	"github.com/joseph-ayodele/receipts-redactor/internal/masking"
	"github.com/joseph-ayodele/receipts-redactor/internal/matcher"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle/gemini"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle/ollama"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
)

// NewLogger builds the process logger from LOG_FORMAT ("text" or "json") and
// LOG_LEVEL. Text output drops time and level to keep CLI output readable.
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}
	var h slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		}
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Components are the long-lived pieces built from one Config.
type Components struct {
	Config   *common.Config
	PDF      *pdf.Tools
	Oracle   *oracle.Client
	Store    *templates.Store
	Matcher  *matcher.Matcher
	Masker   *masking.Engine
	Verifier *guardrail.Verifier
}

// Build validates cfg and constructs every component. useOllama forces the
// local backend regardless of ORACLE_BACKEND.
func Build(cfg *common.Config, useOllama bool, logger *slog.Logger) (*Components, error) {
	if useOllama {
		cfg.Oracle.Backend = common.BackendOllama
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tools := pdf.NewTools(pdf.Config{
		PdftoppmBin: cfg.PDF.PdftoppmBin,
		PreviewDPI:  cfg.PDF.PreviewDPI,
	}, pdf.ExecRunner{}, logger)

	client := oracle.NewClient(NewBackend(cfg.Oracle, tools, logger), oracle.Config{Timeout: cfg.Oracle.Timeout}, logger)
	store := templates.NewStore(cfg.Templates.Dir, logger)

	return &Components{
		Config:   cfg,
		PDF:      tools,
		Oracle:   client,
		Store:    store,
		Matcher:  matcher.New(store, client, matcher.Config{Threshold: cfg.Pipeline.MatchThreshold}, logger),
		Masker:   masking.NewEngine(tools, logger),
		Verifier: guardrail.NewVerifier(client, guardrail.Config{RejectMode: cfg.Pipeline.RejectMode}, logger),
	}, nil
}

// NewBackend selects the model backend named by cfg.Backend.
func NewBackend(cfg common.OracleConfig, raster oracle.Rasterizer, logger *slog.Logger) oracle.Backend {
	if cfg.Backend == common.BackendOllama {
		return ollama.New(ollama.Config{
			Host:        cfg.OllamaHost,
			Model:       cfg.OllamaModel,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, raster, logger)
	}
	return gemini.New(gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.GeminiModel,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}, logger)
}
