package ollama

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
)

// Config for the local Ollama backend.
type Config struct {
	Host        string        // default http://localhost:11434
	Model       string        // vision model tag, default qwen2.5vl:7b
	Temperature float32       // 0 keeps judgments repeatable
	Timeout     time.Duration // http client timeout
}

// Backend talks to /api/chat. Ollama only accepts raster images, so PDFs are
// rendered through the Rasterizer first.
type Backend struct {
	cfg    Config
	http   *http.Client
	raster oracle.Rasterizer
	logger *slog.Logger
}

func New(cfg Config, raster oracle.Rasterizer, logger *slog.Logger) *Backend {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5vl:7b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		raster: raster,
		logger: logger,
	}
}
