package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
)

// Config for the oracle client.
type Config struct {
	Timeout time.Duration // wall-clock bound for a single model call
}

// Client turns a Backend into an Oracle and a Classifier. It owns the call
// timeout and all response decoding.
type Client struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
}

func NewClient(backend Backend, cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{backend: backend, cfg: cfg, logger: logger}
}

// Compare judges whether input follows the same layout as reference.
func (c *Client) Compare(ctx context.Context, reference, input Document) Result {
	log := common.LoggerWith(ctx, c.logger)
	start := time.Now()

	raw, err := c.generate(ctx, Request{
		Prompt:    ComparePrompt(),
		Documents: []Document{reference, input},
		Shape:     matchShape,
	})
	if err != nil {
		log.Warn("oracle.compare.failed",
			"backend", c.backend.Name(), "reference", reference.Path, "input", input.Path,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return ErrorResult(err)
	}

	m, err := DecodeMatch(raw)
	if err != nil {
		log.Warn("oracle.compare.decode_failed",
			"backend", c.backend.Name(), "error", err, "raw", truncate(string(raw), 2048))
		return ErrorResult(err)
	}

	log.Info("oracle.compare.ok",
		"backend", c.backend.Name(),
		"reference", reference.Path,
		"is_match", m.IsMatch,
		"confidence", m.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return MatchResult(m)
}

// Audit checks a masked document for readable PII.
func (c *Client) Audit(ctx context.Context, doc Document) Result {
	log := common.LoggerWith(ctx, c.logger)
	start := time.Now()

	raw, err := c.generate(ctx, Request{
		Prompt:    AuditPrompt(),
		Documents: []Document{doc},
		Shape:     auditShape,
	})
	if err != nil {
		log.Warn("oracle.audit.failed",
			"backend", c.backend.Name(), "file", doc.Path,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return ErrorResult(err)
	}

	a := DecodeAudit(raw)
	log.Info("oracle.audit.ok",
		"backend", c.backend.Name(),
		"file", doc.Path,
		"has_sensitive_data", a.HasSensitiveData,
		"leaked_fields", a.LeakedFields,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return AuditResult(a)
}

// Classify returns the issuing bank as labelled by the model. An empty string
// means the model could not tell.
func (c *Client) Classify(ctx context.Context, doc Document) (string, error) {
	log := common.LoggerWith(ctx, c.logger)

	raw, err := c.generate(ctx, Request{
		Prompt:    ClassifyPrompt(),
		Documents: []Document{doc},
		Shape:     classifyShape,
	})
	if err != nil {
		log.Warn("oracle.classify.failed", "backend", c.backend.Name(), "file", doc.Path, "error", err)
		return "", err
	}
	bank, err := DecodeClassify(raw)
	if err != nil {
		log.Warn("oracle.classify.decode_failed", "file", doc.Path, "error", err, "raw", truncate(string(raw), 1024))
		return "", err
	}
	log.Info("oracle.classify.ok", "file", doc.Path, "bank", bank)
	return bank, nil
}

func (c *Client) generate(ctx context.Context, req Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return c.backend.Generate(ctx, req)
}
