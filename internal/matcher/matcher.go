// Package matcher picks the template that applies to an input receipt.
//
// Two policies exist and are not interchangeable. Best-of-N is used when the
// bank is known and ranks every template of that bank by confidence alone.
// First-above-threshold is used when the bank is unknown: it scans every bank
// and stops at the first confident positive match.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
)

// DefaultThreshold is the minimum confidence for first-above-threshold.
const DefaultThreshold = 0.95

// Policy names a template selection strategy.
type Policy string

const (
	PolicyBestOfN             Policy = "best-of-n"
	PolicyFirstAboveThreshold Policy = "first-above-threshold"
)

// ParsePolicy accepts the long names and the short CLI forms "best" and "first".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best", string(PolicyBestOfN):
		return PolicyBestOfN, nil
	case "first", string(PolicyFirstAboveThreshold):
		return PolicyFirstAboveThreshold, nil
	default:
		return "", fmt.Errorf("%w: unknown match policy %q", common.ErrInvalidInput, s)
	}
}

// MatchResult is the winning comparison.
type MatchResult struct {
	Template   templates.Template
	Confidence float64
	IsMatch    bool
	Reason     string
}

// TemplateSource is the part of templates.Store the matcher needs.
type TemplateSource interface {
	Load(bank, inputExt string) ([]templates.Template, error)
	Banks() ([]string, error)
}

// Config for the matcher.
type Config struct {
	Threshold float64 // first-above-threshold cutoff; DefaultThreshold when zero
}

type Matcher struct {
	store  TemplateSource
	oracle oracle.Oracle
	cfg    Config
	logger *slog.Logger
}

func New(store TemplateSource, o oracle.Oracle, cfg Config, logger *slog.Logger) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{store: store, oracle: o, cfg: cfg, logger: logger}
}

// Match dispatches to the strategy named by policy. bank is ignored by
// first-above-threshold.
func (m *Matcher) Match(ctx context.Context, policy Policy, inputPath, bank string) (*MatchResult, error) {
	switch policy {
	case PolicyFirstAboveThreshold:
		return m.FirstAboveThreshold(ctx, inputPath, m.cfg.Threshold)
	case PolicyBestOfN, "":
		return m.BestOfN(ctx, inputPath, bank)
	default:
		return nil, fmt.Errorf("%w: unknown match policy %q", common.ErrInvalidInput, policy)
	}
}

// BestOfN compares inputPath against every template of bank, in load order,
// and keeps the highest confidence. is_match is not consulted and ties keep
// the earlier template. A nil result with a nil error means the bank has no
// template for this kind of input. A missing bank directory is returned as a
// *templates.BankNotFoundError.
func (m *Matcher) BestOfN(ctx context.Context, inputPath, bank string) (*MatchResult, error) {
	log := common.LoggerWith(ctx, m.logger).With("file", inputPath, "bank", bank, "policy", PolicyBestOfN)

	tpls, err := m.store.Load(bank, filepath.Ext(inputPath))
	if err != nil {
		return nil, err
	}
	if len(tpls) == 0 {
		log.Info("matcher.no_templates")
		return nil, nil
	}

	start := time.Now()
	input := oracle.NewDocument(inputPath)

	var best *MatchResult
	for _, tpl := range tpls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := m.compare(ctx, log, tpl, input)
		if best == nil || res.Confidence > best.Confidence {
			best = &res
		}
	}

	log.Info("matcher.best_of_n.done",
		"template", best.Template.Name,
		"confidence", best.Confidence,
		"is_match", best.IsMatch,
		"compared", len(tpls),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return best, nil
}

// FirstAboveThreshold scans banks in sorted order and their templates in load
// order, returning the first comparison that is a match with confidence at or
// above threshold. Nothing after that comparison is evaluated. A bank whose
// templates cannot be loaded is skipped.
func (m *Matcher) FirstAboveThreshold(ctx context.Context, inputPath string, threshold float64) (*MatchResult, error) {
	log := common.LoggerWith(ctx, m.logger).With("file", inputPath, "policy", PolicyFirstAboveThreshold)

	banks, err := m.store.Banks()
	if err != nil {
		return nil, err
	}

	input := oracle.NewDocument(inputPath)
	ext := filepath.Ext(inputPath)
	compared := 0

	for _, bank := range banks {
		tpls, err := m.store.Load(bank, ext)
		if err != nil {
			log.Warn("matcher.bank_skipped", "bank", bank, "error", err)
			continue
		}
		for _, tpl := range tpls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			compared++
			res := m.compare(ctx, log, tpl, input)
			if res.IsMatch && res.Confidence >= threshold {
				log.Info("matcher.first_above_threshold.hit",
					"bank", bank, "template", tpl.Name, "confidence", res.Confidence, "compared", compared)
				return &res, nil
			}
		}
	}

	log.Info("matcher.first_above_threshold.miss", "banks", len(banks), "compared", compared, "threshold", threshold)
	return nil, nil
}

func (m *Matcher) compare(ctx context.Context, log *slog.Logger, tpl templates.Template, input oracle.Document) MatchResult {
	r := m.oracle.Compare(ctx, oracle.NewDocument(tpl.ReferencePath), input)
	if r.Kind == oracle.KindError {
		log.Warn("matcher.compare.failed", "template", tpl.Name, "error", r.Err)
	}
	mm := r.MatchOrNoMatch()
	log.Debug("matcher.compare.done", "template", tpl.Name, "confidence", mm.Confidence, "is_match", mm.IsMatch)
	return MatchResult{
		Template:   tpl,
		Confidence: mm.Confidence,
		IsMatch:    mm.IsMatch,
		Reason:     mm.Reason,
	}
}
