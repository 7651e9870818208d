// Package classify asks the vision model which bank issued each receipt and
// files the receipts into one folder per bank.
package classify

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/ingest"
	"github.com/joseph-ayodele/receipts-redactor/internal/oracle"
	"github.com/joseph-ayodele/receipts-redactor/internal/utils"
)

// Result is the classification of one file. Bank is empty when the model
// could not tell or the call failed.
type Result struct {
	Path   string
	Bank   string
	Folder string
	Err    error
}

type Config struct {
	// Limit caps concurrent model calls; zero means one goroutine per file.
	Limit int
}

type Service struct {
	classifier oracle.Classifier
	cfg        Config
	logger     *slog.Logger
}

func NewService(c oracle.Classifier, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{classifier: c, cfg: cfg, logger: logger}
}

// ClassifyAll classifies every path concurrently and returns once all calls
// have finished. A failed call only affects its own result. Results keep the
// order of paths.
func (s *Service) ClassifyAll(ctx context.Context, paths []string) []Result {
	log := common.LoggerWith(ctx, s.logger)
	start := time.Now()

	results := make([]Result, len(paths))
	var g errgroup.Group
	if s.cfg.Limit > 0 {
		g.SetLimit(s.cfg.Limit)
	}
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			bank, err := s.classifier.Classify(ctx, oracle.NewDocument(p))
			results[i] = Result{Path: p, Bank: strings.TrimSpace(bank), Err: err}
			results[i].Folder = FolderFor(results[i].Bank)
			if err != nil {
				log.Warn("classify.file.failed", "file", p, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("classify.batch.done", "files", len(paths), "elapsed_ms", time.Since(start).Milliseconds())
	return results
}

// ClassifyDir classifies every receipt under root.
func (s *Service) ClassifyDir(ctx context.Context, root string) ([]Result, error) {
	files, _, err := ingest.Walk(root, ingest.WalkOptions{SkipHidden: true, Logger: s.logger})
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return s.ClassifyAll(ctx, paths), nil
}

// FolderFor maps a model label to a folder name, canonicalizing known bank
// spellings first. Empty labels go to constants.UnknownBank.
func FolderFor(bank string) string {
	canonical, _ := constants.CanonicalBank(bank)
	if canonical == "" {
		return constants.UnknownBank
	}
	if name := FolderName(canonical); name != "" {
		return name
	}
	return constants.UnknownBank
}

var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// FolderName keeps letters, digits, spaces, '-' and '_', turns spaces into
// underscores, folds accents to ASCII and lowercases: "Itaú Unibanco" becomes
// "itau_unibanco".
func FolderName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	folder := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	folded, _, err := transform.String(asciiFold, folder)
	if err != nil {
		folded = folder
	}
	return strings.ToLower(folded)
}

// MoveToBankFolders moves each classified file to outDir/<folder>/<name> and
// returns the destinations. A failed move is logged and skipped.
func (s *Service) MoveToBankFolders(ctx context.Context, results []Result, outDir string) []string {
	log := common.LoggerWith(ctx, s.logger)
	var moved []string
	for _, r := range results {
		folder := r.Folder
		if folder == "" {
			folder = FolderFor(r.Bank)
		}
		dst := filepath.Join(outDir, folder, filepath.Base(r.Path))
		if err := utils.MoveFile(r.Path, dst); err != nil {
			log.Error("classify.move.failed", "file", r.Path, "dest", dst, "error", err)
			continue
		}
		moved = append(moved, dst)
	}
	return moved
}
