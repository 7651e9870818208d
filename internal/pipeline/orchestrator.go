// Package pipeline runs receipts through match, mask and guardrail, one file
// at a time or across a person/bank/file tree.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/async"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/geometry"
	"github.com/joseph-ayodele/receipts-redactor/internal/guardrail"
	"github.com/joseph-ayodele/receipts-redactor/internal/ingest"
	"github.com/joseph-ayodele/receipts-redactor/internal/matcher"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
	"github.com/joseph-ayodele/receipts-redactor/internal/utils"
)

// Matcher selects a template for a file.
type Matcher interface {
	Match(ctx context.Context, policy matcher.Policy, inputPath, bank string) (*matcher.MatchResult, error)
}

// Masker scales a template onto an input and writes the masked copy.
type Masker interface {
	Prepare(ctx context.Context, inputPath string, tpl templates.Template) (geometry.CoordinateSet, error)
	Apply(ctx context.Context, inputPath string, coords geometry.CoordinateSet, outputPath string) bool
}

// Gatekeeper audits a masked file and promotes or rejects it.
type Gatekeeper interface {
	Gate(ctx context.Context, maskedPath, workRoot, outRoot string) (guardrail.Outcome, error)
}

// Recorder persists outcomes. Failures are logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

type Config struct {
	Policy    matcher.Policy
	WorkDir   string // masked files wait here for the guardrail
	OutputDir string // promoted files land here under their relative path
	Workers   int
	QueueSize int
	// FileTimeout bounds one file's whole state machine.
	FileTimeout time.Duration
	// Cleanup removes processed inputs and empty directories after Run.
	Cleanup bool
}

// Outcome is the final state of one file.
type Outcome struct {
	RunID      string              `json:"run_id,omitempty"`
	Path       string              `json:"path"`
	Rel        string              `json:"rel"`
	Person     string              `json:"person,omitempty"`
	Bank       string              `json:"bank,omitempty"`
	State      constants.FileState `json:"state"`
	Template   string              `json:"template,omitempty"`
	Confidence float64             `json:"confidence"`
	Reason     string              `json:"reason,omitempty"`
	Leaked     []string            `json:"leaked_fields,omitempty"`
	OutputPath string              `json:"output_path,omitempty"`
	Err        string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	Duration   time.Duration       `json:"duration"`
}

// Summary is the result of Run.
type Summary struct {
	RunID    string
	Root     string
	Stats    StatsSnapshot
	Outcomes []Outcome
	Removed  []string
	Elapsed  time.Duration
}

type Orchestrator struct {
	matcher  Matcher
	masker   Masker
	gate     Gatekeeper
	recorder Recorder
	cfg      Config
	logger   *slog.Logger
	out      io.Writer

	// lifetime counters for ProcessFile callers such as the daemon
	stats Stats
}

type Option func(*Orchestrator)

// WithRecorder persists every outcome.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithStatusWriter redirects the per-file status lines (stdout by default).
func WithStatusWriter(w io.Writer) Option { return func(o *Orchestrator) { o.out = w } }

func NewOrchestrator(m Matcher, mk Masker, g Gatekeeper, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if cfg.Policy == "" {
		cfg.Policy = matcher.PolicyBestOfN
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{matcher: m, masker: mk, gate: g, cfg: cfg, logger: logger, out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stats returns the counters accumulated by ProcessFile since construction.
func (o *Orchestrator) Stats() StatsSnapshot { return o.stats.Snapshot() }

// ProcessFile runs one file found under root through the state machine.
func (o *Orchestrator) ProcessFile(ctx context.Context, root, path string) Outcome {
	return o.process(ctx, root, path, &o.stats)
}

// Process adapts ProcessFile to the worker queue.
func (o *Orchestrator) Process(ctx context.Context, job async.Job) error {
	out := o.ProcessFile(ctx, job.Root, job.Path)
	if out.State == constants.FileStateError {
		return errors.New(out.Err)
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, root, path string, stats *Stats) (res Outcome) {
	start := time.Now()
	res = Outcome{
		RunID:     common.RunIDFromContext(ctx),
		Path:      path,
		State:     constants.FileStateStart,
		StartedAt: start.UTC(),
	}
	log := common.LoggerWith(ctx, o.logger).With("file", path)

	defer func() {
		res.Duration = time.Since(start)
		stats.Record(res.State)
		o.printStatus(res)
		if o.recorder != nil {
			if err := o.recorder.Record(ctx, res); err != nil {
				log.Warn("pipeline.record_failed", "error", err)
			}
		}
		log.Info("pipeline.file.done", "state", res.State, "elapsed_ms", res.Duration.Milliseconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.FileTimeout)
	defer cancel()

	parts, err := utils.RelParts(root, path)
	if err != nil {
		res.State, res.Err = constants.FileStateError, err.Error()
		return res
	}
	res.Rel = strings.Join(parts, "/")

	person, bank, ok := InferPersonBank(parts)
	if !ok && o.cfg.Policy != matcher.PolicyFirstAboveThreshold {
		res.State, res.Reason = constants.FileStateSkipped, "invalid path structure"
		return res
	}
	res.Person, res.Bank = person, bank

	match, err := o.matcher.Match(ctx, o.cfg.Policy, path, bank)
	switch {
	case errors.Is(err, common.ErrBankNotFound):
		res.State, res.Reason = constants.FileStateNoTemplate, err.Error()
		return res
	case err != nil:
		res.State, res.Err = constants.FileStateError, err.Error()
		return res
	case match == nil:
		res.State, res.Reason = constants.FileStateNoTemplate, "no matching template found"
		return res
	}
	res.State = constants.FileStateMatched
	res.Template = match.Template.BankName + "/" + match.Template.Name + "." + match.Template.FileExtension
	res.Confidence = match.Confidence
	res.Reason = match.Reason
	if res.Bank == "" {
		res.Bank = match.Template.BankName
	}

	coords, err := o.masker.Prepare(ctx, path, match.Template)
	if err != nil {
		res.State, res.Err = constants.FileStateError, err.Error()
		return res
	}
	masked := filepath.Join(o.cfg.WorkDir, filepath.FromSlash(res.Rel))
	if !o.masker.Apply(ctx, path, coords, masked) {
		res.State = constants.FileStateMaskFailed
		return res
	}
	res.State = constants.FileStateMasked

	gate, err := o.gate.Gate(ctx, masked, o.cfg.WorkDir, o.cfg.OutputDir)
	if err != nil {
		res.State, res.Err = constants.FileStateError, err.Error()
		return res
	}
	res.Reason = gate.Result.Reason
	res.Leaked = gate.Result.LeakedFields
	res.OutputPath = gate.Path
	if !gate.Passed() {
		res.State = constants.FileStateRejected
		return res
	}
	res.State = constants.FileStateVerified

	res.State = constants.FileStateDone
	return res
}

// InferPersonBank reads person and bank from the segments of a path relative
// to the batch root (person/bank/file). A file directly inside a bank folder
// belongs to person "unknown". Fewer than two segments cannot be attributed.
func InferPersonBank(parts []string) (person, bank string, ok bool) {
	switch {
	case len(parts) < 2:
		return "", "", false
	case len(parts) == 2:
		return "unknown", parts[0], true
	default:
		return parts[0], parts[1], true
	}
}

func (o *Orchestrator) printStatus(r Outcome) {
	name := r.Rel
	if name == "" {
		name = r.Path
	}
	switch r.State {
	case constants.FileStateDone:
		fmt.Fprintf(o.out, "redactor: '%s' [%s] masked with %s (confidence %.2f), verified: %s\n", name, r.Bank, r.Template, r.Confidence, r.Reason)
	case constants.FileStateRejected:
		fmt.Fprintf(o.out, "redactor: '%s' [%s] rejected by guardrail: %s\n", name, r.Bank, r.Reason)
	case constants.FileStateNoTemplate:
		fmt.Fprintf(o.out, "redactor: '%s' [%s] no match found: %s\n", name, r.Bank, r.Reason)
	case constants.FileStateMaskFailed:
		fmt.Fprintf(o.out, "redactor: '%s' [%s] masking failed with %s: %s\n", name, r.Bank, r.Template, r.Reason)
	case constants.FileStateSkipped:
		fmt.Fprintf(o.out, "redactor: '%s' skipped: %s\n", name, r.Reason)
	default:
		fmt.Fprintf(o.out, "redactor: '%s' [%s] error: %s\n", name, r.Bank, r.Err)
	}
}

// Run processes every receipt under root and returns the batch summary. The
// work and output trees are excluded from the walk when nested in root.
func (o *Orchestrator) Run(ctx context.Context, root string) (Summary, error) {
	runID := uuid.NewString()
	ctx = common.WithRunID(ctx, runID)
	log := common.LoggerWith(ctx, o.logger)
	start := time.Now()

	files, walkStats, err := ingest.Walk(root, ingest.WalkOptions{
		SkipHidden: true,
		Exclude:    []string{o.cfg.WorkDir, o.cfg.OutputDir},
		Logger:     o.logger,
	})
	if err != nil {
		return Summary{RunID: runID, Root: root}, err
	}
	log.Info("pipeline.run.start", "root", root, "files", len(files), "policy", o.cfg.Policy, "workers", o.cfg.Workers,
		"skipped_by_walk", walkStats.Skipped)

	var (
		stats    Stats
		mu       sync.Mutex
		outcomes []Outcome
	)
	proc := async.ProcessorFunc(func(ctx context.Context, job async.Job) error {
		res := o.process(ctx, job.Root, job.Path, &stats)
		mu.Lock()
		outcomes = append(outcomes, res)
		mu.Unlock()
		return nil
	})

	q := async.NewProcessorQueue(proc, o.logger,
		async.WithWorkers(o.cfg.Workers),
		async.WithQueueSize(o.cfg.QueueSize),
		// the per-file deadline is applied inside process
		async.WithProcessTimeout(o.cfg.FileTimeout+time.Minute),
		async.WithBaseContext(ctx),
	)
	for _, f := range files {
		if err := q.Enqueue(ctx, async.Job{Path: f.Path, Root: root, RunID: runID}); err != nil {
			log.Warn("pipeline.run.enqueue_failed", "file", f.Path, "error", err)
			break
		}
	}
	q.Shutdown(context.Background())

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Path < outcomes[j].Path })
	sum := Summary{
		RunID:    runID,
		Root:     root,
		Stats:    stats.Snapshot(),
		Outcomes: outcomes,
	}

	if o.cfg.Cleanup {
		sum.Removed = o.cleanup(log, root)
	}
	sum.Elapsed = time.Since(start)

	log.Info("pipeline.run.done",
		"total", sum.Stats.Total,
		"success", sum.Stats.Success,
		"no_match", sum.Stats.NoMatch,
		"error", sum.Stats.Error,
		"rejected", sum.Stats.Rejected,
		"skipped", sum.Stats.Skipped,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return sum, ctx.Err()
}

func (o *Orchestrator) cleanup(log *slog.Logger, root string) []string {
	var removed []string
	if o.cfg.OutputDir != "" {
		files, err := utils.RemoveProcessed(root, o.cfg.OutputDir)
		if err != nil {
			log.Warn("pipeline.cleanup.inputs_failed", "error", err)
		}
		removed = files
	}
	for _, dir := range []string{root, o.cfg.WorkDir} {
		if dir == "" {
			continue
		}
		dirs, err := utils.RemoveEmptyDirs(dir)
		if err != nil {
			log.Warn("pipeline.cleanup.dirs_failed", "root", dir, "error", err)
		}
		removed = append(removed, dirs...)
	}
	log.Info("pipeline.cleanup.done", "removed", len(removed))
	return removed
}
