// Command redact runs the full match, mask and guardrail pipeline over a
// person/bank/file tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/export"
	"github.com/joseph-ayodele/receipts-redactor/internal/matcher"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
	"github.com/joseph-ayodele/receipts-redactor/internal/repository"
)

type options struct {
	input, output, work string
	policy              string
	threshold           float64
	workers             int
	cleanup             bool
	report, ledger      string
	useOllama           bool
}

func main() {
	cfg := common.LoadConfig()

	var o options
	fs := newFlagSet(cfg, &o)
	_ = fs.Parse(os.Args[1:])

	if o.input == "" || o.output == "" {
		fs.Usage()
		app.Fatalf("Error: --input and --output are required")
	}
	if err := run(cfg, o); err != nil {
		app.Fatalf("redact: %v", err)
	}
}

// newFlagSet binds the command line onto o. Defaults come from cfg so the
// environment can be overridden per run.
func newFlagSet(cfg *common.Config, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("redact", flag.ExitOnError)
	app.StringVar(fs, &o.input, "i", "input", "", "input root laid out as person/bank/file (required)")
	app.StringVar(fs, &o.output, "o", "output", "", "output root for verified files (required)")
	fs.StringVar(&o.work, "work", cfg.Pipeline.WorkDir, "working directory for masked files awaiting audit")
	fs.StringVar(&o.policy, "policy", cfg.Pipeline.MatchPolicy, "match policy: best or first")
	fs.Float64Var(&o.threshold, "threshold", cfg.Pipeline.MatchThreshold, "confidence cutoff for the first policy")
	fs.IntVar(&o.workers, "workers", cfg.Pipeline.Workers, "files processed in parallel")
	fs.BoolVar(&o.cleanup, "cleanup", false, "remove processed inputs and empty directories afterwards")
	fs.StringVar(&o.report, "report", "", "write an XLSX report to this path")
	fs.StringVar(&o.ledger, "ledger", cfg.Ledger.DSN, "ledger DSN (sqlite:<path> or postgres://...)")
	fs.BoolVar(&o.useOllama, "ollama", false, "use the local Ollama backend")
	return fs
}

func run(cfg *common.Config, o options) error {
	policy, err := matcher.ParsePolicy(o.policy)
	if err != nil {
		return err
	}
	cfg.Pipeline.MatchThreshold = o.threshold
	cfg.Pipeline.Workers = o.workers
	cfg.Pipeline.WorkDir = o.work

	logger := app.NewLogger(os.Stderr)
	c, err := app.Build(cfg, o.useOllama, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []pipeline.Option
	if o.ledger != "" {
		ledger, err := repository.Open(ctx, repository.Config{DSN: o.ledger, DialTimeout: 5 * time.Second}, logger)
		if err != nil {
			return err
		}
		defer ledger.Close()
		opts = append(opts, pipeline.WithRecorder(ledger))
	}

	orch := pipeline.NewOrchestrator(c.Matcher, c.Masker, c.Verifier, pipeline.Config{
		Policy:      policy,
		WorkDir:     o.work,
		OutputDir:   o.output,
		Workers:     o.workers,
		QueueSize:   cfg.Pipeline.QueueSize,
		FileTimeout: cfg.Pipeline.FileTimeout,
		Cleanup:     o.cleanup,
	}, logger, opts...)

	sum, runErr := orch.Run(ctx, o.input)
	fmt.Printf("redact: %d files, %d success, %d no match, %d errors (%d rejected), %d skipped in %s\n",
		sum.Stats.Total, sum.Stats.Success, sum.Stats.NoMatch, sum.Stats.Error, sum.Stats.Rejected,
		sum.Stats.Skipped, sum.Elapsed.Round(time.Millisecond))

	if o.report != "" {
		if err := export.NewService(logger).WriteReport(context.WithoutCancel(ctx), sum, o.report); err != nil {
			return common.WrapError(err, "write report")
		}
		fmt.Printf("redact: report written to %s\n", o.report)
	}
	return runErr
}
