// Command guardrails audits masked receipts and promotes the clean ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/ingest"
)

func main() {
	var (
		input, output  string
		useOllama      bool
		deleteRejected bool
	)
	fs := flag.NewFlagSet("guardrails", flag.ExitOnError)
	app.StringVar(fs, &input, "i", "input", "", "masked file or tree (required)")
	app.StringVar(fs, &output, "o", "output", "", "where verified files are promoted (required)")
	fs.BoolVar(&useOllama, "ollama", false, "use the local Ollama backend")
	fs.BoolVar(&deleteRejected, "delete-rejected", false, "delete files that fail the audit instead of keeping them")
	_ = fs.Parse(os.Args[1:])

	if input == "" || output == "" {
		fs.Usage()
		app.Fatalf("Error: --input and --output are required")
	}

	cfg := common.LoadConfig()
	if deleteRejected {
		cfg.Pipeline.RejectMode = common.RejectDelete
	}
	logger := app.NewLogger(os.Stderr)
	c, err := app.Build(cfg, useOllama, logger)
	if err != nil {
		app.Fatalf("guardrails: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := os.Stat(input)
	if err != nil {
		stop()
		app.Fatalf("guardrails: %v", err)
	}

	// a single file is gated relative to its own directory
	root, paths := input, []string{input}
	if info.IsDir() {
		files, _, err := ingest.Walk(input, ingest.WalkOptions{SkipHidden: true, Exclude: []string{output}, Logger: logger})
		if err != nil {
			stop()
			app.Fatalf("guardrails: %v", err)
		}
		paths = paths[:0]
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	} else {
		root = filepath.Dir(input)
	}

	var passed, rejected, failed int
	for _, p := range paths {
		out, err := c.Verifier.Gate(ctx, p, root, output)
		switch {
		case err != nil:
			failed++
			fmt.Printf("guardrails: '%s' error: %v\n", p, err)
		case out.Passed():
			passed++
			fmt.Printf("guardrails: '%s' verified: %s -> %s\n", p, out.Result.Reason, out.Path)
		default:
			rejected++
			fmt.Printf("guardrails: '%s' rejected (%s, leaked %v): %s\n", p, out.Decision, out.Result.LeakedFields, out.Result.Reason)
		}
	}
	fmt.Printf("guardrails: %d files, %d verified, %d rejected, %d errors\n", len(paths), passed, rejected, failed)
	if failed > 0 {
		stop()
		os.Exit(1)
	}
}
