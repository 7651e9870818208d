// Command organize groups receipts named "xxx-Name.ext" into per-person
// folders, optionally classifying each person's receipts by bank.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/classify"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/organize"
)

func main() {
	var (
		input, output string
		withClassify  bool
		useOllama     bool
	)
	fs := flag.NewFlagSet("organize", flag.ExitOnError)
	app.StringVar(fs, &input, "i", "input", "", "directory with receipts to organize (required)")
	app.StringVar(fs, &output, "o", "output", "organized_output", "output directory")
	fs.BoolVar(&withClassify, "classify", false, "classify each person's receipts into bank folders")
	fs.BoolVar(&useOllama, "ollama", false, "use the local Ollama backend when classifying")
	_ = fs.Parse(os.Args[1:])

	if input == "" {
		fs.Usage()
		app.Fatalf("Error: --input is required")
	}
	if err := run(input, output, withClassify, useOllama); err != nil {
		app.Fatalf("organize: %v", err)
	}
}

func run(input, output string, withClassify, useOllama bool) error {
	logger := app.NewLogger(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rep organize.Report
		err error
	)
	if withClassify {
		c, err := app.Build(common.LoadConfig(), useOllama, logger)
		if err != nil {
			return err
		}
		scratch, err := os.MkdirTemp("", "redactor-organize-*")
		if err != nil {
			return err
		}
		svc := classify.NewService(c.Oracle, classify.Config{}, logger)
		rep, err = organize.OrganizeAndClassify(ctx, input, output, scratch, svc, logger)
		if err != nil {
			return err
		}
	} else {
		rep, err = organize.Organize(ctx, input, output, logger)
		if err != nil {
			return err
		}
	}

	for _, p := range rep.People() {
		fmt.Printf("organize: %s: %d files\n", p, len(rep.Moved[p]))
	}
	fmt.Printf("organize: %d people, %d skipped, %d failed\n", len(rep.Moved), len(rep.Skipped), len(rep.Failed))
	return nil
}
