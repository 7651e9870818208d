// Command classify asks the vision model which bank issued each receipt and
// moves the files into one folder per bank.
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
)

func main() {
	var (
		input, output string
		useOllama     bool
		limit         int
	)
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	app.StringVar(fs, &input, "i", "input", "", "directory with receipts to classify (required)")
	app.StringVar(fs, &output, "o", "output", "", "directory receiving one folder per bank (required)")
	fs.BoolVar(&useOllama, "ollama", false, "use the local Ollama backend")
	fs.IntVar(&limit, "limit", 0, "max concurrent model calls, 0 for no limit")
	_ = fs.Parse(os.Args[1:])

	if input == "" || output == "" {
		fs.Usage()
		app.Fatalf("Error: --input and --output are required")
	}
	if err := run(input, output, useOllama, limit); err != nil {
		app.Fatalf("classify: %v", err)
	}
}

func run(input, output string, useOllama bool, limit int) error {
	logger := app.NewLogger(os.Stderr)
	c, err := app.Build(common.LoadConfig(), useOllama, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := classify.NewService(c.Oracle, classify.Config{Limit: limit}, logger)
	results, err := svc.ClassifyDir(ctx, input)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("classify: '%s' -> %s (error: %v)\n", r.Path, r.Folder, r.Err)
			continue
		}
		fmt.Printf("classify: '%s' -> %s\n", r.Path, r.Folder)
	}
	moved := svc.MoveToBankFolders(ctx, results, output)
	fmt.Printf("classify: %d files classified, %d moved into %s\n", len(results), len(moved), output)
	return nil
}
