// Command matcher finds the best template of a bank for one receipt. The
// winner is ranked on confidence alone; is_match is printed but does not
// change the exit status.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
)

func main() {
	var (
		input, bank string
		useOllama   bool
	)
	fs := flag.NewFlagSet("matcher", flag.ExitOnError)
	app.StringVar(fs, &input, "i", "input", "", "receipt to match (required)")
	app.StringVar(fs, &bank, "n", "name", "", "bank whose templates are tried (required)")
	fs.BoolVar(&useOllama, "ollama", false, "use the local Ollama backend")
	_ = fs.Parse(os.Args[1:])

	if input == "" || bank == "" {
		fs.Usage()
		app.Fatalf("Error: --input and --name are required")
	}
	if err := run(input, bank, useOllama); err != nil {
		app.Fatalf("matcher: %v", err)
	}
}

func run(input, bank string, useOllama bool) error {
	logger := app.NewLogger(os.Stderr)
	c, err := app.Build(common.LoadConfig(), useOllama, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := c.Matcher.BestOfN(ctx, input, bank)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("no templates found for bank %q", bank)
	}
	fmt.Printf("matcher: best template %s.%s\n", res.Template.Name, res.Template.FileExtension)
	fmt.Printf("  is_match:   %t\n", res.IsMatch)
	fmt.Printf("  confidence: %.2f\n", res.Confidence)
	fmt.Printf("  reason:     %s\n", res.Reason)
	return nil
}
