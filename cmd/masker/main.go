// Command masker matches and masks receipts without the guardrail step. With
// -n it masks a single file; otherwise it walks a person/bank/file tree.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/ingest"
	"github.com/joseph-ayodele/receipts-redactor/internal/matcher"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
	"github.com/joseph-ayodele/receipts-redactor/internal/utils"
)

type templateMatcher interface {
	BestOfN(ctx context.Context, inputPath, bank string) (*matcher.MatchResult, error)
}

type templateMasker interface {
	MaskWithTemplate(ctx context.Context, inputPath string, tpl templates.Template, outputPath string) bool
}

var (
	errNoTemplate = errors.New("no template found")
	errMaskFailed = errors.New("masking failed")
)

func main() {
	var (
		input, output, bank string
		useOllama           bool
	)
	fs := flag.NewFlagSet("masker", flag.ExitOnError)
	app.StringVar(fs, &input, "i", "input", "", "receipt file, or tree root in batch mode (required)")
	app.StringVar(fs, &output, "o", "output", "", "output file, or output root in batch mode (required)")
	app.StringVar(fs, &bank, "n", "name", "", "bank name; enables single-file mode")
	fs.BoolVar(&useOllama, "ollama", false, "use the local Ollama backend")
	_ = fs.Parse(os.Args[1:])

	if input == "" || output == "" {
		fs.Usage()
		app.Fatalf("Error: --input and --output are required")
	}

	logger := app.NewLogger(os.Stderr)
	c, err := app.Build(common.LoadConfig(), useOllama, logger)
	if err != nil {
		app.Fatalf("masker: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bank != "" {
		err = maskOne(ctx, c, input, bank, singleOutput(input, output))
	} else {
		err = maskTree(ctx, c, input, output, logger)
	}
	if err != nil {
		stop()
		app.Fatalf("masker: %v", err)
	}
}

// singleOutput puts the masked file inside output when output is a directory.
func singleOutput(input, output string) string {
	if info, err := os.Stat(output); (err == nil && info.IsDir()) || strings.HasSuffix(output, string(filepath.Separator)) {
		return filepath.Join(output, filepath.Base(input))
	}
	return output
}

// maskFile masks input with the highest-confidence template of bank. The
// model's is_match verdict does not veto the winner.
func maskFile(ctx context.Context, m templateMatcher, mk templateMasker, input, bank, output string) (*matcher.MatchResult, error) {
	res, err := m.BestOfN(ctx, input, bank)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNoTemplate
	}
	if !mk.MaskWithTemplate(ctx, input, res.Template, output) {
		return res, errMaskFailed
	}
	return res, nil
}

func maskOne(ctx context.Context, c *app.Components, input, bank, output string) error {
	res, err := maskFile(ctx, c.Matcher, c.Masker, input, bank, output)
	if err != nil {
		return fmt.Errorf("%s in bank %q: %w", input, bank, err)
	}
	fmt.Printf("masker: '%s' masked with %s.%s (confidence %.2f) -> %s\n",
		input, res.Template.Name, res.Template.FileExtension, res.Confidence, output)
	return nil
}

func maskTree(ctx context.Context, c *app.Components, root, outRoot string, logger *slog.Logger) error {
	files, _, err := ingest.Walk(root, ingest.WalkOptions{SkipHidden: true, Exclude: []string{outRoot}, Logger: logger})
	if err != nil {
		return err
	}
	var masked, noMatch, failed int
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		parts, err := utils.RelParts(root, f.Path)
		if err != nil {
			return err
		}
		_, bank, ok := pipeline.InferPersonBank(parts)
		if !ok {
			fmt.Printf("masker: '%s' skipped: invalid path structure\n", f.Rel)
			continue
		}
		dst := filepath.Join(outRoot, filepath.FromSlash(f.Rel))
		res, err := maskFile(ctx, c.Matcher, c.Masker, f.Path, bank, dst)
		switch {
		case errors.Is(err, errMaskFailed):
			failed++
			fmt.Printf("masker: '%s' [%s] masking failed\n", f.Rel, bank)
			continue
		case err != nil:
			noMatch++
			fmt.Printf("masker: '%s' [%s] no match found: %v\n", f.Rel, bank, err)
			continue
		}
		masked++
		fmt.Printf("masker: '%s' [%s] masked with %s.%s (confidence %.2f)\n",
			f.Rel, bank, res.Template.Name, res.Template.FileExtension, res.Confidence)
	}
	fmt.Printf("masker: %d files, %d masked, %d no match, %d failed\n", len(files), masked, noMatch, failed)
	return nil
}
