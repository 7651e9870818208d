// Command templates reports how many templates each bank has and, with
// --analyze, how a person/bank/file input tree is distributed.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/joseph-ayodele/receipts-redactor/internal/app"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/ingest"
	"github.com/joseph-ayodele/receipts-redactor/internal/templates"
)

func main() {
	cfg := common.LoadConfig()
	var root, analyze string
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	fs.StringVar(&root, "root", cfg.Templates.Dir, "templates root")
	fs.StringVar(&analyze, "analyze", "", "also analyze this input tree")
	_ = fs.Parse(os.Args[1:])

	if err := countTemplates(root); err != nil {
		app.Fatalf("templates: %v", err)
	}
	if analyze != "" {
		if err := analyzeTree(analyze); err != nil {
			app.Fatalf("templates: %v", err)
		}
	}
}

func countTemplates(root string) error {
	counts, err := templates.NewStore(root, app.NewLogger(os.Stderr)).Count()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BANK\tFILES\tTEMPLATES")
	var files, tpls int
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Bank, c.Files, c.Templates)
		files += c.Files
		tpls += c.Templates
	}
	fmt.Fprintf(tw, "TOTAL (%d banks)\t%d\t%d\n", len(counts), files, tpls)
	return tw.Flush()
}

func analyzeTree(root string) error {
	a, err := ingest.Analyze(root)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s: %d files\n", root, a.TotalFiles)

	fmt.Println("\nby extension:")
	for _, ext := range sortedKeys(a.ByExt) {
		fmt.Printf("  %-12s %d\n", ext, a.ByExt[ext])
	}
	fmt.Println("\nby person:")
	for _, person := range sortedKeys(a.ByPerson) {
		fmt.Printf("  %s\n", person)
		for _, bank := range sortedKeys(a.ByPerson[person]) {
			fmt.Printf("    %-20s %d\n", bank, a.ByPerson[person][bank])
		}
	}
	fmt.Println("\nby bank:")
	for _, bank := range sortedKeys(a.ByBank) {
		fmt.Printf("  %s\n", bank)
		for _, ext := range sortedKeys(a.ByBank[bank]) {
			fmt.Printf("    %-12s %d\n", ext, a.ByBank[bank][ext])
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
