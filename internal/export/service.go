// Package export renders batch results as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
)

const (
	OutcomesSheet = "Outcomes"
	StatsSheet    = "Stats"
)

var outcomeHeaders = []string{
	"File",
	"Person",
	"Bank",
	"State",
	"Template",
	"Confidence",
	"Reason",
	"Leaked Fields",
	"Output Path",
	"Error",
	"Duration (ms)",
}

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ReportXLSX returns an XLSX workbook (as bytes) with one row per outcome and
// a sheet with the run counters.
func (s *Service) ReportXLSX(ctx context.Context, sum pipeline.Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// The default "Sheet1" becomes the outcomes sheet.
	if err := f.SetSheetName(f.GetSheetName(0), OutcomesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(StatsSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(OutcomesSheet)
	f.SetActiveSheet(idx)

	for i, h := range outcomeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(OutcomesSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(OutcomesSheet, 1, 1, style)
	}

	row := 2
	for _, o := range sum.Outcomes {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(OutcomesSheet, cell, v)
		}
		file := o.Rel
		if file == "" {
			file = o.Path
		}
		write(1, file)
		write(2, o.Person)
		write(3, o.Bank)
		write(4, string(o.State))
		write(5, o.Template)
		write(6, o.Confidence)
		write(7, truncate(o.Reason, 240))
		write(8, strings.Join(o.Leaked, ", "))
		write(9, o.OutputPath)
		write(10, o.Err)
		write(11, o.Duration.Milliseconds())
		row++
	}

	_ = f.SetColWidth(OutcomesSheet, "A", "A", 48) // file
	_ = f.SetColWidth(OutcomesSheet, "B", "C", 16)
	_ = f.SetColWidth(OutcomesSheet, "D", "D", 14)
	_ = f.SetColWidth(OutcomesSheet, "E", "E", 32)
	_ = f.SetColWidth(OutcomesSheet, "G", "G", 60) // reason
	_ = f.SetColWidth(OutcomesSheet, "H", "J", 36)
	if len(sum.Outcomes) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(outcomeHeaders), row-1)
		_ = f.AutoFilter(OutcomesSheet, "A1:"+last, nil)
	}

	stats := [][2]any{
		{"Run ID", sum.RunID},
		{"Root", sum.Root},
		{"Total", sum.Stats.Total},
		{"Success", sum.Stats.Success},
		{"No Match", sum.Stats.NoMatch},
		{"Error", sum.Stats.Error},
		{"Rejected", sum.Stats.Rejected},
		{"Skipped", sum.Stats.Skipped},
		{"Elapsed (s)", sum.Elapsed.Seconds()},
	}
	for i, kv := range stats {
		_ = f.SetCellValue(StatsSheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(StatsSheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(StatsSheet, "A", "A", 14)
	_ = f.SetColWidth(StatsSheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	common.LoggerWith(ctx, s.logger).Info("export.xlsx.ok",
		"run_id", sum.RunID,
		"rows", len(sum.Outcomes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteReport renders the report and writes it to path.
func (s *Service) WriteReport(ctx context.Context, sum pipeline.Summary, path string) error {
	data, err := s.ReportXLSX(ctx, sum)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
