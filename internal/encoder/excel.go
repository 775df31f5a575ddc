package encoder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/report"
)

// ExcelEncoder writes spreadsheet artifacts via excelize
type ExcelEncoder struct{}

// NewExcelEncoder creates an xlsx encoder
func NewExcelEncoder() *ExcelEncoder {
	return &ExcelEncoder{}
}

// Format returns the xlsx artifact encoding
func (e *ExcelEncoder) Format() report.Format {
	return report.FormatExcel
}

// Encode writes records onto a single worksheet with a styled header row
// and, when the metadata requests one, an embedded chart
func (e *ExcelEncoder) Encode(ctx context.Context, path string, records []analysis.Record, meta report.Metadata) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sanitizeSheetName(meta.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet %q: %w", sheet, err)
	}

	columns := columnsFor(records, meta)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for rowIdx, rec := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for colIdx, col := range columns {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, cellValue(rec[col])); err != nil {
				return fmt.Errorf("failed to write row %d: %w", rowIdx, err)
			}
		}
	}

	if meta.Chart != nil && len(records) > 0 {
		if err := e.addChart(f, sheet, columns, len(records), meta.Chart); err != nil {
			return fmt.Errorf("failed to add chart: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// addChart embeds a chart referencing the requested x and y columns
func (e *ExcelEncoder) addChart(f *excelize.File, sheet string, columns []string, rows int, spec *report.ChartSpec) error {
	xCol := columnIndex(columns, spec.XField)
	yCol := columnIndex(columns, spec.YField)
	if xCol < 0 || yCol < 0 {
		// Chart fields not present in the output; skip quietly
		return nil
	}

	xName, _ := excelize.CoordinatesToCellName(xCol+1, 2)
	xEnd, _ := excelize.CoordinatesToCellName(xCol+1, rows+1)
	yName, _ := excelize.CoordinatesToCellName(yCol+1, 2)
	yEnd, _ := excelize.CoordinatesToCellName(yCol+1, rows+1)

	chartType := excelize.Col
	switch spec.Kind {
	case "line":
		chartType = excelize.Line
	case "pie":
		chartType = excelize.Pie
	}

	anchor, _ := excelize.CoordinatesToCellName(len(columns)+2, 2)
	return f.AddChart(sheet, anchor, &excelize.Chart{
		Type: chartType,
		Series: []excelize.ChartSeries{{
			Name:       spec.YField,
			Categories: fmt.Sprintf("%s!%s:%s", sheet, xName, xEnd),
			Values:     fmt.Sprintf("%s!%s:%s", sheet, yName, yEnd),
		}},
		Title: []excelize.RichTextRun{{Text: spec.YField + " by " + spec.XField}},
	})
}

func cellValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return v
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// sanitizeSheetName turns a report title into a legal worksheet name: the
// xlsx format forbids : \ / ? * [ ] and caps names at 31 characters. The
// cut falls on a rune boundary so a multi-byte title stays valid.
func sanitizeSheetName(name string) string {
	const maxRunes = 31

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "Report"
	}

	runes := []rune(cleaned)
	if len(runes) > maxRunes {
		runes = runes[:maxRunes]
	}
	return string(runes)
}
