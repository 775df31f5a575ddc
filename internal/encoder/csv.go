package encoder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/report"
)

// CSVEncoder writes delimited-text artifacts
type CSVEncoder struct {
	// BOMPrefix adds a UTF-8 BOM so spreadsheet applications detect the
	// encoding correctly
	BOMPrefix bool
}

// NewCSVEncoder creates a CSV encoder with BOM prefixing enabled
func NewCSVEncoder() *CSVEncoder {
	return &CSVEncoder{BOMPrefix: true}
}

// Format returns the csv artifact encoding
func (e *CSVEncoder) Format() report.Format {
	return report.FormatCSV
}

// Encode writes records as CSV with a header row
func (e *CSVEncoder) Encode(ctx context.Context, path string, records []analysis.Record, meta report.Metadata) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if e.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	columns := columnsFor(records, meta)

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(columns))
	for i, rec := range records {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		for j, col := range columns {
			row[j] = formatCell(rec[col])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// formatCell renders one cell value for delimited output
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
