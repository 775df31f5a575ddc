// Command analyze runs the analysis engine over a CSV file offline and
// prints the findings as JSON. Useful for inspecting a data set before
// submitting it as a report.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/Josue1991/Business-Report/internal/analysis"
)

type fieldFindings struct {
	Field     string                   `json:"field"`
	Anomalies *analysis.AnomalyResult  `json:"anomalies,omitempty"`
	Forecast  *analysis.ForecastResult `json:"forecast,omitempty"`
}

type output struct {
	Records      int                         `json:"records"`
	Quality      analysis.DataQualityMetrics `json:"quality"`
	Fields       []fieldFindings             `json:"fields,omitempty"`
	Correlations []analysis.Correlation      `json:"correlations,omitempty"`
}

func main() {
	var (
		inputPath = flag.String("in", "", "input CSV file (required)")
		threshold = flag.Float64("threshold", analysis.DefaultZScoreThreshold, "z-score anomaly threshold")
		periods   = flag.Int("periods", 3, "forecast periods")
		pretty    = flag.Bool("pretty", true, "indent JSON output")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	records, fields, err := readCSV(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *inputPath, err)
		os.Exit(1)
	}

	out := output{
		Records: len(records),
		Quality: analysis.NewQualityScorer(nil).Score(records, fields),
	}

	var numericFields []string
	for _, field := range fields {
		if !analysis.IsNumericField(records, field) {
			continue
		}
		numericFields = append(numericFields, field)

		col := analysis.NumericColumn(records, field)
		findings := fieldFindings{Field: field}

		if res, err := analysis.Detect(col, *threshold, analysis.MethodZScore); err == nil {
			findings.Anomalies = res
		}
		if res, err := analysis.Forecast(col, *periods); err == nil {
			findings.Forecast = res
		}

		if findings.Anomalies != nil || findings.Forecast != nil {
			out.Fields = append(out.Fields, findings)
		}
	}

	out.Correlations = analysis.FindCorrelations(records, numericFields)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		os.Exit(1)
	}
}

// readCSV loads a headered CSV into records, parsing numeric cells
func readCSV(path string) ([]analysis.Record, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("file has no data rows")
	}

	header := rows[0]
	records := make([]analysis.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(analysis.Record, len(header))
		for i, col := range header {
			if i >= len(row) {
				continue
			}
			rec[col] = parseCell(row[i])
		}
		records = append(records, rec)
	}
	return records, header, nil
}

func parseCell(s string) interface{} {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
