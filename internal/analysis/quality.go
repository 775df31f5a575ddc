package analysis

import (
	"encoding/json"
	"sort"
	"strings"
)

// DataQualityMetrics summarizes the health of a record set.
// Completeness, accuracy and consistency are percentages in [0, 100].
type DataQualityMetrics struct {
	Completeness  float64 `json:"completeness"`
	Accuracy      float64 `json:"accuracy"`
	Consistency   float64 `json:"consistency"`
	Outliers      int     `json:"outliers"`
	MissingValues int     `json:"missing_values"`
	Duplicates    int     `json:"duplicates"`
}

// minOutlierSamples is the smallest numeric column checked for outliers
const minOutlierSamples = 11

// QualityScorer computes DataQualityMetrics over homogeneous record sets
type QualityScorer struct {
	rules []FieldRule
}

// NewQualityScorer creates a scorer with the given validation rule table.
// Passing nil uses DefaultFieldRules.
func NewQualityScorer(rules []FieldRule) *QualityScorer {
	if rules == nil {
		rules = DefaultFieldRules
	}
	return &QualityScorer{rules: rules}
}

// Score computes quality metrics over records. fields defaults to the key
// set of the first record. An empty record set scores all zeros.
func (s *QualityScorer) Score(records []Record, fields []string) DataQualityMetrics {
	if len(records) == 0 {
		return DataQualityMetrics{}
	}

	if len(fields) == 0 {
		fields = make([]string, 0, len(records[0]))
		for k := range records[0] {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}

	totalCells := len(records) * len(fields)
	if totalCells == 0 {
		return DataQualityMetrics{}
	}

	filled := 0
	valid := 0
	for _, rec := range records {
		for _, f := range fields {
			v := rec[f]
			if IsFilled(v) {
				filled++
			}
			if s.isValid(f, v) {
				valid++
			}
		}
	}

	return DataQualityMetrics{
		Completeness:  float64(filled) / float64(totalCells) * 100,
		Accuracy:      float64(valid) / float64(totalCells) * 100,
		Consistency:   s.consistency(records, fields),
		Outliers:      s.countOutliers(records, fields),
		MissingValues: totalCells - filled,
		Duplicates:    countDuplicates(records),
	}
}

// isValid applies the field-name rule table; unmatched fields only require
// a filled cell
func (s *QualityScorer) isValid(field string, v interface{}) bool {
	if !IsFilled(v) {
		return false
	}
	if rule := RuleFor(field, s.rules); rule != nil {
		return rule.Validate(v)
	}
	return true
}

// consistency averages, across fields, the share of rows whose value has the
// field's dominant coarse type
func (s *QualityScorer) consistency(records []Record, fields []string) float64 {
	if len(fields) == 0 {
		return 0
	}

	total := 0.0
	for _, f := range fields {
		counts := make(map[ValueType]int)
		for _, rec := range records {
			counts[ClassifyValue(rec[f])]++
		}

		dominant := 0
		for _, c := range counts {
			if c > dominant {
				dominant = c
			}
		}
		total += float64(dominant) / float64(len(records)) * 100
	}
	return total / float64(len(fields))
}

// countOutliers sums IQR-bounded outlier counts over numeric fields with
// enough samples
func (s *QualityScorer) countOutliers(records []Record, fields []string) int {
	total := 0
	for _, f := range fields {
		values := NumericColumn(records, f)
		if len(values) < minOutlierSamples {
			continue
		}

		result, err := Detect(values, 0, MethodIQR)
		if err != nil {
			continue
		}
		total += result.AnomalyCount
	}
	return total
}

// countDuplicates counts records whose canonical serialization matches an
// earlier record. Detection is structural, independent of key order.
func countDuplicates(records []Record) int {
	seen := make(map[string]bool, len(records))
	dups := 0
	for _, rec := range records {
		key := canonicalKey(rec)
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
	}
	return dups
}

// canonicalKey serializes a record with sorted keys so field order does not
// affect duplicate detection
func canonicalKey(rec Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		raw, err := json.Marshal(rec[k])
		if err != nil {
			b.WriteString("?")
		} else {
			b.Write(raw)
		}
		b.WriteByte(';')
	}
	return b.String()
}

// NumericColumn extracts the finite numeric values of one field across
// records, preserving row order
func NumericColumn(records []Record, field string) []float64 {
	values := make([]float64, 0, len(records))
	for _, rec := range records {
		if f, ok := asNumber(rec[field]); ok {
			values = append(values, f)
		}
	}
	return values
}

// IsNumericField reports whether more than half of the field's filled values
// are finite numbers
func IsNumericField(records []Record, field string) bool {
	sampled := 0
	numeric := 0
	for _, rec := range records {
		v := rec[field]
		if !IsFilled(v) {
			continue
		}
		sampled++
		if _, ok := asNumber(v); ok {
			numeric++
		}
	}
	if sampled == 0 {
		return false
	}
	return float64(numeric)/float64(sampled) > 0.5
}
