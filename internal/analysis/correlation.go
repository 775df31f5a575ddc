package analysis

import (
	"math"
	"sort"

	"github.com/Josue1991/Business-Report/internal/stats"
)

// CorrelationStrength labels how strongly two fields move together
type CorrelationStrength string

const (
	StrengthStrong   CorrelationStrength = "strong"
	StrengthModerate CorrelationStrength = "moderate"
	StrengthWeak     CorrelationStrength = "weak"
)

const (
	// correlationFloor is the minimum |r| worth reporting
	correlationFloor = 0.5
	// minPairedSamples is the minimum rows where both fields are numeric
	minPairedSamples = 4
	// maxCorrelations caps how many pairs are reported
	maxCorrelations = 3
)

// Correlation describes one significant pairwise relationship
type Correlation struct {
	FieldA      string              `json:"field_a"`
	FieldB      string              `json:"field_b"`
	Coefficient float64             `json:"coefficient"`
	Strength    CorrelationStrength `json:"strength"`
	Samples     int                 `json:"samples"`
}

// FindCorrelations discovers significant pairwise relationships among the
// numeric fields of records and returns the strongest ones, ordered by |r|
// descending. Cost is quadratic in the field count, which is acceptable for
// record sets with tens of fields.
func FindCorrelations(records []Record, fields []string) []Correlation {
	if len(records) == 0 {
		return nil
	}

	if len(fields) == 0 {
		fields = make([]string, 0, len(records[0]))
		for k := range records[0] {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}

	var numeric []string
	for _, f := range fields {
		if IsNumericField(records, f) {
			numeric = append(numeric, f)
		}
	}

	var found []Correlation
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			x, y := pairedColumns(records, numeric[i], numeric[j])
			if len(x) < minPairedSamples {
				continue
			}

			r, err := stats.Pearson(x, y)
			if err != nil || math.Abs(r) < correlationFloor {
				continue
			}

			found = append(found, Correlation{
				FieldA:      numeric[i],
				FieldB:      numeric[j],
				Coefficient: r,
				Strength:    classifyStrength(r),
				Samples:     len(x),
			})
		}
	}

	sort.Slice(found, func(a, b int) bool {
		return math.Abs(found[a].Coefficient) > math.Abs(found[b].Coefficient)
	})

	if len(found) > maxCorrelations {
		found = found[:maxCorrelations]
	}
	return found
}

// pairedColumns extracts rows where both fields hold finite numbers
func pairedColumns(records []Record, fieldA, fieldB string) ([]float64, []float64) {
	x := make([]float64, 0, len(records))
	y := make([]float64, 0, len(records))
	for _, rec := range records {
		a, okA := asNumber(rec[fieldA])
		b, okB := asNumber(rec[fieldB])
		if !okA || !okB {
			continue
		}
		if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
			continue
		}
		x = append(x, a)
		y = append(y, b)
	}
	return x, y
}

func classifyStrength(r float64) CorrelationStrength {
	abs := math.Abs(r)
	switch {
	case abs > 0.8:
		return StrengthStrong
	case abs > 0.6:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}
