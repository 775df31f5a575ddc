package analysis

import (
	"math"
	"sort"

	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/stats"
)

// AnomalyMethod selects the scoring algorithm used by the detector
type AnomalyMethod string

const (
	MethodZScore         AnomalyMethod = "zscore"
	MethodIQR            AnomalyMethod = "iqr"
	MethodIsolationProxy AnomalyMethod = "isolation"
)

// DefaultZScoreThreshold is the score above which a point is flagged
const DefaultZScoreThreshold = 2.5

// isolationScoreCutoff is the fixed multiplier for the isolation proxy
const isolationScoreCutoff = 3.0

// AnomalyPoint holds the per-point scoring result
type AnomalyPoint struct {
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	Score     float64 `json:"score"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// AnomalyResult is the outcome of scoring one numeric sequence
type AnomalyResult struct {
	Method            AnomalyMethod  `json:"method"`
	Threshold         float64        `json:"threshold"`
	Points            []AnomalyPoint `json:"points"`
	AnomalyCount      int            `json:"anomaly_count"`
	AnomalyPercentage float64        `json:"anomaly_percentage"`
}

// minAnomalySamples is the smallest sequence the detector will score
const minAnomalySamples = 2

// Detect scores values with the given method and flags outliers.
// A zero-variance sequence scores every point 0 and flags nothing.
func Detect(values []float64, threshold float64, method AnomalyMethod) (*AnomalyResult, error) {
	if len(values) < minAnomalySamples {
		return nil, errors.NewInsufficientDataError("anomaly detection requires at least 2 points")
	}
	if threshold <= 0 {
		threshold = DefaultZScoreThreshold
	}

	var points []AnomalyPoint
	switch method {
	case MethodIQR:
		points = detectIQR(values)
	case MethodIsolationProxy:
		points = detectIsolationProxy(values)
	case MethodZScore, "":
		method = MethodZScore
		points = detectZScore(values, threshold)
	default:
		return nil, errors.NewValidationError("unknown anomaly method: "+string(method), nil)
	}

	return summarize(method, threshold, points), nil
}

// DetectWindowed scores each point against a sliding local window instead of
// the global statistics. halfWidth is the number of neighbors taken on each
// side; it is useful when a global mean is misleading due to trend.
func DetectWindowed(values []float64, threshold float64, halfWidth int) (*AnomalyResult, error) {
	if len(values) < minAnomalySamples {
		return nil, errors.NewInsufficientDataError("anomaly detection requires at least 2 points")
	}
	if threshold <= 0 {
		threshold = DefaultZScoreThreshold
	}
	if halfWidth < 1 {
		halfWidth = 5
	}

	points := make([]AnomalyPoint, len(values))
	for i, v := range values {
		lo := i - halfWidth
		if lo < 0 {
			lo = 0
		}
		hi := i + halfWidth + 1
		if hi > len(values) {
			hi = len(values)
		}

		window := values[lo:hi]
		score := math.Abs(stats.ZScore(v, stats.Mean(window), stats.StdDev(window)))
		points[i] = AnomalyPoint{
			Index:     i,
			Value:     v,
			Score:     score,
			IsAnomaly: score > threshold,
		}
	}

	return summarize(MethodZScore, threshold, points), nil
}

// detectZScore scores each point against the mean and population standard
// deviation of the remaining points. Excluding the point under test keeps a
// single extreme value from inflating its own baseline and masking itself.
func detectZScore(values []float64, threshold float64) []AnomalyPoint {
	n := len(values)
	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}

	points := make([]AnomalyPoint, n)
	for i, v := range values {
		rest := float64(n - 1)
		mean := (sum - v) / rest
		variance := (sumSq-v*v)/rest - mean*mean
		if variance < 0 {
			variance = 0
		}

		score := math.Abs(stats.ZScore(v, mean, math.Sqrt(variance)))
		points[i] = AnomalyPoint{
			Index:     i,
			Value:     v,
			Score:     score,
			IsAnomaly: score > threshold,
		}
	}
	return points
}

func detectIQR(values []float64) []AnomalyPoint {
	q1 := stats.Quantile(values, 0.25)
	q3 := stats.Quantile(values, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	stddev := stats.StdDev(values)

	points := make([]AnomalyPoint, len(values))
	for i, v := range values {
		var score float64
		outside := v < lower || v > upper
		if outside {
			// Normalized distance beyond the nearest bound. A zero IQR
			// collapses both bounds onto the quartiles, so the spread falls
			// back to the standard deviation; a point can only sit outside
			// a collapsed bound when the sequence has nonzero variance.
			dist := lower - v
			if v > upper {
				dist = v - upper
			}
			if iqr > 0 {
				score = dist / iqr
			} else {
				score = dist / stddev
			}
		}
		points[i] = AnomalyPoint{
			Index:     i,
			Value:     v,
			Score:     score,
			IsAnomaly: outside,
		}
	}
	return points
}

// detectIsolationProxy combines the global z-score with the distance to the
// nearest neighbors in sorted order, normalized by the standard deviation.
// It is a cheap stand-in for density-based isolation, not an isolation forest.
func detectIsolationProxy(values []float64) []AnomalyPoint {
	stddev := stats.StdDev(values)
	mean := stats.Mean(values)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	// Rank of each value in the sorted sequence, first match wins for ties
	rank := make(map[float64]int, len(sorted))
	for i, v := range sorted {
		if _, seen := rank[v]; !seen {
			rank[v] = i
		}
	}

	points := make([]AnomalyPoint, len(values))
	for i, v := range values {
		var score float64
		if stddev > 0 {
			z := math.Abs(stats.ZScore(v, mean, stddev))

			pos := rank[v]
			neighbor := 0.0
			switch {
			case pos == 0:
				neighbor = sorted[1] - sorted[0]
			case pos == len(sorted)-1:
				neighbor = sorted[pos] - sorted[pos-1]
			default:
				neighbor = math.Min(sorted[pos]-sorted[pos-1], sorted[pos+1]-sorted[pos])
			}

			score = z + neighbor/stddev
		}
		points[i] = AnomalyPoint{
			Index:     i,
			Value:     v,
			Score:     score,
			IsAnomaly: score > isolationScoreCutoff,
		}
	}
	return points
}

func summarize(method AnomalyMethod, threshold float64, points []AnomalyPoint) *AnomalyResult {
	count := 0
	for _, p := range points {
		if p.IsAnomaly {
			count++
		}
	}

	return &AnomalyResult{
		Method:            method,
		Threshold:         threshold,
		Points:            points,
		AnomalyCount:      count,
		AnomalyPercentage: float64(count) / float64(len(points)) * 100,
	}
}
