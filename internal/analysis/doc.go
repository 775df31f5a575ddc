// Package analysis implements the statistical analysis engine behind report
// insights: anomaly detection, trend forecasting, data-quality scoring, and
// pairwise correlation discovery over a submitted record set.
//
// The numeric primitives live in the stats package; this package layers the
// business policies on top of them:
//
//   - anomaly.go: interchangeable outlier scoring methods (z-score, IQR,
//     isolation proxy) plus a sliding-window variant for trending series
//   - forecast.go: length-based method selection between linear regression,
//     exponentially weighted moving average, and seasonal decomposition
//   - quality.go: completeness/accuracy/consistency/outlier/duplicate metrics
//   - rules.go: the field-name validation rule table used by the scorer
//   - correlation.go: significant pairwise relationships among numeric fields
//
// The sequencing of these services against a report is owned by the service
// package's analysis orchestrator.
package analysis
