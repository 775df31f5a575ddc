package report

import (
	"fmt"
	"time"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/errors"
)

// validTransitions is the lifecycle state machine. A report moves
// PENDING -> PROCESSING -> ANALYZING -> COMPLETED, with FAILED reachable
// from any non-terminal state. Terminal states permit nothing.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusAnalyzing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusAnalyzing, StatusCompleted, StatusFailed},
	StatusAnalyzing:  {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (r *Report) transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return errors.NewValidationError(
			fmt.Sprintf("invalid report transition %s -> %s", r.Status, to), nil,
		).WithContext("report_id", r.ID)
	}
	r.Status = to
	return nil
}

// MarkProcessing records that the render job has begun
func (r *Report) MarkProcessing() error {
	return r.transition(StatusProcessing)
}

// MarkAnalyzing records that the analysis job has begun. The render and
// analysis jobs run concurrently, so this is legal from PENDING as well as
// PROCESSING.
func (r *Report) MarkAnalyzing() error {
	return r.transition(StatusAnalyzing)
}

// MarkCompleted terminates the report successfully, setting the artifact,
// completion time and retention expiry
func (r *Report) MarkCompleted(artifact Artifact) error {
	if err := r.transition(StatusCompleted); err != nil {
		return err
	}

	now := time.Now().UTC()
	expires := now.Add(RetentionWindow)

	r.Artifact = &artifact
	r.Error = ""
	r.CompletedAt = &now
	r.ExpiresAt = &expires
	return nil
}

// MarkFailed terminates the report with an error. Failed reports carry no
// expiry; the sweeper removes them unconditionally once past the retention
// window measured from completion.
func (r *Report) MarkFailed(message string) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}

	now := time.Now().UTC()
	r.Error = message
	r.Artifact = nil
	r.CompletedAt = &now
	return nil
}

// AddInsight appends a finding. Permitted in any non-terminal state and does
// not change status.
func (r *Report) AddInsight(insight Insight) error {
	if r.Status.IsTerminal() {
		return errors.NewValidationError("cannot add insights to a terminal report", nil).
			WithContext("report_id", r.ID)
	}
	if insight.Timestamp.IsZero() {
		insight.Timestamp = time.Now().UTC()
	}
	r.Metadata.Insights = append(r.Metadata.Insights, insight)
	return nil
}

// SetDataQuality records the quality snapshot for the submitted records
func (r *Report) SetDataQuality(metrics analysis.DataQualityMetrics) error {
	if r.Status.IsTerminal() {
		return errors.NewValidationError("cannot set data quality on a terminal report", nil).
			WithContext("report_id", r.ID)
	}
	r.Metadata.DataQuality = &metrics
	return nil
}

// AddKpiSuggestions appends suggested KPIs to the report metadata
func (r *Report) AddKpiSuggestions(suggestions []string) error {
	if r.Status.IsTerminal() {
		return errors.NewValidationError("cannot add KPI suggestions to a terminal report", nil).
			WithContext("report_id", r.ID)
	}
	r.Metadata.KpiSuggestions = append(r.Metadata.KpiSuggestions, suggestions...)
	return nil
}

// RecordDownload increments the monotonic download counter
func (r *Report) RecordDownload() {
	r.DownloadCount++
}
