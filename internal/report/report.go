// Package report defines the Report entity, its lifecycle state machine, and
// the persistence contract used by the workers that mutate it.
//
// A Report is the durable record of one requested artifact: it is created in
// StatusPending by the submission path, advanced by the render and analysis
// workers, and terminal once completed or failed. Two workers may hold the
// same report id concurrently, so persistence is expressed as field-masked
// partial updates rather than whole-entity writes.
package report

import (
	"sort"
	"time"

	"github.com/Josue1991/Business-Report/internal/analysis"
)

// Type is the business category of a report
type Type string

const (
	TypeSales     Type = "sales"
	TypeFinancial Type = "financial"
	TypeInventory Type = "inventory"
	TypeCustomer  Type = "customer"
	TypeCustom    Type = "custom"
)

// Format is the artifact encoding
type Format string

const (
	FormatExcel Format = "xlsx"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
)

// Status is the lifecycle state of a report
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusAnalyzing  Status = "ANALYZING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RetentionWindow is how long a completed artifact remains downloadable
const RetentionWindow = 7 * 24 * time.Hour

// InsightKind categorizes a discrete analytical finding
type InsightKind string

const (
	InsightAnomaly     InsightKind = "anomaly"
	InsightForecast    InsightKind = "forecast"
	InsightCorrelation InsightKind = "correlation"
	InsightSuggestion  InsightKind = "suggestion"
	InsightTrend       InsightKind = "trend"
)

// Insight is one analytical finding attached to a report. Insights are
// append-only; stored order is order of appearance.
type Insight struct {
	Kind        InsightKind            `json:"kind"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Confidence  float64                `json:"confidence"`
	Actionable  bool                   `json:"actionable"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Artifact describes the rendered document, present only when completed
type Artifact struct {
	FilePath    string `json:"file_path"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// ChartSpec describes the optional chart embedded in rendered documents
type ChartSpec struct {
	Kind   string `json:"kind"`
	XField string `json:"x_field"`
	YField string `json:"y_field"`
}

// Metadata carries the user-facing descriptive state of a report. It is
// mutable only through lifecycle operations.
type Metadata struct {
	Title          string                       `json:"title"`
	Description    string                       `json:"description,omitempty"`
	Columns        []string                     `json:"columns,omitempty"`
	Chart          *ChartSpec                   `json:"chart,omitempty"`
	RecordCount    int                          `json:"record_count"`
	Insights       []Insight                    `json:"insights,omitempty"`
	KpiSuggestions []string                     `json:"kpi_suggestions,omitempty"`
	DataQuality    *analysis.DataQualityMetrics `json:"data_quality,omitempty"`
}

// Report is the unit of work and the user-visible artifact descriptor
type Report struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Type   Type   `json:"type"`
	Format Format `json:"format"`
	Status Status `json:"status"`

	Metadata Metadata `json:"metadata"`

	// Artifact and Error are mutually exclusive; both absent while the
	// report is non-terminal
	Artifact *Artifact `json:"artifact,omitempty"`
	Error    string    `json:"error,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	DownloadCount int        `json:"download_count"`
}

// New creates a pending report for the given owner
func New(id, userID string, reportType Type, format Format, meta Metadata) *Report {
	return &Report{
		ID:        id,
		UserID:    userID,
		Type:      reportType,
		Format:    format,
		Status:    StatusPending,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
}

// insightPriority orders kinds for read-time projection; lower sorts first
var insightPriority = map[InsightKind]int{
	InsightAnomaly:     0,
	InsightForecast:    1,
	InsightTrend:       2,
	InsightCorrelation: 3,
	InsightSuggestion:  4,
}

// InsightsByPriority returns the insights sorted by kind priority, then
// confidence descending. The stored order is left untouched.
func (r *Report) InsightsByPriority() []Insight {
	out := make([]Insight, len(r.Metadata.Insights))
	copy(out, r.Metadata.Insights)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := insightPriority[out[i].Kind], insightPriority[out[j].Kind]
		if pi != pj {
			return pi < pj
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Clone returns a deep copy of the report
func (r *Report) Clone() *Report {
	clone := *r

	if r.Artifact != nil {
		a := *r.Artifact
		clone.Artifact = &a
	}
	if r.CompletedAt != nil {
		ts := *r.CompletedAt
		clone.CompletedAt = &ts
	}
	if r.ExpiresAt != nil {
		ts := *r.ExpiresAt
		clone.ExpiresAt = &ts
	}
	if r.Metadata.Chart != nil {
		c := *r.Metadata.Chart
		clone.Metadata.Chart = &c
	}
	if r.Metadata.DataQuality != nil {
		q := *r.Metadata.DataQuality
		clone.Metadata.DataQuality = &q
	}

	clone.Metadata.Columns = append([]string(nil), r.Metadata.Columns...)
	clone.Metadata.Insights = append([]Insight(nil), r.Metadata.Insights...)
	clone.Metadata.KpiSuggestions = append([]string(nil), r.Metadata.KpiSuggestions...)
	return &clone
}

// ValidTypes lists the accepted business categories
func ValidTypes() []Type {
	return []Type{TypeSales, TypeFinancial, TypeInventory, TypeCustomer, TypeCustom}
}

// ValidFormats lists the accepted artifact encodings
func ValidFormats() []Format {
	return []Format{FormatExcel, FormatCSV, FormatPDF}
}
