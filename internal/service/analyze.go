package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/dispatch"
	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/notify"
	"github.com/Josue1991/Business-Report/internal/report"
	"github.com/Josue1991/Business-Report/internal/suggest"
)

const (
	// anomalyMinSamples is the smallest numeric column the orchestrator
	// submits for anomaly detection
	anomalyMinSamples = 11

	// forecastMinSamples is the smallest numeric column the orchestrator
	// submits for forecasting
	forecastMinSamples = 5

	// forecastPeriods is how far ahead the orchestrator projects
	forecastPeriods = 3

	// completenessFloor is the completeness percentage below which a data
	// quality warning insight is emitted
	completenessFloor = 90.0

	// maxKpiSuggestions caps the suggestion collaborator call
	maxKpiSuggestions = 5
)

// Outcome is the accumulated result of one analysis run. Insights are in
// emission order; Err records the first step failure, which is non-fatal.
type Outcome struct {
	Quality        analysis.DataQualityMetrics
	Insights       []report.Insight
	KpiSuggestions []string
	Err            error
}

// Orchestrator sequences the analysis steps over a record set: quality
// scoring, anomaly detection, forecasting, KPI suggestion, correlation.
// The order is fixed because later steps assume earlier metadata exists.
// Every step failure is contained; the orchestrator always returns whatever
// it accumulated.
type Orchestrator struct {
	scorer    *analysis.QualityScorer
	suggester suggest.Service
	logger    *slog.Logger
}

// NewOrchestrator creates an analysis orchestrator. A nil suggester
// disables the KPI step regardless of the caller's flags.
func NewOrchestrator(suggester suggest.Service, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		scorer:    analysis.NewQualityScorer(nil),
		suggester: suggester,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
}

// Run executes the analysis sequence over records for the given report.
// Recomputation is idempotent, so Run is safe to repeat on queue retry.
func (o *Orchestrator) Run(ctx context.Context, rep *report.Report, records []analysis.Record, opts analysis.Options) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("analysis step panicked",
				slog.String("report_id", rep.ID),
				slog.Any("panic", r))
			out.Err = errors.NewAnalysisError(fmt.Sprintf("analysis panicked: %v", r), nil)
		}
	}()

	fields := fieldsOf(records, rep.Metadata.Columns)

	// Step 1: data quality, unconditional
	out.Quality = o.scorer.Score(records, fields)
	if out.Quality.Completeness < completenessFloor {
		out.Insights = append(out.Insights, report.Insight{
			Kind:  report.InsightSuggestion,
			Title: "Incomplete data",
			Description: fmt.Sprintf(
				"Data completeness is %.1f%%, below the %.0f%% threshold. %d values are missing; results below may be skewed.",
				out.Quality.Completeness, completenessFloor, out.Quality.MissingValues),
			Confidence: 1.0,
			Actionable: true,
			Data: map[string]interface{}{
				"completeness":   out.Quality.Completeness,
				"missing_values": out.Quality.MissingValues,
			},
		})
	}

	numericFields := numericFieldsOf(records, fields)

	// Step 2: anomaly detection per numeric field
	if opts.DetectAnomalies {
		out.Insights = append(out.Insights, o.detectAnomalies(records, numericFields)...)
	}

	// Step 3: forecasting per numeric field
	if opts.Forecast {
		out.Insights = append(out.Insights, o.forecastFields(records, numericFields)...)
	}

	// Step 4: KPI suggestions via the external collaborator. Failures are
	// logged and swallowed; the report must not fail because an NLP service
	// was unreachable.
	if opts.SuggestKpis && o.suggester != nil {
		insight, names := o.suggestKpis(ctx, rep, records, fields)
		if insight != nil {
			out.Insights = append(out.Insights, *insight)
			out.KpiSuggestions = names
		}
	}

	// Step 5: correlations, unconditional
	for _, corr := range analysis.FindCorrelations(records, numericFields) {
		out.Insights = append(out.Insights, report.Insight{
			Kind:  report.InsightCorrelation,
			Title: fmt.Sprintf("%s correlates with %s", corr.FieldA, corr.FieldB),
			Description: fmt.Sprintf("%s relationship between %q and %q (r=%.2f over %d samples).",
				capitalize(string(corr.Strength)), corr.FieldA, corr.FieldB, corr.Coefficient, corr.Samples),
			Confidence: abs(corr.Coefficient),
			Actionable: corr.Strength == analysis.StrengthStrong,
			Data: map[string]interface{}{
				"field_a":     corr.FieldA,
				"field_b":     corr.FieldB,
				"coefficient": corr.Coefficient,
				"strength":    string(corr.Strength),
			},
		})
	}

	return out
}

func (o *Orchestrator) detectAnomalies(records []analysis.Record, numericFields []string) []report.Insight {
	var insights []report.Insight
	for _, field := range numericFields {
		col := analysis.NumericColumn(records, field)
		if len(col) < anomalyMinSamples {
			continue
		}

		result, err := analysis.Detect(col, analysis.DefaultZScoreThreshold, analysis.MethodZScore)
		if err != nil {
			if !errors.IsInsufficientData(err) {
				o.logger.Warn("anomaly detection failed",
					slog.String("field", field),
					slog.String("error", err.Error()))
			}
			continue
		}
		if result.AnomalyCount == 0 {
			continue
		}

		indices := make([]int, 0, result.AnomalyCount)
		for _, p := range result.Points {
			if p.IsAnomaly {
				indices = append(indices, p.Index)
			}
		}

		insights = append(insights, report.Insight{
			Kind:  report.InsightAnomaly,
			Title: fmt.Sprintf("Anomalies in %s", field),
			Description: fmt.Sprintf("%d of %d values in %q deviate more than %.1f standard deviations from the rest.",
				result.AnomalyCount, len(col), field, result.Threshold),
			Confidence: 0.9,
			Actionable: true,
			Data: map[string]interface{}{
				"field":              field,
				"anomaly_count":      result.AnomalyCount,
				"anomaly_percentage": result.AnomalyPercentage,
				"indices":            indices,
			},
		})
	}
	return insights
}

func (o *Orchestrator) forecastFields(records []analysis.Record, numericFields []string) []report.Insight {
	var insights []report.Insight
	for _, field := range numericFields {
		col := analysis.NumericColumn(records, field)
		if len(col) < forecastMinSamples {
			continue
		}

		result, err := analysis.Forecast(col, forecastPeriods)
		if err != nil {
			if !errors.IsInsufficientData(err) {
				o.logger.Warn("forecasting failed",
					slog.String("field", field),
					slog.String("error", err.Error()))
			}
			continue
		}

		insights = append(insights, report.Insight{
			Kind:  report.InsightForecast,
			Title: fmt.Sprintf("Forecast for %s", field),
			Description: fmt.Sprintf("%q shows a %s trend; next %d projected values: %s.",
				field, result.Trend, forecastPeriods, formatForecasts(result.Forecasts)),
			Confidence: result.Confidence,
			Actionable: result.Trend != analysis.TrendStable,
			Data: map[string]interface{}{
				"field":     field,
				"method":    string(result.Method),
				"trend":     string(result.Trend),
				"forecasts": result.Forecasts,
				"mape":      result.MAPE,
			},
		})
	}
	return insights
}

func (o *Orchestrator) suggestKpis(ctx context.Context, rep *report.Report, records []analysis.Record, fields []string) (*report.Insight, []string) {
	descriptor := fmt.Sprintf("%s report %q with %d records over fields: %s",
		rep.Type, rep.Metadata.Title, len(records), strings.Join(fields, ", "))

	suggestions, err := o.suggester.SuggestKpis(ctx, descriptor, rep.Metadata.Description, maxKpiSuggestions)
	if err != nil {
		o.logger.Warn("kpi suggestion failed",
			slog.String("report_id", rep.ID),
			slog.String("error", err.Error()))
		suggestions = suggest.Fallback(maxKpiSuggestions)
	}
	if len(suggestions) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(suggestions))
	lines := make([]string, 0, len(suggestions))
	for _, sug := range suggestions {
		names = append(names, sug.Name)
		lines = append(lines, sug.Name+": "+sug.Description)
	}

	return &report.Insight{
		Kind:        report.InsightSuggestion,
		Title:       "Suggested KPIs",
		Description: strings.Join(lines, " | "),
		Confidence:  0.7,
		Actionable:  true,
		Data:        map[string]interface{}{"kpis": names},
	}, names
}

// HandleAnalysis is the analysis queue handler. Orchestrator step failures
// never fail the report: analysis is best-effort enrichment and must not
// negate a successful render. Only infrastructure errors (store unavailable)
// propagate to the queue for retry.
func (s *ReportService) HandleAnalysis(ctx context.Context, job *dispatch.Job) error {
	logger := s.logger.With(
		slog.String("job_id", job.ID),
		slog.String("report_id", job.Payload.ReportID))

	rep, err := s.reports.Get(ctx, job.Payload.ReportID)
	if err != nil {
		return fmt.Errorf("analysis: load report: %w", err)
	}

	opts := analysis.AllOptions()
	if job.Payload.Analysis != nil {
		opts = *job.Payload.Analysis
	}

	s.advanceStatus(ctx, rep, report.StatusAnalyzing)
	s.publishProgress(rep.ID, rep.UserID, "analysis started")

	out := s.orch.Run(ctx, rep, job.Payload.Records, opts)
	if out.Err != nil {
		logger.Warn("analysis finished with errors, persisting partial insights",
			slog.String("error", out.Err.Error()))
	}

	// Clearing and re-appending in one masked update keeps a retried run
	// from duplicating the previous attempt's findings.
	if _, err := s.reports.Update(ctx, rep.ID, report.Update{
		DataQuality:       &out.Quality,
		ClearInsights:     true,
		AddInsights:       out.Insights,
		AddKpiSuggestions: out.KpiSuggestions,
	}); err != nil {
		return fmt.Errorf("analysis: persist insights: %w", err)
	}

	logger.Info("analysis completed",
		slog.Int("insights", len(out.Insights)),
		slog.Float64("completeness", out.Quality.Completeness))

	s.publishProgress(rep.ID, rep.UserID, "analysis completed")
	return nil
}

// publishProgress emits a best-effort progress event
func (s *ReportService) publishProgress(reportID, userID, message string) {
	s.publisher.Publish(notify.Event{
		Type:     notify.EventReportProgress,
		ReportID: reportID,
		UserID:   userID,
		Payload:  map[string]interface{}{"message": message},
	})
}

// fieldsOf returns the declared columns, or the sorted keys of the first
// record when none were declared
func fieldsOf(records []analysis.Record, columns []string) []string {
	if len(columns) > 0 {
		return columns
	}
	if len(records) == 0 {
		return nil
	}

	fields := make([]string, 0, len(records[0]))
	for k := range records[0] {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func numericFieldsOf(records []analysis.Record, fields []string) []string {
	var numeric []string
	for _, f := range fields {
		if analysis.IsNumericField(records, f) {
			numeric = append(numeric, f)
		}
	}
	return numeric
}

func formatForecasts(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.1f", v)
	}
	return strings.Join(parts, ", ")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
