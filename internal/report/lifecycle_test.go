package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/errors"
)

func newTestReport() *Report {
	return New("rep-1", "user-1", TypeSales, FormatCSV, Metadata{Title: "Q3 Sales"})
}

func TestTransitionMatrix(t *testing.T) {
	all := []Status{StatusPending, StatusProcessing, StatusAnalyzing, StatusCompleted, StatusFailed}

	allowed := map[Status]map[Status]bool{
		StatusPending:    {StatusProcessing: true, StatusAnalyzing: true, StatusCompleted: true, StatusFailed: true},
		StatusProcessing: {StatusAnalyzing: true, StatusCompleted: true, StatusFailed: true},
		StatusAnalyzing:  {StatusCompleted: true, StatusFailed: true},
		StatusCompleted:  {},
		StatusFailed:     {},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], CanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestMarkCompletedSetsExpiry(t *testing.T) {
	r := newTestReport()
	require.NoError(t, r.MarkProcessing())

	artifact := Artifact{FilePath: "artifacts/rep-1.csv", Size: 1024}
	require.NoError(t, r.MarkCompleted(artifact))

	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.Artifact)
	require.NotNil(t, r.CompletedAt)
	require.NotNil(t, r.ExpiresAt)
	assert.Equal(t, r.CompletedAt.Add(RetentionWindow), *r.ExpiresAt)
	assert.Empty(t, r.Error)
}

func TestMarkFailedClearsArtifact(t *testing.T) {
	r := newTestReport()
	require.NoError(t, r.MarkFailed("encoder exploded"))

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "encoder exploded", r.Error)
	assert.Nil(t, r.Artifact)
	assert.Nil(t, r.ExpiresAt)
	require.NotNil(t, r.CompletedAt)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	failed := newTestReport()
	require.NoError(t, failed.MarkFailed("boom"))

	err := failed.MarkCompleted(Artifact{FilePath: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Nil(t, failed.Artifact)

	completed := newTestReport()
	require.NoError(t, completed.MarkCompleted(Artifact{FilePath: "y"}))

	assert.Error(t, completed.MarkFailed("too late"))
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Empty(t, completed.Error)
}

func TestConcurrentWorkerOrderings(t *testing.T) {
	// Render first, then analysis catches up
	r := newTestReport()
	require.NoError(t, r.MarkProcessing())
	require.NoError(t, r.MarkAnalyzing())
	require.NoError(t, r.MarkCompleted(Artifact{FilePath: "a"}))

	// Analysis first straight from pending
	r = newTestReport()
	require.NoError(t, r.MarkAnalyzing())
	require.NoError(t, r.MarkCompleted(Artifact{FilePath: "b"}))

	// Going back from analyzing to processing is not a thing
	r = newTestReport()
	require.NoError(t, r.MarkAnalyzing())
	assert.Error(t, r.MarkProcessing())
}

func TestAddInsightRejectedOnTerminal(t *testing.T) {
	r := newTestReport()
	require.NoError(t, r.MarkFailed("boom"))

	err := r.AddInsight(Insight{Kind: InsightAnomaly, Title: "late"})
	require.Error(t, err)
	assert.Empty(t, r.Metadata.Insights)
}

func TestAddInsightStampsTimestamp(t *testing.T) {
	r := newTestReport()
	require.NoError(t, r.AddInsight(Insight{Kind: InsightForecast, Title: "t"}))
	require.Len(t, r.Metadata.Insights, 1)
	assert.False(t, r.Metadata.Insights[0].Timestamp.IsZero())
}

func TestSetDataQuality(t *testing.T) {
	r := newTestReport()
	require.NoError(t, r.SetDataQuality(analysis.DataQualityMetrics{Completeness: 97.5}))
	require.NotNil(t, r.Metadata.DataQuality)
	assert.InDelta(t, 97.5, r.Metadata.DataQuality.Completeness, 1e-9)

	require.NoError(t, r.MarkCompleted(Artifact{FilePath: "a"}))
	assert.Error(t, r.SetDataQuality(analysis.DataQualityMetrics{}))
}

func TestInsightsByPriority(t *testing.T) {
	r := newTestReport()
	for _, ins := range []Insight{
		{Kind: InsightSuggestion, Title: "kpis", Confidence: 0.7},
		{Kind: InsightForecast, Title: "fc-low", Confidence: 0.4},
		{Kind: InsightAnomaly, Title: "spike", Confidence: 0.9},
		{Kind: InsightForecast, Title: "fc-high", Confidence: 0.8},
		{Kind: InsightCorrelation, Title: "pair", Confidence: 1.0},
	} {
		require.NoError(t, r.AddInsight(ins))
	}

	ordered := r.InsightsByPriority()
	titles := make([]string, len(ordered))
	for i, ins := range ordered {
		titles[i] = ins.Title
	}
	assert.Equal(t, []string{"spike", "fc-high", "fc-low", "pair", "kpis"}, titles)

	// Stored order untouched
	assert.Equal(t, "kpis", r.Metadata.Insights[0].Title)
}

func TestCloneIsDeep(t *testing.T) {
	r := newTestReport()
	require.NoError(t, r.AddInsight(Insight{Kind: InsightTrend, Title: "up"}))
	require.NoError(t, r.MarkCompleted(Artifact{FilePath: "a", Size: 9}))

	clone := r.Clone()
	clone.Artifact.FilePath = "changed"
	clone.Metadata.Insights[0].Title = "changed"
	ts := clone.CompletedAt.Add(time.Hour)
	clone.CompletedAt = &ts

	assert.Equal(t, "a", r.Artifact.FilePath)
	assert.Equal(t, "up", r.Metadata.Insights[0].Title)
	assert.NotEqual(t, r.CompletedAt, clone.CompletedAt)
}
