// Package suggest provides the KPI suggestion collaborator: an external
// language-model call that degrades to a fixed local fallback list instead
// of propagating failures, fronted by a bounded TTL cache so repeated
// submissions of the same data source do not re-query the model.
package suggest

import (
	"context"
)

// KpiSuggestion is one recommended business metric
type KpiSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service suggests KPIs for a data source. Implementations must degrade to
// a fallback list rather than return an error for upstream failures.
type Service interface {
	SuggestKpis(ctx context.Context, dataSource, businessContext string, max int) ([]KpiSuggestion, error)
}

// FallbackSuggestions is the fixed list returned when the external service
// is unavailable
var FallbackSuggestions = []KpiSuggestion{
	{Name: "Total Revenue", Description: "Sum of all revenue across the reporting period"},
	{Name: "Revenue Growth", Description: "Period-over-period percentage change in revenue"},
	{Name: "Average Order Value", Description: "Revenue divided by the number of orders"},
	{Name: "Customer Count", Description: "Number of distinct customers in the period"},
	{Name: "Conversion Rate", Description: "Share of prospects that became paying customers"},
}

// Fallback returns up to max fallback suggestions
func Fallback(max int) []KpiSuggestion {
	if max <= 0 || max >= len(FallbackSuggestions) {
		return FallbackSuggestions
	}
	return FallbackSuggestions[:max]
}

// StaticService always returns the fallback list. It backs deployments with
// no language-model credentials and keeps tests hermetic.
type StaticService struct{}

// SuggestKpis returns the fixed fallback list
func (StaticService) SuggestKpis(ctx context.Context, dataSource, businessContext string, max int) ([]KpiSuggestion, error) {
	return Fallback(max), nil
}
