package report

import (
	"context"
	"time"

	"github.com/Josue1991/Business-Report/internal/analysis"
)

// Update is a field-masked partial update. Only non-nil fields are applied,
// so the render and analysis workers can write their own fields without
// clobbering each other's.
type Update struct {
	Status      *Status
	Artifact    *Artifact
	Error       *string
	CompletedAt *time.Time
	ExpiresAt   *time.Time

	DataQuality *analysis.DataQualityMetrics

	// ClearInsights removes all accumulated insights before AddInsights is
	// applied. Analysis retries use it so a re-run does not duplicate the
	// previous attempt's findings.
	ClearInsights     bool
	AddInsights       []Insight
	AddKpiSuggestions []string

	IncrementDownloads bool
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type          Type
	Status        Status
	Format        Format
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// Store is the persistence contract for reports. Update must apply the
// field mask atomically against the stored record (read-merge-write under
// the store's own lock), never overwrite from a caller's stale copy.
type Store interface {
	Create(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	Update(ctx context.Context, id string, upd Update) (*Report, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, userID string, filter Filter) ([]*Report, error)

	// FindExpired returns completed reports past their expiry and failed
	// reports older than the retention window
	FindExpired(ctx context.Context, now time.Time) ([]*Report, error)
}
