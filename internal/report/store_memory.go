package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Josue1991/Business-Report/internal/errors"
)

// MemoryStore is an in-memory implementation of Store. All reads return
// copies; Update merges the field mask under the store lock so concurrent
// workers never lose each other's writes.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore creates an empty in-memory report store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*Report),
	}
}

// Create stores a new report
func (s *MemoryStore) Create(ctx context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return errors.NewStorageError("report "+r.ID+" already exists", nil)
	}

	s.reports[r.ID] = r.Clone()
	return nil
}

// Get retrieves a report by id
func (s *MemoryStore) Get(ctx context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.reports[id]
	if !exists {
		return nil, errors.NewNotFoundError("report", id)
	}
	return r.Clone(), nil
}

// Update applies the field mask to the stored record and returns the result.
// A mask carrying a status transition that is illegal from the currently
// stored status is dropped entirely, so a stale writer cannot regress a
// report another worker already terminated.
func (s *MemoryStore) Update(ctx context.Context, id string, upd Update) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.reports[id]
	if !exists {
		return nil, errors.NewNotFoundError("report", id)
	}

	if upd.Status != nil && *upd.Status != r.Status && !CanTransition(r.Status, *upd.Status) {
		// The caller's snapshot is stale; the stored report has already
		// moved on. Dropping the whole mask keeps terminal reports intact.
		return r.Clone(), nil
	}

	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.Artifact != nil {
		a := *upd.Artifact
		r.Artifact = &a
	}
	if upd.Error != nil {
		r.Error = *upd.Error
		if r.Error != "" {
			r.Artifact = nil
		}
	}
	if upd.CompletedAt != nil {
		ts := *upd.CompletedAt
		r.CompletedAt = &ts
	}
	if upd.ExpiresAt != nil {
		ts := *upd.ExpiresAt
		r.ExpiresAt = &ts
	}
	if upd.DataQuality != nil {
		q := *upd.DataQuality
		r.Metadata.DataQuality = &q
	}
	if upd.ClearInsights {
		r.Metadata.Insights = nil
	}
	if len(upd.AddInsights) > 0 {
		r.Metadata.Insights = append(r.Metadata.Insights, upd.AddInsights...)
	}
	if len(upd.AddKpiSuggestions) > 0 {
		r.Metadata.KpiSuggestions = append(r.Metadata.KpiSuggestions, upd.AddKpiSuggestions...)
	}
	if upd.IncrementDownloads {
		r.DownloadCount++
	}

	return r.Clone(), nil
}

// Delete removes a report
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[id]; !exists {
		return errors.NewNotFoundError("report", id)
	}
	delete(s.reports, id)
	return nil
}

// List returns the user's reports matching the filter, newest first
func (s *MemoryStore) List(ctx context.Context, userID string, filter Filter) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Report
	for _, r := range s.reports {
		if r.UserID != userID {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Format != "" && r.Format != filter.Format {
			continue
		}
		if !filter.CreatedAfter.IsZero() && r.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && r.CreatedAt.After(filter.CreatedBefore) {
			continue
		}
		result = append(result, r.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// FindExpired returns completed reports past expiry and failed reports older
// than the retention window
func (s *MemoryStore) FindExpired(ctx context.Context, now time.Time) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*Report
	for _, r := range s.reports {
		switch r.Status {
		case StatusCompleted:
			if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
				expired = append(expired, r.Clone())
			}
		case StatusFailed:
			if r.CompletedAt != nil && r.CompletedAt.Add(RetentionWindow).Before(now) {
				expired = append(expired, r.Clone())
			}
		}
	}
	return expired, nil
}
