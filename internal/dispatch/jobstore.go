package dispatch

import (
	"sync"
	"time"

	"github.com/Josue1991/Business-Report/internal/errors"
)

// JobStore persists queue bookkeeping: job status, attempts, and the
// idempotency-key index
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error

	// FindByIdempotencyKey returns the live job registered under key, or nil
	FindByIdempotencyKey(key string) (*Job, error)
}

// MemoryJobStore is an in-memory implementation of JobStore
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	byKey map[string]string // idempotency key -> job id
}

// NewMemoryJobStore creates a new in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:  make(map[string]*Job),
		byKey: make(map[string]string),
	}
}

// CreateJob creates a new job
func (s *MemoryJobStore) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return errors.NewStorageError("job "+job.ID+" already exists", nil)
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	if job.IdempotencyKey != "" {
		s.byKey[job.IdempotencyKey] = job.ID
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *MemoryJobStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, errors.NewNotFoundError("job", id)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// UpdateJob updates an existing job
func (s *MemoryJobStore) UpdateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return errors.NewNotFoundError("job", job.ID)
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// ListJobs returns jobs matching the filter
func (s *MemoryJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Job
	for _, job := range s.jobs {
		if filter.Queue != "" && job.Queue != filter.Queue {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)

		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// DeleteJob removes a job from the store
func (s *MemoryJobStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return errors.NewNotFoundError("job", id)
	}

	if job.IdempotencyKey != "" {
		delete(s.byKey, job.IdempotencyKey)
	}
	delete(s.jobs, id)
	return nil
}

// FindByIdempotencyKey returns the job registered under key, or nil
func (s *MemoryJobStore) FindByIdempotencyKey(key string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byKey[key]
	if !exists {
		return nil, nil
	}

	job, exists := s.jobs[id]
	if !exists {
		return nil, nil
	}

	jobCopy := *job
	return &jobCopy, nil
}

// CleanupOldJobs removes terminal jobs older than the given duration
func (s *MemoryJobStore) CleanupOldJobs(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	for id, job := range s.jobs {
		if job.Status != JobStatusCompleted && job.Status != JobStatusDead {
			continue
		}
		if job.CreatedAt.Before(cutoff) {
			if job.IdempotencyKey != "" {
				delete(s.byKey, job.IdempotencyKey)
			}
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}
