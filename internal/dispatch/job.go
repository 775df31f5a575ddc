// Package dispatch implements the job-dispatch contract decoupling request
// handling from heavy processing: two named queues with independent
// concurrency ceilings, at-least-once delivery to exactly one worker per
// dequeue, retry with exponential backoff, and dead-letter surfacing for
// exhausted jobs.
package dispatch

import (
	"time"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/report"
)

// QueueName identifies one of the two job queues
type QueueName string

const (
	// QueueRender is I/O bound document writing; it runs with higher parallelism
	QueueRender QueueName = "render"
	// QueueAnalysis is CPU bound statistics; it runs with lower parallelism
	// and a rate cap
	QueueAnalysis QueueName = "analysis"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusDead      JobStatus = "dead"
)

// Payload is the transient queue payload. It is not persisted beyond the
// queue; the Report is the durable record of outcome.
type Payload struct {
	ReportID string            `json:"report_id"`
	UserID   string            `json:"user_id"`
	Records  []analysis.Record `json:"records,omitempty"`

	// Format is set on render jobs
	Format report.Format `json:"format,omitempty"`
	// Analysis is set on analysis jobs
	Analysis *analysis.Options `json:"analysis,omitempty"`
}

// Job is one queued unit of work, exclusively owned by the worker that
// dequeues it
type Job struct {
	ID             string    `json:"id"`
	Queue          QueueName `json:"queue"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Payload        Payload   `json:"payload"`

	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
}

// RetryConfig defines retry behavior for failed handlers
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Backoff returns the delay before the given retry attempt (1-based)
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.Multiplier)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// JobFilter narrows ListJobs results
type JobFilter struct {
	Queue  QueueName
	Status JobStatus
	Since  time.Time
	Limit  int
}
