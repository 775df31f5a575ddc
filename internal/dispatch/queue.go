package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Josue1991/Business-Report/internal/errors"
)

// Handler processes one dequeued job. Returning an error schedules a retry
// until the job's attempts are exhausted.
type Handler func(ctx context.Context, job *Job) error

// QueueConfig sets the concurrency ceiling and retry policy for one queue
type QueueConfig struct {
	Workers int
	Buffer  int
	Retry   RetryConfig

	// RateLimit caps how many jobs per second the queue's workers may start.
	// Zero means unlimited.
	RateLimit rate.Limit
	RateBurst int
}

type queue struct {
	name    QueueName
	cfg     QueueConfig
	jobs    chan *Job
	limiter *rate.Limiter
	handler Handler
}

// Dispatcher owns the queues and their worker pools
type Dispatcher struct {
	mu         sync.RWMutex
	queues     map[QueueName]*queue
	store      JobStore
	logger     *slog.Logger
	metrics    *Metrics
	wg         sync.WaitGroup
	shutdown   chan struct{}
	started    bool
	stallAfter time.Duration

	// inflight tracks job ids currently sitting in a queue channel, so
	// recovery and the stall sweeper never push a second copy of a job
	// that is already awaiting a worker.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// DefaultStallTimeout is the visibility timeout after which a running job is
// assumed stalled and requeued
const DefaultStallTimeout = 5 * time.Minute

// NewDispatcher creates a dispatcher backed by the given job store
func NewDispatcher(store JobStore, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		queues:     make(map[QueueName]*queue),
		store:      store,
		logger:     logger.With(slog.String("component", "dispatcher")),
		metrics:    metrics,
		shutdown:   make(chan struct{}),
		stallAfter: DefaultStallTimeout,
		inflight:   make(map[string]struct{}),
	}
}

// SetStallTimeout overrides the visibility timeout. Must be called before Start.
func (d *Dispatcher) SetStallTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.stallAfter = timeout
	}
}

// RegisterQueue declares a queue and the handler consuming it. Must be
// called before Start.
func (d *Dispatcher) RegisterQueue(name QueueName, cfg QueueConfig, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("cannot register queue %s without a handler", name)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = cfg.Workers * 2
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("cannot register queue %s after start", name)
	}
	if _, exists := d.queues[name]; exists {
		return fmt.Errorf("queue %s already registered", name)
	}

	q := &queue{
		name:    name,
		cfg:     cfg,
		jobs:    make(chan *Job, cfg.Buffer),
		handler: handler,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	d.queues[name] = q
	return nil
}

// trackInflight records that a job is in a queue channel. It returns false
// when the job is already there, in which case the caller must not push it.
func (d *Dispatcher) trackInflight(id string) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()

	if _, exists := d.inflight[id]; exists {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Dispatcher) untrackInflight(id string) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	delete(d.inflight, id)
}

// Start recovers jobs left over from a previous run, then launches the
// worker pools and the stall sweeper. Recovery happens before any worker
// consumes, so a recovered job and a fresh enqueue cannot interleave.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.started = true
	queues := make([]*queue, 0, len(d.queues))
	for _, q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()

	d.recoverJobs()

	for _, q := range queues {
		d.logger.Info("starting queue workers",
			slog.String("queue", string(q.name)),
			slog.Int("workers", q.cfg.Workers))

		for i := 0; i < q.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker(ctx, q, i)
		}
	}

	go d.sweepStalled(ctx)
}

// Stop gracefully shuts down the dispatcher, waiting for in-flight jobs
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.logger.Info("stopping dispatcher")
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped gracefully")
		return nil
	case <-time.After(timeout):
		d.logger.Warn("dispatcher stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// EnqueueOptions tunes a single enqueue
type EnqueueOptions struct {
	IdempotencyKey string
	MaxAttempts    int
}

// Enqueue adds a job to the named queue. Re-enqueueing a known, non-dead
// idempotency key is a no-op returning the existing job. A full queue fails
// with a dispatch error and leaves no job behind.
func (d *Dispatcher) Enqueue(ctx context.Context, name QueueName, payload Payload, opts EnqueueOptions) (*Job, error) {
	d.mu.RLock()
	q, exists := d.queues[name]
	d.mu.RUnlock()
	if !exists {
		return nil, errors.NewDispatchError("unknown queue "+string(name), nil)
	}

	if opts.IdempotencyKey != "" {
		existing, err := d.store.FindByIdempotencyKey(opts.IdempotencyKey)
		if err != nil {
			return nil, errors.NewDispatchError("idempotency lookup failed", err)
		}
		if existing != nil && existing.Status != JobStatusDead {
			d.logger.Info("duplicate enqueue ignored",
				slog.String("queue", string(name)),
				slog.String("idempotency_key", opts.IdempotencyKey),
				slog.String("job_id", existing.ID))
			return existing, nil
		}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.Retry.MaxAttempts
	}

	job := &Job{
		ID:             uuid.NewString(),
		Queue:          name,
		IdempotencyKey: opts.IdempotencyKey,
		Payload:        payload,
		Status:         JobStatusPending,
		MaxAttempts:    maxAttempts,
		CreatedAt:      time.Now().UTC(),
	}

	if err := d.store.CreateJob(job); err != nil {
		return nil, errors.NewDispatchError("failed to persist job", err)
	}

	d.trackInflight(job.ID)
	select {
	case q.jobs <- job:
		d.metrics.JobEnqueued(ctx, name)
		d.metrics.QueueDepth(ctx, name, +1)
		d.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("queue", string(name)),
			slog.String("report_id", job.Payload.ReportID))
		return job, nil
	default:
		// Queue is full. Remove the bookkeeping so the caller can retry
		// the whole submission later.
		d.untrackInflight(job.ID)
		if err := d.store.DeleteJob(job.ID); err != nil {
			d.logger.Error("failed to delete unqueued job", slog.String("error", err.Error()))
		}
		return nil, errors.NewDispatchError("queue "+string(name)+" is full", nil)
	}
}

// GetJob retrieves a job by id
func (d *Dispatcher) GetJob(id string) (*Job, error) {
	return d.store.GetJob(id)
}

// ListDead surfaces jobs whose retries were exhausted
func (d *Dispatcher) ListDead() ([]*Job, error) {
	return d.store.ListJobs(JobFilter{Status: JobStatusDead})
}

// Stats returns per-queue depth and worker counts
func (d *Dispatcher) Stats() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]interface{}, len(d.queues))
	for name, q := range d.queues {
		stats[string(name)] = map[string]interface{}{
			"workers":    q.cfg.Workers,
			"queue_size": len(q.jobs),
			"queue_cap":  cap(q.jobs),
		}
	}
	return stats
}

// worker pulls jobs from one queue until shutdown
func (d *Dispatcher) worker(ctx context.Context, q *queue, workerID int) {
	defer d.wg.Done()

	logger := d.logger.With(
		slog.String("queue", string(q.name)),
		slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-d.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			d.untrackInflight(job.ID)
			d.metrics.QueueDepth(ctx, q.name, -1)
			if q.limiter != nil {
				if err := q.limiter.Wait(ctx); err != nil {
					return
				}
			}
			d.processJob(ctx, q, job, logger)
		}
	}
}

// processJob runs one attempt of a job and handles the outcome
func (d *Dispatcher) processJob(ctx context.Context, q *queue, job *Job, logger *slog.Logger) {
	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("report_id", job.Payload.ReportID))

	now := time.Now().UTC()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.NextRunAt = nil
	job.Attempts++

	if err := d.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job status", slog.String("error", err.Error()))
	}

	logger.Info("processing job started", slog.Int("attempt", job.Attempts))
	start := time.Now()

	err := d.runHandler(ctx, q.handler, job, logger)

	d.metrics.JobDuration(ctx, q.name, time.Since(start))

	if err == nil {
		completed := time.Now().UTC()
		job.Status = JobStatusCompleted
		job.CompletedAt = &completed
		job.LastError = ""
		if updateErr := d.store.UpdateJob(job); updateErr != nil {
			logger.Error("failed to update job completion", slog.String("error", updateErr.Error()))
		}

		d.metrics.JobCompleted(ctx, q.name)
		logger.Info("processing job completed")
		return
	}

	job.LastError = err.Error()
	d.metrics.JobFailed(ctx, q.name)

	if job.Attempts >= job.MaxAttempts {
		d.markDead(ctx, job, logger)
		return
	}

	delay := q.cfg.Retry.Backoff(job.Attempts)
	nextRun := time.Now().UTC().Add(delay)
	job.Status = JobStatusPending
	job.NextRunAt = &nextRun
	if updateErr := d.store.UpdateJob(job); updateErr != nil {
		logger.Error("failed to update job for retry", slog.String("error", updateErr.Error()))
	}

	logger.Warn("job failed, retry scheduled",
		slog.String("error", err.Error()),
		slog.Int("attempt", job.Attempts),
		slog.Duration("backoff", delay))

	d.requeueAfter(ctx, q, job, delay)
}

// runHandler invokes the handler with panic recovery; a panicking handler
// counts as a failed attempt
func (d *Dispatcher) runHandler(ctx context.Context, handler Handler, job *Job, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job handler panicked", slog.Any("panic", r))
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// markDead finishes a job whose retries are exhausted. Dead jobs stay in the
// store so they can be surfaced, never silently dropped.
func (d *Dispatcher) markDead(ctx context.Context, job *Job, logger *slog.Logger) {
	completed := time.Now().UTC()
	job.Status = JobStatusDead
	job.CompletedAt = &completed

	if err := d.store.UpdateJob(job); err != nil {
		logger.Error("failed to mark job dead", slog.String("error", err.Error()))
	}

	d.metrics.JobDead(ctx, job.Queue)
	logger.Error("job dead-lettered after exhausting retries",
		slog.Int("attempts", job.Attempts),
		slog.String("last_error", job.LastError))
}

// requeueAfter puts the job back on the queue once its backoff elapses
func (d *Dispatcher) requeueAfter(ctx context.Context, q *queue, job *Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if !d.trackInflight(job.ID) {
			return
		}
		select {
		case q.jobs <- job:
			d.metrics.QueueDepth(ctx, q.name, +1)
		case <-d.shutdown:
			d.untrackInflight(job.ID)
		}
	})
}

// recoverJobs requeues jobs that were pending or running when the process
// last stopped. Jobs already sitting in a queue channel are skipped, so a
// job enqueued before Start is delivered once.
func (d *Dispatcher) recoverJobs() {
	d.mu.RLock()
	queues := make(map[QueueName]*queue, len(d.queues))
	for name, q := range d.queues {
		queues[name] = q
	}
	d.mu.RUnlock()

	for _, status := range []JobStatus{JobStatusRunning, JobStatusPending} {
		jobs, err := d.store.ListJobs(JobFilter{Status: status})
		if err != nil {
			d.logger.Error("failed to list jobs for recovery", slog.String("error", err.Error()))
			continue
		}

		for _, job := range jobs {
			q, exists := queues[job.Queue]
			if !exists {
				continue
			}
			if !d.trackInflight(job.ID) {
				continue
			}
			if job.Status == JobStatusRunning {
				job.Status = JobStatusPending
				job.StartedAt = nil
				if err := d.store.UpdateJob(job); err != nil {
					d.untrackInflight(job.ID)
					continue
				}
			}

			select {
			case q.jobs <- job:
				d.logger.Info("recovered job",
					slog.String("job_id", job.ID),
					slog.String("queue", string(job.Queue)))
			default:
				d.untrackInflight(job.ID)
				d.logger.Warn("could not recover job, queue full",
					slog.String("job_id", job.ID))
			}
		}
	}
}

// sweepStalled requeues jobs stuck running past the visibility timeout
func (d *Dispatcher) sweepStalled(ctx context.Context) {
	interval := d.stallAfter / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.requeueStalled()
		}
	}
}

func (d *Dispatcher) requeueStalled() {
	running, err := d.store.ListJobs(JobFilter{Status: JobStatusRunning})
	if err != nil {
		d.logger.Error("failed to list running jobs", slog.String("error", err.Error()))
		return
	}

	cutoff := time.Now().UTC().Add(-d.stallAfter)
	for _, job := range running {
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}

		d.mu.RLock()
		q, exists := d.queues[job.Queue]
		d.mu.RUnlock()
		if !exists {
			continue
		}

		if !d.trackInflight(job.ID) {
			continue
		}

		job.Status = JobStatusPending
		job.StartedAt = nil
		if err := d.store.UpdateJob(job); err != nil {
			d.untrackInflight(job.ID)
			continue
		}

		select {
		case q.jobs <- job:
			d.logger.Warn("requeued stalled job",
				slog.String("job_id", job.ID),
				slog.String("queue", string(job.Queue)))
		default:
			d.untrackInflight(job.ID)
		}
	}
}
