package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for queue observability.
// A nil *Metrics is valid and records nothing, which keeps tests quiet.
type Metrics struct {
	enqueued  metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	dead      metric.Int64Counter
	depth     metric.Int64UpDownCounter
	duration  metric.Float64Histogram
}

// NewMetrics creates the dispatcher instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	enqueued, err := meter.Int64Counter("dispatch_jobs_enqueued_total",
		metric.WithDescription("Jobs accepted onto a queue"))
	if err != nil {
		return nil, fmt.Errorf("create enqueued counter: %w", err)
	}

	completed, err := meter.Int64Counter("dispatch_jobs_completed_total",
		metric.WithDescription("Jobs whose handler finished successfully"))
	if err != nil {
		return nil, fmt.Errorf("create completed counter: %w", err)
	}

	failed, err := meter.Int64Counter("dispatch_jobs_failed_total",
		metric.WithDescription("Handler attempts that returned an error"))
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}

	dead, err := meter.Int64Counter("dispatch_jobs_dead_total",
		metric.WithDescription("Jobs dead-lettered after exhausting retries"))
	if err != nil {
		return nil, fmt.Errorf("create dead counter: %w", err)
	}

	depth, err := meter.Int64UpDownCounter("dispatch_queue_depth",
		metric.WithDescription("Jobs currently buffered per queue"))
	if err != nil {
		return nil, fmt.Errorf("create depth gauge: %w", err)
	}

	duration, err := meter.Float64Histogram("dispatch_job_duration_seconds",
		metric.WithDescription("Wall time of one handler attempt"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Metrics{
		enqueued:  enqueued,
		completed: completed,
		failed:    failed,
		dead:      dead,
		depth:     depth,
		duration:  duration,
	}, nil
}

func queueAttr(name QueueName) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("queue", string(name)))
}

// JobEnqueued records an accepted job
func (m *Metrics) JobEnqueued(ctx context.Context, name QueueName) {
	if m == nil {
		return
	}
	m.enqueued.Add(ctx, 1, queueAttr(name))
}

// JobCompleted records a successful handler run
func (m *Metrics) JobCompleted(ctx context.Context, name QueueName) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1, queueAttr(name))
}

// JobFailed records a failed handler attempt
func (m *Metrics) JobFailed(ctx context.Context, name QueueName) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, queueAttr(name))
}

// JobDead records a dead-lettered job
func (m *Metrics) JobDead(ctx context.Context, name QueueName) {
	if m == nil {
		return
	}
	m.dead.Add(ctx, 1, queueAttr(name))
}

// QueueDepth adjusts the buffered-job gauge
func (m *Metrics) QueueDepth(ctx context.Context, name QueueName, delta int64) {
	if m == nil {
		return
	}
	m.depth.Add(ctx, delta, queueAttr(name))
}

// JobDuration records the wall time of one handler attempt
func (m *Metrics) JobDuration(ctx context.Context, name QueueName, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, d.Seconds(), queueAttr(name))
}
