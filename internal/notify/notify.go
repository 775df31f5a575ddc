// Package notify holds the outward-facing collaborators of the report core:
// best-effort event publication and fire-and-forget email delivery. Both are
// non-blocking from the workers' point of view; their failures are logged
// and never affect report status.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// EventType names one kind of report lifecycle notification
type EventType string

// Event types published during a report's life
const (
	EventReportStatus    EventType = "report:status"
	EventReportProgress  EventType = "report:progress"
	EventReportCompleted EventType = "report:completed"
	EventReportFailed    EventType = "report:failed"
)

// Event is one report lifecycle notification
type Event struct {
	Type      EventType              `json:"type"`
	ReportID  string                 `json:"report_id"`
	UserID    string                 `json:"user_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher delivers events best-effort. Publish must never block the
// calling worker.
type Publisher interface {
	Publish(event Event)
}

// Mailer sends an artifact to an address. Delivery is fire-and-forget; the
// core logs failures and does not retry.
type Mailer interface {
	SendArtifact(ctx context.Context, address, subject, fileName string, attachment []byte) error
}

// LogMailer records outgoing mail to the log instead of sending it. It backs
// deployments without an SMTP collaborator configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger.With(slog.String("component", "mailer"))}
}

// SendArtifact logs the delivery and succeeds
func (m *LogMailer) SendArtifact(ctx context.Context, address, subject, fileName string, attachment []byte) error {
	m.logger.InfoContext(ctx, "artifact mail delivery",
		slog.String("address", address),
		slog.String("subject", subject),
		slog.String("file_name", fileName),
		slog.Int("attachment_bytes", len(attachment)))
	return nil
}

// NopPublisher discards all events
type NopPublisher struct{}

// Publish discards the event
func (NopPublisher) Publish(Event) {}
