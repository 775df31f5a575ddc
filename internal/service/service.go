// Package service implements the report workflows: submission, lifecycle
// queries, artifact download and mailing, retention sweeping, and the two
// queue handlers (render, analysis) that advance a report to its terminal
// state. The HTTP layer is a thin shell over this package.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/dispatch"
	"github.com/Josue1991/Business-Report/internal/encoder"
	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/notify"
	"github.com/Josue1991/Business-Report/internal/report"
	"github.com/Josue1991/Business-Report/internal/suggest"
)

// Config tunes the report workflows
type Config struct {
	// ArtifactDir is where rendered documents are written
	ArtifactDir string

	// BaseURL prefixes artifact download URLs
	BaseURL string

	// MaxRecords is the submission ceiling; larger record sets are rejected
	// before anything is persisted
	MaxRecords int

	// AnalysisMinRecords gates the analysis job: smaller submissions get no
	// analysis even when requested
	AnalysisMinRecords int
}

// DefaultConfig returns the default workflow configuration
func DefaultConfig() Config {
	return Config{
		ArtifactDir:        "artifacts",
		MaxRecords:         50000,
		AnalysisMinRecords: 100,
	}
}

// ReportService coordinates stores, queues, encoders and collaborators for
// the full report lifecycle
type ReportService struct {
	cfg        Config
	reports    report.Store
	dispatcher *dispatch.Dispatcher
	encoders   *encoder.Registry
	orch       *Orchestrator
	publisher  notify.Publisher
	mailer     notify.Mailer
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewReportService wires the report workflows together. Publisher and mailer
// may be nil; both degrade to no-ops.
func NewReportService(
	cfg Config,
	reports report.Store,
	dispatcher *dispatch.Dispatcher,
	encoders *encoder.Registry,
	suggester suggest.Service,
	publisher notify.Publisher,
	mailer notify.Mailer,
	logger *slog.Logger,
) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if mailer == nil {
		mailer = notify.NewLogMailer(logger)
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultConfig().MaxRecords
	}
	if cfg.AnalysisMinRecords <= 0 {
		cfg.AnalysisMinRecords = DefaultConfig().AnalysisMinRecords
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = DefaultConfig().ArtifactDir
	}

	return &ReportService{
		cfg:        cfg,
		reports:    reports,
		dispatcher: dispatcher,
		encoders:   encoders,
		orch:       NewOrchestrator(suggester, logger),
		publisher:  publisher,
		mailer:     mailer,
		validate:   validator.New(),
		logger:     logger.With(slog.String("component", "report_service")),
	}
}

// SubmitRequest is a validated report submission
type SubmitRequest struct {
	UserID      string            `json:"user_id" validate:"required"`
	Type        report.Type       `json:"type" validate:"required,oneof=sales financial inventory customer custom"`
	Format      report.Format     `json:"format" validate:"required,oneof=xlsx csv pdf"`
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=2000"`
	Columns     []string          `json:"columns,omitempty"`
	Chart       *report.ChartSpec `json:"chart,omitempty"`
	Records     []analysis.Record `json:"records" validate:"required,min=1"`

	// Analysis selects the analysis steps to run; nil requests none
	Analysis *analysis.Options `json:"analysis,omitempty"`
}

// Submit validates the request, persists a pending report and enqueues its
// jobs. An enqueue failure rolls the pending report back and surfaces a
// dispatch error synchronously, so no submitted report is silently lost.
func (s *ReportService) Submit(ctx context.Context, req SubmitRequest) (*report.Report, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError("invalid report submission", err)
	}
	if len(req.Records) > s.cfg.MaxRecords {
		return nil, errors.NewValidationError(
			fmt.Sprintf("record count %d exceeds limit %d", len(req.Records), s.cfg.MaxRecords), nil)
	}
	if !s.encoders.Supports(req.Format) {
		return nil, errors.NewValidationError(
			fmt.Sprintf("format %q has no registered encoder", req.Format), nil)
	}

	rep := report.New(uuid.NewString(), req.UserID, req.Type, req.Format, report.Metadata{
		Title:       req.Title,
		Description: req.Description,
		Columns:     req.Columns,
		Chart:       req.Chart,
		RecordCount: len(req.Records),
	})

	if err := s.reports.Create(ctx, rep); err != nil {
		return nil, err
	}

	renderPayload := dispatch.Payload{
		ReportID: rep.ID,
		UserID:   rep.UserID,
		Records:  req.Records,
		Format:   rep.Format,
	}
	if _, err := s.dispatcher.Enqueue(ctx, dispatch.QueueRender, renderPayload, dispatch.EnqueueOptions{
		IdempotencyKey: rep.ID + ":render",
	}); err != nil {
		s.rollback(ctx, rep.ID)
		return nil, err
	}

	if s.shouldEnableAnalysis(len(req.Records), req.Analysis) {
		analysisPayload := dispatch.Payload{
			ReportID: rep.ID,
			UserID:   rep.UserID,
			Records:  req.Records,
			Analysis: req.Analysis,
		}
		if _, err := s.dispatcher.Enqueue(ctx, dispatch.QueueAnalysis, analysisPayload, dispatch.EnqueueOptions{
			IdempotencyKey: rep.ID + ":analysis",
		}); err != nil {
			s.rollback(ctx, rep.ID)
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "report submitted",
		slog.String("report_id", rep.ID),
		slog.String("type", string(rep.Type)),
		slog.String("format", string(rep.Format)),
		slog.Int("records", len(req.Records)))

	s.publishStatus(rep.ID, rep.UserID, report.StatusPending)
	return rep, nil
}

// shouldEnableAnalysis gates the analysis job on the record-count floor
func (s *ReportService) shouldEnableAnalysis(recordCount int, opts *analysis.Options) bool {
	if opts == nil {
		return false
	}
	return recordCount >= s.cfg.AnalysisMinRecords
}

// rollback removes a pending report whose jobs could not be enqueued
func (s *ReportService) rollback(ctx context.Context, id string) {
	if err := s.reports.Delete(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back unqueued report",
			slog.String("report_id", id),
			slog.String("error", err.Error()))
	}
}

// Get returns the report if it belongs to userID
func (s *ReportService) Get(ctx context.Context, id, userID string) (*report.Report, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.UserID != userID {
		return nil, errors.NewPermissionError("report belongs to another user").
			WithContext("report_id", id)
	}
	return rep, nil
}

// List returns the user's reports matching the filter, newest first
func (s *ReportService) List(ctx context.Context, userID string, filter report.Filter) ([]*report.Report, error) {
	return s.reports.List(ctx, userID, filter)
}

// Delete removes the user's report and its artifact file
func (s *ReportService) Delete(ctx context.Context, id, userID string) error {
	rep, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}

	if rep.Artifact != nil {
		s.removeArtifactFile(rep)
	}
	return s.reports.Delete(ctx, id)
}

// Download verifies ownership and returns the artifact path. The download
// counter is incremented only on success; the permission check runs before
// any side effect.
func (s *ReportService) Download(ctx context.Context, id, userID string) (string, error) {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rep.UserID != userID {
		return "", errors.NewPermissionError("report belongs to another user").
			WithContext("report_id", id)
	}
	if rep.Artifact == nil {
		return "", errors.NewNotFoundError("artifact", id)
	}
	if rep.ExpiresAt != nil && rep.ExpiresAt.Before(time.Now().UTC()) {
		return "", errors.NewNotFoundError("artifact", id)
	}

	if _, err := s.reports.Update(ctx, id, report.Update{IncrementDownloads: true}); err != nil {
		return "", err
	}
	return rep.Artifact.FilePath, nil
}

// EmailArtifact sends the artifact to address fire-and-forget. Ownership is
// checked synchronously; delivery happens in the background and failures are
// logged, never retried.
func (s *ReportService) EmailArtifact(ctx context.Context, id, userID, address string) error {
	rep, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	if rep.UserID != userID {
		return errors.NewPermissionError("report belongs to another user").
			WithContext("report_id", id)
	}
	if rep.Artifact == nil {
		return errors.NewNotFoundError("artifact", id)
	}

	attachment, err := os.ReadFile(rep.Artifact.FilePath)
	if err != nil {
		return errors.NewNotFoundError("artifact", id)
	}

	subject := "Report ready: " + rep.Metadata.Title
	fileName := filepath.Base(rep.Artifact.FilePath)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.mailer.SendArtifact(sendCtx, address, subject, fileName, attachment); err != nil {
			s.logger.Error("artifact mail delivery failed",
				slog.String("report_id", id),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

// SweepExpired removes completed reports past their expiry and failed
// reports beyond the retention window, along with their artifact files.
// Returns the number of reports removed.
func (s *ReportService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.reports.FindExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rep := range expired {
		if rep.Artifact != nil {
			s.removeArtifactFile(rep)
		}
		if err := s.reports.Delete(ctx, rep.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete expired report",
				slog.String("report_id", rep.ID),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "retention sweep finished", slog.Int("removed", removed))
	}
	return removed, nil
}

func (s *ReportService) removeArtifactFile(rep *report.Report) {
	if err := os.Remove(rep.Artifact.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove artifact file",
			slog.String("report_id", rep.ID),
			slog.String("path", rep.Artifact.FilePath),
			slog.String("error", err.Error()))
	}
}

// QueueStats surfaces per-queue depth and worker counts
func (s *ReportService) QueueStats() map[string]interface{} {
	return s.dispatcher.Stats()
}

// DeadJobs surfaces jobs whose retries were exhausted
func (s *ReportService) DeadJobs() ([]*dispatch.Job, error) {
	return s.dispatcher.ListDead()
}

// publishStatus emits a best-effort status event
func (s *ReportService) publishStatus(reportID, userID string, status report.Status) {
	s.publisher.Publish(notify.Event{
		Type:     notify.EventReportStatus,
		ReportID: reportID,
		UserID:   userID,
		Payload:  map[string]interface{}{"status": string(status)},
	})
}
