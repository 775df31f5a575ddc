package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Josue1991/Business-Report/internal/dispatch"
	"github.com/Josue1991/Business-Report/internal/notify"
	"github.com/Josue1991/Business-Report/internal/report"
)

// HandleRender is the render queue handler. It encodes the submitted records
// into the requested document format and owns the report's terminal success
// transition. A returned error makes the queue retry; the report is marked
// failed only once the attempts are exhausted, so a transient encoder error
// does not wedge the report in a terminal state.
func (s *ReportService) HandleRender(ctx context.Context, job *dispatch.Job) error {
	logger := s.logger.With(
		slog.String("job_id", job.ID),
		slog.String("report_id", job.Payload.ReportID))

	rep, err := s.reports.Get(ctx, job.Payload.ReportID)
	if err != nil {
		return fmt.Errorf("render: load report: %w", err)
	}
	if rep.Status.IsTerminal() {
		// Redelivered after completion; nothing to do
		logger.Info("render skipped, report already terminal",
			slog.String("status", string(rep.Status)))
		return nil
	}

	s.advanceStatus(ctx, rep, report.StatusProcessing)

	path := filepath.Join(s.cfg.ArtifactDir, artifactFileName(rep))
	size, encodeErr := s.encoders.Encode(ctx, rep.Format, path, job.Payload.Records, rep.Metadata)
	if encodeErr != nil {
		logger.Error("render failed",
			slog.String("format", string(rep.Format)),
			slog.Int("attempt", job.Attempts),
			slog.String("error", encodeErr.Error()))

		if job.Attempts >= job.MaxAttempts {
			s.markFailed(ctx, rep, "render failed: "+encodeErr.Error())
		}
		return encodeErr
	}

	artifact := report.Artifact{
		FilePath:    path,
		Size:        size,
		DownloadURL: s.cfg.BaseURL + "/api/reports/" + rep.ID + "/download",
	}

	now := time.Now().UTC()
	expires := now.Add(report.RetentionWindow)
	completed := report.StatusCompleted
	empty := ""

	if _, err := s.reports.Update(ctx, rep.ID, report.Update{
		Status:      &completed,
		Artifact:    &artifact,
		Error:       &empty,
		CompletedAt: &now,
		ExpiresAt:   &expires,
	}); err != nil {
		return fmt.Errorf("render: persist completion: %w", err)
	}

	logger.Info("render completed",
		slog.String("path", path),
		slog.Int64("size", size))

	s.publisher.Publish(notify.Event{
		Type:     notify.EventReportCompleted,
		ReportID: rep.ID,
		UserID:   rep.UserID,
		Payload: map[string]interface{}{
			"download_url": artifact.DownloadURL,
			"size":         size,
		},
	})
	return nil
}

// artifactFileName derives the artifact file name from the report id and
// format extension
func artifactFileName(rep *report.Report) string {
	return rep.ID + "." + string(rep.Format)
}

// advanceStatus performs a lifecycle transition if legal from the report's
// current status, tolerating any render/analysis interleaving. Illegal
// transitions are skipped silently: the other worker has already moved the
// report further along.
func (s *ReportService) advanceStatus(ctx context.Context, rep *report.Report, to report.Status) {
	if !report.CanTransition(rep.Status, to) {
		return
	}

	updated, err := s.reports.Update(ctx, rep.ID, report.Update{Status: &to})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist status transition",
			slog.String("report_id", rep.ID),
			slog.String("to", string(to)),
			slog.String("error", err.Error()))
		return
	}
	if updated.Status != to {
		// The store rejected the transition against the current status; the
		// snapshot was stale and another worker already moved the report.
		return
	}
	rep.Status = to

	s.publishStatus(rep.ID, rep.UserID, to)
}

// markFailed terminates the report with an error message
func (s *ReportService) markFailed(ctx context.Context, rep *report.Report, message string) {
	failed := report.StatusFailed
	now := time.Now().UTC()

	updated, err := s.reports.Update(ctx, rep.ID, report.Update{
		Status:      &failed,
		Error:       &message,
		CompletedAt: &now,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist report failure",
			slog.String("report_id", rep.ID),
			slog.String("error", err.Error()))
		return
	}
	if updated.Status != report.StatusFailed {
		return
	}

	s.publisher.Publish(notify.Event{
		Type:     notify.EventReportFailed,
		ReportID: rep.ID,
		UserID:   rep.UserID,
		Payload:  map[string]interface{}{"error": message},
	})
}
