package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josue1991/Business-Report/internal/analysis"
	"github.com/Josue1991/Business-Report/internal/dispatch"
	"github.com/Josue1991/Business-Report/internal/encoder"
	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/notify"
	"github.com/Josue1991/Business-Report/internal/report"
	"github.com/Josue1991/Business-Report/internal/suggest"
)

// capturePublisher records published events for assertions
type capturePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *capturePublisher) Publish(event notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) byType(eventType notify.EventType) []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []notify.Event
	for _, e := range p.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type testEnv struct {
	svc        *ReportService
	store      *report.MemoryStore
	dispatcher *dispatch.Dispatcher
	publisher  *capturePublisher
	dir        string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = t.TempDir()
	}

	store := report.NewMemoryStore()
	d := dispatch.NewDispatcher(dispatch.NewMemoryJobStore(), nil, slog.Default())
	publisher := &capturePublisher{}

	svc := NewReportService(cfg, store, d,
		encoder.NewRegistry(encoder.NewCSVEncoder(), encoder.NewExcelEncoder()),
		suggest.StaticService{}, publisher, nil, slog.Default())

	noop := func(ctx context.Context, job *dispatch.Job) error { return nil }
	require.NoError(t, d.RegisterQueue(dispatch.QueueRender, dispatch.QueueConfig{Workers: 1, Buffer: 8}, noop))
	require.NoError(t, d.RegisterQueue(dispatch.QueueAnalysis, dispatch.QueueConfig{Workers: 1, Buffer: 8}, noop))

	return &testEnv{svc: svc, store: store, dispatcher: d, publisher: publisher, dir: cfg.ArtifactDir}
}

func validSubmit(records int) SubmitRequest {
	recs := make([]analysis.Record, records)
	for i := range recs {
		recs[i] = analysis.Record{"region": "north", "units": float64(i)}
	}
	return SubmitRequest{
		UserID: "user-1",
		Type:   report.TypeSales,
		Format: report.FormatCSV,
		Title:  "Weekly Sales",
		Records: recs,
	}
}

func queueSize(t *testing.T, d *dispatch.Dispatcher, name dispatch.QueueName) int {
	t.Helper()
	stats, ok := d.Stats()[string(name)].(map[string]interface{})
	require.True(t, ok)
	return stats["queue_size"].(int)
}

func TestSubmitCreatesPendingReportAndEnqueuesRender(t *testing.T) {
	env := newTestEnv(t, Config{AnalysisMinRecords: 100})
	ctx := context.Background()

	rep, err := env.svc.Submit(ctx, validSubmit(5))
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, rep.Status)
	assert.Equal(t, 5, rep.Metadata.RecordCount)

	stored, err := env.store.Get(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, stored.Status)

	// Render always enqueued; analysis gated off below the record floor
	assert.Equal(t, 1, queueSize(t, env.dispatcher, dispatch.QueueRender))
	assert.Equal(t, 0, queueSize(t, env.dispatcher, dispatch.QueueAnalysis))

	events := env.publisher.byType(notify.EventReportStatus)
	require.NotEmpty(t, events)
	assert.Equal(t, rep.ID, events[0].ReportID)
}

func TestSubmitEnqueuesAnalysisWhenRequested(t *testing.T) {
	env := newTestEnv(t, Config{AnalysisMinRecords: 3})
	ctx := context.Background()

	req := validSubmit(5)
	req.Analysis = &analysis.Options{DetectAnomalies: true}

	_, err := env.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, queueSize(t, env.dispatcher, dispatch.QueueAnalysis))
}

func TestSubmitSkipsAnalysisWithoutOptions(t *testing.T) {
	env := newTestEnv(t, Config{AnalysisMinRecords: 1})
	ctx := context.Background()

	_, err := env.svc.Submit(ctx, validSubmit(5))
	require.NoError(t, err)
	assert.Equal(t, 0, queueSize(t, env.dispatcher, dispatch.QueueAnalysis))
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing title", func(r *SubmitRequest) { r.Title = "" }},
		{"unknown type", func(r *SubmitRequest) { r.Type = "weather" }},
		{"unknown format", func(r *SubmitRequest) { r.Format = "docx" }},
		{"no records", func(r *SubmitRequest) { r.Records = nil }},
		{"missing user", func(r *SubmitRequest) { r.UserID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmit(3)
			tt.mutate(&req)

			_, err := env.svc.Submit(ctx, req)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}

	// Nothing was persisted or enqueued by any rejected submission
	reports, err := env.store.List(ctx, "user-1", report.Filter{})
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Equal(t, 0, queueSize(t, env.dispatcher, dispatch.QueueRender))
}

func TestSubmitRejectsFormatWithoutEncoder(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	// pdf passes field validation but no pdf encoder is registered
	req := validSubmit(3)
	req.Format = report.FormatPDF

	_, err := env.svc.Submit(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	reports, err := env.store.List(ctx, "user-1", report.Filter{})
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Equal(t, 0, queueSize(t, env.dispatcher, dispatch.QueueRender))
}

func TestSubmitRejectsOversizedRecordSet(t *testing.T) {
	env := newTestEnv(t, Config{MaxRecords: 2})

	_, err := env.svc.Submit(context.Background(), validSubmit(3))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSubmitRollsBackWhenQueueFull(t *testing.T) {
	cfg := Config{ArtifactDir: t.TempDir()}
	store := report.NewMemoryStore()
	d := dispatch.NewDispatcher(dispatch.NewMemoryJobStore(), nil, slog.Default())
	svc := NewReportService(cfg, store, d, encoder.NewRegistry(encoder.NewCSVEncoder()),
		suggest.StaticService{}, nil, nil, slog.Default())

	noop := func(ctx context.Context, job *dispatch.Job) error { return nil }
	require.NoError(t, d.RegisterQueue(dispatch.QueueRender, dispatch.QueueConfig{Workers: 1, Buffer: 1}, noop))

	ctx := context.Background()

	// Workers never started, so the single buffer slot stays occupied
	_, err := svc.Submit(ctx, validSubmit(2))
	require.NoError(t, err)

	_, err = svc.Submit(ctx, validSubmit(2))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDispatch))

	// The rejected submission left no report behind
	reports, err := store.List(ctx, "user-1", report.Filter{})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestGetEnforcesOwnership(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	rep, err := env.svc.Submit(ctx, validSubmit(2))
	require.NoError(t, err)

	got, err := env.svc.Get(ctx, rep.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, rep.ID, got.ID)

	_, err = env.svc.Get(ctx, rep.ID, "someone-else")
	require.Error(t, err)
	assert.True(t, errors.IsPermission(err))
}

func TestDownloadDeniedWithoutCountingIt(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	rep := report.New("rep-1", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{Title: "t"})
	require.NoError(t, rep.MarkCompleted(report.Artifact{FilePath: filepath.Join(env.dir, "rep-1.csv")}))
	require.NoError(t, env.store.Create(ctx, rep))

	_, err := env.svc.Download(ctx, "rep-1", "intruder")
	require.Error(t, err)
	assert.True(t, errors.IsPermission(err))

	stored, err := env.store.Get(ctx, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.DownloadCount)

	// The owner's download succeeds and is counted
	path, err := env.svc.Download(ctx, "rep-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Artifact.FilePath, path)

	stored, err = env.store.Get(ctx, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DownloadCount)
}

func TestDownloadMissingOrExpiredArtifact(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	pending := report.New("rep-pending", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{})
	require.NoError(t, env.store.Create(ctx, pending))

	_, err := env.svc.Download(ctx, "rep-pending", "user-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	expired := report.New("rep-expired", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{})
	require.NoError(t, expired.MarkCompleted(report.Artifact{FilePath: "gone.csv"}))
	past := time.Now().UTC().Add(-time.Hour)
	expired.ExpiresAt = &past
	require.NoError(t, env.store.Create(ctx, expired))

	_, err = env.svc.Download(ctx, "rep-expired", "user-1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteRemovesArtifactFile(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	path := filepath.Join(env.dir, "rep-1.csv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	rep := report.New("rep-1", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{})
	require.NoError(t, rep.MarkCompleted(report.Artifact{FilePath: path}))
	require.NoError(t, env.store.Create(ctx, rep))

	require.NoError(t, env.svc.Delete(ctx, "rep-1", "user-1"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = env.store.Get(ctx, "rep-1")
	assert.True(t, errors.IsNotFound(err))
}

func TestEmailArtifactOwnershipAndExistence(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	path := filepath.Join(env.dir, "rep-1.csv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	rep := report.New("rep-1", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{Title: "t"})
	require.NoError(t, rep.MarkCompleted(report.Artifact{FilePath: path}))
	require.NoError(t, env.store.Create(ctx, rep))

	assert.NoError(t, env.svc.EmailArtifact(ctx, "rep-1", "user-1", "me@example.com"))

	err := env.svc.EmailArtifact(ctx, "rep-1", "intruder", "me@example.com")
	require.Error(t, err)
	assert.True(t, errors.IsPermission(err))

	noArtifact := report.New("rep-2", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{})
	require.NoError(t, env.store.Create(ctx, noArtifact))

	err = env.svc.EmailArtifact(ctx, "rep-2", "user-1", "me@example.com")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSweepExpiredRemovesReportsAndFiles(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	path := filepath.Join(env.dir, "rep-old.csv")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	old := report.New("rep-old", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{})
	require.NoError(t, old.MarkCompleted(report.Artifact{FilePath: path}))
	past := time.Now().UTC().Add(-time.Hour)
	old.ExpiresAt = &past

	fresh := report.New("rep-fresh", "user-1", report.TypeSales, report.FormatCSV, report.Metadata{})
	require.NoError(t, fresh.MarkCompleted(report.Artifact{FilePath: filepath.Join(env.dir, "rep-fresh.csv")}))

	require.NoError(t, env.store.Create(ctx, old))
	require.NoError(t, env.store.Create(ctx, fresh))

	removed, err := env.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = env.store.Get(ctx, "rep-old")
	assert.True(t, errors.IsNotFound(err))
	_, err = env.store.Get(ctx, "rep-fresh")
	assert.NoError(t, err)
}
