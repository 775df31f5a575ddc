// Package http is the thin HTTP shell over the report service: request
// decoding, user identification, and error mapping. All business rules live
// in the service layer.
package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Josue1991/Business-Report/internal/errors"
	"github.com/Josue1991/Business-Report/internal/report"
	"github.com/Josue1991/Business-Report/internal/service"
)

// userHeader identifies the calling user. Authentication proper is a
// front-proxy concern; the service only needs the owner id.
const userHeader = "X-User-ID"

// ReportsHandler handles report-related HTTP requests
type ReportsHandler struct {
	service *service.ReportService
	logger  *slog.Logger
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(svc *service.ReportService, logger *slog.Logger) *ReportsHandler {
	if svc == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReportsHandler{
		service: svc,
		logger:  logger.With(slog.String("handler", "reports")),
	}
}

// Routes mounts the report endpoints
func (h *ReportsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Submit)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/download", h.Download)
		r.Post("/email", h.Email)
	})

	return r
}

// SubmitResponse wraps a submitted report
type SubmitResponse struct {
	Success bool           `json:"success"`
	Report  *report.Report `json:"report"`
}

// Render implements render.Renderer
func (resp *SubmitResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

// Submit handles POST /api/reports
func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		h.renderError(w, r, errors.ErrValidation(userHeader, "user header is required"))
		return
	}

	var req service.SubmitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, errors.InvalidRequestWithError(err))
		return
	}
	req.UserID = userID

	rep, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "report submission rejected",
			slog.String("error", err.Error()))
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	render.Render(w, r, &SubmitResponse{Success: true, Report: rep})
}

// ReportView is the read representation; insights are projected by priority
type ReportView struct {
	*report.Report
	Insights []report.Insight `json:"insights"`
}

func newReportView(rep *report.Report) *ReportView {
	return &ReportView{Report: rep, Insights: rep.InsightsByPriority()}
}

// Get handles GET /api/reports/{id}
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	id := chi.URLParam(r, "id")

	rep, err := h.service.Get(r.Context(), id, userID)
	if err != nil {
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	render.JSON(w, r, newReportView(rep))
}

// List handles GET /api/reports
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		h.renderError(w, r, errors.ErrValidation(userHeader, "user header is required"))
		return
	}

	filter, apiErr := filterFromQuery(r)
	if apiErr != nil {
		h.renderError(w, r, apiErr)
		return
	}

	reports, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	views := make([]*ReportView, len(reports))
	for i, rep := range reports {
		views[i] = newReportView(rep)
	}

	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"count":   len(views),
		"reports": views,
	})
}

// Download handles GET /api/reports/{id}/download
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	id := chi.URLParam(r, "id")

	path, err := h.service.Download(r.Context(), id, userID)
	if err != nil {
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	http.ServeFile(w, r, path)
}

// EmailRequest is the body of POST /api/reports/{id}/email
type EmailRequest struct {
	Address string `json:"address"`
}

// Bind implements render.Binder
func (req *EmailRequest) Bind(r *http.Request) error {
	if req.Address == "" {
		return errors.ErrValidation("address", "address is required")
	}
	return nil
}

// Email handles POST /api/reports/{id}/email
func (h *ReportsHandler) Email(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	id := chi.URLParam(r, "id")

	var req EmailRequest
	if err := render.Bind(r, &req); err != nil {
		h.renderError(w, r, errors.InvalidRequestWithError(err))
		return
	}

	if err := h.service.EmailArtifact(r.Context(), id, userID, req.Address); err != nil {
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{"success": true})
}

// Delete handles DELETE /api/reports/{id}
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userHeader)
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	render.JSON(w, r, map[string]interface{}{"success": true})
}

// QueueStats handles GET /api/queue/stats
func (h *ReportsHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.QueueStats())
}

// DeadJobs handles GET /api/queue/dead
func (h *ReportsHandler) DeadJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.DeadJobs()
	if err != nil {
		h.renderError(w, r, errors.ToAPIError(err))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"count":   len(jobs),
		"jobs":    jobs,
	})
}

func (h *ReportsHandler) renderError(w http.ResponseWriter, r *http.Request, apiErr *errors.APIError) {
	if err := render.Render(w, r, errors.NewErrorResponse(apiErr)); err != nil {
		errors.WriteError(w, apiErr)
	}
}

// filterFromQuery parses list filters from query parameters
func filterFromQuery(r *http.Request) (report.Filter, *errors.APIError) {
	q := r.URL.Query()
	filter := report.Filter{
		Type:   report.Type(q.Get("type")),
		Status: report.Status(q.Get("status")),
		Format: report.Format(q.Get("format")),
	}

	if v := q.Get("created_after"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.ErrValidation("created_after", "must be RFC3339")
		}
		filter.CreatedAfter = ts
	}
	if v := q.Get("created_before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.ErrValidation("created_before", "must be RFC3339")
		}
		filter.CreatedBefore = ts
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, errors.ErrValidation("limit", "must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}
