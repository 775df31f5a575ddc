package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/Josue1991/Business-Report/internal/infrastructure"
)

var startedAt = time.Now().UTC()

// HealthHandler serves liveness and version endpoints
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HealthCheck handles GET /healthz
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":  "ok",
		"service": infrastructure.ServiceName,
		"uptime":  time.Since(startedAt).String(),
	})
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"service": infrastructure.ServiceName,
		"version": infrastructure.ServiceVersion,
	})
}
