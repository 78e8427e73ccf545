// Package health provides HTTP health check endpoints for liveness and
// status probes.
package health

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	respond "consentgate/internal/transport/http/shared/json"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Handler provides health check endpoints.
type Handler struct {
	startTime time.Time
}

// New creates a new health handler.
func New() *Handler {
	return &Handler{startTime: time.Now()}
}

// Register mounts health check routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
}

// LivenessResponse is the response for the liveness probe.
type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness returns a simple liveness probe response.
// This endpoint should always return 200 OK if the service is running.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	respond.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// StatusResponse is the response for the status endpoint.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HandleStatus returns service status with version and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	respond.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}
