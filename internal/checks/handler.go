package checks

import (
	"net/http"

	"github.com/bissquit/healthboard/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the latest check results.
type Handler struct {
	runner *Runner
}

// NewHandler creates a new checks handler.
func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes registers public check routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/checks", h.ListChecks)
}

// ChecksResponse is the body of the checks endpoint.
type ChecksResponse struct {
	Healthy bool     `json:"healthy"`
	Results []Result `json:"results"`
}

// ListChecks handles GET /checks. It responds 500 when a critical check fails.
func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	results := h.runner.Results()
	if results == nil {
		results = h.runner.RunOnce(r.Context())
	}

	resp := ChecksResponse{Healthy: Healthy(results), Results: results}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusInternalServerError
	}
	httputil.Success(w, status, resp)
}
