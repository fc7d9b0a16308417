package api

import (
	"net/http"
	"time"

	respond "github.com/recollect/recollect/internal/api/respond"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	healthy    func() bool
	components func() map[string]bool
}

// NewHealthHandler creates a health handler. A nil healthy func reports
// unhealthy; a nil components func omits the field.
func NewHealthHandler(healthy func() bool, components func() map[string]bool) *HealthHandler {
	return &HealthHandler{healthy: healthy, components: components}
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.healthy != nil && h.healthy() {
		status = "healthy"
	}
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.components != nil {
		response["components"] = h.components()
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
