package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/wolfman30/booking-relay/internal/http/respond"
)

// HealthHandler reports liveness and which vendors are configured.
type HealthHandler struct {
	port         string
	integrations map[string]bool
	started      time.Time
	now          func() time.Time
}

func NewHealthHandler(port string, integrations map[string]bool) *HealthHandler {
	return &HealthHandler{
		port:         port,
		integrations: integrations,
		started:      time.Now(),
		now:          time.Now,
	}
}

// Root handles GET /.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"message":   "Booking relay is running",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"port":      h.port,
	})
}

// Health handles GET /health and GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	respond.JSON(w, http.StatusOK, map[string]any{
		"status":         "OK",
		"timestamp":      now.UTC().Format(time.RFC3339),
		"uptime_seconds": now.Sub(h.started).Seconds(),
		"port":           h.port,
		"pid":            os.Getpid(),
		"integrations":   h.integrations,
	})
}

// Integrations handles GET /admin/integrations.
func (h *HealthHandler) Integrations(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{"integrations": h.integrations})
}
