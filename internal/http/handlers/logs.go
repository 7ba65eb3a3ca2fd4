package handlers

import (
	"net/http"

	"github.com/wolfman30/booking-relay/internal/http/respond"
	"github.com/wolfman30/booking-relay/pkg/logging"
)

// LogsHandler accepts log lines shipped by the booking form.
type LogsHandler struct {
	logger *logging.Logger
}

func NewLogsHandler(logger *logging.Logger) *LogsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogsHandler{logger: logger.With("component", "frontend")}
}

type logEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Ingest handles POST /api/logs.
func (h *LogsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var entry logEntry
	if err := respond.Decode(w, r, &entry); err != nil {
		respond.Error(w, http.StatusBadRequest, "Failed to process log")
		return
	}
	h.logger.Log(r.Context(), logging.ParseLevel(entry.Level), logging.ScrubPII(entry.Message),
		"client_level", entry.Level,
		"data", logging.ScrubValue(entry.Data),
		"remote_ip", r.RemoteAddr,
	)
	respond.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Log received"})
}

// Status handles GET /api/logs.
func (h *LogsHandler) Status(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Logs endpoint working"})
}
