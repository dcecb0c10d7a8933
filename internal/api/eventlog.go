package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"example.com/roster/internal/persistence"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventLogReader lists stored enrollment events for one activity.
type EventLogReader interface {
	ListByActivity(ctx context.Context, activity string, cursor *persistence.Cursor, limit int) ([]persistence.EventLogEntry, *persistence.Cursor, error)
}

// EventLogHandler serves the enrollment audit trail written by the consumer.
type EventLogHandler struct {
	reader EventLogReader
}

// NewEventLogHandler builds an EventLogHandler.
func NewEventLogHandler(reader EventLogReader) *EventLogHandler {
	return &EventLogHandler{reader: reader}
}

// RegisterRoutes wires the event log endpoint to the mux.
func (h *EventLogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/enrollment-events", h.list)
	mux.HandleFunc("GET /healthz", healthz)
}

// EventLogResponse packages one page of the event log.
type EventLogResponse struct {
	Items      []persistence.EventLogEntry `json:"items"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

func (h *EventLogHandler) list(w http.ResponseWriter, r *http.Request) {
	activity := r.URL.Query().Get("activity")
	if strings.TrimSpace(activity) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing activity parameter")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxEventLimit)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.reader.ListByActivity(r.Context(), activity, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if entries == nil {
		entries = []persistence.EventLogEntry{}
	}

	writeJSON(w, http.StatusOK, EventLogResponse{
		Items:      entries,
		NextCursor: persistence.EncodeCursor(next),
	})
}
