package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/taskboard-be/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventHandler handles HTTP requests related to the activity log.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get the caller's recent activity.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.service.GetRecentEvents(r.Context(), caller.UserID, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", caller.UserID).Msg("Failed to retrieve events")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
