package handler

import (
	"net/http"
	"strconv"

	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/fault"
)

// EventsHandler serves the domain event audit trail.
type EventsHandler struct {
	recorder *event.StoreRecorder
}

func NewEventsHandler(rec *event.StoreRecorder) *EventsHandler {
	return &EventsHandler{recorder: rec}
}

// ListByEntity returns the newest-first audit trail for one entity.
// ?entity_type= and ?entity_id= are required; ?limit= caps the page.
func (h *EventsHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID := r.URL.Query().Get("entity_id")
	if entityType == "" || entityID == "" {
		faultToHTTP(w, fault.Validation("entity_type and entity_id query parameters are required"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	evts, err := h.recorder.ListByEntity(r.Context(), entityType, entityID, limit)
	if err != nil {
		faultToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evts)
}
