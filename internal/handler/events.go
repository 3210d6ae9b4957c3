package handler

import (
	"net/http"

	"kiosk/internal/logger"
	"kiosk/internal/model"
)

// Journal reads recent kiosk events.
type Journal interface {
	Recent(limit int) ([]model.Event, error)
}

// EventsHandler returns the newest journal entries (?limit=N, default 50).
func EventsHandler(journal Journal, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)

		events, err := journal.Recent(limit)
		if err != nil {
			logger.Error("Error loading journal: %v", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, events)
	}
}
