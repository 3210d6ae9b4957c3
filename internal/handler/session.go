package handler

import (
	"context"
	"mime"
	"net/http"

	"kiosk/internal/logger"
	"kiosk/internal/service"
)

// Kiosk is the session control used by the handlers.
type Kiosk interface {
	Start(ctx context.Context, shift string) error
	Stop()
	Status() service.Status
}

type startRequest struct {
	Shift string `json:"shift"`
}

// StartSessionHandler starts the camera for the shift in the body
// ({"shift": "..."} or form field "shift").
func StartSessionHandler(kiosk Kiosk, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if isJSON(r) {
			if err := decodeJSON(r, &req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		} else {
			req.Shift = r.FormValue("shift")
		}

		if err := kiosk.Start(r.Context(), req.Shift); err != nil {
			logger.Warning("Session start failed: %v", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusOK, kiosk.Status())
	}
}

// StopSessionHandler stops the camera and every loop.
func StopSessionHandler(kiosk Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kiosk.Stop()
		respondJSON(w, http.StatusOK, kiosk.Status())
	}
}

// SessionStatusHandler reports the session state.
func SessionStatusHandler(kiosk Kiosk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, kiosk.Status())
	}
}

// isJSON reports whether the request body is JSON, ignoring parameters such
// as charset.
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
