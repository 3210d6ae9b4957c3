package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"kiosk/internal/backend"
	"kiosk/internal/camera"
	"kiosk/internal/service"
	"kiosk/internal/service/registration"

	"github.com/go-chi/chi/v5"
)

// respondJSON sends a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends {"error": message}.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps a domain error to a status code and user-facing message.
func respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := backend.Message(err)
	if status == http.StatusInternalServerError {
		msg = "Internal Server Error"
	}
	respondError(w, status, msg)
}

func statusFor(err error) int {
	var rej *backend.RejectionError
	switch {
	case errors.As(err, &rej):
		if rej.StatusCode >= 400 {
			return rej.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, service.ErrShiftRequired),
		errors.Is(err, registration.ErrNothingToTrain),
		errors.Is(err, registration.ErrNoSamples),
		errors.Is(err, registration.ErrNameRequired):
		return http.StatusBadRequest
	case errors.Is(err, registration.ErrClassNotFound):
		return http.StatusNotFound
	case errors.Is(err, camera.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, camera.ErrSessionBusy),
		errors.Is(err, camera.ErrNotActive),
		errors.Is(err, registration.ErrCameraInactive):
		return http.StatusConflict
	case errors.Is(err, backend.ErrNoSubject):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backend.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// idParam parses a positive integer path parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// atoiDefault parses s as a positive integer, returning def if invalid.
func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
