package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"kiosk/internal/logger"

	"github.com/go-chi/chi/v5"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves one of the kiosk log files as text/plain. The file
// is picked by the {level} URL parameter: info, warning or error.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := logFiles[chi.URLParam(r, "level")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, log.Dir(), name)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	if logDir == "" {
		http.NotFound(w, r)
		return
	}
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the log file picked by {level}.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := logFiles[chi.URLParam(r, "level")]
		if !ok || log.Dir() == "" {
			http.NotFound(w, r)
			return
		}
		if err := log.CleanLogs(name); err != nil {
			respondError(w, http.StatusInternalServerError, "Could not clear log file")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
