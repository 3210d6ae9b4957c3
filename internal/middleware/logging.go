package middleware

import (
	"net/http"
	"time"

	"kiosk/internal/logger"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs every request through the kiosk logger. Server errors go
// to the error log, client errors to the warning log.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			reqID := chiMiddleware.GetReqID(r.Context())

			switch {
			case status >= 500:
				log.Error("[%s] %s %s -> %d (%v)", reqID, r.Method, r.URL.Path, status, elapsed)
			case status >= 400:
				log.Warning("[%s] %s %s -> %d (%v)", reqID, r.Method, r.URL.Path, status, elapsed)
			default:
				log.Info("[%s] %s %s -> %d (%v)", reqID, r.Method, r.URL.Path, status, elapsed)
			}
		})
	}
}
