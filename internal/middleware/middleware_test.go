package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kiosk/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTokenAuth(t *testing.T) {
	h := TokenAuth("secret")(okHandler())

	tests := []struct {
		name     string
		path     string
		header   string
		expected int
	}{
		{"page is public", "/", "", http.StatusOK},
		{"static is public", "/static/app.js", "", http.StatusOK},
		{"api without token", "/api/session", "", http.StatusUnauthorized},
		{"api wrong token", "/api/session", "Bearer nope", http.StatusUnauthorized},
		{"api bearer", "/api/session", "Bearer secret", http.StatusOK},
		{"api query token", "/api/view?token=secret", "", http.StatusOK},
		{"logs without token", "/logs/error", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestTokenAuth_EmptyTokenDisables(t *testing.T) {
	h := TokenAuth("")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWriter(&buf)

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/students", nil))

	out := buf.String()
	if !strings.Contains(out, "ERROR") || !strings.Contains(out, "GET /api/students -> 502") {
		t.Errorf("Unexpected log output: %q", out)
	}
}
