package route

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kiosk/internal/config"
	"kiosk/internal/handler"
	"kiosk/internal/logger"
	"kiosk/internal/middleware"
	"kiosk/internal/service/websocket"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the services exposed over HTTP.
type Dependencies struct {
	Kiosk     handler.Kiosk
	Directory handler.Directory
	Registry  handler.Registry
	Journal   handler.Journal
	Hub       *websocket.HubService
}

// pageHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func pageHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		if path == "" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the kiosk API, the viewer socket, log endpoints and
// static pages.
func SetupRoutes(deps Dependencies, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.TokenAuth(cfg.APIToken))

	// Static files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	r.Route("/api", func(r chi.Router) {
		if deps.Hub != nil {
			r.Get("/view", handler.ViewWebsocketHandler(deps.Hub, logger))
		}

		// Requests below talk to the camera or the backend and must not hang.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(cfg.BackendTimeout + 5*time.Second))

			if deps.Kiosk != nil {
				r.Get("/session", handler.SessionStatusHandler(deps.Kiosk))
				r.Post("/session/start", handler.StartSessionHandler(deps.Kiosk, logger))
				r.Post("/session/stop", handler.StopSessionHandler(deps.Kiosk))
			}

			if deps.Directory != nil {
				r.Get("/attendance", handler.AttendanceHandler(deps.Directory, logger))
				r.Get("/students", handler.StudentsHandler(deps.Directory, logger))
				r.Delete("/students/{id}", handler.DeleteStudentHandler(deps.Directory, logger))
			}

			if deps.Registry != nil {
				r.Get("/classes", handler.ListClassesHandler(deps.Registry, logger))
				r.Post("/classes", handler.CreateClassHandler(deps.Registry, logger))
				r.Patch("/classes/{id}", handler.RenameClassHandler(deps.Registry, logger))
				r.Delete("/classes/{id}", handler.DeleteClassHandler(deps.Registry, logger))
				r.Post("/classes/{id}/recording", handler.StartRecordingHandler(deps.Registry, logger))
				r.Delete("/classes/{id}/recording", handler.StopRecordingHandler(deps.Registry))
				r.Delete("/classes/{id}/samples/{sampleID}", handler.DeleteSampleHandler(deps.Registry))
				r.Post("/students", handler.RegisterStudentHandler(deps.Registry, logger))
			}

			if deps.Journal != nil {
				r.Get("/events", handler.EventsHandler(deps.Journal, logger))
			}
		})

		// Uploads run one request per class; no route timeout.
		if deps.Registry != nil {
			var hub handler.Broadcaster
			if deps.Hub != nil {
				hub = deps.Hub
			}
			r.Post("/classes/train", handler.TrainHandler(deps.Registry, hub, logger))
		}
	})

	// Log endpoints
	r.Get("/logs/{level}", handler.ShowLogsHandler(logger))
	r.Delete("/logs/{level}", handler.ClearLogsHandler(logger))

	// Automatic HTML handler mapping for example: /train -> <static>/train.html
	r.Get("/*", pageHandler(cfg.StaticDirectory))

	return r
}
