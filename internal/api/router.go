package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// Router wires the handlers onto chi
type Router struct {
	handler        *Handler
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a new router. allowedOrigins lists CORS origins; "*"
// allows any.
func NewRouter(handler *Handler, allowedOrigins []string, log *logger.Logger) *Router {
	return &Router{
		handler:        handler,
		allowedOrigins: allowedOrigins,
		logger:         log.Named("api-router"),
	}
}

// Routes returns the HTTP handler for the whole API
func (rt *Router) Routes() http.Handler {
	h := rt.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/status", h.GetStatus)

		r.Post("/recording/toggle", h.ToggleRecording)
		r.Post("/recording/stop", h.StopRecording)
		r.Post("/transcriptions", h.SubmitTranscription)

		r.Get("/jobs", h.GetJobs)
		r.Get("/jobs/history", h.GetJobHistory)
		r.Get("/jobs/{id}", h.GetJob)
		r.Delete("/jobs/{id}", h.CancelJob)

		r.Get("/schedule", h.GetSchedule)
		r.Put("/schedule", h.PutSchedule)
		r.Get("/schedule/next", h.GetNextMeeting)

		r.Get("/transcripts", h.GetTranscripts)
		r.Get("/transcripts/{id}", h.GetTranscript)

		r.Get("/ws", h.HandleWebSocket)
	})

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		rt.logger.Debug("Request handled",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (rt *Router) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(rt.allowedOrigins, "*") || slices.Contains(rt.allowedOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && origin != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
