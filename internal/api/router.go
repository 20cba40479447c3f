// Package api exposes the reader's HTTP endpoints.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates the HTTP router with all endpoints.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Library
	api.HandleFunc("/pdfs", h.ListPDFs).Methods(http.MethodGet)
	api.HandleFunc("/chapters/{chapterId}/stats", h.ChapterStats).Methods(http.MethodGet)

	// Quiz
	api.HandleFunc("/panels/{panelId}/questions", h.PanelQuestions).Methods(http.MethodGet)
	api.HandleFunc("/panels/questions/answer", h.RecordAnswer).Methods(http.MethodPost)

	// Annotation
	api.HandleFunc("/panels/position", h.SetPosition).Methods(http.MethodPost)
	api.HandleFunc("/panels/labeled", h.LabeledPanels).Methods(http.MethodGet)
	api.HandleFunc("/panels/unlabeled", h.UnlabeledPanels).Methods(http.MethodGet)

	// Review
	api.HandleFunc("/review", h.Review).Methods(http.MethodGet)
	api.HandleFunc("/review/check", h.ReviewCheck).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
