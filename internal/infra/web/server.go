// File: internal/infra/web/server.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"video-analysis-platform/internal/infra/events"
	"video-analysis-platform/internal/infra/logging"
	"video-analysis-platform/internal/usecase"
)

// TokenVerifier checks the per-job callback token carried by webhook pushes.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Server is the HTTP surface: job lifecycle, status polling, the runner
// webhook, upload planning, and websocket status streaming.
type Server struct {
	jobUC    usecase.JobUseCase
	statusUC usecase.StatusUseCase
	uploadUC usecase.UploadUseCase
	events   *events.Store
	verifier TokenVerifier
	log      *zerolog.Logger
}

func NewServer(
	jobUC usecase.JobUseCase,
	statusUC usecase.StatusUseCase,
	uploadUC usecase.UploadUseCase,
	eventStore *events.Store,
	verifier TokenVerifier,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		jobUC:    jobUC,
		statusUC: statusUC,
		uploadUC: uploadUC,
		events:   eventStore,
		verifier: verifier,
		log:      logger,
	}
}

// Router builds the chi mux. The caller owns the http.Server around it.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(s.recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/status", s.handleJobStatus)
		r.Post("/jobs/{id}/retry", s.handleRetryJob)
		r.Get("/jobs/{id}/stream", s.handleStream)

		r.Post("/webhook/runner", s.handleRunnerWebhook)

		r.Post("/uploads", s.handleInitUpload)
		r.Post("/uploads/complete", s.handleCompleteUpload)
		r.Post("/uploads/abort", s.handleAbortUpload)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), chimw.GetReqID(r.Context()))
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
