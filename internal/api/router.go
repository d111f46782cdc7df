// Package api exposes the clarity engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/metrics"
)

// Server holds the handlers' dependencies.
type Server struct {
	svc     *clarity.Service
	metrics *metrics.Metrics
	topN    int
}

// NewServer returns a Server. topN is the default for memory queries.
func NewServer(svc *clarity.Service, m *metrics.Metrics, topN int) *Server {
	if topN <= 0 {
		topN = 3
	}
	return &Server{svc: svc, metrics: m, topN: topN}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/quiz", s.getQuiz)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/profile", s.getProfile)
			r.Post("/quiz", s.takeQuiz)
			r.Post("/inputs", s.applyInput)
			r.Post("/observations", s.observe)
			r.Post("/signals", s.reflect)
			r.Post("/feedback/negative", s.negativeFeedback)
			r.Post("/recalibrate", s.recalibrate)
			r.Post("/reset", s.reset)
			r.Get("/memories", s.recall)
			r.Get("/history", s.history)
			r.Get("/journal", s.journal)
			r.Get("/prompt-context", s.promptContext)
		})
	})
	return r
}

// instrument logs and records every request under its route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if route != "/metrics" {
			s.metrics.RecordHTTPRequest(r.Method, route, status, time.Since(start))
		}
		logRequest(r, route, status, time.Since(start))
	})
}
