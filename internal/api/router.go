package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/accessors", func(r chi.Router) {
			r.Get("/", s.handleListAccessors)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAccessor)
				r.Get("/ports/{port}", s.handleReadPort)
				r.Put("/ports/{port}", s.handleWritePort)
				r.Get("/mirror", s.handleGetMirror)
				r.Get("/mirror/{port}", s.handleGetMirrorPort)
			})
		})

		r.Route("/instances", func(r chi.Router) {
			r.Get("/", s.handleListInstances)
			r.Post("/", s.handleCreateInstance)
			r.Get("/{id}", s.handleGetInstance)
			r.Delete("/{id}", s.handleDeleteInstance)
		})

		r.Get("/audit", s.handleListAudit)

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports the server and host status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.host.Stats()
	status := "ok"
	if st.Degraded > 0 {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"version":   s.version,
		"instances": st.Instances,
		"ready":     st.Ready,
		"degraded":  st.Degraded,
	})
}
