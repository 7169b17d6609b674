package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/auth"
)

const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/metrics", s.handleSystemMetrics)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntry)
				r.With(s.requirePermission(auth.PermRefresh)).Post("/refresh", s.handleRefreshEntry)
				r.With(s.requirePermission(auth.PermReboot)).Post("/reboot", s.handleRebootEntry)
			})
		})

		r.Route("/coordinators", func(r chi.Router) {
			r.Get("/", s.handleListCoordinators)
			r.Route("/{entry_id}/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetCoordinator)
				r.Get("/history", s.handleCoordinatorHistory)
				r.With(s.requirePermission(auth.PermRefresh)).Post("/refresh", s.handleRefreshCoordinator)
			})
		})

		r.Route("/states", func(r chi.Router) {
			r.Get("/", s.handleListStates)
			r.Get("/{entity_id}", s.handleGetState)
		})

		r.With(s.requirePermission(auth.PermManage)).Get("/audit", s.handleListAudit)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports ok when every registered component is healthy and
// degraded otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.health[name].HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
