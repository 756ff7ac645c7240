/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin dashboard

ROUTE GROUPS:
  /health               Liveness
  /metrics              Prometheus (when configured)
  /api/outlets          Reference data
  /api/presets          Parameter presets
  /api/runs/*           Run execution and replays
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. Runs with apply=true write transfers.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds optional router wiring.
type RouterConfig struct {
	// CORSOrigins defaults to the local dashboard origins when empty.
	CORSOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// DevRoutes enables scenario loading, which resets the database.
	DevRoutes bool
}

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/outlets", h.ListOutlets)
		r.Get("/presets", h.ListPresets)

		// Run routes
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", h.CreateRun)
			r.Get("/last", h.GetLastRun)
			r.Get("/{id}", h.GetRun)
			r.Get("/{id}/workbook", h.GetRunWorkbook)
		})

		// Scenario routes
		if cfg.DevRoutes {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Stock Transfer Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Stock Transfer Engine API</h1>
<ul>
<li><a href="/health">/health</a> - Health check</li>
<li><a href="/api/outlets">/api/outlets</a> - Active outlets</li>
<li><a href="/api/presets">/api/presets</a> - Parameter presets</li>
<li><a href="/api/runs/last">/api/runs/last</a> - Latest run</li>
</ul>
<p>POST /api/runs with {"preset": "standard"} for a dry run.</p>
</body>
</html>`))
	})

	return r
}
