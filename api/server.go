/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/analysis/*        Reconciliation, resolution, bank, suggestions
  /api/sap-records       SAP document ingest
  /api/bank-statements   Bank statement ingest
  /api/daily-sales/*     Daily sales sheets
  /api/scheduler/*       Automated bank pass (when enabled)
  /api/scenarios/*       Demo scenarios (dev only)
  /                      API index page

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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/analysis", func(r chi.Router) {
			r.Get("/", h.FindAnalysis)
			r.Post("/compare", h.Compare)
			r.Post("/resolve", h.Resolve)
			r.Post("/resolve-sap", h.ResolveSAP)

			r.Route("/bank", func(r chi.Router) {
				r.Post("/", h.RunBank)
				r.Post("/match", h.MatchToBank)
				r.Post("/resolve", h.ResolveBank)
				r.Post("/status", h.UpdateBankStatus)
			})

			r.Get("/{id}", h.GetAnalysis)
			r.Get("/{id}/suggestions", h.Suggestions)
		})

		r.Post("/sap-records", h.IngestSAPRecords)
		r.Post("/bank-statements", h.IngestBankStatements)
		r.Get("/daily-sales/{id}", h.GetDailySales)

		if h.Scheduler != nil {
			r.Get("/scheduler/status", h.Scheduler.Status)
			r.Post("/scheduler/run", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, h.Scheduler.RunNow(r.Context()))
			})
		}

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// The back-office UI is deployed separately; the root lists the API.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Reconciliation Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Reconciliation Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li>POST /api/analysis/compare - Run reconciliation</li>
<li>GET /api/analysis?start=&amp;end= - Ledger by date range</li>
<li>POST /api/analysis/bank - Run bank reconciliation</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
