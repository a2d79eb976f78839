/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from the back-office UI

ROUTE GROUPS:
  /api/shifts/*         Shift lifecycle and batch ingestion
  /api/employees/*      Employees, KPI progress and payroll history
  /api/schemes/*        Compensation schemes and formula versions
  /api/assignments      Scheme assignment
  /api/planned-shifts   Monthly shift plans
  /api/evaluate         Formula dry run
  /api/finance/*        Ledger import and manual transactions
  /api/clubs/*          Report template and day/night settings

SECURITY NOTE:
  No authentication middleware. The actor recorded on verify, paid and
  ledger rows is taken from the request body.

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

// DefaultCORSOrigins are the local back-office dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", h.Index)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Post("/check-in", h.CheckIn)
			r.Post("/batch", h.ProcessBatch)
			r.Get("/batch/template", h.BatchTemplate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetShift)
				r.Patch("/", h.UpdateShift)
				r.Delete("/", h.DeleteShift)
				r.Post("/check-out", h.CheckOut)
				r.Post("/verify", h.VerifyShift)
				r.Post("/paid", h.MarkPaid)
				r.Post("/recalculate", h.Recalculate)
				r.Get("/transactions", h.ShiftTransactions)
			})
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/kpi", h.GetKPI)
			r.Get("/{id}/history", h.GetHistory)
		})

		// Scheme routes
		r.Route("/schemes", func(r chi.Router) {
			r.Post("/", h.CreateScheme)
			r.Get("/{id}", h.GetScheme)
			r.Post("/{id}/versions", h.PublishVersion)
		})
		r.Post("/assignments", h.CreateAssignment)
		r.Put("/planned-shifts", h.SetPlannedShifts)
		r.Post("/evaluate", h.Evaluate)

		// Finance routes
		r.Route("/finance", func(r chi.Router) {
			r.Post("/generate", h.GenerateFinance)
			r.Get("/transactions", h.ListTransactions)
			r.Post("/transactions", h.CreateTransaction)
		})

		// Collaborator configuration
		r.Route("/clubs/{id}", func(r chi.Router) {
			r.Put("/report-template", h.SaveReportTemplate)
			r.Put("/settings", h.SaveClubSettings)
		})
	})

	return r
}

const indexPage = `<!doctype html>
<html><head><title>Payroll engine</title></head>
<body>
<h1>Payroll engine</h1>
<ul>
<li>POST /api/shifts/check-in, POST /api/shifts/{id}/check-out</li>
<li>POST /api/shifts, POST /api/shifts/batch, GET /api/shifts/batch/template</li>
<li>POST /api/shifts/{id}/verify, /paid, /recalculate</li>
<li>GET /api/employees/{id}/kpi, GET /api/employees/{id}/history?format=xlsx</li>
<li>POST /api/schemes, POST /api/schemes/{id}/versions, POST /api/evaluate</li>
<li>POST /api/finance/generate, GET /api/finance/transactions</li>
</ul>
</body></html>`

// Index serves a short endpoint overview.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(indexPage))
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
