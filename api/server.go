/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. CORS:           Cross-origin requests for frontend clients
  2. RequestLogger:  Structured request logs (ECS-shaped JSON via slog)
  3. CleanPath:      Normalizes double slashes etc.
  4. Recoverer:      Panic recovery (500 instead of crash)
  5. RequestID:      Unique ID per request for tracing
  6. Heartbeat:      Liveness probe on /health

ROUTE GROUPS (all scoped by organization):
  /api/orgs/{orgID}/requests/*    Submit, inspect, list pending
  /api/orgs/{orgID}/approvals/*   Approve / reject / cancel decisions
  /api/orgs/{orgID}/employees/*   Balance display
  /api/orgs/{orgID}/admin/*       Balance seeding, year-end rollover

SECURITY NOTE:
  No authentication middleware. Endpoints are public; front them with a
  gateway in production.
*/
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewLogger builds the process-wide structured logger. Request logs and
// handler error logs share it.
func NewLogger(env string) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "leave-engine"),
		slog.String("env", env),
	)
}

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, logger *slog.Logger, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api/orgs/{orgID}", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.Get("/pending", h.ListPendingRequests)
			r.Get("/{id}", h.GetRequest)
			r.Get("/{id}/approval", h.GetRequestApproval)
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/{employeeID}/balance", h.GetBalance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Put("/balances", h.SeedBalance)
			r.Post("/rollover", h.Rollover)
		})
	})

	return r
}
