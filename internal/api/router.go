package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/auth"
)

// Deps are the collaborators the router wires into handlers. Dispatcher and
// Reminders may be nil, in which case their routes are not registered. DB
// may be nil for the in-memory store.
type Deps struct {
	Emails     emailService
	Dispatcher dispatchRunner
	Reminders  reminderPlanner
	DB         pinger

	JWT     *auth.JWTService
	APIKeys *auth.KeyStore
	Limiter *auth.RateLimiter

	Log zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	log := d.Log

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))
	r.Use(MetricsMiddleware)

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(d.DB))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(d.JWT, d.APIKeys, d.Limiter, log))
		r.Use(auth.RateLimit(d.Limiter))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleOperator))

			r.Post("/scheduled-emails", CreateEmailHandler(d.Emails, log))
			r.Get("/scheduled-emails", ListEmailsHandler(d.Emails, log))
			r.Get("/scheduled-emails/{id}", GetEmailHandler(d.Emails, log))
			r.Post("/scheduled-emails/{id}/cancel", CancelEmailHandler(d.Emails, log))
			r.Post("/scheduled-emails/{id}/reschedule", RescheduleEmailHandler(d.Emails, log))

			if d.Reminders != nil {
				r.Post("/bookings/{id}/payment-reminders", PlanRemindersHandler(d.Reminders, log))
				r.Post("/bookings/{id}/terms/{term}/paid", MarkTermPaidHandler(d.Reminders, log))
				r.Post("/bookings/{id}/cancel", CancelBookingHandler(d.Reminders, log))
			}
		})

		if d.Dispatcher != nil {
			r.With(auth.RequireRole(auth.RoleAdmin)).Post("/dispatch/run", RunDispatchHandler(d.Dispatcher, log))
		}
	})

	return r
}
