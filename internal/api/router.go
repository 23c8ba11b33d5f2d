package api

import (
	"log/slog"
	"net/http"
	"time"

	"busticket/internal/api/middleware"
	"busticket/internal/credential"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// NewRouter wires the HTTP surface. requestTimeout bounds every request's
// context, and with it every store call made on its behalf.
func NewRouter(h *Handlers, redisClient *redis.Client, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)
	r.Use(ChiMiddleware.RequestID)
	if requestTimeout > 0 {
		r.Use(ChiMiddleware.Timeout(requestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get(credential.VerifyPath, h.VerifyLink)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Idempotency(redisClient, logger)).Post("/payments/confirm", h.ConfirmPayment)
		r.Post("/verify", h.Verify)

		r.Get("/tickets/{id}", h.GetTicket)
		r.Get("/tickets/{id}/qr.png", h.GetTicketQR)

		r.Get("/routes", h.ListRoutes)
		r.Get("/routes/{id}/stops", h.ListRouteStops)
	})

	r.Handle("/metrics", promhttp.Handler())

	logger.Info("Registered routes",
		"routes", []string{
			"POST /api/v1/payments/confirm (Idempotent)",
			"GET " + credential.VerifyPath,
			"POST /api/v1/verify",
			"GET /api/v1/tickets/{id} (Cached)",
			"GET /api/v1/routes",
			"GET /metrics",
		})

	return r
}
