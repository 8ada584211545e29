package handlers

import (
	"net/http"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/webhook"
	"github.com/DanielPopoola/membership-reconciler/internal/interfaces/rest/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Router mounts every route. metrics may be nil.
func (h *Handlers) Router(requestTimeout time.Duration, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logging(h.logger))

	r.Get("/healthz", h.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.With(middleware.WebhookTap(h.logger, webhook.ChecksumHeader)).
			Post("/webhooks/gateway", h.ReceiveWebhook)

		r.Post("/transactions/{transactionId}/sync", h.SyncTransaction)

		r.Route("/payment-requests", func(r chi.Router) {
			r.Post("/", h.CreatePaymentRequest)
			r.Post("/{reference}/link", h.LinkTransaction)
			r.Get("/by-reference/{reference}", h.GetByReference)
			r.Get("/by-transaction/{transactionId}", h.GetByTransactionID)
		})

		r.Route("/payment-plans", func(r chi.Router) {
			r.Get("/by-user", h.GetPlanByUserAndOrg)
			r.Get("/{accountRef}", h.GetPlan)
			r.Get("/{accountRef}/access", h.CheckAccess)
		})

		r.Get("/gateway/integrity-signature", h.IntegritySignature)
	})

	return r
}
