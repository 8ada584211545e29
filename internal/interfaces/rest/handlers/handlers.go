package handlers

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/webhook"
	"github.com/go-playground/validator"
)

// HealthChecker is satisfied by postgres.DB.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	webhooks *services.WebhookService
	sync     *services.SyncService
	requests *services.PaymentRequestService
	plans    *services.PlanQueryService
	signer   *webhook.IntegritySigner
	health   HealthChecker
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandlers(
	webhooks *services.WebhookService,
	sync *services.SyncService,
	requests *services.PaymentRequestService,
	plans *services.PlanQueryService,
	signer *webhook.IntegritySigner,
	health HealthChecker,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		webhooks: webhooks,
		sync:     sync,
		requests: requests,
		plans:    plans,
		signer:   signer,
		health:   health,
		validate: validator.New(),
		logger:   logger,
	}
}
