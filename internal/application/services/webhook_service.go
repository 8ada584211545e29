package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

// WebhookService ingests gateway push events.
type WebhookService struct {
	authenticator application.WebhookAuthenticator
	engine        *ReconciliationEngine
	requests      *PaymentRequestService
	audit         application.AuditLog
	logger        *slog.Logger
}

func NewWebhookService(
	authenticator application.WebhookAuthenticator,
	engine *ReconciliationEngine,
	requests *PaymentRequestService,
	audit application.AuditLog,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		authenticator: authenticator,
		engine:        engine,
		requests:      requests,
		audit:         audit,
		logger:        logger,
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction *gateway.Transaction `json:"transaction"`
	} `json:"data"`
}

// Handle authenticates and applies one event. Once the event is authenticated
// only a failure to commit the status transition is returned; activation
// problems are logged and left for the sweep.
func (s *WebhookService) Handle(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.authenticator.Verify(ctx, headers, body); err != nil {
		if _, ok := application.IsServiceError(err); ok {
			return err
		}
		return application.NewAuthenticationError(err)
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return application.NewValidationError(err)
	}

	tx := event.Data.Transaction
	if tx == nil {
		s.logger.Info("webhook event without transaction ignored", "event", event.Event)
		return nil
	}
	if tx.Reference == "" {
		return application.NewValidationError(domain.NewMissingRequiredFieldError("data.transaction.reference"))
	}

	status, err := domain.ParseStatus(tx.Status)
	if err != nil {
		s.logger.Warn("webhook carries unrecognised status", "reference", tx.Reference, "status", tx.Status)
	}

	update := StatusUpdate{
		Reference:     tx.Reference,
		Status:        status,
		TransactionID: tx.ID,
		Source:        domain.SourceWebhook,
		Raw:           json.RawMessage(body),
	}
	amount := transactionAmount(tx)

	res, err := s.engine.ApplyStatus(ctx, update)
	if err != nil {
		return application.NewInternalError(err)
	}

	if res.Request == nil {
		exists, err := s.requests.UpsertFromReference(ctx, tx.Reference, amount, domain.SourceWebhook)
		if err != nil {
			return application.NewInternalError(err)
		}
		if !exists {
			s.audit.Write(ctx, application.AuditEntry{
				Level:         application.AuditWarn,
				Message:       "webhook: no payment request for reference",
				Source:        domain.SourceWebhook,
				Reference:     tx.Reference,
				TransactionID: tx.ID,
				Status:        status,
			})
			return nil
		}
		if res, err = s.engine.ApplyStatus(ctx, update); err != nil {
			return application.NewInternalError(err)
		}
		if res.Request == nil {
			return nil
		}
	}

	if _, err := s.engine.EnsureActivation(ctx, res.Request, amount, domain.SourceWebhook); err != nil {
		s.logger.Warn("webhook acknowledged despite activation failure",
			"reference", res.Request.Reference,
			"transaction_id", res.Request.TransactionID,
			"account_missing", errors.Is(err, domain.ErrAccountNotFound))
	}
	return nil
}

func transactionAmount(tx *gateway.Transaction) domain.Money {
	money, err := domain.NewMoney(tx.AmountInCents, tx.Currency)
	if err != nil {
		return domain.Money{Currency: domain.DefaultCurrency}
	}
	return money
}
