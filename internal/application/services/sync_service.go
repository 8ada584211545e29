package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

// SyncService polls the gateway for one transaction on demand.
type SyncService struct {
	gateway  application.GatewayClient
	engine   *ReconciliationEngine
	requests *PaymentRequestService
	audit    application.AuditLog
	logger   *slog.Logger
}

func NewSyncService(
	gatewayClient application.GatewayClient,
	engine *ReconciliationEngine,
	requests *PaymentRequestService,
	audit application.AuditLog,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		gateway:  gatewayClient,
		engine:   engine,
		requests: requests,
		audit:    audit,
		logger:   logger,
	}
}

// SyncTransaction fetches the transaction's current status and reconciles it.
func (s *SyncService) SyncTransaction(ctx context.Context, transactionID string) (*domain.PaymentRequest, error) {
	return s.FetchAndReconcile(ctx, transactionID, domain.SourcePoll)
}

// FetchAndReconcile is SyncTransaction with an explicit source; the stale sweep
// calls it with SourceReconcile.
func (s *SyncService) FetchAndReconcile(ctx context.Context, transactionID string, source domain.Source) (*domain.PaymentRequest, error) {
	if transactionID == "" {
		return nil, application.NewValidationError(domain.NewMissingRequiredFieldError("transactionId"))
	}

	s.audit.Write(ctx, application.AuditEntry{
		Level:         application.AuditInfo,
		Message:       string(source) + ": started",
		Source:        source,
		TransactionID: transactionID,
	})

	tx, err := s.gateway.FetchTransaction(ctx, transactionID)
	if err != nil {
		return nil, s.gatewayFailure(ctx, transactionID, source, err)
	}
	return s.Reconcile(ctx, tx, source)
}

// Reconcile applies an already fetched gateway transaction: it correlates the
// reference, upserts by naming convention when needed, and ensures activation.
func (s *SyncService) Reconcile(ctx context.Context, tx *gateway.Transaction, source domain.Source) (*domain.PaymentRequest, error) {
	reference := tx.Reference
	if reference == "" {
		if known, err := s.requests.repo.FindByTransactionID(ctx, tx.ID); err == nil {
			reference = known.Reference
		}
	}
	if reference == "" {
		return nil, application.NewNotFoundError(domain.NewPaymentRequestNotFoundError(tx.ID))
	}

	status, err := domain.ParseStatus(tx.Status)
	if err != nil {
		s.logger.Warn("gateway returned unrecognised status", "transaction_id", tx.ID, "status", tx.Status, "source", source)
	}
	update := StatusUpdate{
		Reference:     reference,
		Status:        status,
		TransactionID: tx.ID,
		Source:        source,
		Raw:           tx.Raw,
	}
	amount := transactionAmount(tx)

	res, err := s.engine.ApplyStatus(ctx, update)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if res.Request == nil {
		exists, err := s.requests.UpsertFromReference(ctx, reference, amount, source)
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		if exists {
			if res, err = s.engine.ApplyStatus(ctx, update); err != nil {
				return nil, application.NewInternalError(err)
			}
		}
	}
	if res.Request == nil {
		s.audit.Write(ctx, application.AuditEntry{
			Level:         application.AuditError,
			Message:       string(source) + ": no payment request after upsert",
			Source:        source,
			Reference:     reference,
			TransactionID: tx.ID,
			Status:        status,
		})
		return nil, application.NewNotFoundError(domain.NewPaymentRequestNotFoundError(reference))
	}

	if _, err := s.engine.EnsureActivation(ctx, res.Request, amount, source); err != nil {
		s.logger.Warn("reconciled without activation", "reference", reference, "source", source, "error", err)
	}
	return res.Request, nil
}

func (s *SyncService) gatewayFailure(ctx context.Context, transactionID string, source domain.Source, err error) error {
	entry := application.AuditEntry{
		Level:         application.AuditError,
		Message:       string(source) + ": gateway call failed",
		Source:        source,
		TransactionID: transactionID,
		Meta:          map[string]any{"error": err.Error(), "category": application.CategorizeError(err)},
	}

	var svcErr error
	switch {
	case gateway.IsTimeoutError(err):
		entry.Level = application.AuditWarn
		s.logger.Warn("gateway timed out", "transaction_id", transactionID, "error", err)
		svcErr = application.NewGatewayTimeoutError(err)
	case gateway.IsNetworkError(err):
		entry.Level = application.AuditWarn
		s.logger.Warn("gateway unreachable", "transaction_id", transactionID, "error", err)
		svcErr = application.NewGatewayUnavailableError(err)
	case isGatewayNotFound(err):
		s.logger.Warn("gateway does not know transaction", "transaction_id", transactionID)
		svcErr = application.NewNotFoundError(err)
	default:
		s.logger.Error("gateway call failed", "transaction_id", transactionID, "error", err)
		svcErr = application.NewGatewayError(err)
	}
	s.audit.Write(ctx, entry)
	return svcErr
}

func isGatewayNotFound(err error) bool {
	var gwErr *gateway.GatewayError
	return errors.As(err, &gwErr) && gwErr.StatusCode == 404
}
