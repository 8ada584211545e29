package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

// Activator creates or extends the membership plan paid for by a request.
type Activator interface {
	Activate(ctx context.Context, pr *domain.PaymentRequest, amount domain.Money) (*domain.PaymentPlan, error)
}

// ReconciliationEngine is the only component that mutates a payment request's status.
type ReconciliationEngine struct {
	coordinator domain.TransactionCoordinator
	activator   Activator
	audit       application.AuditLog
	metrics     application.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewReconciliationEngine(
	coordinator domain.TransactionCoordinator,
	activator Activator,
	audit application.AuditLog,
	metrics application.Metrics,
	logger *slog.Logger,
) *ReconciliationEngine {
	return &ReconciliationEngine{
		coordinator: coordinator,
		activator:   activator,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// StatusUpdate is one observation of a gateway status for a reference.
type StatusUpdate struct {
	Reference     string
	Status        domain.PaymentStatus
	TransactionID string
	Source        domain.Source
	Raw           json.RawMessage
}

type ApplyResult struct {
	// Request is nil when no payment request exists for the reference.
	Request        *domain.PaymentRequest
	Outcome        domain.Outcome
	Changed        bool
	BecameApproved bool
}

// ApplyStatus runs the state machine for one reference inside a row-locked transaction.
// Rejected and idempotent observations are not errors.
func (e *ReconciliationEngine) ApplyStatus(ctx context.Context, u StatusUpdate) (*ApplyResult, error) {
	var (
		pr       *domain.PaymentRequest
		t        domain.Transition
		collided bool
	)

	err := e.coordinator.WithTransaction(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		pr, err = repos.PaymentRequests.FindByReferenceForUpdate(ctx, u.Reference)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentRequestNotFound) {
				pr = nil
				return nil
			}
			return err
		}

		t = pr.ApplyStatus(u.Status, u.TransactionID, u.Source, u.Raw, e.now().UTC())
		if !t.Outcome.Changed() && len(u.Raw) == 0 {
			return nil
		}

		err = repos.PaymentRequests.Update(ctx, pr)
		if errors.Is(err, domain.ErrTransactionIDConflict) && t.TransactionIDAssigned {
			collided = true
			pr.ReleaseTransactionID(t)
			err = repos.PaymentRequests.Update(ctx, pr)
		}
		return err
	})
	if err != nil {
		e.logger.Error("failed to apply status",
			"reference", u.Reference,
			"status", u.Status,
			"source", u.Source,
			"error", err)
		return nil, fmt.Errorf("apply status to %s: %w", u.Reference, err)
	}

	if pr == nil {
		e.metrics.ObserveTransition(u.Source, domain.OutcomeNotFound)
		e.logger.Info("no payment request for reference",
			"reference", u.Reference,
			"transaction_id", u.TransactionID,
			"source", u.Source)
		return &ApplyResult{Outcome: domain.OutcomeNotFound}, nil
	}

	e.record(ctx, u, pr, t, collided)

	return &ApplyResult{
		Request:        pr,
		Outcome:        t.Outcome,
		Changed:        t.Outcome.Changed(),
		BecameApproved: t.BecameApproved,
	}, nil
}

func (e *ReconciliationEngine) record(ctx context.Context, u StatusUpdate, pr *domain.PaymentRequest, t domain.Transition, collided bool) {
	e.metrics.ObserveTransition(u.Source, t.Outcome)

	entry := application.AuditEntry{
		Level:          application.AuditInfo,
		Source:         u.Source,
		Reference:      pr.Reference,
		TransactionID:  pr.TransactionID,
		OrganizationID: pr.OrganizationID,
		UserID:         pr.UserID,
		Status:         pr.Status,
		Meta: map[string]any{
			"from":            t.From,
			"to":              t.To,
			"outcome":         t.Outcome,
			"became_approved": t.BecameApproved,
		},
	}
	logAttrs := []any{
		"reference", pr.Reference,
		"from", t.From,
		"to", t.To,
		"source", u.Source,
		"outcome", t.Outcome,
	}

	switch t.Outcome {
	case domain.OutcomeApplied:
		entry.Message = "engine: status applied"
		e.logger.Info("payment status applied", append(logAttrs, "became_approved", t.BecameApproved)...)
	case domain.OutcomeIdempotent:
		entry.Message = "engine: idempotent no-op"
		e.logger.Debug("duplicate status observation", logAttrs...)
	case domain.OutcomeInvalidStatus:
		entry.Level = application.AuditWarn
		entry.Message = "engine: unrecognised status ignored"
		e.logger.Warn("unrecognised gateway status", logAttrs...)
	case domain.OutcomeTerminalBlocked, domain.OutcomeRegressionBlocked:
		entry.Level = application.AuditWarn
		entry.Message = "engine: regression blocked"
		e.logger.Warn("status regression blocked", logAttrs...)
	}
	e.audit.Write(ctx, entry)

	if t.ConflictingTransactionID != "" {
		e.logger.Warn("incoming transaction id differs from recorded one, keeping recorded",
			"reference", pr.Reference,
			"transaction_id", pr.TransactionID,
			"incoming_transaction_id", t.ConflictingTransactionID)
		e.audit.Write(ctx, application.AuditEntry{
			Level:         application.AuditWarn,
			Message:       "engine: transaction id mismatch",
			Source:        u.Source,
			Reference:     pr.Reference,
			TransactionID: pr.TransactionID,
			Meta:          map[string]any{"incoming_transaction_id": t.ConflictingTransactionID},
		})
	}

	if collided {
		e.logger.Warn("transaction id already claimed by another request, saved without it",
			"reference", pr.Reference,
			"transaction_id", u.TransactionID)
		e.audit.Write(ctx, application.AuditEntry{
			Level:         application.AuditWarn,
			Message:       "engine: transaction id collision",
			Source:        u.Source,
			Reference:     pr.Reference,
			TransactionID: u.TransactionID,
			Status:        pr.Status,
		})
	}
}

// MarkActivated records that the request's membership activation completed.
func (e *ReconciliationEngine) MarkActivated(ctx context.Context, reference, planID string) error {
	return e.coordinator.WithTransaction(ctx, func(ctx context.Context, repos domain.Repositories) error {
		pr, err := repos.PaymentRequests.FindByReferenceForUpdate(ctx, reference)
		if err != nil {
			return err
		}
		if !pr.MarkActivated(planID, e.now().UTC()) {
			return nil
		}
		return repos.PaymentRequests.Update(ctx, pr)
	})
}

// LinkTransaction correlates a transaction id from a redirect flow. It is a
// logged no-op when the request already carries a transaction id.
func (e *ReconciliationEngine) LinkTransaction(ctx context.Context, reference, transactionID string) (*domain.PaymentRequest, error) {
	var (
		pr     *domain.PaymentRequest
		linked bool
	)
	err := e.coordinator.WithTransaction(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		pr, err = repos.PaymentRequests.FindByReferenceForUpdate(ctx, reference)
		if err != nil {
			return err
		}
		linked = pr.LinkTransaction(transactionID, e.now().UTC())
		if !linked {
			return nil
		}
		return repos.PaymentRequests.Update(ctx, pr)
	})
	if err != nil {
		return nil, err
	}

	entry := application.AuditEntry{
		Level:          application.AuditInfo,
		Message:        "link: transaction linked",
		Source:         domain.SourceFrontend,
		Reference:      reference,
		TransactionID:  transactionID,
		OrganizationID: pr.OrganizationID,
		UserID:         pr.UserID,
		Status:         pr.Status,
	}
	if !linked {
		entry.Message = "link: skipped, transaction already set"
		entry.Meta = map[string]any{"existing_transaction_id": pr.TransactionID}
		e.logger.Info("link skipped", "reference", reference, "transaction_id", transactionID, "existing_transaction_id", pr.TransactionID)
	} else {
		e.logger.Info("transaction linked", "reference", reference, "transaction_id", transactionID)
	}
	e.audit.Write(ctx, entry)
	return pr, nil
}

// EnsureActivation activates membership for an approved request not yet marked
// as activated. Callers log the error; the next sweep retries.
func (e *ReconciliationEngine) EnsureActivation(ctx context.Context, pr *domain.PaymentRequest, amount domain.Money, source domain.Source) (*domain.PaymentPlan, error) {
	if pr == nil || !pr.NeedsActivation() {
		return nil, nil
	}

	plan, err := e.activator.Activate(ctx, pr, amount)
	if err != nil {
		e.metrics.ObserveActivationFailure(source)
		e.logger.Error("membership activation failed",
			"reference", pr.Reference,
			"transaction_id", pr.TransactionID,
			"source", source,
			"category", application.CategorizeError(err),
			"error", err)
		e.audit.Write(ctx, application.AuditEntry{
			Level:          application.AuditError,
			Message:        "activation: failed",
			Source:         source,
			Reference:      pr.Reference,
			TransactionID:  pr.TransactionID,
			OrganizationID: pr.OrganizationID,
			UserID:         pr.UserID,
			AmountCents:    &amount.Amount,
			Currency:       amount.Currency,
			Meta:           map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	if err := e.MarkActivated(ctx, pr.Reference, plan.ID); err != nil {
		e.logger.Error("failed to mark request activated", "reference", pr.Reference, "plan_id", plan.ID, "error", err)
		return plan, err
	}
	pr.MarkActivated(plan.ID, e.now().UTC())
	return plan, nil
}
