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
	"github.com/google/uuid"
)

// TemplateSubscriptionActivated is the notification sent after a create or extend.
const TemplateSubscriptionActivated = "subscription-activated"

// MembershipActivator is the only writer of payment plans.
type MembershipActivator struct {
	coordinator domain.TransactionCoordinator
	notifier    application.Notifier
	audit       application.AuditLog
	metrics     application.Metrics
	logger      *slog.Logger
	defaultDays int
	newID       func() string
	now         func() time.Time
}

func NewMembershipActivator(
	coordinator domain.TransactionCoordinator,
	notifier application.Notifier,
	audit application.AuditLog,
	metrics application.Metrics,
	defaultDays int,
	logger *slog.Logger,
) *MembershipActivator {
	if defaultDays <= 0 {
		defaultDays = domain.DefaultMembershipDays
	}
	return &MembershipActivator{
		coordinator: coordinator,
		notifier:    notifier,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		defaultDays: defaultDays,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

type activationOutcome struct {
	plan          *domain.PaymentPlan
	account       *domain.Account
	action        domain.PlanAction
	previousUntil time.Time
	previousTxID  string
	linked        bool
}

// Activate creates or extends the account's plan for an approved request.
// A replay of the plan's current transaction id returns the plan untouched.
func (a *MembershipActivator) Activate(ctx context.Context, pr *domain.PaymentRequest, amount domain.Money) (*domain.PaymentPlan, error) {
	if amount.Currency == "" {
		amount.Currency = pr.Currency
	}
	activation := domain.Activation{
		DaysValid:         a.defaultDays,
		Price:             amount,
		TransactionID:     pr.TransactionID,
		Reference:         pr.Reference,
		PaymentRequestRef: pr.Reference,
		Source:            domain.PlanSourceGateway,
		RawPayload:        latestPayload(pr),
	}

	var out activationOutcome
	err := a.coordinator.WithTransaction(ctx, func(ctx context.Context, repos domain.Repositories) error {
		out = activationOutcome{}
		now := a.now().UTC()

		account, err := repos.Accounts.FindAccountByUserAndOrgForUpdate(ctx, pr.UserID, pr.OrganizationID)
		if err != nil {
			return err
		}
		out.account = account

		plan, err := repos.PaymentPlans.FindByAccountRefForUpdate(ctx, account.ID)
		switch {
		case errors.Is(err, domain.ErrPlanNotFound):
			plan, err = domain.NewPaymentPlan(a.newID(), account.ID, activation, now)
			if err != nil {
				return err
			}
			if err := repos.PaymentPlans.Create(ctx, plan); err != nil {
				return fmt.Errorf("create payment plan: %w", err)
			}
			out.action = domain.PlanActionCreate
		case err != nil:
			return err
		case plan.AlreadyApplied(activation):
			out.plan = plan
			out.action = domain.PlanActionSkip
			return nil
		default:
			out.previousUntil = plan.DateUntil
			out.previousTxID = plan.TransactionID
			out.action = plan.Extend(activation, now)
			if err := repos.PaymentPlans.Update(ctx, plan); err != nil {
				return fmt.Errorf("update payment plan: %w", err)
			}
		}
		out.plan = plan

		if account.NeedsLink(plan.ID) {
			if err := repos.Accounts.LinkPaymentPlan(ctx, account.ID, plan.ID); err != nil {
				return fmt.Errorf("link payment plan: %w", err)
			}
			out.linked = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.metrics.ObserveActivation(out.action)
	a.report(ctx, pr, amount, out)

	if out.action == domain.PlanActionCreate || out.action == domain.PlanActionExtend {
		a.notify(ctx, pr, amount, out)
	}
	return out.plan, nil
}

func (a *MembershipActivator) report(ctx context.Context, pr *domain.PaymentRequest, amount domain.Money, out activationOutcome) {
	attrs := []any{
		"reference", pr.Reference,
		"transaction_id", pr.TransactionID,
		"account_id", out.account.ID,
		"plan_id", out.plan.ID,
		"action", out.action,
		"date_until", out.plan.DateUntil,
	}
	meta := map[string]any{
		"action":     out.action,
		"account_id": out.account.ID,
		"plan_id":    out.plan.ID,
		"date_until": out.plan.DateUntil,
		"linked":     out.linked,
	}

	var message string
	switch out.action {
	case domain.PlanActionCreate:
		message = "activation: plan created"
	case domain.PlanActionExtend:
		message = "activation: plan extended"
		attrs = append(attrs, "previous_date_until", out.previousUntil, "previous_transaction_id", out.previousTxID)
		meta["previous_date_until"] = out.previousUntil
	case domain.PlanActionMetadata:
		message = "activation: plan metadata refreshed"
		attrs = append(attrs, "previous_transaction_id", out.previousTxID)
		meta["previous_transaction_id"] = out.previousTxID
	case domain.PlanActionSkip:
		message = "activation: idempotent skip"
	}
	a.logger.Info(message, attrs...)

	a.audit.Write(ctx, application.AuditEntry{
		Level:          application.AuditInfo,
		Message:        message,
		Source:         domain.SourceService,
		Reference:      pr.Reference,
		TransactionID:  pr.TransactionID,
		OrganizationID: pr.OrganizationID,
		UserID:         pr.UserID,
		Status:         pr.Status,
		AmountCents:    &amount.Amount,
		Currency:       amount.Currency,
		Meta:           meta,
	})
}

func (a *MembershipActivator) notify(ctx context.Context, pr *domain.PaymentRequest, amount domain.Money, out activationOutcome) {
	data := map[string]any{
		"plan_id":         out.plan.ID,
		"date_until":      out.plan.DateUntil,
		"days_valid":      out.plan.DaysValid,
		"amount_cents":    amount.Amount,
		"currency":        amount.Currency,
		"reference":       pr.Reference,
		"organization_id": pr.OrganizationID,
		"user_id":         pr.UserID,
		"display_name":    out.account.DisplayName,
		"email":           out.account.Email,
	}
	if err := a.notifier.NotifyAccountEmail(ctx, out.account.ID, TemplateSubscriptionActivated, data); err != nil {
		a.logger.Warn("activation notification failed",
			"reference", pr.Reference,
			"account_id", out.account.ID,
			"error", err)
	}
}

// latestPayload prefers the primary webhook payload over the newest snapshot.
func latestPayload(pr *domain.PaymentRequest) json.RawMessage {
	if len(pr.RawWebhook) > 0 {
		return pr.RawWebhook
	}
	if n := len(pr.GatewaySnapshots); n > 0 {
		return pr.GatewaySnapshots[n-1].Payload
	}
	return nil
}
