package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/jackc/pgx/v5"
)

const paymentPlanColumns = `
	id, account_ref, days_valid, date_until, price_cents, currency, source,
	transaction_id, reference, payment_request_ref, raw_payload, status_history,
	created_at, updated_at`

type PaymentPlanRepository struct {
	q Executor
}

func NewPaymentPlanRepository(q Executor) *PaymentPlanRepository {
	return &PaymentPlanRepository{q: q}
}

func (r *PaymentPlanRepository) FindByAccountRef(ctx context.Context, accountRef string) (*domain.PaymentPlan, error) {
	query := `SELECT ` + paymentPlanColumns + ` FROM payment_plans WHERE account_ref = $1`
	return r.findOne(ctx, query, accountRef)
}

func (r *PaymentPlanRepository) FindByAccountRefForUpdate(ctx context.Context, accountRef string) (*domain.PaymentPlan, error) {
	query := `SELECT ` + paymentPlanColumns + ` FROM payment_plans WHERE account_ref = $1 FOR UPDATE`
	return r.findOne(ctx, query, accountRef)
}

func (r *PaymentPlanRepository) Create(ctx context.Context, plan *domain.PaymentPlan) error {
	m, err := toPaymentPlanModel(plan)
	if err != nil {
		return err
	}

	query := `INSERT INTO payment_plans (` + paymentPlanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.q.Exec(ctx, query,
		m.ID, m.AccountRef, m.DaysValid, m.DateUntil, m.PriceCents, m.Currency, m.Source,
		m.TransactionID, m.Reference, m.PaymentRequestRef, m.RawPayload, m.StatusHistory,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment plan for %s: %w", plan.AccountRef, err)
	}
	return nil
}

func (r *PaymentPlanRepository) Update(ctx context.Context, plan *domain.PaymentPlan) error {
	m, err := toPaymentPlanModel(plan)
	if err != nil {
		return err
	}

	query := `
		UPDATE payment_plans
		SET days_valid = $1, date_until = $2, price_cents = $3, currency = $4, source = $5,
			transaction_id = $6, reference = $7, payment_request_ref = $8,
			raw_payload = $9, status_history = $10, updated_at = $11
		WHERE id = $12
	`
	tag, err := r.q.Exec(ctx, query,
		m.DaysValid, m.DateUntil, m.PriceCents, m.Currency, m.Source,
		m.TransactionID, m.Reference, m.PaymentRequestRef,
		m.RawPayload, m.StatusHistory, m.UpdatedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment plan %s: %w", plan.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewPlanNotFoundError(plan.AccountRef)
	}
	return nil
}

func (r *PaymentPlanRepository) findOne(ctx context.Context, query, accountRef string) (*domain.PaymentPlan, error) {
	var m PaymentPlanModel
	err := r.q.QueryRow(ctx, query, accountRef).Scan(
		&m.ID, &m.AccountRef, &m.DaysValid, &m.DateUntil, &m.PriceCents, &m.Currency, &m.Source,
		&m.TransactionID, &m.Reference, &m.PaymentRequestRef, &m.RawPayload, &m.StatusHistory,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPlanNotFoundError(accountRef)
		}
		return nil, fmt.Errorf("find payment plan for %s: %w", accountRef, err)
	}
	return toPaymentPlan(m)
}
