package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/jackc/pgx/v5"
)

const (
	paymentRequestsPkey         = "payment_requests_pkey"
	paymentRequestsTransactionU = "idx_payment_requests_transaction_id"
)

const paymentRequestColumns = `
	reference, user_id, organization_id, amount_cents, currency, status,
	status_history, transaction_id, gateway_snapshots, raw_webhook,
	activated_at, activated_plan_id, created_at, updated_at`

type PaymentRequestRepository struct {
	q Executor
}

func NewPaymentRequestRepository(q Executor) *PaymentRequestRepository {
	return &PaymentRequestRepository{q: q}
}

func (r *PaymentRequestRepository) Create(ctx context.Context, pr *domain.PaymentRequest) error {
	m, err := toPaymentRequestModel(pr)
	if err != nil {
		return err
	}

	query := `INSERT INTO payment_requests (` + paymentRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.q.Exec(ctx, query,
		m.Reference, m.UserID, m.OrganizationID, m.AmountCents, m.Currency, m.Status,
		m.StatusHistory, m.TransactionID, m.GatewaySnapshots, m.RawWebhook,
		m.ActivatedAt, m.ActivatedPlanID, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return mapPaymentRequestWriteError(err, pr)
	}
	return nil
}

func (r *PaymentRequestRepository) FindByReference(ctx context.Context, reference string) (*domain.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE reference = $1`
	return r.findOne(ctx, query, reference)
}

// FindByReferenceForUpdate retrieves a payment request with a row-level lock.
func (r *PaymentRequestRepository) FindByReferenceForUpdate(ctx context.Context, reference string) (*domain.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE reference = $1 FOR UPDATE`
	return r.findOne(ctx, query, reference)
}

func (r *PaymentRequestRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE transaction_id = $1`
	return r.findOne(ctx, query, transactionID)
}

// Update writes every mutable field. The statement runs under a savepoint so a
// transaction id collision leaves the surrounding transaction usable for a retry.
func (r *PaymentRequestRepository) Update(ctx context.Context, pr *domain.PaymentRequest) error {
	m, err := toPaymentRequestModel(pr)
	if err != nil {
		return err
	}

	query := `
		UPDATE payment_requests
		SET status = $1, status_history = $2, transaction_id = $3,
			gateway_snapshots = $4, raw_webhook = $5,
			activated_at = $6, activated_plan_id = $7, updated_at = $8
		WHERE reference = $9
	`

	sp, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("open savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	tag, err := sp.Exec(ctx, query,
		m.Status, m.StatusHistory, m.TransactionID,
		m.GatewaySnapshots, m.RawWebhook,
		m.ActivatedAt, m.ActivatedPlanID, m.UpdatedAt,
		m.Reference,
	)
	if err != nil {
		return mapPaymentRequestWriteError(err, pr)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewPaymentRequestNotFoundError(pr.Reference)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// FindStale lists requests the stale sweep must revisit, one keyset page at a time.
func (r *PaymentRequestRepository) FindStale(ctx context.Context, cutoff time.Time, after domain.StaleCursor, limit int) ([]*domain.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + `
		FROM payment_requests
		WHERE ((status IN ('CREATED', 'PENDING') AND transaction_id IS NOT NULL)
		    OR (status = 'APPROVED' AND activated_at IS NULL))
		  AND updated_at < $1
		  AND (updated_at, reference) > ($2, $3)
		ORDER BY updated_at ASC, reference ASC
		LIMIT $4`

	rows, err := r.q.Query(ctx, query, cutoff, after.UpdatedAt, after.Reference, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale payment requests: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PaymentRequest, error) {
		return scanPaymentRequest(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan stale payment requests: %w", err)
	}
	return results, nil
}

func (r *PaymentRequestRepository) findOne(ctx context.Context, query, key string) (*domain.PaymentRequest, error) {
	pr, err := scanPaymentRequest(r.q.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewPaymentRequestNotFoundError(key)
		}
		return nil, fmt.Errorf("find payment request %s: %w", key, err)
	}
	return pr, nil
}

func scanPaymentRequest(row pgx.Row) (*domain.PaymentRequest, error) {
	var m PaymentRequestModel
	err := row.Scan(
		&m.Reference, &m.UserID, &m.OrganizationID, &m.AmountCents, &m.Currency, &m.Status,
		&m.StatusHistory, &m.TransactionID, &m.GatewaySnapshots, &m.RawWebhook,
		&m.ActivatedAt, &m.ActivatedPlanID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return toPaymentRequest(m)
}

func mapPaymentRequestWriteError(err error, pr *domain.PaymentRequest) error {
	if !IsUniqueViolation(err) {
		return fmt.Errorf("write payment request %s: %w", pr.Reference, err)
	}
	switch violatedConstraint(err) {
	case paymentRequestsTransactionU:
		return domain.NewTransactionIDConflictError(pr.TransactionID, err)
	default:
		return domain.NewDuplicateReferenceError(pr.Reference)
	}
}
