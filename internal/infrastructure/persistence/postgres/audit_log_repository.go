package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditLogRepository appends rows to payment_logs.
type AuditLogRepository struct {
	q Executor
}

func NewAuditLogRepository(q Executor) *AuditLogRepository {
	return &AuditLogRepository{q: q}
}

func (r *AuditLogRepository) Insert(ctx context.Context, entry application.AuditEntry) error {
	m := PaymentLogModel{
		ID:             uuid.NewString(),
		Level:          string(entry.Level),
		Message:        entry.Message,
		Source:         nullable(string(entry.Source)),
		Reference:      nullable(entry.Reference),
		TransactionID:  nullable(entry.TransactionID),
		OrganizationID: nullable(entry.OrganizationID),
		UserID:         nullable(entry.UserID),
		Status:         nullable(string(entry.Status)),
		AmountCents:    entry.AmountCents,
		Currency:       nullable(entry.Currency),
		CreatedAt:      time.Now().UTC(),
	}
	if len(entry.Meta) > 0 {
		meta, err := json.Marshal(entry.Meta)
		if err != nil {
			return fmt.Errorf("marshal audit meta: %w", err)
		}
		m.Meta = meta
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_logs (
			id, level, message, source, reference, transaction_id,
			organization_id, user_id, status, amount_cents, currency, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		m.ID, m.Level, m.Message, m.Source, m.Reference, m.TransactionID,
		m.OrganizationID, m.UserID, m.Status, m.AmountCents, m.Currency, m.Meta, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment log: %w", err)
	}
	return nil
}

// FindByReference returns the audit trail of one payment, oldest first.
func (r *AuditLogRepository) FindByReference(ctx context.Context, reference string) ([]PaymentLogModel, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, level, message, source, reference, transaction_id,
		       organization_id, user_id, status, amount_cents, currency, meta, created_at
		FROM payment_logs
		WHERE reference = $1
		ORDER BY created_at ASC
	`, reference)
	if err != nil {
		return nil, fmt.Errorf("query payment logs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentLogModel, error) {
		var m PaymentLogModel
		err := row.Scan(
			&m.ID, &m.Level, &m.Message, &m.Source, &m.Reference, &m.TransactionID,
			&m.OrganizationID, &m.UserID, &m.Status, &m.AmountCents, &m.Currency, &m.Meta, &m.CreatedAt,
		)
		return m, err
	})
}
