package postgres

import (
	"context"
	"fmt"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionCoordinator manages transactions across multiple repositories
type TransactionCoordinator struct {
	pool *pgxpool.Pool
}

func NewTransactionCoordinator(db *DB) *TransactionCoordinator {
	return &TransactionCoordinator{
		pool: db.Pool,
	}
}

// WithTransaction executes a function within a database transaction.
// The function receives repository instances that use the transaction.
func (tc *TransactionCoordinator) WithTransaction(
	ctx context.Context,
	fn func(ctx context.Context, repos domain.Repositories) error,
) error {
	tx, err := tc.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Repositories returns pool-bound repositories for reads outside a transaction.
func (tc *TransactionCoordinator) Repositories() domain.Repositories {
	return bind(tc.pool)
}

func bind(q Executor) domain.Repositories {
	return domain.Repositories{
		PaymentRequests: NewPaymentRequestRepository(q),
		PaymentPlans:    NewPaymentPlanRepository(q),
		Accounts:        NewAccountRepository(q),
	}
}
