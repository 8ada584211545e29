package domain

import (
	"context"
	"time"
)

type PaymentRequestRepository interface {
	// Create persists a new request; ErrDuplicateReference if the reference exists.
	Create(ctx context.Context, pr *PaymentRequest) error

	FindByReference(ctx context.Context, reference string) (*PaymentRequest, error)

	// FindByReferenceForUpdate locks the row until the surrounding transaction ends.
	FindByReferenceForUpdate(ctx context.Context, reference string) (*PaymentRequest, error)

	FindByTransactionID(ctx context.Context, transactionID string) (*PaymentRequest, error)

	// Update persists every mutable field; ErrTransactionIDConflict on a claimed transaction id.
	Update(ctx context.Context, pr *PaymentRequest) error

	// FindStale lists CREATED/PENDING requests carrying a transaction id, and
	// APPROVED requests never activated, whose updated_at is older than cutoff.
	// Results are ordered by (updated_at, reference) and start strictly after the cursor.
	FindStale(ctx context.Context, cutoff time.Time, after StaleCursor, limit int) ([]*PaymentRequest, error)
}

// StaleCursor is a keyset position in the stale listing. The zero value starts
// from the beginning.
type StaleCursor struct {
	UpdatedAt time.Time
	Reference string
}

// CursorAfter returns the position just past pr.
func CursorAfter(pr *PaymentRequest) StaleCursor {
	return StaleCursor{UpdatedAt: pr.UpdatedAt, Reference: pr.Reference}
}

// Before reports whether the cursor sorts before pr.
func (c StaleCursor) Before(pr *PaymentRequest) bool {
	if !c.UpdatedAt.Equal(pr.UpdatedAt) {
		return c.UpdatedAt.Before(pr.UpdatedAt)
	}
	return c.Reference < pr.Reference
}

type PaymentPlanRepository interface {
	FindByAccountRef(ctx context.Context, accountRef string) (*PaymentPlan, error)
	FindByAccountRefForUpdate(ctx context.Context, accountRef string) (*PaymentPlan, error)
	Create(ctx context.Context, plan *PaymentPlan) error
	Update(ctx context.Context, plan *PaymentPlan) error
}

type AccountRepository interface {
	FindAccountByUserAndOrg(ctx context.Context, userID, organizationID string) (*Account, error)
	// FindAccountByUserAndOrgForUpdate locks the account until the surrounding transaction ends.
	FindAccountByUserAndOrgForUpdate(ctx context.Context, userID, organizationID string) (*Account, error)
	LinkPaymentPlan(ctx context.Context, accountID, planID string) error
}

// Repositories groups repositories bound to the same transaction.
type Repositories struct {
	PaymentRequests PaymentRequestRepository
	PaymentPlans    PaymentPlanRepository
	Accounts        AccountRepository
}

// TransactionCoordinator runs fn inside a single database transaction.
type TransactionCoordinator interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
