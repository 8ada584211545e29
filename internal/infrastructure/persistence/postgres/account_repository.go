package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/jackc/pgx/v5"
)

// AccountRepository reads organization_users, the membership accounts plans attach to.
type AccountRepository struct {
	q Executor
}

func NewAccountRepository(q Executor) *AccountRepository {
	return &AccountRepository{q: q}
}

const accountByUserAndOrg = `
		SELECT id, user_id, organization_id, display_name, email, payment_plan_id
		FROM organization_users
		WHERE user_id = $1 AND organization_id = $2`

func (r *AccountRepository) FindAccountByUserAndOrg(ctx context.Context, userID, organizationID string) (*domain.Account, error) {
	return r.findAccount(ctx, accountByUserAndOrg, userID, organizationID)
}

// FindAccountByUserAndOrgForUpdate locks the account row. Activations take this
// lock before looking up the plan, so two of them cannot both create one.
func (r *AccountRepository) FindAccountByUserAndOrgForUpdate(ctx context.Context, userID, organizationID string) (*domain.Account, error) {
	return r.findAccount(ctx, accountByUserAndOrg+` FOR UPDATE`, userID, organizationID)
}

func (r *AccountRepository) findAccount(ctx context.Context, query, userID, organizationID string) (*domain.Account, error) {
	var m AccountModel
	err := r.q.QueryRow(ctx, query, userID, organizationID).Scan(
		&m.ID, &m.UserID, &m.OrganizationID, &m.DisplayName, &m.Email, &m.PaymentPlanID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewAccountNotFoundError(userID, organizationID)
		}
		return nil, fmt.Errorf("find account for user %s in %s: %w", userID, organizationID, err)
	}
	return toAccount(m), nil
}

func (r *AccountRepository) LinkPaymentPlan(ctx context.Context, accountID, planID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE organization_users SET payment_plan_id = $1 WHERE id = $2`, planID, accountID)
	if err != nil {
		return fmt.Errorf("link plan %s to account %s: %w", planID, accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewAccountNotFoundError(accountID, "")
	}
	return nil
}

// Create inserts an account; used by seeding and tests.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO organization_users (id, user_id, organization_id, display_name, email, payment_plan_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.UserID, a.OrganizationID, a.DisplayName, a.Email, nullable(a.PaymentPlanID))
	if err != nil {
		return fmt.Errorf("create account %s: %w", a.ID, err)
	}
	return nil
}
