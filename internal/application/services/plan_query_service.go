package services

import (
	"context"
	"errors"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

// PlanQueryService answers read-only questions about membership plans.
type PlanQueryService struct {
	plans    domain.PaymentPlanRepository
	accounts application.AccountFinder
	now      func() time.Time
}

func NewPlanQueryService(plans domain.PaymentPlanRepository, accounts application.AccountFinder) *PlanQueryService {
	return &PlanQueryService{plans: plans, accounts: accounts, now: time.Now}
}

func (s *PlanQueryService) GetByAccount(ctx context.Context, accountRef string) (*domain.PaymentPlan, error) {
	plan, err := s.plans.FindByAccountRef(ctx, accountRef)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return plan, nil
}

// GetByUserAndOrg resolves the account first, then its plan.
func (s *PlanQueryService) GetByUserAndOrg(ctx context.Context, userID, organizationID string) (*domain.PaymentPlan, error) {
	account, err := s.accounts.FindAccountByUserAndOrg(ctx, userID, organizationID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return s.GetByAccount(ctx, account.ID)
}

// IsAccessValid is true iff the account has a plan whose dateUntil has not passed.
func (s *PlanQueryService) IsAccessValid(ctx context.Context, accountRef string) (bool, error) {
	plan, err := s.plans.FindByAccountRef(ctx, accountRef)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			return false, nil
		}
		return false, application.NewInternalError(err)
	}
	return plan.IsActive(s.now()), nil
}
