// Package mocks provides in-memory fakes of the reconciler's ports for tests.
package mocks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

// Store is an in-memory database. WithTransaction serializes callers and
// discards every write made by a failing callback.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	requests map[string]*domain.PaymentRequest
	plans    map[string]*domain.PaymentPlan
	accounts map[string]*domain.Account

	PaymentRequests *PaymentRequestRepository
	PaymentPlans    *PaymentPlanRepository
	Accounts        *AccountRepository

	WithTransactionFn func(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error
}

func NewStore() *Store {
	s := &Store{
		requests: make(map[string]*domain.PaymentRequest),
		plans:    make(map[string]*domain.PaymentPlan),
		accounts: make(map[string]*domain.Account),
	}
	s.PaymentRequests = &PaymentRequestRepository{store: s}
	s.PaymentPlans = &PaymentPlanRepository{store: s}
	s.Accounts = &AccountRepository{store: s}
	return s
}

func (s *Store) Repositories() domain.Repositories {
	return domain.Repositories{
		PaymentRequests: s.PaymentRequests,
		PaymentPlans:    s.PaymentPlans,
		Accounts:        s.Accounts,
	}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if s.WithTransactionFn != nil {
		return s.WithTransactionFn(ctx, fn)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	requests := copyMap(s.requests)
	plans := copyMap(s.plans)
	accounts := copyMap(s.accounts)
	s.mu.RUnlock()

	if err := fn(ctx, s.Repositories()); err != nil {
		s.mu.Lock()
		s.requests, s.plans, s.accounts = requests, plans, accounts
		s.mu.Unlock()
		return err
	}
	return nil
}

// AddAccount seeds a membership account.
func (s *Store) AddAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a
	s.accounts[a.ID] = &cp
}

// Account returns the stored copy of an account, or nil.
func (s *Store) Account(id string) *domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// Request returns the stored copy of a payment request, or nil.
func (s *Store) Request(reference string) *domain.PaymentRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.requests[reference]
	if !ok {
		return nil
	}
	return cloneRequest(pr)
}

// Plan returns the stored copy of an account's plan, or nil.
func (s *Store) Plan(accountRef string) *domain.PaymentPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[accountRef]
	if !ok {
		return nil
	}
	return clonePlan(p)
}

// SetUpdatedAt rewrites a request's updated_at, for ordering stale listings.
func (s *Store) SetUpdatedAt(reference string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pr, ok := s.requests[reference]; ok {
		pr.UpdatedAt = at
	}
}

type PaymentRequestRepository struct {
	store *Store

	CreateFn func(ctx context.Context, pr *domain.PaymentRequest) error
	UpdateFn func(ctx context.Context, pr *domain.PaymentRequest) error

	UpdateCalls int
}

func (r *PaymentRequestRepository) Create(ctx context.Context, pr *domain.PaymentRequest) error {
	if r.CreateFn != nil {
		return r.CreateFn(ctx, pr)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.requests[pr.Reference]; exists {
		return domain.NewDuplicateReferenceError(pr.Reference)
	}
	r.store.requests[pr.Reference] = cloneRequest(pr)
	return nil
}

func (r *PaymentRequestRepository) FindByReference(ctx context.Context, reference string) (*domain.PaymentRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	pr, ok := r.store.requests[reference]
	if !ok {
		return nil, domain.NewPaymentRequestNotFoundError(reference)
	}
	return cloneRequest(pr), nil
}

func (r *PaymentRequestRepository) FindByReferenceForUpdate(ctx context.Context, reference string) (*domain.PaymentRequest, error) {
	return r.FindByReference(ctx, reference)
}

func (r *PaymentRequestRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, pr := range r.store.requests {
		if pr.TransactionID != "" && pr.TransactionID == transactionID {
			return cloneRequest(pr), nil
		}
	}
	return nil, domain.NewPaymentRequestNotFoundError(transactionID)
}

func (r *PaymentRequestRepository) Update(ctx context.Context, pr *domain.PaymentRequest) error {
	r.store.mu.Lock()
	r.UpdateCalls++
	r.store.mu.Unlock()

	if r.UpdateFn != nil {
		return r.UpdateFn(ctx, pr)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.requests[pr.Reference]; !ok {
		return domain.NewPaymentRequestNotFoundError(pr.Reference)
	}
	if pr.TransactionID != "" {
		for ref, other := range r.store.requests {
			if ref != pr.Reference && other.TransactionID == pr.TransactionID {
				return domain.NewTransactionIDConflictError(pr.TransactionID, nil)
			}
		}
	}
	r.store.requests[pr.Reference] = cloneRequest(pr)
	return nil
}

func (r *PaymentRequestRepository) FindStale(ctx context.Context, cutoff time.Time, after domain.StaleCursor, limit int) ([]*domain.PaymentRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.PaymentRequest
	for _, pr := range r.store.requests {
		if !pr.UpdatedAt.Before(cutoff) || !after.Before(pr) {
			continue
		}
		open := pr.Status == domain.StatusCreated || pr.Status == domain.StatusPending
		if (open && pr.TransactionID != "") || pr.NeedsActivation() {
			out = append(out, cloneRequest(pr))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.CursorAfter(out[i]).Before(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type PaymentPlanRepository struct {
	store *Store

	CreateFn func(ctx context.Context, plan *domain.PaymentPlan) error
	UpdateFn func(ctx context.Context, plan *domain.PaymentPlan) error

	Writes int
}

func (r *PaymentPlanRepository) FindByAccountRef(ctx context.Context, accountRef string) (*domain.PaymentPlan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.plans[accountRef]
	if !ok {
		return nil, domain.NewPlanNotFoundError(accountRef)
	}
	return clonePlan(p), nil
}

func (r *PaymentPlanRepository) FindByAccountRefForUpdate(ctx context.Context, accountRef string) (*domain.PaymentPlan, error) {
	return r.FindByAccountRef(ctx, accountRef)
}

func (r *PaymentPlanRepository) Create(ctx context.Context, plan *domain.PaymentPlan) error {
	if r.CreateFn != nil {
		return r.CreateFn(ctx, plan)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.plans[plan.AccountRef] = clonePlan(plan)
	r.Writes++
	return nil
}

func (r *PaymentPlanRepository) Update(ctx context.Context, plan *domain.PaymentPlan) error {
	if r.UpdateFn != nil {
		return r.UpdateFn(ctx, plan)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.plans[plan.AccountRef]; !ok {
		return domain.NewPlanNotFoundError(plan.AccountRef)
	}
	r.store.plans[plan.AccountRef] = clonePlan(plan)
	r.Writes++
	return nil
}

type AccountRepository struct {
	store *Store

	FindAccountByUserAndOrgFn func(ctx context.Context, userID, organizationID string) (*domain.Account, error)
}

func (r *AccountRepository) FindAccountByUserAndOrg(ctx context.Context, userID, organizationID string) (*domain.Account, error) {
	if r.FindAccountByUserAndOrgFn != nil {
		return r.FindAccountByUserAndOrgFn(ctx, userID, organizationID)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, a := range r.store.accounts {
		if a.UserID == userID && a.OrganizationID == organizationID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.NewAccountNotFoundError(userID, organizationID)
}

// FindAccountByUserAndOrgForUpdate needs no lock: WithTransaction already serializes callers.
func (r *AccountRepository) FindAccountByUserAndOrgForUpdate(ctx context.Context, userID, organizationID string) (*domain.Account, error) {
	return r.FindAccountByUserAndOrg(ctx, userID, organizationID)
}

func (r *AccountRepository) LinkPaymentPlan(ctx context.Context, accountID, planID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.accounts[accountID]
	if !ok {
		return domain.NewAccountNotFoundError(accountID, "")
	}
	cp := *a
	cp.PaymentPlanID = planID
	r.store.accounts[accountID] = &cp
	return nil
}

func copyMap[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRequest(pr *domain.PaymentRequest) *domain.PaymentRequest {
	cp := *pr
	cp.StatusHistory = append([]domain.StatusChange(nil), pr.StatusHistory...)
	cp.GatewaySnapshots = append([]domain.GatewaySnapshot(nil), pr.GatewaySnapshots...)
	cp.RawWebhook = append(json.RawMessage(nil), pr.RawWebhook...)
	if pr.ActivatedAt != nil {
		at := *pr.ActivatedAt
		cp.ActivatedAt = &at
	}
	return &cp
}

func clonePlan(p *domain.PaymentPlan) *domain.PaymentPlan {
	cp := *p
	cp.StatusHistory = append([]domain.PlanEvent(nil), p.StatusHistory...)
	cp.RawPayload = append(json.RawMessage(nil), p.RawPayload...)
	return &cp
}
