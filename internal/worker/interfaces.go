package worker

import (
	"context"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

type StaleRequestFinder interface {
	FindStale(ctx context.Context, cutoff time.Time, after domain.StaleCursor, limit int) ([]*domain.PaymentRequest, error)
}

// TransactionReconciler is satisfied by services.SyncService.
type TransactionReconciler interface {
	FetchAndReconcile(ctx context.Context, transactionID string, source domain.Source) (*domain.PaymentRequest, error)
	Reconcile(ctx context.Context, tx *gateway.Transaction, source domain.Source) (*domain.PaymentRequest, error)
}

// ActivationEnsurer is satisfied by services.ReconciliationEngine.
type ActivationEnsurer interface {
	EnsureActivation(ctx context.Context, pr *domain.PaymentRequest, amount domain.Money, source domain.Source) (*domain.PaymentPlan, error)
}

type TransactionLister interface {
	ListTransactions(ctx context.Context, q gateway.ListQuery) (*gateway.TransactionPage, error)
}

// Report summarises one sweep cycle.
type Report struct {
	Found     int
	Processed int
	Skipped   int
	Failed    int
}
