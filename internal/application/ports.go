package application

import (
	"context"
	"net/http"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

// GatewayClient is the port for the payment gateway's transaction API.
type GatewayClient interface {
	FetchTransaction(ctx context.Context, id string) (*gateway.Transaction, error)
	ListTransactions(ctx context.Context, q gateway.ListQuery) (*gateway.TransactionPage, error)
}

// WebhookAuthenticator verifies a pushed gateway event before it is trusted.
type WebhookAuthenticator interface {
	Verify(ctx context.Context, headers http.Header, body []byte) error
}

// AccountFinder resolves the membership account for a user inside an organization.
type AccountFinder interface {
	FindAccountByUserAndOrg(ctx context.Context, userID, organizationID string) (*domain.Account, error)
}

// Notifier delivers account emails. Callers never abort on its failures.
type Notifier interface {
	NotifyAccountEmail(ctx context.Context, accountRef, templateKind string, data map[string]any) error
}

type AuditLevel string

const (
	AuditInfo  AuditLevel = "info"
	AuditWarn  AuditLevel = "warn"
	AuditError AuditLevel = "error"
)

// AuditEntry is one append-only reconciliation log record.
type AuditEntry struct {
	Level          AuditLevel
	Message        string
	Source         domain.Source
	Reference      string
	TransactionID  string
	OrganizationID string
	UserID         string
	Status         domain.PaymentStatus
	AmountCents    *int64
	Currency       string
	Meta           map[string]any
}

// AuditLog is write-only and best-effort: Write never fails the caller.
type AuditLog interface {
	Write(ctx context.Context, entry AuditEntry)
}

// Metrics records reconciliation outcomes.
type Metrics interface {
	ObserveTransition(source domain.Source, outcome domain.Outcome)
	ObserveActivation(action domain.PlanAction)
	ObserveActivationFailure(source domain.Source)
	ObserveSweep(sweeper string, processed, failed int, elapsed time.Duration)
}
