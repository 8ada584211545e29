package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/mocks"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *mocks.Store
	audit    *mocks.AuditLog
	metrics  *mocks.Metrics
	notifier *mocks.Notifier
	gateway  *mocks.GatewayClient
	auth     *mocks.Authenticator

	activator *services.MembershipActivator
	engine    *services.ReconciliationEngine
	requests  *services.PaymentRequestService
	webhooks  *services.WebhookService
	sync      *services.SyncService
	plans     *services.PlanQueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		store:    mocks.NewStore(),
		audit:    mocks.NewAuditLog(),
		metrics:  mocks.NewMetrics(),
		notifier: mocks.NewNotifier(),
		gateway:  mocks.NewGatewayClient(),
		auth:     &mocks.Authenticator{},
	}
	h.activator = services.NewMembershipActivator(h.store, h.notifier, h.audit, h.metrics, 365, logger)
	h.engine = services.NewReconciliationEngine(h.store, h.activator, h.audit, h.metrics, logger)
	h.requests = services.NewPaymentRequestService(h.store.PaymentRequests, h.engine, h.audit, "COP", logger)
	h.webhooks = services.NewWebhookService(h.auth, h.engine, h.requests, h.audit, logger)
	h.sync = services.NewSyncService(h.gateway, h.engine, h.requests, h.audit, logger)
	h.plans = services.NewPlanQueryService(h.store.PaymentPlans, h.store.Accounts)

	h.store.AddAccount(domain.Account{
		ID:             "acct-1",
		UserID:         "user1",
		OrganizationID: "org1",
		DisplayName:    "Ana",
		Email:          "ana@example.com",
	})
	return h
}

func (h *harness) createRequest(t *testing.T, reference string) *domain.PaymentRequest {
	t.Helper()
	pr, err := h.requests.Create(context.Background(), services.CreatePaymentRequestCommand{
		Reference:      reference,
		UserID:         "user1",
		OrganizationID: "org1",
		AmountCents:    5000000,
	})
	require.NoError(t, err)
	return pr
}

func (h *harness) apply(t *testing.T, reference string, status domain.PaymentStatus, txID string, source domain.Source) *services.ApplyResult {
	t.Helper()
	res, err := h.engine.ApplyStatus(context.Background(), services.StatusUpdate{
		Reference:     reference,
		Status:        status,
		TransactionID: txID,
		Source:        source,
		Raw:           []byte(`{"status":"` + string(status) + `"}`),
	})
	require.NoError(t, err)
	return res
}

var copMoney = domain.Money{Amount: 5000000, Currency: "COP"}
