package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStatus_ApprovalActivatesMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createRequest(t, "ref-1")

	res := h.apply(t, "ref-1", domain.StatusApproved, "tx-9", domain.SourceWebhook)

	require.NotNil(t, res.Request)
	assert.True(t, res.Changed)
	assert.True(t, res.BecameApproved)

	plan, err := h.engine.EnsureActivation(ctx, res.Request, copMoney, domain.SourceWebhook)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "tx-9", plan.TransactionID)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), plan.DateUntil, time.Minute)

	stored := h.store.Request("ref-1")
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, "tx-9", stored.TransactionID)
	assert.NotNil(t, stored.ActivatedAt)
	assert.Equal(t, plan.ID, stored.ActivatedPlanID)
	assert.Equal(t, plan.ID, h.store.Account("acct-1").PaymentPlanID)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, services.TemplateSubscriptionActivated, sent[0].TemplateKind)
	assert.Equal(t, "acct-1", sent[0].AccountRef)
}

func TestApplyStatus_DuplicateDeliveryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createRequest(t, "ref-1")

	first := h.apply(t, "ref-1", domain.StatusApproved, "tx-9", domain.SourceWebhook)
	_, err := h.engine.EnsureActivation(ctx, first.Request, copMoney, domain.SourceWebhook)
	require.NoError(t, err)

	second := h.apply(t, "ref-1", domain.StatusApproved, "tx-9", domain.SourceWebhook)

	assert.False(t, second.Changed)
	assert.False(t, second.BecameApproved)
	assert.Equal(t, domain.OutcomeIdempotent, second.Outcome)
	plan, err := h.engine.EnsureActivation(ctx, second.Request, copMoney, domain.SourceWebhook)
	require.NoError(t, err)
	assert.Nil(t, plan, "already activated request must not activate again")

	stored := h.store.Request("ref-1")
	assert.Len(t, stored.StatusHistory, 1)
	assert.Len(t, stored.GatewaySnapshots, 2, "snapshot is kept even for a no-op")
	assert.Len(t, h.notifier.Sent(), 1)
	assert.Equal(t, 1, h.metrics.Transition(domain.SourceWebhook, domain.OutcomeIdempotent))
}

func TestApplyStatus_LatePendingDoesNotUnwindApproval(t *testing.T) {
	h := newHarness(t)
	h.createRequest(t, "ref-1")
	h.apply(t, "ref-1", domain.StatusApproved, "tx-9", domain.SourceWebhook)

	res := h.apply(t, "ref-1", domain.StatusPending, "tx-9", domain.SourcePoll)

	assert.False(t, res.Changed)
	assert.Equal(t, domain.OutcomeTerminalBlocked, res.Outcome)
	assert.Equal(t, domain.StatusApproved, h.store.Request("ref-1").Status)
	assert.Contains(t, h.audit.Messages(), "engine: regression blocked")
}

func TestApplyStatus_SecondTransactionIDIsNotAdopted(t *testing.T) {
	h := newHarness(t)
	h.createRequest(t, "ref-1")
	h.apply(t, "ref-1", domain.StatusPending, "tx-9", domain.SourceFrontend)

	res := h.apply(t, "ref-1", domain.StatusApproved, "tx-10", domain.SourceWebhook)

	assert.True(t, res.Changed)
	stored := h.store.Request("ref-1")
	assert.Equal(t, "tx-9", stored.TransactionID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Contains(t, h.audit.Messages(), "engine: transaction id mismatch")
}

func TestApplyStatus_TransactionIDCollisionIsCleared(t *testing.T) {
	h := newHarness(t)
	h.createRequest(t, "ref-1")
	h.createRequest(t, "ref-2")
	h.apply(t, "ref-1", domain.StatusPending, "tx-9", domain.SourceWebhook)

	res := h.apply(t, "ref-2", domain.StatusDeclined, "tx-9", domain.SourceWebhook)

	assert.True(t, res.Changed)
	stored := h.store.Request("ref-2")
	assert.Equal(t, domain.StatusDeclined, stored.Status)
	assert.Empty(t, stored.TransactionID)
	assert.Equal(t, "tx-9", h.store.Request("ref-1").TransactionID)
	assert.Contains(t, h.audit.Messages(), "engine: transaction id collision")
}

func TestApplyStatus_UnknownReference(t *testing.T) {
	h := newHarness(t)

	res, err := h.engine.ApplyStatus(context.Background(), services.StatusUpdate{
		Reference: "missing",
		Status:    domain.StatusApproved,
		Source:    domain.SourceReconcile,
	})

	require.NoError(t, err)
	assert.Nil(t, res.Request)
	assert.Equal(t, domain.OutcomeNotFound, res.Outcome)
}

func TestApplyStatus_StorageFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.createRequest(t, "ref-1")
	h.store.PaymentRequests.UpdateFn = func(ctx context.Context, pr *domain.PaymentRequest) error {
		return errors.New("connection lost")
	}

	_, err := h.engine.ApplyStatus(context.Background(), services.StatusUpdate{
		Reference: "ref-1",
		Status:    domain.StatusApproved,
		Source:    domain.SourceWebhook,
	})

	assert.Error(t, err)
}

func TestEnsureActivation_MissingAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.requests.Create(ctx, services.CreatePaymentRequestCommand{
		Reference:      "ref-orphan",
		UserID:         "ghost",
		OrganizationID: "org1",
		AmountCents:    100,
	})
	require.NoError(t, err)
	res := h.apply(t, "ref-orphan", domain.StatusApproved, "tx-1", domain.SourceWebhook)

	_, err = h.engine.EnsureActivation(ctx, res.Request, copMoney, domain.SourceWebhook)

	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, application.CategoryBusinessRule, application.CategorizeError(err))
	assert.Nil(t, h.store.Request("ref-orphan").ActivatedAt)
	assert.Equal(t, 1, h.metrics.Failures)
	assert.Contains(t, h.audit.Messages(), "activation: failed")
}

func TestLinkTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createRequest(t, "ref-1")

	pr, err := h.requests.LinkTransaction(ctx, "ref-1", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", pr.TransactionID)

	pr, err = h.requests.LinkTransaction(ctx, "ref-1", "tx-2")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", pr.TransactionID)
	assert.Contains(t, h.audit.Messages(), "link: skipped, transaction already set")

	_, err = h.requests.LinkTransaction(ctx, "missing", "tx-3")
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
}
