package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookBody(reference, txID, status string) []byte {
	return []byte(`{"event":"transaction.updated","data":{"transaction":{"id":"` + txID +
		`","reference":"` + reference + `","status":"` + status +
		`","amount_in_cents":5000000,"currency":"COP"}},"signature":{"properties":["transaction.id"],"checksum":"X","timestamp":1}}`)
}

func TestWebhook_ApprovesAndActivates(t *testing.T) {
	h := newHarness(t)
	h.createRequest(t, "ref-1")

	err := h.webhooks.Handle(context.Background(), http.Header{}, webhookBody("ref-1", "tx-9", "APPROVED"))

	require.NoError(t, err)
	stored := h.store.Request("ref-1")
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.NotEmpty(t, stored.RawWebhook)
	assert.NotNil(t, stored.ActivatedAt)
	plan := h.store.Plan("acct-1")
	require.NotNil(t, plan)
	assert.Equal(t, "tx-9", plan.TransactionID)
}

func TestWebhook_RejectsBadChecksumBeforeTouchingState(t *testing.T) {
	h := newHarness(t)
	h.createRequest(t, "ref-1")
	h.auth.VerifyFn = func(ctx context.Context, headers http.Header, body []byte) error {
		return application.NewAuthenticationError(application.ErrAuthentication)
	}

	err := h.webhooks.Handle(context.Background(), http.Header{}, webhookBody("ref-1", "tx-9", "APPROVED"))

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, svcErr.HTTPStatus)
	stored := h.store.Request("ref-1")
	assert.Equal(t, domain.StatusCreated, stored.Status)
	assert.Empty(t, stored.GatewaySnapshots)
}

func TestWebhook_UpsertsConventionalReference(t *testing.T) {
	h := newHarness(t)
	ref := "membresia-org1-user1-1700000000"

	err := h.webhooks.Handle(context.Background(), http.Header{}, webhookBody(ref, "tx-9", "APPROVED"))

	require.NoError(t, err)
	stored := h.store.Request(ref)
	require.NotNil(t, stored)
	assert.Equal(t, "user1", stored.UserID)
	assert.Equal(t, "org1", stored.OrganizationID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, int64(5000000), stored.AmountCents)
	assert.NotNil(t, h.store.Plan("acct-1"))
}

func TestWebhook_UnparseableUnknownReferenceIsAcknowledged(t *testing.T) {
	h := newHarness(t)

	err := h.webhooks.Handle(context.Background(), http.Header{}, webhookBody("order-42", "tx-9", "APPROVED"))

	require.NoError(t, err)
	assert.Nil(t, h.store.Request("order-42"))
	assert.Contains(t, h.audit.Messages(), "webhook: no payment request for reference")
}

func TestWebhook_ActivationFailureStillAcknowledged(t *testing.T) {
	h := newHarness(t)
	ref := "membresia-org1-nobody-1"

	err := h.webhooks.Handle(context.Background(), http.Header{}, webhookBody(ref, "tx-9", "APPROVED"))

	require.NoError(t, err)
	stored := h.store.Request(ref)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.True(t, stored.NeedsActivation())
}

func TestWebhook_EventWithoutTransactionIgnored(t *testing.T) {
	h := newHarness(t)

	err := h.webhooks.Handle(context.Background(), http.Header{}, []byte(`{"event":"nequi_token.updated","data":{"token":{}}}`))

	assert.NoError(t, err)
}

func TestWebhook_MissingReferenceIsValidationError(t *testing.T) {
	h := newHarness(t)

	err := h.webhooks.Handle(context.Background(), http.Header{}, webhookBody("", "tx-9", "APPROVED"))

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeValidationFailed, svcErr.Code)
}
