package domain_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T) *domain.PaymentRequest {
	t.Helper()
	money, err := domain.NewMoney(5000000, "cop")
	require.NoError(t, err)
	pr, err := domain.NewPaymentRequest("membresia-org1-user1-1700000000", "user1", "org1", money)
	require.NoError(t, err)
	return pr
}

func TestNewPaymentRequest(t *testing.T) {
	t.Run("creates request in CREATED", func(t *testing.T) {
		pr := newRequest(t)

		assert.Equal(t, domain.StatusCreated, pr.Status)
		assert.Equal(t, "COP", pr.Currency)
		assert.Equal(t, int64(5000000), pr.AmountCents)
		assert.Empty(t, pr.StatusHistory)
		assert.Empty(t, pr.TransactionID)
		assert.NotZero(t, pr.CreatedAt)
	})

	t.Run("rejects empty reference", func(t *testing.T) {
		_, err := domain.NewPaymentRequest("  ", "user1", "org1", domain.Money{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	})

	t.Run("rejects missing user", func(t *testing.T) {
		_, err := domain.NewPaymentRequest("ref", "", "org1", domain.Money{})
		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := domain.NewPaymentRequest("ref", "u", "o", domain.Money{Amount: -1})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestApplyStatus(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	raw := json.RawMessage(`{"id":"tx-1","status":"APPROVED"}`)

	t.Run("happy path approves and assigns transaction", func(t *testing.T) {
		pr := newRequest(t)

		tr := pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceWebhook, raw, now)

		assert.Equal(t, domain.OutcomeApplied, tr.Outcome)
		assert.True(t, tr.Outcome.Changed())
		assert.True(t, tr.BecameApproved)
		assert.True(t, tr.TransactionIDAssigned)
		assert.Equal(t, domain.StatusApproved, pr.Status)
		assert.Equal(t, "tx-1", pr.TransactionID)
		require.Len(t, pr.StatusHistory, 1)
		assert.Equal(t, domain.StatusCreated, pr.StatusHistory[0].From)
		assert.Equal(t, domain.StatusApproved, pr.StatusHistory[0].To)
		assert.Equal(t, domain.SourceWebhook, pr.StatusHistory[0].Source)
		assert.JSONEq(t, string(raw), string(pr.RawWebhook))
		assert.Len(t, pr.GatewaySnapshots, 1)
	})

	t.Run("duplicate delivery is idempotent but still snapshotted", func(t *testing.T) {
		pr := newRequest(t)
		pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceWebhook, raw, now)

		tr := pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceWebhook, raw, now.Add(time.Minute))

		assert.Equal(t, domain.OutcomeIdempotent, tr.Outcome)
		assert.False(t, tr.Outcome.Changed())
		assert.False(t, tr.BecameApproved)
		assert.Len(t, pr.StatusHistory, 1)
		assert.Len(t, pr.GatewaySnapshots, 2)
		assert.Equal(t, now, pr.UpdatedAt)
	})

	t.Run("late PENDING after APPROVED is blocked", func(t *testing.T) {
		pr := newRequest(t)
		pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceWebhook, nil, now)

		tr := pr.ApplyStatus(domain.StatusPending, "tx-1", domain.SourcePoll, nil, now)

		assert.Equal(t, domain.OutcomeTerminalBlocked, tr.Outcome)
		assert.Equal(t, domain.StatusApproved, pr.Status)
		assert.Len(t, pr.StatusHistory, 1)
	})

	t.Run("terminal to different terminal is blocked", func(t *testing.T) {
		pr := newRequest(t)
		pr.ApplyStatus(domain.StatusDeclined, "tx-1", domain.SourceWebhook, nil, now)

		tr := pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceReconcile, nil, now)

		assert.Equal(t, domain.OutcomeTerminalBlocked, tr.Outcome)
		assert.Equal(t, domain.StatusDeclined, pr.Status)
		assert.False(t, tr.BecameApproved)
	})

	t.Run("regression from PENDING to CREATED is blocked", func(t *testing.T) {
		pr := newRequest(t)
		pr.ApplyStatus(domain.StatusPending, "", domain.SourceFrontend, nil, now)

		tr := pr.ApplyStatus(domain.StatusCreated, "", domain.SourcePoll, nil, now)

		assert.Equal(t, domain.OutcomeRegressionBlocked, tr.Outcome)
		assert.Equal(t, domain.StatusPending, pr.Status)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		pr := newRequest(t)

		tr := pr.ApplyStatus(domain.PaymentStatus("REFUNDED"), "tx-1", domain.SourceWebhook, raw, now)

		assert.Equal(t, domain.OutcomeInvalidStatus, tr.Outcome)
		assert.Equal(t, domain.StatusCreated, pr.Status)
		assert.Empty(t, pr.TransactionID)
		assert.Len(t, pr.GatewaySnapshots, 1)
	})

	t.Run("different transaction id never overwrites", func(t *testing.T) {
		pr := newRequest(t)
		pr.ApplyStatus(domain.StatusPending, "tx-1", domain.SourceFrontend, nil, now)

		tr := pr.ApplyStatus(domain.StatusApproved, "tx-2", domain.SourceWebhook, nil, now)

		assert.Equal(t, domain.OutcomeApplied, tr.Outcome)
		assert.Equal(t, "tx-2", tr.ConflictingTransactionID)
		assert.False(t, tr.TransactionIDAssigned)
		assert.Equal(t, "tx-1", pr.TransactionID)
		assert.Equal(t, domain.StatusApproved, pr.Status)
	})

	t.Run("same status with a foreign transaction id is recorded", func(t *testing.T) {
		pr := newRequest(t)
		pr.ApplyStatus(domain.StatusPending, "tx-1", domain.SourceFrontend, nil, now)

		tr := pr.ApplyStatus(domain.StatusPending, "tx-2", domain.SourcePoll, nil, now.Add(time.Minute))

		assert.Equal(t, domain.OutcomeApplied, tr.Outcome)
		assert.True(t, tr.Outcome.Changed())
		assert.Equal(t, "tx-2", tr.ConflictingTransactionID)
		assert.Equal(t, "tx-1", pr.TransactionID)
		require.Len(t, pr.StatusHistory, 2)
		last := pr.StatusHistory[1]
		assert.Equal(t, domain.StatusPending, last.From)
		assert.Equal(t, domain.StatusPending, last.To)
		assert.Equal(t, domain.SourcePoll, last.Source)
		assert.False(t, tr.BecameApproved)
	})

	t.Run("missing transaction id still approves", func(t *testing.T) {
		pr := newRequest(t)

		tr := pr.ApplyStatus(domain.StatusApproved, "", domain.SourceReconcile, nil, now)

		assert.True(t, tr.BecameApproved)
		assert.Empty(t, pr.TransactionID)
	})

	t.Run("non-webhook source leaves raw webhook untouched", func(t *testing.T) {
		pr := newRequest(t)

		pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourcePoll, raw, now)

		assert.Empty(t, pr.RawWebhook)
		assert.Len(t, pr.GatewaySnapshots, 1)
	})

	t.Run("history length equals number of distinct applied transitions", func(t *testing.T) {
		pr := newRequest(t)
		sequence := []domain.PaymentStatus{
			domain.StatusPending, domain.StatusPending, domain.StatusCreated,
			domain.StatusApproved, domain.StatusDeclined, domain.StatusApproved,
		}
		for _, s := range sequence {
			pr.ApplyStatus(s, "tx-1", domain.SourcePoll, nil, now)
		}

		assert.Len(t, pr.StatusHistory, 2)
		for i := 1; i < len(pr.StatusHistory); i++ {
			assert.Greater(t, pr.StatusHistory[i].To.Rank(), pr.StatusHistory[i-1].To.Rank())
		}
	})
}

func TestRecordSnapshot(t *testing.T) {
	t.Run("keeps only the newest entries", func(t *testing.T) {
		pr := newRequest(t)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		for i := 0; i < domain.MaxGatewaySnapshots+5; i++ {
			payload := json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
			pr.RecordSnapshot(domain.SourcePoll, payload, base.Add(time.Duration(i)*time.Second))
		}

		require.Len(t, pr.GatewaySnapshots, domain.MaxGatewaySnapshots)
		assert.JSONEq(t, `{"n":5}`, string(pr.GatewaySnapshots[0].Payload))
		assert.JSONEq(t, `{"n":24}`, string(pr.GatewaySnapshots[domain.MaxGatewaySnapshots-1].Payload))
	})

	t.Run("ignores empty payloads", func(t *testing.T) {
		pr := newRequest(t)
		pr.RecordSnapshot(domain.SourcePoll, nil, time.Now())
		assert.Empty(t, pr.GatewaySnapshots)
	})
}

func TestTransactionLinking(t *testing.T) {
	now := time.Now().UTC()

	t.Run("release undoes only a fresh assignment", func(t *testing.T) {
		pr := newRequest(t)
		tr := pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceWebhook, nil, now)

		pr.ReleaseTransactionID(tr)

		assert.Empty(t, pr.TransactionID)
		assert.Equal(t, domain.StatusApproved, pr.Status)
	})

	t.Run("link sets id once", func(t *testing.T) {
		pr := newRequest(t)

		assert.True(t, pr.LinkTransaction("tx-1", now))
		assert.False(t, pr.LinkTransaction("tx-2", now))
		assert.Equal(t, "tx-1", pr.TransactionID)
	})
}

func TestMarkActivated(t *testing.T) {
	pr := newRequest(t)
	now := time.Now().UTC()
	pr.ApplyStatus(domain.StatusApproved, "tx-1", domain.SourceWebhook, nil, now)
	assert.True(t, pr.NeedsActivation())

	assert.True(t, pr.MarkActivated("plan-1", now))
	assert.False(t, pr.MarkActivated("plan-1", now))
	assert.False(t, pr.NeedsActivation())
	assert.Equal(t, "plan-1", pr.ActivatedPlanID)
}
