package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
	"github.com/DanielPopoola/membership-reconciler/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *mocks.Store
	gateway  *mocks.GatewayClient
	metrics  *mocks.Metrics
	engine   *services.ReconciliationEngine
	requests *services.PaymentRequestService
	sync     *services.SyncService
	logger   *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := mocks.NewAuditLog()

	f := &fixture{
		store:   mocks.NewStore(),
		gateway: mocks.NewGatewayClient(),
		metrics: mocks.NewMetrics(),
		logger:  logger,
	}
	activator := services.NewMembershipActivator(f.store, mocks.NewNotifier(), audit, f.metrics, 365, logger)
	f.engine = services.NewReconciliationEngine(f.store, activator, audit, f.metrics, logger)
	f.requests = services.NewPaymentRequestService(f.store.PaymentRequests, f.engine, audit, "COP", logger)
	f.sync = services.NewSyncService(f.gateway, f.engine, f.requests, audit, logger)

	f.store.AddAccount(domain.Account{ID: "acct-1", UserID: "user1", OrganizationID: "org1"})
	return f
}

func (f *fixture) seed(t *testing.T, reference string, status domain.PaymentStatus, txID string) {
	t.Helper()
	_, err := f.requests.Create(context.Background(), services.CreatePaymentRequestCommand{
		Reference: reference, UserID: "user1", OrganizationID: "org1", AmountCents: 5000000,
	})
	require.NoError(t, err)
	if status == domain.StatusCreated && txID == "" {
		return
	}
	_, err = f.engine.ApplyStatus(context.Background(), services.StatusUpdate{
		Reference: reference, Status: status, TransactionID: txID, Source: domain.SourceFrontend,
	})
	require.NoError(t, err)
}

func (f *fixture) staleSweeper(threshold time.Duration) *StaleSweeper {
	w := NewStaleSweeper(f.store.PaymentRequests, f.sync, f.engine, f.metrics, time.Minute, threshold, 200, f.logger)
	w.now = func() time.Time { return time.Now().Add(time.Hour) }
	return w
}

func TestStaleSweeper_PendingResolvedToDeclined(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusPending, "tx-9")
	f.gateway.Put(gateway.Transaction{ID: "tx-9", Reference: "ref-1", Status: "DECLINED", AmountInCents: 5000000, Currency: "COP"})

	report := f.staleSweeper(10 * time.Minute).RunOnce(context.Background())

	assert.Equal(t, Report{Found: 1, Processed: 1}, report)
	stored := f.store.Request("ref-1")
	assert.Equal(t, domain.StatusDeclined, stored.Status)
	assert.Equal(t, domain.SourceReconcile, stored.StatusHistory[len(stored.StatusHistory)-1].Source)
	assert.Nil(t, f.store.Plan("acct-1"))
	assert.Equal(t, 1, f.metrics.Sweeps[staleSweeperName])
}

func TestStaleSweeper_ApprovalActivates(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusPending, "tx-9")
	f.gateway.Put(gateway.Transaction{ID: "tx-9", Reference: "ref-1", Status: "APPROVED", AmountInCents: 5000000, Currency: "COP"})

	f.staleSweeper(10 * time.Minute).RunOnce(context.Background())

	plan := f.store.Plan("acct-1")
	require.NotNil(t, plan)
	assert.Equal(t, "tx-9", plan.TransactionID)
	assert.NotNil(t, f.store.Request("ref-1").ActivatedAt)
}

func TestStaleSweeper_IgnoresRequestsWithoutTransaction(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusCreated, "")

	report := f.staleSweeper(10 * time.Minute).RunOnce(context.Background())

	assert.Equal(t, Report{}, report)
	assert.Empty(t, f.gateway.Fetches())
}

func TestStaleSweeper_UnresolvableRowsDoNotHideLaterOnes(t *testing.T) {
	f := newFixture(t)
	base := time.Now().Add(-2 * time.Hour)
	f.seed(t, "ref-a", domain.StatusCreated, "")
	f.seed(t, "ref-b", domain.StatusCreated, "")
	f.seed(t, "ref-live", domain.StatusPending, "tx-9")
	f.store.SetUpdatedAt("ref-a", base)
	f.store.SetUpdatedAt("ref-b", base.Add(time.Second))
	f.store.SetUpdatedAt("ref-live", base.Add(time.Minute))
	f.gateway.Put(gateway.Transaction{ID: "tx-9", Reference: "ref-live", Status: "APPROVED", AmountInCents: 5000000, Currency: "COP"})

	w := f.staleSweeper(10 * time.Minute)
	w.batchSize = 2
	report := w.RunOnce(context.Background())

	assert.Equal(t, Report{Found: 1, Processed: 1}, report)
	assert.Equal(t, domain.StatusApproved, f.store.Request("ref-live").Status)
	require.NotNil(t, f.store.Plan("acct-1"))
	assert.Equal(t, domain.StatusCreated, f.store.Request("ref-a").Status)
}

func TestStaleSweeper_PagesPastUnchangedPolls(t *testing.T) {
	f := newFixture(t)
	base := time.Now().Add(-2 * time.Hour)
	f.seed(t, "ref-old", domain.StatusPending, "tx-1")
	f.seed(t, "ref-new", domain.StatusPending, "tx-2")
	f.store.SetUpdatedAt("ref-old", base)
	f.store.SetUpdatedAt("ref-new", base.Add(time.Minute))
	f.gateway.Put(gateway.Transaction{ID: "tx-1", Reference: "ref-old", Status: "PENDING", AmountInCents: 5000000, Currency: "COP"})
	f.gateway.Put(gateway.Transaction{ID: "tx-2", Reference: "ref-new", Status: "APPROVED", AmountInCents: 5000000, Currency: "COP"})

	w := f.staleSweeper(10 * time.Minute)
	w.batchSize = 1
	report := w.RunOnce(context.Background())

	assert.Equal(t, Report{Found: 2, Processed: 2}, report)
	assert.ElementsMatch(t, []string{"tx-1", "tx-2"}, f.gateway.Fetches())
	assert.Equal(t, domain.StatusPending, f.store.Request("ref-old").Status)
	assert.Equal(t, domain.StatusApproved, f.store.Request("ref-new").Status)
	assert.NotNil(t, f.store.Request("ref-new").ActivatedAt)
}

func TestStaleSweeper_FailingPollDoesNotHideLaterOnes(t *testing.T) {
	f := newFixture(t)
	base := time.Now().Add(-2 * time.Hour)
	f.seed(t, "ref-stuck", domain.StatusPending, "tx-1")
	f.seed(t, "ref-live", domain.StatusPending, "tx-2")
	f.store.SetUpdatedAt("ref-stuck", base)
	f.store.SetUpdatedAt("ref-live", base.Add(time.Minute))
	f.gateway.Put(gateway.Transaction{ID: "tx-2", Reference: "ref-live", Status: "DECLINED", AmountInCents: 5000000, Currency: "COP"})

	w := f.staleSweeper(10 * time.Minute)
	w.batchSize = 1
	report := w.RunOnce(context.Background())

	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.StatusDeclined, f.store.Request("ref-live").Status)
}

func TestStaleSweeper_ReactivatesApprovedWithoutGatewayCall(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusApproved, "tx-9")

	report := f.staleSweeper(10 * time.Minute).RunOnce(context.Background())

	assert.Equal(t, Report{Found: 1, Processed: 1}, report)
	assert.Empty(t, f.gateway.Fetches())
	require.NotNil(t, f.store.Plan("acct-1"))
	assert.False(t, f.store.Request("ref-1").NeedsActivation())
}

func TestStaleSweeper_TimeoutDoesNotStopBatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusPending, "tx-1")
	f.seed(t, "ref-2", domain.StatusPending, "tx-2")
	f.gateway.FetchTransactionFn = func(ctx context.Context, id string) (*gateway.Transaction, error) {
		if id == "tx-1" {
			return nil, &gateway.TimeoutError{Operation: "fetch_transaction", Err: context.DeadlineExceeded}
		}
		return &gateway.Transaction{ID: id, Reference: "ref-2", Status: "DECLINED", Raw: []byte(`{}`)}, nil
	}

	report := f.staleSweeper(10 * time.Minute).RunOnce(context.Background())

	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.StatusPending, f.store.Request("ref-1").Status)
	assert.Equal(t, domain.StatusDeclined, f.store.Request("ref-2").Status)
}

func TestStaleSweeper_IgnoresFreshRequests(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusPending, "tx-9")

	report := f.staleSweeper(2 * time.Hour).RunOnce(context.Background())

	assert.Equal(t, Report{}, report)
	assert.Empty(t, f.gateway.Fetches())
}

func TestApprovedSweeper_WalksAllPages(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "ref-1", domain.StatusPending, "tx-1")

	var queries []gateway.ListQuery
	f.gateway.ListTransactionsFn = func(ctx context.Context, q gateway.ListQuery) (*gateway.TransactionPage, error) {
		queries = append(queries, q)
		meta := gateway.PageMeta{Page: q.Page, PageSize: 2, TotalResults: 3}
		switch q.Page {
		case 1:
			return &gateway.TransactionPage{Meta: meta, Items: []gateway.Transaction{
				{ID: "tx-1", Reference: "ref-1", Status: "APPROVED", AmountInCents: 5000000, Currency: "COP", Raw: []byte(`{}`)},
				{ID: "tx-2", Reference: "order-77", Status: "APPROVED", Raw: []byte(`{}`)},
			}}, nil
		case 2:
			return &gateway.TransactionPage{Meta: meta, Items: []gateway.Transaction{
				{ID: "tx-3", Reference: "membresia-org1-user1-3", Status: "APPROVED", AmountInCents: 5000000, Currency: "COP", Raw: []byte(`{}`)},
			}}, nil
		default:
			t.Fatalf("unexpected page %d", q.Page)
			return nil, nil
		}
	}

	w := NewApprovedSweeper(f.gateway, f.sync, f.metrics, time.Hour, time.Hour, 2, f.logger)
	report := w.RunOnce(context.Background())

	require.Len(t, queries, 2)
	assert.Equal(t, "APPROVED", queries[0].Status)
	assert.Equal(t, 2, queries[0].PageSize)
	assert.WithinDuration(t, queries[0].Until.Add(-time.Hour), queries[0].From, time.Second)
	assert.Equal(t, Report{Found: 3, Processed: 2, Skipped: 1}, report)

	assert.Equal(t, domain.StatusApproved, f.store.Request("ref-1").Status)
	upserted := f.store.Request("membresia-org1-user1-3")
	require.NotNil(t, upserted)
	assert.Equal(t, domain.StatusApproved, upserted.Status)
	assert.Nil(t, f.store.Request("order-77"))
	assert.Equal(t, "tx-3", f.store.Plan("acct-1").TransactionID)
}

func TestApprovedSweeper_StopsOnEmptyPageAndListFailure(t *testing.T) {
	f := newFixture(t)

	calls := 0
	f.gateway.ListTransactionsFn = func(ctx context.Context, q gateway.ListQuery) (*gateway.TransactionPage, error) {
		calls++
		return nil, &gateway.GatewayError{StatusCode: 503, Type: "SERVICE_UNAVAILABLE"}
	}
	w := NewApprovedSweeper(f.gateway, f.sync, f.metrics, time.Hour, time.Hour, 50, f.logger)

	assert.Equal(t, Report{}, w.RunOnce(context.Background()))
	assert.Equal(t, 1, calls)

	f.gateway.ListTransactionsFn = nil
	assert.Equal(t, Report{}, w.RunOnce(context.Background()))
	assert.Equal(t, 2, f.metrics.Sweeps[approvedSweeperName])
}
