package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application/services"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/webhook"
	"github.com/DanielPopoola/membership-reconciler/internal/tests/e2e/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CONCURRENCY: racing surfaces on one reference
// ============================================================================

func (s *E2ETestSuite) TestConcurrentObservations_SingleActivation() {
	t := s.T()
	ctx := context.Background()
	s.createRequest("ref-1")
	s.gateway.Put(testdata.Transaction{ID: "tx-1", Reference: "ref-1", Status: "APPROVED", AmountInCents: 5000000})

	approved, approvedChecksum := SignedEvent(t, eventsSecret, testdata.Transaction{
		ID: "tx-1", Reference: "ref-1", Status: "APPROVED", AmountInCents: 5000000,
	}, time.Now())
	pending, pendingChecksum := SignedEvent(t, eventsSecret, testdata.Transaction{
		ID: "tx-1", Reference: "ref-1", Status: "PENDING", AmountInCents: 5000000,
	}, time.Now())

	const workers = 24
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			var err error
			switch i % 4 {
			case 0:
				err = s.postWebhook(approved, approvedChecksum)
			case 1:
				err = s.postWebhook(pending, pendingChecksum)
			case 2:
				_, err = s.sync.FetchAndReconcile(ctx, "tx-1", domain.SourcePoll)
			case 3:
				_, err = s.engine.ApplyStatus(ctx, services.StatusUpdate{
					Reference: "ref-1", Status: domain.StatusPending, TransactionID: "tx-1", Source: domain.SourcePoll,
				})
			}
			errs <- err
		}(i)
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	pr, err := s.repos.PaymentRequests.FindByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, pr.Status)
	assert.Equal(t, "tx-1", pr.TransactionID)
	require.NotNil(t, pr.ActivatedAt)

	require.NotEmpty(t, pr.StatusHistory)
	assert.Equal(t, domain.StatusCreated, pr.StatusHistory[0].From)
	for i, change := range pr.StatusHistory {
		assert.Greater(t, change.To.Rank(), change.From.Rank(), "entry %d: %s -> %s", i, change.From, change.To)
		if i > 0 {
			assert.Equal(t, pr.StatusHistory[i-1].To, change.From, "entry %d does not chain", i)
		}
	}
	assert.Equal(t, domain.StatusApproved, pr.StatusHistory[len(pr.StatusHistory)-1].To)

	plan, err := s.repos.PaymentPlans.FindByAccountRef(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", plan.TransactionID)
	assert.Equal(t, pr.ActivatedPlanID, plan.ID)
	actions := make(map[domain.PlanAction]int)
	for _, ev := range plan.StatusHistory {
		actions[ev.Action]++
	}
	assert.Equal(t, 1, actions[domain.PlanActionCreate])
	assert.Zero(t, actions[domain.PlanActionExtend])
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), plan.DateUntil, time.Minute)
}

// postWebhook is safe to call off the test goroutine.
func (s *E2ETestSuite) postWebhook(body []byte, checksum string) error {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/webhooks/gateway", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.ChecksumHeader, checksum)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
