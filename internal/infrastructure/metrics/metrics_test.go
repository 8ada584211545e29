package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.ObserveTransition(domain.SourceWebhook, domain.OutcomeApplied)
	r.ObserveTransition(domain.SourceWebhook, domain.OutcomeApplied)
	r.ObserveTransition(domain.SourcePoll, domain.OutcomeIdempotent)
	r.ObserveActivation(domain.PlanActionCreate)
	r.ObserveActivationFailure(domain.SourceReconcile)
	r.ObserveSweep("stale", 5, 1, time.Second)
	r.ObserveGatewayCall("fetch_transaction", 30*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("webhook", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("poll", "idempotent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activations.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activationFailures.WithLabelValues("reconcile")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.sweepItems.WithLabelValues("stale", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sweepItems.WithLabelValues("stale", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gatewayCalls.WithLabelValues("fetch_transaction", "error")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveActivation(domain.PlanActionExtend)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `reconciler_activations_total{action="extend"} 1`)
}
