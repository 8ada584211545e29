package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

const (
	approvedSweeperName = "approved"
	maxApprovedPages    = 1000
)

// ApprovedSweeper lists APPROVED gateway transactions over a recent window and
// makes sure each one is reflected locally, catching webhooks that never arrived.
type ApprovedSweeper struct {
	gateway    TransactionLister
	reconciler TransactionReconciler
	metrics    application.Metrics
	interval   time.Duration
	lookback   time.Duration
	pageSize   int
	logger     *slog.Logger
	now        func() time.Time
}

func NewApprovedSweeper(
	gatewayClient TransactionLister,
	reconciler TransactionReconciler,
	metrics application.Metrics,
	interval time.Duration,
	lookback time.Duration,
	pageSize int,
	logger *slog.Logger,
) *ApprovedSweeper {
	return &ApprovedSweeper{
		gateway:    gatewayClient,
		reconciler: reconciler,
		metrics:    metrics,
		interval:   interval,
		lookback:   lookback,
		pageSize:   pageSize,
		logger:     logger,
		now:        time.Now,
	}
}

func (w *ApprovedSweeper) Start(ctx context.Context) {
	w.logger.Info("approved sweeper started", "interval", w.interval, "lookback", w.lookback)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("approved sweeper stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce walks every page of the window. A list failure ends the cycle early.
func (w *ApprovedSweeper) RunOnce(ctx context.Context) Report {
	started := w.now()
	var report Report
	defer func() {
		w.metrics.ObserveSweep(approvedSweeperName, report.Processed, report.Failed, w.now().Sub(started))
	}()

	query := gateway.ListQuery{
		From:     started.Add(-w.lookback).UTC(),
		Until:    started.UTC(),
		PageSize: w.pageSize,
		Status:   string(domain.StatusApproved),
	}

	for page := 1; page <= maxApprovedPages; page++ {
		if ctx.Err() != nil {
			break
		}
		query.Page = page

		result, err := w.gateway.ListTransactions(ctx, query)
		if err != nil {
			logFailure(w.logger, "failed to list approved transactions", err, "page", page)
			break
		}
		if len(result.Items) == 0 {
			break
		}

		report.Found += len(result.Items)
		for i := range result.Items {
			w.reconcile(ctx, &result.Items[i], &report)
		}

		if page >= result.Meta.LastPage() {
			break
		}
	}

	w.logger.Info("approved sweep finished",
		"found", report.Found,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report
}

func (w *ApprovedSweeper) reconcile(ctx context.Context, tx *gateway.Transaction, report *Report) {
	_, err := w.reconciler.Reconcile(ctx, tx, domain.SourceReconcile)
	if err == nil {
		report.Processed++
		return
	}

	var svcErr *application.ServiceError
	if errors.As(err, &svcErr) && svcErr.Code == application.ErrCodeNotFound {
		report.Skipped++
		w.logger.Info("approved transaction has no correlatable payment request, skipping",
			"transaction_id", tx.ID,
			"reference", tx.Reference)
		return
	}

	report.Failed++
	logFailure(w.logger, "approved transaction reconciliation failed", err,
		"transaction_id", tx.ID,
		"reference", tx.Reference)
}
