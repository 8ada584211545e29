package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

const staleSweeperName = "stale"

// StaleSweeper periodically re-polls CREATED/PENDING requests that have gone
// quiet, and re-activates APPROVED requests whose activation never completed.
type StaleSweeper struct {
	requests   StaleRequestFinder
	reconciler TransactionReconciler
	activation ActivationEnsurer
	metrics    application.Metrics
	interval   time.Duration
	threshold  time.Duration
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

func NewStaleSweeper(
	requests StaleRequestFinder,
	reconciler TransactionReconciler,
	activation ActivationEnsurer,
	metrics application.Metrics,
	interval time.Duration,
	threshold time.Duration,
	batchSize int,
	logger *slog.Logger,
) *StaleSweeper {
	return &StaleSweeper{
		requests:   requests,
		reconciler: reconciler,
		activation: activation,
		metrics:    metrics,
		interval:   interval,
		threshold:  threshold,
		batchSize:  batchSize,
		logger:     logger,
		now:        time.Now,
	}
}

func (w *StaleSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("starting stale sweeper",
		"interval", w.interval,
		"threshold", w.threshold,
		"batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping stale sweeper")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep, walking every stale request in keyset pages
// of batchSize. Items are processed sequentially; a failing item is logged and
// left for the next cycle.
func (w *StaleSweeper) RunOnce(ctx context.Context) Report {
	started := w.now()
	var report Report
	defer func() {
		w.metrics.ObserveSweep(staleSweeperName, report.Processed, report.Failed, w.now().Sub(started))
	}()

	cutoff := started.Add(-w.threshold)
	var cursor domain.StaleCursor
	for page := 1; ; page++ {
		stale, err := w.requests.FindStale(ctx, cutoff, cursor, w.batchSize)
		if err != nil {
			w.logger.Error("failed to fetch stale payment requests", "page", page, "error", err)
			break
		}
		if len(stale) == 0 {
			break
		}
		report.Found += len(stale)
		w.logger.Info("sweeping stale payment requests", "page", page, "count", len(stale), "cutoff", cutoff)

		for _, pr := range stale {
			if ctx.Err() != nil {
				w.logger.Info("stale sweep interrupted", "remaining", report.Found-report.Processed-report.Skipped-report.Failed)
				return w.finish(report)
			}
			w.sweep(ctx, pr, &report)
		}

		if len(stale) < w.batchSize {
			break
		}
		cursor = domain.CursorAfter(stale[len(stale)-1])
	}

	if report.Found == 0 {
		return report
	}
	return w.finish(report)
}

func (w *StaleSweeper) sweep(ctx context.Context, pr *domain.PaymentRequest, report *Report) {
	switch {
	case pr.NeedsActivation():
		w.reactivate(ctx, pr, report)
	case pr.TransactionID == "":
		w.logger.Debug("stale request has no transaction id yet, skipping", "reference", pr.Reference)
		report.Skipped++
	default:
		w.repoll(ctx, pr, report)
	}
}

func (w *StaleSweeper) finish(report Report) Report {
	w.logger.Info("stale sweep finished",
		"found", report.Found,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report
}

func (w *StaleSweeper) repoll(ctx context.Context, pr *domain.PaymentRequest, report *Report) {
	updated, err := w.reconciler.FetchAndReconcile(ctx, pr.TransactionID, domain.SourceReconcile)
	if err != nil {
		report.Failed++
		logFailure(w.logger, "stale request reconciliation failed", err,
			"reference", pr.Reference,
			"transaction_id", pr.TransactionID)
		return
	}
	report.Processed++
	w.logger.Info("reconciled stale payment request",
		"reference", pr.Reference,
		"previous_status", pr.Status,
		"status", updated.Status)
}

func (w *StaleSweeper) reactivate(ctx context.Context, pr *domain.PaymentRequest, report *Report) {
	amount := domain.Money{Amount: pr.AmountCents, Currency: pr.Currency}
	plan, err := w.activation.EnsureActivation(ctx, pr, amount, domain.SourceReconcile)
	if err != nil {
		report.Failed++
		logFailure(w.logger, "re-activation of approved request failed", err,
			"reference", pr.Reference,
			"transaction_id", pr.TransactionID)
		return
	}
	report.Processed++
	if plan != nil {
		w.logger.Info("re-activated approved payment request", "reference", pr.Reference, "plan_id", plan.ID)
	}
}

// logFailure picks severity from the error category: transient failures are
// expected to clear on the next cycle.
func logFailure(logger *slog.Logger, msg string, err error, args ...any) {
	category := application.CategorizeError(err)
	args = append(args, "category", category, "error", err)
	if category == application.CategoryTransient {
		logger.Warn(msg, args...)
		return
	}
	logger.Error(msg, args...)
}
