// Package audit records the reconciliation trail of every payment.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
)

const writeTimeout = 2 * time.Second

// Store persists audit entries. The postgres AuditLogRepository satisfies it.
type Store interface {
	Insert(ctx context.Context, entry application.AuditEntry) error
}

// Sink mirrors every entry to slog and, when a store is set, to the database.
// Write never fails the caller.
type Sink struct {
	store  Store
	logger *slog.Logger
}

func NewSink(store Store, logger *slog.Logger) *Sink {
	return &Sink{store: store, logger: logger}
}

func (s *Sink) Write(ctx context.Context, entry application.AuditEntry) {
	s.logger.Log(ctx, slogLevel(entry.Level), entry.Message, attrs(entry)...)

	if s.store == nil {
		return
	}

	// The trail must outlive a cancelled request.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := s.store.Insert(writeCtx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			"message", entry.Message,
			"reference", entry.Reference,
			"transaction_id", entry.TransactionID,
			"error", err)
	}
}

func slogLevel(level application.AuditLevel) slog.Level {
	switch level {
	case application.AuditWarn:
		return slog.LevelWarn
	case application.AuditError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrs(e application.AuditEntry) []any {
	out := []any{"audit", true}
	add := func(key, value string) {
		if value != "" {
			out = append(out, key, value)
		}
	}
	add("source", string(e.Source))
	add("reference", e.Reference)
	add("transaction_id", e.TransactionID)
	add("organization_id", e.OrganizationID)
	add("user_id", e.UserID)
	add("status", string(e.Status))
	if e.AmountCents != nil {
		out = append(out, "amount_cents", *e.AmountCents)
	}
	add("currency", e.Currency)
	if len(e.Meta) > 0 {
		out = append(out, "meta", e.Meta)
	}
	return out
}
