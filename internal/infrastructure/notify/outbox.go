// Package notify delivers account emails through a structured-log outbox.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

var subjects = map[string]string{
	"subscription-activated": "Tu membresía está activa",
}

// Outbox writes one structured record per email; a mail relay tails the log.
type Outbox struct {
	logger *slog.Logger
}

func NewOutbox(logger *slog.Logger) *Outbox {
	return &Outbox{logger: logger}
}

// NotifyAccountEmail queues templateKind for the account. Only field names of
// data are logged since it may carry personal details.
func (o *Outbox) NotifyAccountEmail(ctx context.Context, accountRef, templateKind string, data map[string]any) error {
	subject, ok := subjects[templateKind]
	if !ok {
		return fmt.Errorf("unknown email template %q", templateKind)
	}
	if accountRef == "" {
		return fmt.Errorf("email %q has no recipient account", templateKind)
	}

	fields := make([]string, 0, len(data))
	for k := range data {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	o.logger.InfoContext(ctx, "email queued",
		"outbox", true,
		"account_ref", accountRef,
		"template", templateKind,
		"subject", subject,
		"fields", fields)
	return nil
}
