// Package webhook authenticates gateway push events and signs checkout payloads.
package webhook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

// ChecksumHeader carries the gateway's digest of the event.
const ChecksumHeader = "X-Event-Checksum"

const replayWindow = 5 * time.Minute

var (
	errMissingHeader    = errors.New("missing checksum header")
	errChecksumMismatch = errors.New("checksum mismatch")
	errMissingSecret    = errors.New("events secret not configured for the current environment")
)

// Authenticator verifies the gateway's checksum protocol.
// The secret is chosen once from configuration, never from the payload.
type Authenticator struct {
	secret      string
	environment string
	audit       application.AuditLog
	logger      *slog.Logger
	now         func() time.Time
}

func NewAuthenticator(secret, environment string, audit application.AuditLog, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		secret:      secret,
		environment: environment,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

type signedEvent struct {
	Signature *struct {
		Properties json.RawMessage `json:"properties"`
		Checksum   any             `json:"checksum"`
		Timestamp  any             `json:"timestamp"`
	} `json:"signature"`
	Data      map[string]any `json:"data"`
	Timestamp any            `json:"timestamp"`
	SentAt    any            `json:"sent_at"`
}

// Verify returns nil only when the recomputed digest equals both the header
// and the body checksum.
func (a *Authenticator) Verify(ctx context.Context, headers http.Header, body []byte) error {
	headerChecksum := strings.ToUpper(strings.TrimSpace(headers.Get(ChecksumHeader)))
	if headerChecksum == "" {
		a.reject(ctx, "webhook auth: missing checksum header", nil, map[string]any{"has_header": false})
		return application.NewAuthenticationError(errMissingHeader)
	}

	var event signedEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		a.reject(ctx, "webhook auth: body is not JSON", nil, nil)
		return application.NewValidationError(fmt.Errorf("decode webhook body: %w", err))
	}

	if event.Signature == nil || event.Data == nil {
		a.reject(ctx, "webhook auth: signature or data missing", nil, map[string]any{
			"has_signature": event.Signature != nil,
			"has_data":      event.Data != nil,
		})
		return application.NewValidationError(errors.New("signature and data are required"))
	}

	var properties []string
	if err := json.Unmarshal(event.Signature.Properties, &properties); err != nil || properties == nil {
		a.reject(ctx, "webhook auth: signature.properties invalid", nil, nil)
		return application.NewValidationError(errors.New("signature.properties must be a list of strings"))
	}

	timestamp, ok := scalarString(firstPresent(event.Signature.Timestamp, event.Timestamp, event.SentAt))
	if !ok {
		a.reject(ctx, "webhook auth: timestamp invalid", nil, map[string]any{"has_timestamp": false})
		return application.NewValidationError(errors.New("signature.timestamp must be a string or number"))
	}

	declared, ok := event.Signature.Checksum.(string)
	if !ok {
		a.reject(ctx, "webhook auth: signature.checksum invalid", nil, map[string]any{"has_checksum": false})
		return application.NewValidationError(errors.New("signature.checksum must be a string"))
	}

	a.checkReplayWindow(ctx, timestamp)

	if a.secret == "" {
		a.audit.Write(ctx, application.AuditEntry{
			Level:   application.AuditError,
			Message: "webhook auth: events secret not configured",
			Source:  domain.SourceWebhook,
			Meta:    map[string]any{"env": a.environment},
		})
		return application.NewAuthenticationError(errMissingSecret)
	}

	local := a.digest(properties, event.Data, timestamp)
	remote := strings.ToUpper(strings.TrimSpace(declared))

	if !constantTimeEqual(local, remote) || !constantTimeEqual(local, headerChecksum) {
		a.reject(ctx, "webhook auth: checksum mismatch", event.Data, map[string]any{
			"has_header":   true,
			"props_count":  len(properties),
			"ts_provided":  timestamp != "",
			"header_match": constantTimeEqual(remote, headerChecksum),
		})
		return application.NewAuthenticationError(errChecksumMismatch)
	}

	ref, txID := correlation(event.Data)
	a.audit.Write(ctx, application.AuditEntry{
		Level:         application.AuditInfo,
		Message:       "webhook auth: verified",
		Source:        domain.SourceWebhook,
		Reference:     ref,
		TransactionID: txID,
		Meta:          map[string]any{"props_count": len(properties), "env": a.environment},
	})
	return nil
}

func (a *Authenticator) digest(properties []string, data map[string]any, timestamp string) string {
	var b strings.Builder
	for _, path := range properties {
		if v, ok := scalarString(lookup(data, path)); ok {
			b.WriteString(v)
		}
	}
	b.WriteString(timestamp)
	b.WriteString(a.secret)

	sum := sha256.Sum256([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (a *Authenticator) checkReplayWindow(ctx context.Context, timestamp string) {
	millis, err := strconv.ParseFloat(timestamp, 64)
	if err != nil {
		return
	}
	sent := time.UnixMilli(int64(millis))
	skew := a.now().Sub(sent)
	if skew < 0 {
		skew = -skew
	}
	if skew <= replayWindow {
		return
	}
	a.logger.Warn("webhook timestamp outside replay window", "timestamp", timestamp, "skew", skew.String())
	a.audit.Write(ctx, application.AuditEntry{
		Level:   application.AuditWarn,
		Message: "webhook auth: timestamp outside window",
		Source:  domain.SourceWebhook,
		Meta:    map[string]any{"ts": timestamp},
	})
}

func (a *Authenticator) reject(ctx context.Context, message string, data map[string]any, meta map[string]any) {
	ref, txID := correlation(data)
	a.logger.Warn(message, "reference", ref, "transaction_id", txID)
	a.audit.Write(ctx, application.AuditEntry{
		Level:         application.AuditWarn,
		Message:       message,
		Source:        domain.SourceWebhook,
		Reference:     ref,
		TransactionID: txID,
		Meta:          meta,
	})
}

func correlation(data map[string]any) (reference, transactionID string) {
	reference, _ = scalarString(lookup(data, "transaction.reference"))
	transactionID, _ = scalarString(lookup(data, "transaction.id"))
	return reference, transactionID
}

// lookup walks a dotted path; a missing segment yields nil.
func lookup(data map[string]any, path string) any {
	var cur any = data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// scalarString renders JSON scalars the way the gateway concatenates them.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
