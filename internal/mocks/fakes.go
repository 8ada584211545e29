package mocks

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

// AuditLog records every entry in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []application.AuditEntry
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Write(ctx context.Context, entry application.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *AuditLog) Entries() []application.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]application.AuditEntry(nil), a.entries...)
}

// Messages lists the entry messages in write order.
func (a *AuditLog) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Message)
	}
	return out
}

type Notification struct {
	AccountRef   string
	TemplateKind string
	Data         map[string]any
}

type Notifier struct {
	mu   sync.Mutex
	sent []Notification

	NotifyAccountEmailFn func(ctx context.Context, accountRef, templateKind string, data map[string]any) error
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) NotifyAccountEmail(ctx context.Context, accountRef, templateKind string, data map[string]any) error {
	n.mu.Lock()
	n.sent = append(n.sent, Notification{AccountRef: accountRef, TemplateKind: templateKind, Data: data})
	n.mu.Unlock()
	if n.NotifyAccountEmailFn != nil {
		return n.NotifyAccountEmailFn(ctx, accountRef, templateKind, data)
	}
	return nil
}

func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// GatewayClient serves transactions from an in-memory table unless overridden.
type GatewayClient struct {
	mu           sync.Mutex
	transactions map[string]gateway.Transaction
	fetches      []string

	FetchTransactionFn func(ctx context.Context, id string) (*gateway.Transaction, error)
	ListTransactionsFn func(ctx context.Context, q gateway.ListQuery) (*gateway.TransactionPage, error)
}

func NewGatewayClient() *GatewayClient {
	return &GatewayClient{transactions: make(map[string]gateway.Transaction)}
}

func (g *GatewayClient) Put(tx gateway.Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tx.Raw == nil {
		tx.Raw = []byte(fmt.Sprintf(`{"id":%q,"reference":%q,"status":%q,"amount_in_cents":%d}`,
			tx.ID, tx.Reference, tx.Status, tx.AmountInCents))
	}
	g.transactions[tx.ID] = tx
}

func (g *GatewayClient) FetchTransaction(ctx context.Context, id string) (*gateway.Transaction, error) {
	g.mu.Lock()
	g.fetches = append(g.fetches, id)
	g.mu.Unlock()

	if g.FetchTransactionFn != nil {
		return g.FetchTransactionFn(ctx, id)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	tx, ok := g.transactions[id]
	if !ok {
		return nil, &gateway.GatewayError{StatusCode: http.StatusNotFound, Type: "NOT_FOUND_ERROR", Reason: "transaction not found"}
	}
	return &tx, nil
}

func (g *GatewayClient) ListTransactions(ctx context.Context, q gateway.ListQuery) (*gateway.TransactionPage, error) {
	if g.ListTransactionsFn != nil {
		return g.ListTransactionsFn(ctx, q)
	}
	return &gateway.TransactionPage{Meta: gateway.PageMeta{Page: q.Page, PageSize: q.PageSize}}, nil
}

// Fetches lists the transaction ids requested so far.
func (g *GatewayClient) Fetches() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetches...)
}

type Authenticator struct {
	VerifyFn func(ctx context.Context, headers http.Header, body []byte) error
}

func (a *Authenticator) Verify(ctx context.Context, headers http.Header, body []byte) error {
	if a.VerifyFn != nil {
		return a.VerifyFn(ctx, headers, body)
	}
	return nil
}

// Metrics counts observations by label.
type Metrics struct {
	mu          sync.Mutex
	Transitions map[string]int
	Activations map[domain.PlanAction]int
	Failures    int
	Sweeps      map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{
		Transitions: make(map[string]int),
		Activations: make(map[domain.PlanAction]int),
		Sweeps:      make(map[string]int),
	}
}

func (m *Metrics) ObserveTransition(source domain.Source, outcome domain.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[string(source)+"/"+string(outcome)]++
}

func (m *Metrics) ObserveActivation(action domain.PlanAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Activations[action]++
}

func (m *Metrics) ObserveActivationFailure(source domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures++
}

func (m *Metrics) ObserveSweep(sweeper string, processed, failed int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sweeps[sweeper]++
}

func (m *Metrics) Transition(source domain.Source, outcome domain.Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Transitions[string(source)+"/"+string(outcome)]
}
