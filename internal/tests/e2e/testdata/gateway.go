package testdata

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

const PrivateKey = "prv_test_e2e"

// Transaction is the gateway-side record served by FakeGateway.
type Transaction struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// FakeGateway serves the two read endpoints the reconciler polls.
type FakeGateway struct {
	Server *httptest.Server

	mu           sync.Mutex
	transactions []Transaction
	fetches      int
}

func NewFakeGateway() *FakeGateway {
	g := &FakeGateway{}

	r := chi.NewRouter()
	r.Use(g.requireKey)
	r.Get("/transactions/{id}", g.fetch)
	r.Get("/transactions", g.list)

	g.Server = httptest.NewServer(r)
	return g
}

func (g *FakeGateway) URL() string { return g.Server.URL }

func (g *FakeGateway) Close() { g.Server.Close() }

func (g *FakeGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions = nil
	g.fetches = 0
}

// Put adds or replaces a transaction by id.
func (g *FakeGateway) Put(tx Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tx.Currency == "" {
		tx.Currency = "COP"
	}
	if tx.CreatedAt == "" {
		tx.CreatedAt = "2026-01-01T00:00:00Z"
	}
	for i := range g.transactions {
		if g.transactions[i].ID == tx.ID {
			g.transactions[i] = tx
			return
		}
	}
	g.transactions = append(g.transactions, tx)
}

func (g *FakeGateway) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

func (g *FakeGateway) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+PrivateKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]string{"type": "INVALID_ACCESS_TOKEN", "reason": "bad key"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *FakeGateway) fetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	g.mu.Lock()
	g.fetches++
	var found *Transaction
	for i := range g.transactions {
		if g.transactions[i].ID == id {
			tx := g.transactions[i]
			found = &tx
		}
	}
	g.mu.Unlock()

	if found == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"type": "NOT_FOUND_ERROR", "reason": "transaction not found"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": found})
}

func (g *FakeGateway) list(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	g.mu.Lock()
	matched := make([]Transaction, 0, len(g.transactions))
	for _, tx := range g.transactions {
		if status == "" || tx.Status == status {
			matched = append(matched, tx)
		}
	}
	g.mu.Unlock()

	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	writeJSON(w, http.StatusOK, map[string]any{
		"data": matched[start:end],
		"meta": map[string]int{"page": page, "page_size": size, "total_results": len(matched)},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
