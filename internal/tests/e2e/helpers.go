package e2e

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/webhook"
	"github.com/DanielPopoola/membership-reconciler/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/membership-reconciler/internal/tests/e2e/testdata"
	"github.com/stretchr/testify/require"
)

// TestClient wraps HTTP calls to the reconciler
type TestClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends the request and returns the status code and decoded envelope.
func (c *TestClient) do(t *testing.T, method, path string, body []byte, headers map[string]string) (int, apiResponse) {
	t.Helper()

	httpReq, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse
	if len(bodyBytes) > 0 {
		require.NoError(t, json.Unmarshal(bodyBytes, &out), "body: %s", bodyBytes)
	}
	return resp.StatusCode, out
}

func (c *TestClient) CreatePaymentRequest(t *testing.T, req handlers.CreatePaymentRequestBody) (*handlers.PaymentRequestResponse, error) {
	body, _ := json.Marshal(req)
	status, resp := c.do(t, http.MethodPost, "/payment-requests", body, nil)
	return decode[handlers.PaymentRequestResponse](t, status, resp)
}

func (c *TestClient) LinkTransaction(t *testing.T, reference, transactionID string) (*handlers.PaymentRequestResponse, error) {
	body, _ := json.Marshal(handlers.LinkTransactionBody{TransactionID: transactionID})
	status, resp := c.do(t, http.MethodPost, "/payment-requests/"+reference+"/link", body, nil)
	return decode[handlers.PaymentRequestResponse](t, status, resp)
}

func (c *TestClient) GetByReference(t *testing.T, reference string) (*handlers.PaymentRequestResponse, error) {
	status, resp := c.do(t, http.MethodGet, "/payment-requests/by-reference/"+reference, nil, nil)
	return decode[handlers.PaymentRequestResponse](t, status, resp)
}

func (c *TestClient) Sync(t *testing.T, transactionID string) (*handlers.PaymentRequestResponse, error) {
	status, resp := c.do(t, http.MethodPost, "/transactions/"+transactionID+"/sync", nil, nil)
	return decode[handlers.PaymentRequestResponse](t, status, resp)
}

func (c *TestClient) GetPlan(t *testing.T, accountRef string) (*handlers.PaymentPlanResponse, error) {
	status, resp := c.do(t, http.MethodGet, "/payment-plans/"+accountRef, nil, nil)
	return decode[handlers.PaymentPlanResponse](t, status, resp)
}

// SendWebhook posts the event and returns only the status code.
func (c *TestClient) SendWebhook(t *testing.T, body []byte, checksum string) int {
	status, _ := c.do(t, http.MethodPost, "/webhooks/gateway", body, map[string]string{
		webhook.ChecksumHeader: checksum,
	})
	return status
}

func decode[T any](t *testing.T, status int, resp apiResponse) (*T, error) {
	t.Helper()
	if status >= 400 {
		if resp.Error != nil {
			return nil, fmt.Errorf("status %d: %s: %s", status, resp.Error.Code, resp.Error.Message)
		}
		return nil, fmt.Errorf("status %d", status)
	}

	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return &out, nil
}

var signedProperties = []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"}

// SignedEvent builds a transaction.updated event and its checksum the way the
// gateway does: SHA-256 over the property values, the timestamp and the secret.
func SignedEvent(t *testing.T, secret string, tx testdata.Transaction, sentAt time.Time) ([]byte, string) {
	t.Helper()

	timestamp := sentAt.UnixMilli()
	var b strings.Builder
	b.WriteString(tx.ID)
	b.WriteString(tx.Status)
	b.WriteString(strconv.FormatInt(tx.AmountInCents, 10))
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(secret)
	sum := sha256.Sum256([]byte(b.String()))
	checksum := strings.ToUpper(hex.EncodeToString(sum[:]))

	if tx.Currency == "" {
		tx.Currency = "COP"
	}
	body, err := json.Marshal(map[string]any{
		"event": "transaction.updated",
		"data":  map[string]any{"transaction": tx},
		"signature": map[string]any{
			"properties": signedProperties,
			"checksum":   checksum,
			"timestamp":  timestamp,
		},
		"sent_at": sentAt.UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	return body, checksum
}
