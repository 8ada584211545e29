// Package gateway talks to the payment gateway's transaction API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DanielPopoola/membership-reconciler/internal/config"
)

const (
	testKeyPrefix       = "prv_test_"
	productionKeyPrefix = "prv_prod_"

	defaultFetchTimeout = 10 * time.Second
	defaultListTimeout  = 20 * time.Second
)

// CallObserver receives the latency and outcome of every gateway call.
type CallObserver interface {
	ObserveGatewayCall(operation string, elapsed time.Duration, err error)
}

type Client struct {
	baseURL      string
	privateKey   string
	httpClient   *http.Client
	fetchTimeout time.Duration
	listTimeout  time.Duration
	observer     CallObserver
	logger       *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient fails when the private key flavor does not match the selected environment.
func NewClient(cfg config.GatewayConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	key := cfg.PrivateKey()
	if err := checkKeyFlavor(key, cfg.IsProduction()); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL(), "/"),
		privateKey:   key,
		httpClient:   &http.Client{},
		fetchTimeout: cfg.FetchTimeout,
		listTimeout:  cfg.ListTimeout,
		logger:       logger,
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	if c.listTimeout <= 0 {
		c.listTimeout = defaultListTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func checkKeyFlavor(key string, production bool) error {
	switch {
	case key == "":
		return errors.New("gateway private key is empty")
	case production && !strings.HasPrefix(key, productionKeyPrefix):
		return fmt.Errorf("gateway environment is production but the private key is not a %s key", productionKeyPrefix)
	case !production && !strings.HasPrefix(key, testKeyPrefix):
		return fmt.Errorf("gateway environment is test but the private key is not a %s key", testKeyPrefix)
	}
	return nil
}

// FetchTransaction returns the current state of a single transaction.
func (c *Client) FetchTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, errors.New("transaction id is required")
	}
	endpoint := fmt.Sprintf("%s/transactions/%s", c.baseURL, url.PathEscape(id))

	env, err := getJSON[transactionEnvelope](c, ctx, "fetch_transaction", endpoint, c.fetchTimeout)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &GatewayError{StatusCode: http.StatusOK, Type: "EMPTY_RESPONSE", Reason: "response carried no transaction"}
	}

	tx, err := decodeTransaction(env.Data)
	if err != nil {
		return nil, fmt.Errorf("error decoding transaction: %w", err)
	}
	return &tx, nil
}

// ListTransactions returns one page of transactions created within [From, Until].
func (c *Client) ListTransactions(ctx context.Context, q ListQuery) (*TransactionPage, error) {
	params := url.Values{}
	params.Set("from_date", q.From.UTC().Format(time.RFC3339))
	params.Set("until_date", q.Until.UTC().Format(time.RFC3339))
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	endpoint := fmt.Sprintf("%s/transactions?%s", c.baseURL, params.Encode())

	env, err := getJSON[listEnvelope](c, ctx, "list_transactions", endpoint, c.listTimeout)
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{Meta: env.Meta, Items: make([]Transaction, 0, len(env.Data))}
	if page.Meta.Page == 0 {
		page.Meta.Page = max(q.Page, 1)
	}
	for _, raw := range env.Data {
		tx, err := decodeTransaction(raw)
		if err != nil {
			c.logger.Warn("skipping undecodable gateway transaction", "error", err)
			continue
		}
		page.Items = append(page.Items, tx)
	}
	return page, nil
}

func getJSON[Resp any](c *Client, ctx context.Context, operation, endpoint string, timeout time.Duration) (resp *Resp, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveGatewayCall(operation, time.Since(start), err)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.privateKey)
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, operation, "error making request", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(ctx, operation, "error reading response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, parseErrorBody(httpResp.StatusCode, body)
	}

	var out Resp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	return &out, nil
}

// transportError classifies a failure below HTTP. Caller cancellation is
// returned as is; deadlines and connection failures are transient kinds.
func transportError(ctx context.Context, operation, msg string, err error) error {
	if ctx.Err() == nil {
		switch {
		case isTimeout(err):
			return &TimeoutError{Operation: operation, Err: err}
		case isNetworkFailure(err):
			return &NetworkError{Operation: operation, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isNetworkFailure(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) ||
		errors.As(err, &dnsErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
