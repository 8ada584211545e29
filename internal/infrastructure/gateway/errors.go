package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// GatewayError is a non-2xx answer from the payment gateway.
type GatewayError struct {
	StatusCode int
	Type       string
	Reason     string
}

// ErrorResponse is the gateway's error body: {"error":{"type","reason","messages"}}.
type ErrorResponse struct {
	Error struct {
		Type     string          `json:"type"`
		Reason   string          `json:"reason"`
		Messages json.RawMessage `json:"messages"`
	} `json:"error"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Type, e.Reason, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// TimeoutError means the gateway did not answer within the call's deadline.
type TimeoutError struct {
	Operation string
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gateway %s timed out: %v", e.Operation, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// NetworkError means the gateway could not be reached: refused or reset
// connections, DNS failures, a connection closed before the response.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway %s unreachable: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

func IsTimeoutError(err error) bool {
	var tErr *TimeoutError
	return errors.As(err, &tErr)
}

func parseErrorBody(status int, body []byte) *GatewayError {
	gwErr := &GatewayError{StatusCode: status}

	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		gwErr.Reason = strings.TrimSpace(string(body))
		return gwErr
	}

	gwErr.Type = resp.Error.Type
	gwErr.Reason = resp.Error.Reason
	if gwErr.Reason == "" && len(resp.Error.Messages) > 0 {
		gwErr.Reason = flattenMessages(resp.Error.Messages)
	}
	if gwErr.Reason == "" {
		gwErr.Reason = fmt.Sprintf("HTTP %d", status)
	}
	return gwErr
}

// flattenMessages accepts both ["a","b"] and {"field":["a"]} shapes.
func flattenMessages(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	var byField map[string][]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		parts := make([]string, 0, len(byField))
		for field, msgs := range byField {
			parts = append(parts, field+": "+strings.Join(msgs, ", "))
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	return string(raw)
}

func IsNetworkError(err error) bool {
	var nErr *NetworkError
	return errors.As(err, &nErr)
}

// IsTransient reports a timeout or network failure; the next cycle may succeed.
func IsTransient(err error) bool {
	return IsTimeoutError(err) || IsNetworkError(err)
}
