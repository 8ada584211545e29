package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/membership-reconciler/internal/application"
	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

type Response struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON wraps data in the success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

// WriteError maps application errors to HTTP responses. Internal and gateway
// failures expose only the service message, never the wrapped cause.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(application.ToHTTPStatus(err))
	_ = json.NewEncoder(w).Encode(Response{Error: errorDetail(err)})
}

// WriteValidationError reports field-level problems as VALIDATION_FAILED.
func WriteValidationError(w http.ResponseWriter, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(Response{Error: &ErrorDetail{
		Code:    application.ErrCodeValidationFailed,
		Message: "Invalid input",
		Details: details,
	}})
}

func errorDetail(err error) *ErrorDetail {
	detail := &ErrorDetail{
		Code:    application.ToErrorCode(err),
		Message: "An internal error occurred",
	}

	svcErr, ok := application.IsServiceError(err)
	if !ok {
		return detail
	}
	detail.Message = svcErr.Message

	switch svcErr.Code {
	case application.ErrCodeValidationFailed, application.ErrCodeNotFound, application.ErrCodeDuplicateReference:
		var domainErr *domain.DomainError
		if errors.As(svcErr.Err, &domainErr) {
			detail.Details = map[string]string{"reason": domainErr.Message}
		}
	}
	return detail
}
