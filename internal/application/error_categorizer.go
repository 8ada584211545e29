package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
	"github.com/DanielPopoola/membership-reconciler/internal/infrastructure/gateway"
)

// ErrorCategory represents the nature of an error for logging and retry decisions
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if gateway.IsTransient(err) {
		return CategoryTransient
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeAuthenticationFailed, ErrCodeValidationFailed, ErrCodeNotFound, ErrCodeDuplicateReference:
			return CategoryClientError
		case ErrCodeGatewayTimeout, ErrCodeGatewayUnavailable:
			return CategoryTransient
		case ErrCodeInternal:
			return CategoryInfrastructure
		}
	}

	if gwErr, ok := gateway.IsGatewayError(err); ok {
		if gwErr.IsRetryable() {
			return CategoryTransient
		}
		if gwErr.StatusCode == http.StatusNotFound {
			return CategoryClientError
		}
		return CategoryPermanent
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionIDConflict):
		return CategoryBusinessRule
	case errors.Is(err, domain.ErrPaymentRequestNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, domain.ErrMissingRequiredField),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidStatus):
		return CategoryClientError
	}

	// Default: Transient (next sweep retries)
	return CategoryTransient
}

// IsRetryable returns true if the next scheduled cycle may succeed
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, domain.ErrMissingRequiredField),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateReference),
		errors.Is(err, domain.ErrTransactionIDConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentRequestNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case gateway.IsTimeoutError(err):
		return http.StatusGatewayTimeout
	case gateway.IsNetworkError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	if _, ok := gateway.IsGatewayError(err); ok {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// ToErrorCode gives a stable error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if gateway.IsTimeoutError(err) {
		return ErrCodeGatewayTimeout
	}
	if gateway.IsNetworkError(err) {
		return ErrCodeGatewayUnavailable
	}
	if gwErr, ok := gateway.IsGatewayError(err); ok && gwErr.Type != "" {
		return "GATEWAY_" + strings.ToUpper(gwErr.Type)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}

	return ErrCodeInternal
}
