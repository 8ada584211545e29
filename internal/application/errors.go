package application

import (
	"errors"
	"fmt"
	"net/http"
)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeDuplicateReference   = "DUPLICATE_REFERENCE"
	ErrCodeGatewayTimeout       = "GATEWAY_TIMEOUT"
	ErrCodeGatewayUnavailable   = "GATEWAY_UNAVAILABLE"
	ErrCodeGatewayError         = "GATEWAY_ERROR"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// ErrAuthentication is the root cause carried by every authentication failure.
var ErrAuthentication = errors.New("webhook authentication failed")

func NewAuthenticationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAuthenticationFailed,
		Message:    "Webhook authentication failed",
		HTTPStatus: http.StatusUnauthorized,
		Err:        err,
	}
}

func NewValidationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeValidationFailed,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewDuplicateReferenceError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeDuplicateReference,
		Message:    "Reference already exists",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewGatewayTimeoutError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayTimeout,
		Message:    "Payment gateway timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewGatewayUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayUnavailable,
		Message:    "Payment gateway is unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewGatewayError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeGatewayError,
		Message:    "Payment gateway returned an error",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
