package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two DomainErrors by code so sentinels work with errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

const (
	ErrCodePaymentRequestNotFound = "PAYMENT_REQUEST_NOT_FOUND"
	ErrCodeDuplicateReference     = "DUPLICATE_REFERENCE"
	ErrCodeInvalidStatus          = "INVALID_STATUS"
	ErrCodeTransactionIDConflict  = "TRANSACTION_ID_CONFLICT"
	ErrCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	ErrCodePlanNotFound           = "PLAN_NOT_FOUND"
	ErrCodeMissingRequiredField   = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidAmount          = "INVALID_AMOUNT"
)

var (
	ErrPaymentRequestNotFound = &DomainError{Code: ErrCodePaymentRequestNotFound, Message: "payment request not found"}
	ErrDuplicateReference     = &DomainError{Code: ErrCodeDuplicateReference, Message: "payment request reference already exists"}
	ErrInvalidStatus          = &DomainError{Code: ErrCodeInvalidStatus, Message: "unrecognised payment status"}
	ErrTransactionIDConflict  = &DomainError{Code: ErrCodeTransactionIDConflict, Message: "transaction id already claimed by another payment request"}
	ErrAccountNotFound        = &DomainError{Code: ErrCodeAccountNotFound, Message: "membership account not found"}
	ErrPlanNotFound           = &DomainError{Code: ErrCodePlanNotFound, Message: "payment plan not found"}
	ErrMissingRequiredField   = &DomainError{Code: ErrCodeMissingRequiredField, Message: "missing required field"}
	ErrInvalidAmount          = &DomainError{Code: ErrCodeInvalidAmount, Message: "invalid amount"}
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidStatusError(status string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidStatus,
		Message: fmt.Sprintf("unrecognised payment status %q", status),
	}
}

func NewPaymentRequestNotFoundError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentRequestNotFound,
		Message: fmt.Sprintf("payment request %s not found", key),
	}
}

func NewDuplicateReferenceError(reference string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateReference,
		Message: fmt.Sprintf("payment request with reference %s already exists", reference),
	}
}

func NewTransactionIDConflictError(transactionID string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionIDConflict,
		Message: fmt.Sprintf("transaction id %s already claimed", transactionID),
		Err:     err,
	}
}

func NewAccountNotFoundError(userID, organizationID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAccountNotFound,
		Message: fmt.Sprintf("no membership account for user %s in organization %s", userID, organizationID),
	}
}

func NewPlanNotFoundError(key string) *DomainError {
	return &DomainError{
		Code:    ErrCodePlanNotFound,
		Message: fmt.Sprintf("payment plan for %s not found", key),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
