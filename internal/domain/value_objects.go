package domain

import (
	"errors"
	"strings"
)

// DefaultCurrency is used whenever a caller or gateway omits the currency.
const DefaultCurrency = "COP"

// Money is an amount in minor units (cents).
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, errors.New("amount cannot be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Correlation holds the identifiers encoded in a structured payment reference.
type Correlation struct {
	OrganizationID string
	UserID         string
}

// ReferencePrefix marks references minted by the membership checkout.
const ReferencePrefix = "membresia-"

// ParseReference extracts (organizationId, userId) from references shaped like
// membresia-{organizationId}-{userId}-{suffix}. ok is false for any other shape.
func ParseReference(reference string) (Correlation, bool) {
	if !strings.HasPrefix(reference, ReferencePrefix) {
		return Correlation{}, false
	}
	parts := strings.SplitN(strings.TrimPrefix(reference, ReferencePrefix), "-", 3)
	if len(parts) < 3 {
		return Correlation{}, false
	}
	orgID, userID := parts[0], parts[1]
	if orgID == "" || userID == "" || strings.ContainsAny(orgID+userID, " \t\n") {
		return Correlation{}, false
	}
	return Correlation{OrganizationID: orgID, UserID: userID}, true
}
