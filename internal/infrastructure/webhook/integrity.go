package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/DanielPopoola/membership-reconciler/internal/domain"
)

var errMissingIntegritySecret = errors.New("integrity secret not configured for the current environment")

// IntegritySigner produces the checkout integrity signature the gateway's widget expects.
type IntegritySigner struct {
	secret string
}

func NewIntegritySigner(secret string) *IntegritySigner {
	return &IntegritySigner{secret: secret}
}

type SignRequest struct {
	Reference      string
	AmountInCents  int64
	Currency       string
	ExpirationTime string
}

// Sign returns hex(sha256(reference + amountInCents + CURRENCY [+ expirationTime] + secret)).
func (s *IntegritySigner) Sign(req SignRequest) (string, error) {
	if s.secret == "" {
		return "", errMissingIntegritySecret
	}
	if strings.TrimSpace(req.Reference) == "" {
		return "", domain.NewMissingRequiredFieldError("reference")
	}
	if req.AmountInCents < 0 {
		return "", domain.NewInvalidAmountError(req.AmountInCents)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	var b strings.Builder
	b.WriteString(req.Reference)
	b.WriteString(strconv.FormatInt(req.AmountInCents, 10))
	b.WriteString(currency)
	b.WriteString(req.ExpirationTime)
	b.WriteString(s.secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
